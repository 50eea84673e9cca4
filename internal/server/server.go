// Package server wires the kernel, scheduler, IPC manager, service registry,
// and HTTP surface together. Everything is constructed here and injected;
// there is no global state.
package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/api/http"
	"github.com/microkernel-project/microkernel/internal/api/middleware"
	"github.com/microkernel-project/microkernel/internal/config"
	"github.com/microkernel-project/microkernel/internal/ipc"
	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/monitoring"
	"github.com/microkernel-project/microkernel/internal/providers/filesystem"
	"github.com/microkernel-project/microkernel/internal/providers/network"
	"github.com/microkernel-project/microkernel/internal/sched"
	"github.com/microkernel-project/microkernel/internal/service"
	"github.com/microkernel-project/microkernel/internal/ws"
)

// Server owns every component's lifecycle.
type Server struct {
	cfg       *config.Config
	log       *logging.Logger
	router    *gin.Engine
	kernel    *kernel.Kernel
	scheduler *sched.Scheduler
	comms     *ipc.Manager
	registry  *service.Registry
	collector *monitoring.Collector
}

// New constructs the full system from configuration.
func New(cfg *config.Config) (*Server, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	k := kernel.New(kernel.Config{
		MemoryTotal:  cfg.Kernel.MemoryTotal,
		ProcessQuota: cfg.Kernel.ProcessQuota,
	}, log)

	policy, err := sched.NewPolicy(cfg.Scheduler.Policy)
	if err != nil {
		return nil, err
	}
	scheduler := sched.New(k, policy, log)
	if cfg.Scheduler.QuantumMs > 0 {
		scheduler.SetTimeSlice(time.Duration(cfg.Scheduler.QuantumMs) * time.Millisecond)
	}

	comms := ipc.NewManager(k, log)

	registry := service.NewRegistry()
	registerServices(registry, k, comms, log)

	metrics := monitoring.NewMetrics()
	collector := monitoring.NewCollector(metrics, k, scheduler)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(metrics.Middleware())

	handlers := http.NewHandlers(k, scheduler, comms, registry)
	wsHandler := ws.NewHandler(k, scheduler, comms, log)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/system", handlers.System)
	router.GET("/memory", handlers.Memory)
	router.GET("/metrics", metrics.Handler())

	router.POST("/processes", handlers.CreateProcess)
	router.GET("/processes", handlers.ListProcesses)
	router.GET("/processes/:id", handlers.GetProcess)
	router.POST("/processes/:id/start", handlers.StartProcess)
	router.DELETE("/processes/:id", handlers.TerminateProcess)
	router.POST("/processes/:id/receive", handlers.ReceiveMessage)

	router.POST("/messages", handlers.SendMessage)

	router.GET("/scheduler", handlers.SchedulerInfo)
	router.POST("/scheduler/start", handlers.StartScheduler)
	router.POST("/scheduler/stop", handlers.StopScheduler)
	router.PUT("/scheduler/quantum", handlers.SetQuantum)
	router.PUT("/scheduler/policy", handlers.SetPolicy)

	router.GET("/ipc", handlers.IPCStats)
	router.POST("/ipc/semaphores", handlers.CreateSemaphore)
	router.POST("/ipc/semaphores/:name/acquire", handlers.AcquireSemaphore)
	router.POST("/ipc/semaphores/:name/release", handlers.ReleaseSemaphore)
	router.POST("/ipc/memory", handlers.CreateSharedMemory)
	router.POST("/ipc/memory/:name/authorize", handlers.AuthorizeSharedMemory)
	router.POST("/ipc/memory/:name/read", handlers.ReadSharedMemory)
	router.POST("/ipc/memory/:name/write", handlers.WriteSharedMemory)
	router.POST("/ipc/pipes", handlers.CreatePipe)
	router.POST("/ipc/pipes/:name/grant", handlers.GrantPipe)
	router.POST("/ipc/pipes/:name/write", handlers.WritePipe)
	router.POST("/ipc/pipes/:name/read", handlers.ReadPipe)

	router.GET("/services", handlers.ListServices)
	router.GET("/stream", wsHandler.HandleConnection)

	return &Server{
		cfg:       cfg,
		log:       log,
		router:    router,
		kernel:    k,
		scheduler: scheduler,
		comms:     comms,
		registry:  registry,
		collector: collector,
	}, nil
}

// Run starts the scheduler, all registered services, the metrics collector,
// and finally the HTTP listener. It blocks until the listener stops.
func (s *Server) Run() error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	for _, name := range s.registry.List() {
		svc, _ := s.registry.Get(name)
		if err := svc.Start(); err != nil {
			s.log.Warn("service failed to start", zap.String("service", name), zap.Error(err))
		}
	}
	s.collector.Start(time.Second)

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.log.Info("listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears the system down in reverse dependency order.
func (s *Server) Close() error {
	s.collector.Stop()
	if err := s.registry.StopAll(); err != nil {
		s.log.Warn("service shutdown error", zap.Error(err))
	}
	s.scheduler.Stop()
	s.kernel.Shutdown()
	return s.log.Sync()
}

func registerServices(reg *service.Registry, k *kernel.Kernel, comms *ipc.Manager, log *logging.Logger) {
	if err := reg.Register("filesystem", filesystem.New(k, comms, log)); err != nil {
		log.Warn("register filesystem service", zap.Error(err))
	}
	if err := reg.Register("network", network.New(k, comms, log)); err != nil {
		log.Warn("register network service", zap.Error(err))
	}
}
