// Package http contains the gin handlers for the kernel control surface.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microkernel-project/microkernel/internal/ipc"
	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/sched"
	"github.com/microkernel-project/microkernel/internal/service"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	kernel    *kernel.Kernel
	scheduler *sched.Scheduler
	comms     *ipc.Manager
	registry  *service.Registry
}

// NewHandlers creates a new handler set.
func NewHandlers(k *kernel.Kernel, s *sched.Scheduler, comms *ipc.Manager, reg *service.Registry) *Handlers {
	return &Handlers{
		kernel:    k,
		scheduler: s,
		comms:     comms,
		registry:  reg,
	}
}

// Root handles the index route.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "microkernel",
	})
}

// Health reports overall system health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"kernel":    gin.H{"running": h.kernel.Running()},
		"scheduler": h.scheduler.Info(),
		"services":  h.registry.Statuses(),
	})
}

// System returns a full kernel snapshot.
func (h *Handlers) System(c *gin.Context) {
	c.JSON(http.StatusOK, h.kernel.SystemInfo())
}

// Memory returns a memory pool snapshot.
func (h *Handlers) Memory(c *gin.Context) {
	c.JSON(http.StatusOK, h.kernel.MemoryInfo())
}

// ---- Processes ----

type createProcessRequest struct {
	Name     string `json:"name" binding:"required"`
	Priority int    `json:"priority"`
}

// CreateProcess inserts a new READY process record.
func (h *Handlers) CreateProcess(c *gin.Context) {
	var req createProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pid, err := h.kernel.CreateProcess(req.Name, nil, req.Priority)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pid": pid})
}

// ListProcesses lists all live processes.
func (h *Handlers) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"processes": h.kernel.List()})
}

// GetProcess returns one process snapshot.
func (h *Handlers) GetProcess(c *gin.Context) {
	proc, ok := h.kernel.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "process not found"})
		return
	}
	c.JSON(http.StatusOK, proc)
}

// StartProcess launches a process's prepared body. Processes created over
// HTTP carry no body, so this fails for them with a state conflict.
func (h *Handlers) StartProcess(c *gin.Context) {
	pid := c.Param("id")
	if h.kernel.StartProcess(pid) {
		c.JSON(http.StatusOK, gin.H{"started": true})
		return
	}
	if _, ok := h.kernel.Get(pid); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "process not found"})
		return
	}
	respondError(c, fmt.Errorf("start process %s: %w", pid, kernel.ErrInvalidState))
}

// TerminateProcess removes a process and reclaims its memory.
func (h *Handlers) TerminateProcess(c *gin.Context) {
	if !h.kernel.TerminateProcess(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "process not found"})
		return
	}
	h.comms.ReleaseProcess(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"terminated": true})
}

// ---- Messages ----

type sendMessageRequest struct {
	Sender   string      `json:"sender" binding:"required"`
	Receiver string      `json:"receiver" binding:"required"`
	Payload  interface{} `json:"payload"`
	Kind     string      `json:"kind"`
}

// SendMessage delivers a point-to-point message.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = "data"
	}
	if err := h.comms.Send(req.Sender, req.Receiver, req.Payload, req.Kind); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// ReceiveMessage pops the oldest pending message for a process.
func (h *Handlers) ReceiveMessage(c *gin.Context) {
	msg := h.comms.Receive(c.Param("id"))
	if msg == nil {
		c.JSON(http.StatusOK, gin.H{"message": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// ---- Scheduler ----

// SchedulerInfo returns a scheduler snapshot.
func (h *Handlers) SchedulerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Info())
}

// StartScheduler launches the scheduling worker.
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

// StopScheduler halts the scheduling worker.
func (h *Handlers) StopScheduler(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

type quantumRequest struct {
	QuantumMs int `json:"quantum_ms" binding:"required"`
}

// SetQuantum changes the scheduler time slice.
func (h *Handlers) SetQuantum(c *gin.Context) {
	var req quantumRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuantumMs <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantum_ms must be a positive integer"})
		return
	}
	h.scheduler.SetTimeSlice(time.Duration(req.QuantumMs) * time.Millisecond)
	c.JSON(http.StatusOK, gin.H{"quantum_ms": req.QuantumMs})
}

type policyRequest struct {
	Policy string `json:"policy" binding:"required"`
}

// SetPolicy switches the scheduling policy. The scheduler must be stopped.
func (h *Handlers) SetPolicy(c *gin.Context) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	policy, err := sched.NewPolicy(req.Policy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.scheduler.SetPolicy(policy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": policy.Name()})
}

// ---- IPC ----

// IPCStats returns a snapshot of all IPC entities.
func (h *Handlers) IPCStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.comms.Stats())
}

type createSemaphoreRequest struct {
	Name    string `json:"name" binding:"required"`
	Initial int    `json:"initial"`
}

// CreateSemaphore registers a named semaphore.
func (h *Handlers) CreateSemaphore(c *gin.Context) {
	var req createSemaphoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.comms.CreateSemaphore(req.Name, req.Initial); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

type semaphoreOpRequest struct {
	PID       string `json:"pid" binding:"required"`
	TimeoutMs int    `json:"timeout_ms"`
}

// AcquireSemaphore takes one unit, blocking up to the given timeout.
func (h *Handlers) AcquireSemaphore(c *gin.Context) {
	var req semaphoreOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if err := h.comms.AcquireSemaphore(c.Param("name"), req.PID, timeout); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acquired": true})
}

// ReleaseSemaphore returns one unit.
func (h *Handlers) ReleaseSemaphore(c *gin.Context) {
	var req semaphoreOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.comms.ReleaseSemaphore(c.Param("name"), req.PID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": true})
}

type createSegmentRequest struct {
	Name string `json:"name" binding:"required"`
	Size int    `json:"size"`
}

// CreateSharedMemory registers a named segment.
func (h *Handlers) CreateSharedMemory(c *gin.Context) {
	var req createSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Size <= 0 {
		req.Size = 1024
	}
	if err := h.comms.CreateSharedMemory(req.Name, req.Size); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

type segmentAuthRequest struct {
	PID string `json:"pid" binding:"required"`
}

// AuthorizeSharedMemory grants a process access to a segment.
func (h *Handlers) AuthorizeSharedMemory(c *gin.Context) {
	var req segmentAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.comms.AuthorizeSharedMemory(c.Param("name"), req.PID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": true})
}

type segmentRWRequest struct {
	PID   string      `json:"pid" binding:"required"`
	Key   string      `json:"key" binding:"required"`
	Value interface{} `json:"value"`
}

// ReadSharedMemory reads a key from a segment.
func (h *Handlers) ReadSharedMemory(c *gin.Context) {
	var req segmentRWRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, err := h.comms.ReadSharedMemory(c.Param("name"), req.PID, req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": value})
}

// WriteSharedMemory writes a key into a segment.
func (h *Handlers) WriteSharedMemory(c *gin.Context) {
	var req segmentRWRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.comms.WriteSharedMemory(c.Param("name"), req.PID, req.Key, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": true})
}

type createPipeRequest struct {
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity"`
}

// CreatePipe registers a named bounded pipe.
func (h *Handlers) CreatePipe(c *gin.Context) {
	var req createPipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = 100
	}
	if err := h.comms.CreatePipe(req.Name, req.Capacity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

type pipeGrantRequest struct {
	PID  string `json:"pid" binding:"required"`
	Role string `json:"role" binding:"required"` // "reader" or "writer"
}

// GrantPipe adds a reader or writer to a pipe.
func (h *Handlers) GrantPipe(c *gin.Context) {
	var req pipeGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var err error
	switch req.Role {
	case "reader":
		err = h.comms.AddPipeReader(c.Param("name"), req.PID)
	case "writer":
		err = h.comms.AddPipeWriter(c.Param("name"), req.PID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be reader or writer"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": req.Role})
}

type pipeIORequest struct {
	PID       string      `json:"pid" binding:"required"`
	Data      interface{} `json:"data"`
	TimeoutMs int         `json:"timeout_ms"`
}

// WritePipe appends data to a pipe.
func (h *Handlers) WritePipe(c *gin.Context) {
	var req pipeIORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if err := h.comms.WritePipe(c.Param("name"), req.PID, req.Data, timeout); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": true})
}

// ReadPipe pops data from a pipe.
func (h *Handlers) ReadPipe(c *gin.Context) {
	var req pipeIORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	data, err := h.comms.ReadPipe(c.Param("name"), req.PID, timeout)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// ---- Services ----

// ListServices lists registered services with their statuses.
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(),
		"statuses": h.registry.Statuses(),
	})
}

// respondError maps the core error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, kernel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, kernel.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, kernel.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, kernel.ErrTimeout):
		status = http.StatusRequestTimeout
	case errors.Is(err, kernel.ErrOutOfMemory):
		status = http.StatusInsufficientStorage
	case errors.Is(err, kernel.ErrInvalidState):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
