// Package ws streams periodic system snapshots over WebSocket.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/ipc"
	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/sched"
)

// snapshotInterval is how often connected clients receive a system snapshot.
const snapshotInterval = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket connections.
type Handler struct {
	kernel    *kernel.Kernel
	scheduler *sched.Scheduler
	comms     *ipc.Manager
	log       *logging.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(k *kernel.Kernel, s *sched.Scheduler, comms *ipc.Manager, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		kernel:    k,
		scheduler: s,
		comms:     comms,
		log:       log.Named("ws"),
	}
}

// HandleConnection upgrades the connection and streams snapshots until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(payload interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(payload)
	}

	if err := send(gin.H{"type": "system", "message": "connected to microkernel"}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(h.snapshot()); err != nil {
					return
				}
			}
		}
	}()
	defer close(done)

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			if err := send(gin.H{"type": "pong"}); err != nil {
				return
			}
		case "snapshot":
			if err := send(h.snapshot()); err != nil {
				return
			}
		default:
			if err := send(gin.H{"type": "error", "error": "unknown message type"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) snapshot() gin.H {
	return gin.H{
		"type":      "snapshot",
		"system":    h.kernel.SystemInfo(),
		"scheduler": h.scheduler.Info(),
		"ipc":       h.comms.Stats(),
	}
}
