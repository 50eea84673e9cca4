package types

import "time"

// Message is an immutable point-to-point IPC message
type Message struct {
	ID        string      `json:"id"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
	Payload   interface{} `json:"payload"`
	Kind      string      `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
}

// SemaphoreInfo is a snapshot of one semaphore
type SemaphoreInfo struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Initial int      `json:"initial"`
	Waiters []string `json:"waiters"`
}

// SegmentInfo is a snapshot of one shared-memory segment
type SegmentInfo struct {
	Name        string   `json:"name"`
	Size        int      `json:"size"`
	Keys        int      `json:"keys"`
	Authorized  []string `json:"authorized"`
	AccessCount uint64   `json:"access_count"`
}

// PipeInfo is a snapshot of one pipe
type PipeInfo struct {
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Buffered int      `json:"buffered"`
	Readers  []string `json:"readers"`
	Writers  []string `json:"writers"`
}

// IPCStats summarizes all IPC entities
type IPCStats struct {
	PendingMessages int             `json:"pending_messages"`
	Semaphores      []SemaphoreInfo `json:"semaphores"`
	Segments        []SegmentInfo   `json:"segments"`
	Pipes           []PipeInfo      `json:"pipes"`
}
