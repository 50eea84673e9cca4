package types

import "time"

// ProcessState represents process lifecycle states
type ProcessState string

const (
	StateReady   ProcessState = "ready"
	StateRunning ProcessState = "running"
	// StateBlocked is declared for IPC-wait integration but no core
	// transition drives it; IPC waits park the calling goroutine instead.
	StateBlocked    ProcessState = "blocked"
	StateTerminated ProcessState = "terminated"
)

// Process is a point-in-time snapshot of a process record
type Process struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Priority        int          `json:"priority"`
	State           ProcessState `json:"state"`
	MemoryAllocated int          `json:"memory_allocated"`
	CreatedAt       time.Time    `json:"created_at"`
	PendingMessages int          `json:"pending_messages"`
}

// MemoryInfo is a point-in-time snapshot of the memory pool
type MemoryInfo struct {
	Total       int     `json:"total"`
	Used        int     `json:"used"`
	Free        int     `json:"free"`
	PercentUsed float64 `json:"percent_used"`
}

// KernelStats contains kernel counters
type KernelStats struct {
	ProcessesCreated    uint64 `json:"processes_created"`
	ProcessesTerminated uint64 `json:"processes_terminated"`
	MessagesSent        uint64 `json:"messages_sent"`
}

// ProcessCounts breaks down live processes by state
type ProcessCounts struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	Running    int `json:"running"`
	Blocked    int `json:"blocked"`
	Terminated int `json:"terminated"`
}

// SystemInfo is a full kernel snapshot
type SystemInfo struct {
	Running   bool          `json:"running"`
	Processes ProcessCounts `json:"processes"`
	Memory    MemoryInfo    `json:"memory"`
	Stats     KernelStats   `json:"stats"`
	Uptime    float64       `json:"uptime_seconds"`
}

// SchedulerInfo is a point-in-time snapshot of the scheduler
type SchedulerInfo struct {
	Running        bool              `json:"running"`
	Policy         string            `json:"policy"`
	TimeSliceMs    float64           `json:"time_slice_ms"`
	CurrentProcess *string           `json:"current_process,omitempty"`
	ReadyProcesses int               `json:"ready_processes"`
	Dispatches     map[string]uint64 `json:"dispatches"`
}
