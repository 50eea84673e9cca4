package monitoring

import (
	"time"

	"github.com/microkernel-project/microkernel/internal/types"
)

// SystemSource is anything that can snapshot kernel state.
type SystemSource interface {
	SystemInfo() types.SystemInfo
}

// SchedulerSource is anything that can snapshot scheduler state.
type SchedulerSource interface {
	Info() types.SchedulerInfo
}

// Collector periodically mirrors kernel and scheduler snapshots into gauges.
type Collector struct {
	metrics *Metrics
	kernel  SystemSource
	sched   SchedulerSource
	stop    chan struct{}
	done    chan struct{}
}

// NewCollector creates a stopped collector.
func NewCollector(m *Metrics, k SystemSource, s SchedulerSource) *Collector {
	return &Collector{metrics: m, kernel: k, sched: s}
}

// Start launches the collection loop with the given interval.
func (c *Collector) Start(interval time.Duration) {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()
}

// Stop halts the collection loop.
func (c *Collector) Stop() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
}

func (c *Collector) collect() {
	info := c.kernel.SystemInfo()
	c.metrics.ProcessesLive.Set(float64(info.Processes.Total))
	c.metrics.ProcessesCreated.Set(float64(info.Stats.ProcessesCreated))
	c.metrics.ProcessesTerminated.Set(float64(info.Stats.ProcessesTerminated))
	c.metrics.MemoryUsed.Set(float64(info.Memory.Used))
	c.metrics.MessagesSent.Set(float64(info.Stats.MessagesSent))

	sched := c.sched.Info()
	if sched.Running {
		c.metrics.SchedulerRunning.Set(1)
	} else {
		c.metrics.SchedulerRunning.Set(0)
	}
	c.metrics.ReadyProcesses.Set(float64(sched.ReadyProcesses))
}
