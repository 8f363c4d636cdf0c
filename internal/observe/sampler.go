package observe

// Observation is passive: samples feed the status API and metrics only.
// Restart decisions stay exit-driven; nothing here touches the child.

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one CPU/memory reading of the running child
type Sample struct {
	PID        int       `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	SampledAt  time.Time `json:"sampled_at"`
}

// Sampler periodically reads the child's CPU percent and RSS while it runs.
// The PID is looked up each tick so the sampler follows the supervisor
// across restarts without coordination.
type Sampler struct {
	interval time.Duration
	pidFn    func() int

	mu     sync.RWMutex
	latest *Sample
}

// NewSampler creates a sampler. pidFn reports the current child PID and
// returns 0 when no child is running.
func NewSampler(interval time.Duration, pidFn func() int) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		interval: interval,
		pidFn:    pidFn,
	}
}

// Run samples on the fixed interval until ctx is cancelled
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	pid := s.pidFn()
	if pid == 0 {
		s.mu.Lock()
		s.latest = nil
		s.mu.Unlock()
		return
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// Child exited between the PID lookup and the probe
		return
	}

	sample := Sample{PID: pid, SampledAt: time.Now()}

	if cpu, err := proc.CPUPercent(); err == nil {
		sample.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		sample.RSSBytes = mem.RSS
	}

	s.mu.Lock()
	s.latest = &sample
	s.mu.Unlock()
}

// Latest returns the most recent sample of the current child, if any.
// Stale samples from a previous child are discarded.
func (s *Sampler) Latest() (Sample, bool) {
	pid := s.pidFn()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.latest.PID != pid {
		return Sample{}, false
	}
	return *s.latest, true
}
