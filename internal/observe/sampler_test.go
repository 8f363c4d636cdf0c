package observe

import (
	"os"
	"testing"
	"time"
)

func TestSampleOwnProcess(t *testing.T) {
	pid := os.Getpid()
	s := NewSampler(time.Second, func() int { return pid })

	s.sampleOnce()

	sample, ok := s.Latest()
	if !ok {
		t.Fatal("no sample recorded for a live process")
	}
	if sample.PID != pid {
		t.Errorf("sample PID = %d, want %d", sample.PID, pid)
	}
	if sample.RSSBytes == 0 {
		t.Error("RSS of the test process is zero")
	}
	if sample.SampledAt.IsZero() {
		t.Error("sample has no timestamp")
	}
}

func TestNoChildClearsSample(t *testing.T) {
	pid := os.Getpid()
	current := pid
	s := NewSampler(time.Second, func() int { return current })

	s.sampleOnce()
	if _, ok := s.Latest(); !ok {
		t.Fatal("no sample while child is running")
	}

	// Child gone: the next tick drops the stale reading
	current = 0
	s.sampleOnce()
	if _, ok := s.Latest(); ok {
		t.Error("stale sample still reported after child exit")
	}
}

func TestStaleSampleForNewPIDDiscarded(t *testing.T) {
	pid := os.Getpid()
	current := pid
	s := NewSampler(time.Second, func() int { return current })

	s.sampleOnce()

	// A new child launched before the next tick: old reading is not its
	current = pid + 1
	if _, ok := s.Latest(); ok {
		t.Error("sample from previous child reported for the new PID")
	}
}

func TestReadHostStats(t *testing.T) {
	stats := ReadHostStats()
	if stats.MemTotalBytes == 0 {
		t.Error("host memory total is zero")
	}
}
