package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/psantana5/botkeeper/pkg/models"
)

func testCycle(seq int, startedAt time.Time) *models.Cycle {
	return &models.Cycle{
		ID:        fmt.Sprintf("cycle-%d", seq),
		SessionID: "session-1",
		Seq:       seq,
		PID:       1000 + seq,
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(time.Minute),
		ExitCode:  0,
	}
}

func TestMemorySaveAndList(t *testing.T) {
	s := NewMemoryStore(0)
	now := time.Now()

	for i := 1; i <= 3; i++ {
		if err := s.SaveCycle(testCycle(i, now.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveCycle: %v", err)
		}
	}

	cycles, err := s.ListCycles(0)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("got %d cycles, want 3", len(cycles))
	}
	// Newest first
	if cycles[0].Seq != 3 || cycles[2].Seq != 1 {
		t.Errorf("order = %d,%d,%d, want 3,2,1", cycles[0].Seq, cycles[1].Seq, cycles[2].Seq)
	}
}

func TestMemoryListLimit(t *testing.T) {
	s := NewMemoryStore(0)
	now := time.Now()
	for i := 1; i <= 5; i++ {
		s.SaveCycle(testCycle(i, now))
	}

	cycles, err := s.ListCycles(2)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Errorf("got %d cycles, want 2", len(cycles))
	}
}

func TestMemoryRingEviction(t *testing.T) {
	s := NewMemoryStore(3)
	now := time.Now()
	for i := 1; i <= 5; i++ {
		s.SaveCycle(testCycle(i, now))
	}

	count, err := s.CountCycles()
	if err != nil {
		t.Fatalf("CountCycles: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want ring capped at 3", count)
	}

	cycles, _ := s.ListCycles(0)
	if cycles[len(cycles)-1].Seq != 3 {
		t.Errorf("oldest kept seq = %d, want 3 (1 and 2 evicted)", cycles[len(cycles)-1].Seq)
	}
}

func TestMemoryPrune(t *testing.T) {
	s := NewMemoryStore(0)
	now := time.Now()

	s.SaveCycle(testCycle(1, now.Add(-48*time.Hour)))
	s.SaveCycle(testCycle(2, now.Add(-30*time.Hour)))
	s.SaveCycle(testCycle(3, now.Add(-time.Hour)))

	removed, err := s.PruneOlderThan(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	count, _ := s.CountCycles()
	if count != 1 {
		t.Errorf("count after prune = %d, want 1", count)
	}
}

func TestMemorySaveCopies(t *testing.T) {
	s := NewMemoryStore(0)
	c := testCycle(1, time.Now())
	s.SaveCycle(c)

	// Mutating the caller's struct must not reach the stored record
	c.ExitCode = 99

	cycles, _ := s.ListCycles(1)
	if cycles[0].ExitCode != 0 {
		t.Errorf("stored exit code = %d, want 0 (store must copy)", cycles[0].ExitCode)
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Backend: "memory"}, false},
		{"default empty", Config{}, false},
		{"postgres without dsn", Config{Backend: "postgres"}, true},
		{"unknown backend", Config{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("NewStore() = nil error, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			defer s.Close()
			if err := s.HealthCheck(); err != nil {
				t.Errorf("HealthCheck: %v", err)
			}
		})
	}
}
