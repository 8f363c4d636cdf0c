package retention

import (
	"context"
	"sync"
	"time"

	"github.com/psantana5/botkeeper/pkg/logging"
	"github.com/psantana5/botkeeper/pkg/store"
)

// Config defines retention policy for the cycle history. The two log files
// are out of scope here: botkeeper never prunes or rotates them.
type Config struct {
	Enabled         bool
	RetentionDays   int
	CleanupInterval time.Duration
	VacuumInterval  time.Duration
}

// DefaultConfig returns sensible defaults for history retention
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RetentionDays:   7,
		CleanupInterval: 24 * time.Hour,
		VacuumInterval:  7 * 24 * time.Hour,
	}
}

// Manager prunes old cycle records and periodically vacuums the store
type Manager struct {
	config Config
	store  store.Store
	log    *logging.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// Stats tracks retention runs
type Stats struct {
	LastPruneTime      time.Time
	LastVacuumTime     time.Time
	TotalCyclesPruned  int64
	TotalVacuumRuns    int64
	LastPruneDuration  time.Duration
	LastVacuumDuration time.Duration
}

// NewManager creates a retention manager over the cycle store
func NewManager(config Config, s store.Store, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Manager{
		config: config,
		store:  s,
		log:    log,
	}
}

// Start begins the background prune and vacuum loops
func (m *Manager) Start() {
	if !m.config.Enabled {
		m.log.Info("history retention disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.log.Info("starting history retention", map[string]interface{}{
		"retention_days": m.config.RetentionDays,
		"interval":       m.config.CleanupInterval.String(),
	})

	m.wg.Add(2)
	go m.pruneLoop(ctx)
	go m.vacuumLoop(ctx)
}

// Stop halts the background loops and waits for them
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info("history retention stopped")
}

func (m *Manager) pruneLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

func (m *Manager) vacuumLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.VacuumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.vacuum()
		}
	}
}

// prune deletes cycles older than the retention window
func (m *Manager) prune() {
	start := time.Now()
	cutoff := time.Now().Add(-time.Duration(m.config.RetentionDays) * 24 * time.Hour)

	removed, err := m.store.PruneOlderThan(cutoff)
	if err != nil {
		m.log.Error("history prune failed", map[string]interface{}{"error": err.Error()})
		return
	}

	duration := time.Since(start)

	m.mu.Lock()
	m.stats.LastPruneTime = time.Now()
	m.stats.LastPruneDuration = duration
	m.stats.TotalCyclesPruned += int64(removed)
	m.mu.Unlock()

	m.log.Info("history prune complete", map[string]interface{}{
		"removed":  removed,
		"duration": duration.String(),
	})
}

func (m *Manager) vacuum() {
	start := time.Now()

	if err := m.store.Vacuum(); err != nil {
		m.log.Error("history vacuum failed", map[string]interface{}{"error": err.Error()})
		return
	}

	duration := time.Since(start)

	m.mu.Lock()
	m.stats.LastVacuumTime = time.Now()
	m.stats.LastVacuumDuration = duration
	m.stats.TotalVacuumRuns++
	m.mu.Unlock()

	m.log.Info("history vacuum complete", map[string]interface{}{"duration": duration.String()})
}

// PruneNow triggers an immediate prune run
func (m *Manager) PruneNow() {
	m.prune()
}

// VacuumNow triggers an immediate vacuum run
func (m *Manager) VacuumNow() {
	m.vacuum()
}

// GetStats returns current retention statistics
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
