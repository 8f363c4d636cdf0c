package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/botkeeper/internal/observe"
	"github.com/psantana5/botkeeper/pkg/models"
)

// handleMetrics serves Prometheus text exposition: hand-written supervisor
// gauges first, then everything registered with the default registry
// (the bandwidth vectors), skipping names already written.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	snap := s.sup.Snapshot()

	fmt.Fprintf(w, "# HELP botkeeper_restarts_total Completed supervision cycles (each one is a child exit)\n")
	fmt.Fprintf(w, "# TYPE botkeeper_restarts_total counter\n")
	fmt.Fprintf(w, "botkeeper_restarts_total %d\n", snap.CyclesDone)

	running := 0
	if snap.Phase == models.PhaseRunning {
		running = 1
	}
	fmt.Fprintf(w, "\n# HELP botkeeper_child_running Whether a child process is currently alive\n")
	fmt.Fprintf(w, "# TYPE botkeeper_child_running gauge\n")
	fmt.Fprintf(w, "botkeeper_child_running %d\n", running)

	fmt.Fprintf(w, "\n# HELP botkeeper_supervisor_phase Supervisor phase, one-hot per phase label\n")
	fmt.Fprintf(w, "# TYPE botkeeper_supervisor_phase gauge\n")
	for _, phase := range []models.Phase{models.PhaseIdle, models.PhaseLaunching,
		models.PhaseRunning, models.PhaseCooldown, models.PhaseStopped} {
		value := 0
		if snap.Phase == phase {
			value = 1
		}
		fmt.Fprintf(w, "botkeeper_supervisor_phase{phase=\"%s\"} %d\n", phase, value)
	}

	fmt.Fprintf(w, "\n# HELP botkeeper_last_exit_code Exit code of the most recently finished cycle\n")
	fmt.Fprintf(w, "# TYPE botkeeper_last_exit_code gauge\n")
	fmt.Fprintf(w, "botkeeper_last_exit_code %d\n", snap.LastExitCode)

	fmt.Fprintf(w, "\n# HELP botkeeper_child_uptime_seconds How long the current child has been running\n")
	fmt.Fprintf(w, "# TYPE botkeeper_child_uptime_seconds gauge\n")
	fmt.Fprintf(w, "botkeeper_child_uptime_seconds %.0f\n", snap.ChildUptime)

	fmt.Fprintf(w, "\n# HELP botkeeper_cooldown_seconds Fixed delay between child exit and relaunch\n")
	fmt.Fprintf(w, "# TYPE botkeeper_cooldown_seconds gauge\n")
	fmt.Fprintf(w, "botkeeper_cooldown_seconds %.0f\n", snap.CooldownSecs)

	fmt.Fprintf(w, "\n# HELP botkeeper_session_start_timestamp_seconds Unix time the supervisor session started\n")
	fmt.Fprintf(w, "# TYPE botkeeper_session_start_timestamp_seconds gauge\n")
	fmt.Fprintf(w, "botkeeper_session_start_timestamp_seconds %d\n", snap.SessionStarted.Unix())

	fmt.Fprintf(w, "\n# HELP botkeeper_daemon_uptime_seconds Daemon uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE botkeeper_daemon_uptime_seconds gauge\n")
	fmt.Fprintf(w, "botkeeper_daemon_uptime_seconds %.0f\n", time.Since(s.startTime).Seconds())

	if s.store != nil {
		if count, err := s.store.CountCycles(); err == nil {
			fmt.Fprintf(w, "\n# HELP botkeeper_history_cycles Cycle records held in the history store\n")
			fmt.Fprintf(w, "# TYPE botkeeper_history_cycles gauge\n")
			fmt.Fprintf(w, "botkeeper_history_cycles %d\n", count)
		}
	}

	if s.sampler != nil {
		if sample, ok := s.sampler.Latest(); ok {
			fmt.Fprintf(w, "\n# HELP botkeeper_child_cpu_percent CPU usage of the child process\n")
			fmt.Fprintf(w, "# TYPE botkeeper_child_cpu_percent gauge\n")
			fmt.Fprintf(w, "botkeeper_child_cpu_percent %.2f\n", sample.CPUPercent)

			fmt.Fprintf(w, "\n# HELP botkeeper_child_rss_bytes Resident memory of the child process\n")
			fmt.Fprintf(w, "# TYPE botkeeper_child_rss_bytes gauge\n")
			fmt.Fprintf(w, "botkeeper_child_rss_bytes %d\n", sample.RSSBytes)
		}
	}

	host := observe.ReadHostStats()
	fmt.Fprintf(w, "\n# HELP botkeeper_host_cpu_percent Host CPU usage\n")
	fmt.Fprintf(w, "# TYPE botkeeper_host_cpu_percent gauge\n")
	fmt.Fprintf(w, "botkeeper_host_cpu_percent %.2f\n", host.CPUPercent)

	fmt.Fprintf(w, "\n# HELP botkeeper_host_memory_used_bytes Host memory in use\n")
	fmt.Fprintf(w, "# TYPE botkeeper_host_memory_used_bytes gauge\n")
	fmt.Fprintf(w, "botkeeper_host_memory_used_bytes %d\n", host.MemUsedBytes)

	fmt.Fprintf(w, "\n# HELP botkeeper_host_memory_total_bytes Host memory total\n")
	fmt.Fprintf(w, "# TYPE botkeeper_host_memory_total_bytes gauge\n")
	fmt.Fprintf(w, "botkeeper_host_memory_total_bytes %d\n", host.MemTotalBytes)

	if s.bw != nil {
		stats := s.bw.GetStats()
		fmt.Fprintf(w, "\n# HELP botkeeper_http_bandwidth_bytes_total Total status API bandwidth by direction\n")
		fmt.Fprintf(w, "# TYPE botkeeper_http_bandwidth_bytes_total counter\n")
		fmt.Fprintf(w, "botkeeper_http_bandwidth_bytes_total{direction=\"inbound\"} %d\n", stats.TotalBytesReceived)
		fmt.Fprintf(w, "botkeeper_http_bandwidth_bytes_total{direction=\"outbound\"} %d\n", stats.TotalBytesSent)

		fmt.Fprintf(w, "\n# HELP botkeeper_http_requests_total Total status API requests processed\n")
		fmt.Fprintf(w, "# TYPE botkeeper_http_requests_total counter\n")
		fmt.Fprintf(w, "botkeeper_http_requests_total %d\n", stats.TotalRequests)
	}

	// Append the client_golang-registered metrics (bandwidth vectors and
	// friends) via the text encoder
	fmt.Fprintf(w, "\n")

	metricFamilies, err := promclient.DefaultGatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}

	written := map[string]bool{
		"botkeeper_http_bandwidth_bytes_total": true,
		"botkeeper_http_requests_total":        true,
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metricFamilies {
		if written[mf.GetName()] {
			continue
		}
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}

	w.Write(buf.Bytes())
}
