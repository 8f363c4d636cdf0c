package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/botkeeper/internal/config"
	"github.com/psantana5/botkeeper/internal/observe"
	"github.com/psantana5/botkeeper/internal/pidfile"
	"github.com/psantana5/botkeeper/internal/retention"
	"github.com/psantana5/botkeeper/internal/server"
	"github.com/psantana5/botkeeper/internal/supervisor"
	"github.com/psantana5/botkeeper/pkg/bandwidth"
	"github.com/psantana5/botkeeper/pkg/logging"
	"github.com/psantana5/botkeeper/pkg/models"
	"github.com/psantana5/botkeeper/pkg/retry"
	"github.com/psantana5/botkeeper/pkg/shutdown"
	"github.com/psantana5/botkeeper/pkg/store"
	"github.com/psantana5/botkeeper/pkg/tlsutil"
	"github.com/psantana5/botkeeper/pkg/tracing"
)

var (
	runScript      string
	runInterpreter string
	runWorkDir     string
	runCooldown    time.Duration
	runLogDir      string
	runNoServer    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisor daemon",
	Long: `Run launches the bot and keeps it alive: every exit, clean or not,
is followed by a fixed cooldown and an unconditional relaunch. There is no
backoff and no retry limit; the loop ends only when the daemon is stopped.

Supervisor events go to the startup log, the bot's combined stdout and
stderr to the bot log. Both are append-only.

Example:
  botkeeper run
  botkeeper run --script /opt/tgbot/telegram_bot_cloud.py --cooldown 10s`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runScript, "script", "", "bot script path (overrides config)")
	runCmd.Flags().StringVar(&runInterpreter, "interpreter", "", "interpreter binary (overrides config)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "bot working directory (overrides config)")
	runCmd.Flags().DurationVar(&runCooldown, "cooldown", 0, "delay between exit and relaunch (overrides config)")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "log directory (overrides config)")
	runCmd.Flags().BoolVar(&runNoServer, "no-server", false, "disable the status API")
}

// loadDaemonConfig resolves the YAML config and applies CLI overrides
func loadDaemonConfig() (*config.Config, error) {
	var cfg *config.Config

	path := ConfigFilePath()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if runScript != "" {
		cfg.Child.Script = runScript
	}
	if runInterpreter != "" {
		cfg.Child.Interpreter = runInterpreter
	}
	if runWorkDir != "" {
		cfg.Child.WorkDir = runWorkDir
	}
	if runCooldown > 0 {
		cfg.Restart.Cooldown = runCooldown.String()
	}
	if runLogDir != "" {
		cfg.Logging.Dir = runLogDir
	}
	if runNoServer {
		cfg.Server.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadDaemonConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	supCfg, err := cfg.ToSupervisorConfig()
	if err != nil {
		return err
	}

	fmt.Printf("╔════════════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║ botkeeper supervisor daemon                                    ║\n")
	fmt.Printf("╠════════════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║ Script: %-54s ║\n", truncate(supCfg.Script, 54))
	fmt.Printf("║ Interpreter: %-49s ║\n", truncate(supCfg.Interpreter, 49))
	fmt.Printf("║ Cooldown: %-52s ║\n", supCfg.Cooldown)
	fmt.Printf("║ Log Dir: %-53s ║\n", truncate(supCfg.LogDir, 53))
	fmt.Printf("║ History Backend: %-45s ║\n", cfg.History.Backend)
	fmt.Printf("╚════════════════════════════════════════════════════════════════╝\n")

	// Singleton guard: one supervisor per bot
	pf, err := pidfile.Acquire(cfg.PidFile)
	if err != nil {
		return err
	}

	// Startup log: append-only, echoed to stdout
	level := logging.ParseLevel(cfg.Logging.Level)
	startupLog, err := logging.NewFileLogger(cfg.Logging.Dir, cfg.Logging.StartupLog, level, cfg.Logging.JSON, true)
	if err != nil {
		pf.Release()
		return fmt.Errorf("startup log: %w", err)
	}

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "botkeeper",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		pf.Release()
		return fmt.Errorf("tracing: %w", err)
	}

	// History store; opening is the one place that retries, the restart
	// loop itself never backs off
	var st store.Store
	err = retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		var openErr error
		st, openErr = store.NewStore(store.Config{
			Backend: cfg.History.Backend,
			Path:    cfg.History.Path,
			DSN:     cfg.History.DSN,
			Keep:    cfg.History.Keep,
		})
		return openErr
	})
	if err != nil {
		pf.Release()
		return fmt.Errorf("history store: %w", err)
	}

	sup := supervisor.New(supCfg, startupLog)

	sampler := observe.NewSampler(cfg.SampleInterval(), sup.CurrentPID)

	retentionMgr := retention.NewManager(retention.Config{
		Enabled:         true,
		RetentionDays:   cfg.History.RetentionDays,
		CleanupInterval: mustDuration(cfg.History.CleanupInterval),
		VacuumInterval:  mustDuration(cfg.History.VacuumInterval),
	}, st, startupLog)

	var srv *server.Server
	if cfg.Server.Enabled {
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			if err := tlsutil.EnsureServerCert(cfg.Server.TLSCert, cfg.Server.TLSKey, "botkeeper"); err != nil {
				pf.Release()
				return fmt.Errorf("tls: %w", err)
			}
		}
		srv = server.New(server.Config{
			Listen:     cfg.Server.Listen,
			APIKeyHash: cfg.Server.APIKeyHash,
			RateLimit:  cfg.Server.RateLimit,
			RateBurst:  cfg.Server.RateBurst,
			TLSCert:    cfg.Server.TLSCert,
			TLSKey:     cfg.Server.TLSKey,
		}, sup, st, sampler, bandwidth.NewMonitor(nil), tracer, startupLog)
	}

	// Every event reaches the websocket subscribers; every finished cycle
	// reaches the history store and the tracer
	if srv != nil {
		hub := srv.Hub()
		sup.SetEventHook(func(e models.Event) {
			hub.Broadcast(e)
		})
	}
	sup.SetCycleHook(func(c models.Cycle) {
		if err := st.SaveCycle(&c); err != nil {
			startupLog.Error("failed to persist cycle", map[string]interface{}{"error": err.Error()})
		}
		tracer.RecordCycle(context.Background(), c)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	go sampler.Run(ctx)
	retentionMgr.Start()

	if srv != nil {
		go func() {
			if err := srv.Start(); err != nil {
				startupLog.Error("status API stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// Teardown runs in reverse registration order: server first, then the
	// supervisor (killing the child), then the rest
	sm := shutdown.New(30 * time.Second)
	sm.Register(func(context.Context) error { return pf.Release() })
	sm.Register(func(sctx context.Context) error { return tracer.Shutdown(sctx) })
	sm.Register(shutdown.CloseResource(st, "history store"))
	sm.Register(func(context.Context) error { retentionMgr.Stop(); return nil })
	sm.Register(func(sctx context.Context) error {
		cancel()
		select {
		case <-supDone:
			return nil
		case <-sctx.Done():
			return fmt.Errorf("supervisor did not stop in time: %w", sctx.Err())
		}
	})
	if srv != nil {
		sm.Register(shutdown.StopHTTPServer(srv, "status"))
	}

	return sm.WaitWithContext(context.Background())
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
