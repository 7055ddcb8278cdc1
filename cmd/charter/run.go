package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/policy/approval"
	"mercator-hq/charter/pkg/policy/library"
	"mercator-hq/charter/pkg/policy/library/gitsource"
	"mercator-hq/charter/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress   string
	logLevel        string
	dryRun          bool
	shutdownTimeout time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run escalation sweeps, library reloads and the health endpoints",
	Long: `Run keeps Charter's background work going until interrupted:

  - the approval escalation sweep, on approval.escalation_schedule
  - library reloads when files under library.path change (library.watch)
  - git pulls of a git-sourced library, on library.git.sync_schedule
  - /healthz, /readyz, /version and the Prometheus endpoint on
    telemetry.metrics.listen_address

A reloaded library that fails to load or lint is rejected and the previous
snapshot stays in use. Stored clause edits are re-applied to every reload.

Examples:
  # Start with default config
  charter run

  # Start with custom config
  charter run --config /etc/charter/charter.yaml

  # Validate config and library without starting
  charter run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override the health and metrics listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and library without starting")
	runCmd.Flags().DurationVar(&runFlags.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	lib := a.engine.Library()
	st := lib.Stats()
	if issues := library.Lint(lib); library.HasErrors(issues) {
		return cli.NewConfigError("library", fmt.Sprintf("library has lint errors, first: %s (run charter lint)", issues[0]))
	}
	fmt.Fprintf(out, "✓ Library loaded from %s (%d templates, %d clauses, %d workflows)\n",
		lib.Source, st.Templates, st.Clauses, st.Workflows)
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	watcher, err := library.NewWatcher(a.libraryPath(), a.libraryTarget(), cfg.Library.DebounceInterval, a.logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer watcher.Stop()
	watcher.OnReload = func(lib *library.Library, err error) {
		if err != nil {
			a.metrics.RecordLibraryReload(err, 0, 0, 0)
			return
		}
		st := lib.Stats()
		a.metrics.RecordLibraryReload(nil, st.Templates, st.Clauses, st.Workflows)
	}
	if cfg.Library.Watch {
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				a.logger.Error("library watcher stopped", "error", err)
			}
		}()
		fmt.Fprintln(out, "✓ Watching library for changes")
	}

	if a.git != nil && cfg.Library.Git.SyncSchedule != "" {
		syncer := cron.New()
		if _, err := syncer.AddFunc(cfg.Library.Git.SyncSchedule, func() { a.syncLibrary(ctx, watcher) }); err != nil {
			return cli.NewConfigError("library.git.sync_schedule", err.Error())
		}
		syncer.Start()
		defer func() { <-syncer.Stop().Done() }()
		fmt.Fprintf(out, "✓ Pulling %s on %q\n", cfg.Library.Git.Repository, cfg.Library.Git.SyncSchedule)
	}

	scheduler := approval.NewScheduler(cfg.Approval.EscalationSchedule, a.engine.CheckEscalations, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("approval.escalation_schedule", err.Error())
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Escalation sweep scheduled, next run %s\n", next.Format(time.RFC3339))
	}

	mux := http.NewServeMux()
	health.Mount(mux, a.healthChecker(), Version, GitCommit, BuildDate)
	if a.metrics != nil {
		mux.Handle(cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	}

	ln, err := net.Listen("tcp", cfg.Telemetry.Metrics.ListenAddress)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("listen on %s: %w", cfg.Telemetry.Metrics.ListenAddress, err))
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/readyz\n", ln.Addr())
	if a.metrics != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), runFlags.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

// libraryPath is the directory reloads read from.
func (a *app) libraryPath() string {
	if a.git != nil {
		return a.git.LibraryPath()
	}
	return a.cfg.Library.Path
}

// libraryTarget is where reloaded snapshots go: through the clause overlay,
// stamped with the checked-out commit for git-sourced libraries.
func (a *app) libraryTarget() library.Publisher {
	if a.git == nil {
		return a.overlay
	}
	return &commitStamper{repo: a.git, url: a.cfg.Library.Git.Repository, next: a.overlay}
}

// syncLibrary pulls the library branch and reloads when it moved.
func (a *app) syncLibrary(ctx context.Context, w *library.Watcher) {
	syncCtx, cancel := context.WithTimeout(ctx, a.cfg.Library.Git.Timeout)
	defer cancel()

	res, err := a.git.Sync(syncCtx)
	if err != nil {
		a.logger.Error("library pull failed", "error", err)
		return
	}
	if !res.Changed {
		return
	}
	a.logger.Info("library branch moved",
		"from", res.FromSHA,
		"to", res.ToSHA,
		"changed_files", len(res.ChangedFiles),
	)
	_, _ = w.Reload()
}

func (a *app) healthChecker() *health.Checker {
	c := health.New(2 * time.Second)
	c.Register("library", func(ctx context.Context) error {
		if a.engine.Library().Stats().Templates == 0 {
			return errors.New("library has no templates")
		}
		return nil
	})
	c.Register("storage", func(ctx context.Context) error {
		_, err := a.store.ListClauses(ctx)
		return err
	})
	if a.evidence != nil {
		c.Register("evidence", func(ctx context.Context) error {
			_, err := a.evidence.Count(ctx, &evidence.Query{Limit: 1})
			return err
		})
	}
	return c
}

// commitStamper records the checked-out commit as the source of each
// reloaded snapshot before passing it on.
type commitStamper struct {
	repo *gitsource.Repository
	url  string
	next library.Publisher
}

func (s *commitStamper) Publish(lib *library.Library) error {
	if head, err := s.repo.Head(); err == nil {
		lib.Source = fmt.Sprintf("%s@%s", s.url, head.SHA)
	}
	return s.next.Publish(lib)
}
