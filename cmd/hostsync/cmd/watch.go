package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/munichmade/hostsync/internal/config"
	"github.com/munichmade/hostsync/internal/daemon"
	"github.com/munichmade/hostsync/internal/logging"
	"github.com/munichmade/hostsync/internal/source"
	"github.com/munichmade/hostsync/internal/syncer"
)

var (
	watchFlags   syncFlags
	watchLogFile string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync the hosts file continuously",
	Long: `Sync the hosts file on an interval until interrupted.

A sync also runs on SIGHUP, whenever the config file changes and, for the
docker source, whenever a labelled container starts or stops. Failed syncs
are logged and retried on the next tick.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.AddCommand(watchCmd)
}

// watchState is the source and options currently in use.
type watchState struct {
	cfg    *config.Config
	src    source.Source
	sync   *syncer.Syncer
	opts   syncer.Options
	cancel context.CancelFunc
}

// follow subscribes to source change notifications when the source has them.
func (st *watchState) follow(ctx context.Context, changed func()) {
	w, ok := st.src.(source.Watcher)
	if !ok {
		return
	}
	ctx, st.cancel = context.WithCancel(ctx)
	go func() {
		if err := w.Watch(ctx, changed); err != nil {
			logging.Warn("source watch stopped", "error", err)
		}
	}()
}

// close stops following the source and releases it.
func (st *watchState) close() {
	if st.cancel != nil {
		st.cancel()
	}
	closeSource(st.src)
}

func newWatchState(cmd *cobra.Command, c *config.Config) (*watchState, error) {
	opts, err := watchFlags.apply(c)
	if err != nil {
		return nil, err
	}
	if opts.Output == syncer.Stdio {
		return nil, fmt.Errorf("watch needs an output file (-o)")
	}

	src, err := newSource(c)
	if err != nil {
		return nil, err
	}

	return &watchState{
		cfg:  c,
		src:  src,
		sync: syncer.New(src, syncer.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout()), syncer.WithLogger(logging.Default())),
		opts: opts,
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchLogFile != "" {
		level := logging.ParseLevel(cfg.Logging.Level)
		if err := logging.SetupFile(level, logging.ParseFormat(cfg.Logging.Format), watchLogFile); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}

	state, err := newWatchState(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { state.close() }()

	shutdown := daemon.NewShutdownHandler(cmd.Context())
	shutdown.Start()
	defer shutdown.Stop()
	ctx := shutdown.Context()
	state.follow(ctx, shutdown.RequestResync)

	reloads := make(chan *config.Config, 1)
	cw := config.NewWatcher(configPath, 0, func(c *config.Config) {
		select {
		case reloads <- c:
		default:
		}
	})
	if err := cw.Start(); err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	defer cw.Stop()

	runOnce := func(reason string) {
		logging.Debug("sync starting", "reason", reason)
		if _, err := state.sync.Run(ctx, state.opts); err != nil && ctx.Err() == nil {
			logging.Error("sync failed", "error", err)
		}
	}

	logging.Info("watching zones", "zones", state.opts.Zones, "interval", state.cfg.Watch.Interval, "output", state.opts.Output)
	runOnce("startup")

	ticker := time.NewTicker(state.cfg.Watch.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("watch stopped")
			return nil
		case <-ticker.C:
			runOnce("interval")
		case <-shutdown.Resync():
			runOnce("resync")
		case next := <-reloads:
			applyLogFlags(next)
			nextState, err := newWatchState(cmd, next)
			if err != nil {
				logging.Error("ignoring config change", "error", err)
				continue
			}
			state.close()
			state = nextState
			state.follow(ctx, shutdown.RequestResync)
			if watchLogFile == "" {
				setupLogging(next, cmd.ErrOrStderr())
			}
			ticker.Reset(next.Watch.Interval)
			runOnce("config")
		}
	}
}
