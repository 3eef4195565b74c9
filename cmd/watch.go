package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/modgate/internal/gateway"
	"github.com/agentic-research/modgate/internal/logging"
	"github.com/agentic-research/modgate/internal/watch"
)

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [file-or-dir]",
		Short: "Keep index.ts in sync while files are added to the directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, ok, err := activeDir(args)
			if err != nil || !ok {
				return err
			}

			engine, log, cfg, err := o.engine(cmd, dir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			syncer, err := engine.SyncerForDir(dir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := watch.New(syncer.Dir(), gateway.FileName, syncAndLog(syncer, log),
				watch.WithDebounceDelay(cfg.Watch.Debounce),
				watch.WithLogger(log),
			)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				_ = w.Stop()
				return err
			}

			<-w.Done()
			return w.Stop()
		},
	}
}

func syncAndLog(syncer *gateway.Syncer, log logging.Logger) watch.SyncFunc {
	return func(ctx context.Context) error {
		res, err := syncer.Sync(ctx, false)
		if err != nil {
			return err
		}
		if res.Changed {
			log.Info("gateway updated",
				logging.String("path", res.Path),
				logging.Strings("added", res.Added),
				logging.Bool("created", res.Created),
			)
		}
		return nil
	}
}
