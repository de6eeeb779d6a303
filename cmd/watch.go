package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mc-resource-manager/importer"
	"mc-resource-manager/logger"
	"mc-resource-manager/projection"
	"mc-resource-manager/watch"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keeps the catalog in sync with the Minecraft resource folders",
	Long: `Imports everything already present in the mods, resourcepacks, shaderpacks
and saves folders, then imports files as they appear and forgets files
that are deleted, until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), debounce)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before changed files are imported")
}

func runWatch(ctx context.Context, out io.Writer, debounce time.Duration) error {
	a, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return watchDirs(ctx, a, out, debounce)
}

func watchDirs(ctx context.Context, a *app, out io.Writer, debounce time.Duration) error {
	if err := a.importer.OnProjectionUpdate(func(b projection.Batch) {
		logger.Log.Infow("Catalog updated", zap.String("batch", b.ID), zap.Int("ops", len(b.Ops)))
	}); err != nil {
		return err
	}

	dirs := a.resourceDirs()
	existing, err := watch.Entries(dirs)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		res, err := a.importer.ImportFiles(ctx, existing)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summarize(res))
	}

	w, err := watch.New(a.importer, watch.Options{
		Dirs:     dirs,
		Debounce: debounce,
		Logger:   logger.Log.Named("watch"),
		OnImport: func(res *importer.Result, err error) {
			if err != nil {
				fmt.Fprintf(out, "Import failed: %v\n", err)
				return
			}
			printResult(out, res)
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(out, "Watching %d folders, press Ctrl+C to stop\n", len(dirs))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
