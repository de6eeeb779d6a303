package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mc-resource-manager/importer"
	"mc-resource-manager/logger"
	"mc-resource-manager/resolver"
	"mc-resource-manager/ui"
	"mc-resource-manager/watch"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Identifies files and adds them to the catalog",
	Long: `Resolves every given file or folder to a mod, resource pack, shader pack,
modpack or save and records it in the catalog as one batch.
Without arguments every entry of the Minecraft resource folders is imported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		metricsFile, _ := cmd.Flags().GetString("metrics-file")
		return runImport(cmd.Context(), cmd.OutOrStdout(), args, plain, metricsFile)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("plain", false, "Print plain progress lines instead of the interactive view")
	importCmd.Flags().String("metrics-file", "", "Write import metrics in Prometheus textfile format to this path")
}

func runImport(ctx context.Context, out io.Writer, paths []string, plain bool, metricsFile string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		progress importer.Progress
		events   chan importProgressMsg
	)
	if plain {
		progress = &plainProgress{w: out}
	} else {
		events = make(chan importProgressMsg, 100)
		progress = chanProgress{ctx: ctx, ch: events}
	}

	a, err := bootstrap(ctx, progress)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(paths) == 0 {
		if paths, err = watch.Entries(a.resourceDirs()); err != nil {
			return err
		}
	}
	logger.Log.Infow("Running import command...", zap.Int("paths", len(paths)))

	var res *importer.Result
	if plain {
		res, err = a.importer.ImportFiles(ctx, paths)
	} else {
		res, err = runImportTUI(ctx, cancel, events, func(ctx context.Context) (*importer.Result, error) {
			return a.importer.ImportFiles(ctx, paths)
		})
	}
	if err != nil {
		return err
	}
	printResult(out, res)

	if metricsFile != "" {
		if err := writeMetrics(metricsFile, a.registry); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(path string, reg prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// plainProgress prints one line per resolved path.
type plainProgress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *plainProgress) Start(batchID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "Importing %d paths (batch %s)\n", total, batchID)
}

func (p *plainProgress) Resolved(path string, outcome resolver.Outcome, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		fmt.Fprintf(p.w, "  %s %s: %v\n", ui.Failure.Render(outcome.String()), path, err)
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", outcome, path)
}

func (p *plainProgress) Committed(*importer.Result) {}
