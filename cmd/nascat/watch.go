package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geonas-tools/nascat/internal/scan"
	"github.com/geonas-tools/nascat/internal/ui"
	"github.com/geonas-tools/nascat/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory tree and rescan on changes",
	Long: `Run an initial scan, then keep watching the tree. Filesystem events are
debounced so that a burst of writes (a large copy, an unpacking archive)
triggers a single rescan once the tree settles. Stops on interrupt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a rescan fires")
	viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := scanConfig(args)
	if err != nil {
		return err
	}
	scan.SetLogger(os.Stderr)
	watch.SetLogger(os.Stderr)

	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()
	scanner := scan.New(cfg, cat)

	rescan := func(ctx context.Context) error {
		summary, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		if err := saveCatalog(cat, store); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, ui.GetCheckMark()+" "+ui.FormatKeyValue(cfg.Root,
			fmt.Sprintf("+%d ~%d =%d in %s", summary.Added, summary.Updated, summary.Unchanged,
				summary.Duration.Round(time.Millisecond))))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rescan(ctx); err != nil {
		return err
	}

	w, err := watch.New(cfg.Root, viper.GetDuration("watch.debounce"), rescan)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ui.Dim.Render("watching "+cfg.Root+", ctrl+c to stop"))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
