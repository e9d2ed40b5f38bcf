package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geonas-tools/nascat/internal/scan"
	"github.com/geonas-tools/nascat/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory tree and update the catalog",
	Long: `Walk a directory tree, classify every file, group files into dataset
roots, extract metadata from file headers and README files, and merge the
assembled records into the catalog.

Rescans are incremental: files with an unchanged size and modification time
are not re-read, and user-curated field values always survive a rescan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSlice("exclude", nil, "directory names to skip")
	scanCmd.Flags().StringSlice("exclude-ext", nil, "file extensions to skip (with dot)")
	scanCmd.Flags().Int64("max-file-size", 0, "skip files larger than this many bytes (0 = no limit)")
	scanCmd.Flags().Bool("follow-symlinks", false, "follow directory symlinks (cycle-guarded)")
	scanCmd.Flags().Bool("skip-hidden", false, "skip dot-files and dot-directories")
	scanCmd.Flags().Int("concurrency", 0, "dataset workers (0 = number of CPUs)")
	scanCmd.Flags().Float64("confidence-threshold", 0, "README fields below this confidence are kept but flagged")
	scanCmd.Flags().Int64("checksum-max", 0, "skip checksumming files larger than this many bytes")
	scanCmd.Flags().Bool("verbose", false, "log per-root progress to stderr")

	viper.BindPFlag("scan.exclude", scanCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("scan.exclude-ext", scanCmd.Flags().Lookup("exclude-ext"))
	viper.BindPFlag("scan.max-file-size", scanCmd.Flags().Lookup("max-file-size"))
	viper.BindPFlag("scan.follow-symlinks", scanCmd.Flags().Lookup("follow-symlinks"))
	viper.BindPFlag("scan.skip-hidden", scanCmd.Flags().Lookup("skip-hidden"))
	viper.BindPFlag("scan.concurrency", scanCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("scan.confidence-threshold", scanCmd.Flags().Lookup("confidence-threshold"))
	viper.BindPFlag("scan.checksum-max", scanCmd.Flags().Lookup("checksum-max"))
	viper.BindPFlag("scan.verbose", scanCmd.Flags().Lookup("verbose"))
}

// scanConfig builds a validated scan configuration from flags, environment
// and config file, in viper's precedence order.
func scanConfig(args []string) (scan.Config, error) {
	root := viper.GetString("scan.root")
	if len(args) > 0 {
		root = args[0]
	}
	cfg := scan.Config{
		Root:                root,
		ExcludeDirs:         viper.GetStringSlice("scan.exclude"),
		ExcludeExts:         viper.GetStringSlice("scan.exclude-ext"),
		MaxFileSize:         viper.GetInt64("scan.max-file-size"),
		FollowSymlinks:      viper.GetBool("scan.follow-symlinks"),
		SkipHidden:          viper.GetBool("scan.skip-hidden"),
		Concurrency:         viper.GetInt("scan.concurrency"),
		ConfidenceThreshold: viper.GetFloat64("scan.confidence-threshold"),
		ChecksumMaxBytes:    viper.GetInt64("scan.checksum-max"),
	}
	err := cfg.Validate()
	return cfg, err
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := scanConfig(args)
	if err != nil {
		return err
	}
	if viper.GetBool("scan.verbose") {
		scan.SetLogger(os.Stderr)
	}

	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	wf := ui.NewWorkflow(os.Stderr)
	scanTask := wf.AddTask("Scan " + cfg.Root)
	persistTask := wf.AddTask("Save catalog")
	wf.Start()

	wf.StartTask(scanTask, "walking...")
	scanner := scan.New(cfg, cat)
	summary, err := scanner.Scan(cmd.Context())
	if err != nil {
		wf.FailTask(scanTask, err.Error())
		wf.Stop()
		return err
	}
	wf.CompleteTask(scanTask, fmt.Sprintf("%d files, %d dataset(s)", summary.FilesSeen, summary.RootsScanned))

	wf.StartTask(persistTask, "")
	if err := saveCatalog(cat, store); err != nil {
		wf.FailTask(persistTask, err.Error())
		wf.Stop()
		return err
	}
	wf.CompleteTask(persistTask, viper.GetString("catalog.path"))
	wf.Stop()

	printScanSummary(cmd, summary)
	return nil
}

func printScanSummary(cmd *cobra.Command, s scan.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.FormatKeyValue("added", fmt.Sprintf("%d", s.Added)))
	fmt.Fprintln(out, ui.FormatKeyValue("updated", fmt.Sprintf("%d", s.Updated)))
	fmt.Fprintln(out, ui.FormatKeyValue("unchanged", fmt.Sprintf("%d", s.Unchanged)))
	fmt.Fprintln(out, ui.FormatKeyValue("duration", s.Duration.Round(time.Millisecond).String()))
	if s.Warnings > 0 {
		fmt.Fprintln(out, ui.Warning.Render(fmt.Sprintf("%d warning(s)", s.Warnings)))
		for _, w := range s.TraversalWarnings {
			fmt.Fprintln(out, ui.Dim.Render("  "+w.String()))
		}
	}
}
