package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/ui"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregate catalog statistics",
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	s := catalog.Summarize(cat.List())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, ui.Primary.Render("Catalog summary"))
	fmt.Fprintln(out, ui.FormatKeyValue("datasets", fmt.Sprintf("%d", s.TotalEntries)))
	fmt.Fprintln(out, ui.FormatKeyValue("total size", ui.FormatBytes(s.TotalSizeBytes)))

	if len(s.Types) > 0 {
		fmt.Fprintln(out, ui.Bold.Render("by type"))
		keys := make([]string, 0, len(s.Types))
		for k := range s.Types {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(out, "  "+ui.FormatKeyValue(k, fmt.Sprintf("%d", s.Types[classify.Tag(k)])))
		}
	}
	if len(s.Statuses) > 0 {
		fmt.Fprintln(out, ui.Bold.Render("by status"))
		keys := make([]string, 0, len(s.Statuses))
		for k := range s.Statuses {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(out, "  "+ui.FormatKeyValue(k, fmt.Sprintf("%d", s.Statuses[catalog.CurationStatus(k)])))
		}
	}
	return nil
}
