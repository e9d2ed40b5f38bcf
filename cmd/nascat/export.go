package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/export"
	"github.com/geonas-tools/nascat/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as JSON lines, YAML or a CycloneDX BOM",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("format", "f", "jsonl", "output format: jsonl, yaml or cyclonedx")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	formatArg, _ := cmd.Flags().GetString("format")
	format, ok := export.ParseFormat(formatArg)
	if !ok {
		return apperr.Userf("unknown export format %q (want jsonl, yaml or cyclonedx)", formatArg)
	}

	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()
	records := cat.List()

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return export.Write(cmd.OutOrStdout(), records, format)
	}
	if err := export.WriteFile(output, records, format); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ui.GetCheckMark()+" "+ui.FormatKeyValue("exported", fmt.Sprintf("%d record(s) to %s", len(records), output)))
	return nil
}
