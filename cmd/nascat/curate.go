package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/curate"
	"github.com/geonas-tools/nascat/internal/ui"
)

var curateCmd = &cobra.Command{
	Use:   "curate [root]",
	Short: "Review a dataset record interactively",
	Long: `Open an interactive form over one dataset record. Edited field values
become user overrides that survive later rescans; the record can be marked
accepted or flagged. Without an argument, a selector lists all records.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCurate,
}

func runCurate(cmd *cobra.Command, args []string) error {
	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	var root string
	if len(args) > 0 {
		root = args[0]
	} else {
		records := cat.List()
		if len(records) == 0 {
			return apperr.User("catalog is empty, run a scan first")
		}
		root, err = ui.RunRecordSelector(records)
		if err != nil {
			return err
		}
	}

	rec, ok := cat.Get(root)
	if !ok {
		return apperr.Userf("no record for root %q", root)
	}

	res, err := curate.Run(rec)
	if err != nil {
		return err
	}
	if !curate.Apply(cat, root, res) {
		return apperr.Userf("record for %q disappeared during curation", root)
	}
	if err := saveCatalog(cat, store); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, ui.GetCheckMark()+" "+ui.FormatKeyValue(root,
		fmt.Sprintf("%d field(s) overridden, status %s", len(res.Overrides), res.Status)))
	return nil
}
