package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/ui"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query catalog records by root, type or curation status",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().String("root", "", "exact dataset root path")
	queryCmd.Flags().String("type", "", "filter by dominant data type")
	queryCmd.Flags().String("status", "", "filter by curation status (unreviewed, accepted, flagged)")
	queryCmd.Flags().Bool("json", false, "print full records as JSON lines")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cat, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	root, _ := cmd.Flags().GetString("root")
	typeFilter, _ := cmd.Flags().GetString("type")
	statusFilter, _ := cmd.Flags().GetString("status")
	asJSON, _ := cmd.Flags().GetBool("json")

	var records []*catalog.Record
	switch {
	case root != "":
		rec, ok := cat.Get(root)
		if !ok {
			return apperr.Userf("no record for root %q", root)
		}
		records = []*catalog.Record{rec}
	case statusFilter != "":
		status, ok := catalog.ParseStatus(statusFilter)
		if !ok {
			return apperr.Userf("unknown status %q", statusFilter)
		}
		records = cat.QueryByStatus(status)
	case typeFilter != "":
		records = cat.QueryByType(classify.Tag(strings.ToLower(strings.TrimSpace(typeFilter))))
	default:
		records = cat.List()
	}
	// --type composes with a --status result set.
	if typeFilter != "" && statusFilter != "" {
		tag := classify.Tag(strings.ToLower(strings.TrimSpace(typeFilter)))
		filtered := records[:0]
		for _, r := range records {
			if r.Type == tag {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(out, ui.Dim.Render("no matching records"))
		return nil
	}
	for _, r := range records {
		printRecord(out, r)
	}
	fmt.Fprintln(out, ui.Dim.Render(fmt.Sprintf("%d record(s)", len(records))))
	return nil
}

func printRecord(out io.Writer, r *catalog.Record) {
	fmt.Fprintln(out, ui.Bold.Render(r.Root))
	fmt.Fprintln(out, "  "+ui.FormatKeyValue("type", string(r.Type))+
		ui.Dim.Render("  status: ")+string(r.Status)+
		ui.Dim.Render("  files: ")+fmt.Sprintf("%d", len(r.Files)))

	fields := make([]catalog.Field, 0, len(r.Fields))
	for f := range r.Fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	for _, f := range fields {
		fv := r.Fields[f]
		line := "  " + ui.FormatKeyValue(string(f), fv.Value)
		if fv.Source == catalog.SourceUser {
			line += ui.Secondary.Render(" (curated)")
		} else if fv.LowConfidence {
			line += ui.Warning.Render(" (low confidence)")
		}
		fmt.Fprintln(out, line)
	}
	for _, w := range r.Warnings {
		fmt.Fprintln(out, ui.Warning.Render("  ! "+w))
	}
	fmt.Fprintln(out)
}
