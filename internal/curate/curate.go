// Package curate is the interactive review flow: a form over one record's
// curated fields plus an accept/flag decision. Edited values become sticky
// user overrides; untouched fields keep their scanned provenance.
package curate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/ui"
)

// Result is what a completed curation form produced.
type Result struct {
	Overrides map[catalog.Field]string
	Status    catalog.CurationStatus
}

// Run shows the curation form for rec and returns the edits. A user abort
// maps to apperr.ErrCancelled.
func Run(rec *catalog.Record) (Result, error) {
	fields := catalog.CuratedFields()
	values := make(map[catalog.Field]*string, len(fields))
	originals := make(map[catalog.Field]string, len(fields))

	groups := []*huh.Group{huh.NewGroup(
		huh.NewNote().
			Title("Curate: " + rec.Root).
			Description(overview(rec)).
			Next(true).
			NextLabel("Continue"),
	)}

	var inputs []huh.Field
	for _, f := range fields {
		current := rec.FieldString(f)
		v := current
		values[f] = &v
		originals[f] = current
		inputs = append(inputs, huh.NewInput().
			Title(string(f)).
			Description(provenance(rec, f)).
			Value(values[f]))
	}
	groups = append(groups, huh.NewGroup(inputs...))

	status := string(rec.Status)
	groups = append(groups, huh.NewGroup(
		huh.NewSelect[string]().
			Title("curation status").
			Options(
				huh.NewOption("accepted", string(catalog.StatusAccepted)),
				huh.NewOption("flagged", string(catalog.StatusFlagged)),
				huh.NewOption("unreviewed", string(catalog.StatusUnreviewed)),
			).
			Value(&status),
	))

	if err := huh.NewForm(groups...).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Result{}, apperr.ErrCancelled
		}
		return Result{}, err
	}

	res := Result{Overrides: make(map[catalog.Field]string)}
	for _, f := range fields {
		if edited := strings.TrimSpace(*values[f]); edited != originals[f] {
			res.Overrides[f] = edited
		}
	}
	parsed, ok := catalog.ParseStatus(status)
	if !ok {
		parsed = rec.Status
	}
	res.Status = parsed
	return res, nil
}

// Apply writes a curation result back to the catalog. Returns false when
// the root is no longer present.
func Apply(cat *catalog.Catalog, root string, res Result) bool {
	return cat.Update(root, func(r *catalog.Record) {
		for f, v := range res.Overrides {
			r.SetOverride(f, v)
		}
		r.Status = res.Status
	})
}

func overview(rec *catalog.Record) string {
	lines := []string{
		fmt.Sprintf("type: %s   files: %d   status: %s", rec.Type, len(rec.Files), rec.Status),
	}
	if summary := rec.FieldString(catalog.FieldReadmeSummary); summary != "" {
		if len(summary) > 120 {
			summary = summary[:120] + "..."
		}
		lines = append(lines, ui.Dim.Render(summary))
	}
	if len(rec.Warnings) > 0 {
		lines = append(lines, ui.Warning.Render(fmt.Sprintf("%d warning(s) from last scan", len(rec.Warnings))))
	}
	return strings.Join(lines, "\n")
}

// provenance describes where a field's current value came from, so the
// curator knows how much to trust it.
func provenance(rec *catalog.Record, f catalog.Field) string {
	fv, ok := rec.Fields[f]
	if !ok || fv.Value == "" {
		return ui.Muted.Render("no value yet")
	}
	desc := string(fv.Source)
	if fv.Source == catalog.SourceReadme {
		desc = fmt.Sprintf("%s (confidence %.2f)", desc, fv.Confidence)
		if fv.LowConfidence {
			desc += ", low"
		}
	}
	if len(fv.Notes) > 0 {
		desc += "; " + strings.Join(fv.Notes, "; ")
	}
	return ui.Muted.Render(desc)
}
