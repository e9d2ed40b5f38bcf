package export

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"

	"github.com/geonas-tools/nascat/internal/catalog"
)

// BuildBOM maps the catalog onto a CycloneDX BOM: one data component per
// record, with the record's metadata fields carried as properties and the
// producer as the component manufacturer.
func BuildBOM(records []*catalog.Record) *cdx.BOM {
	bom := cdx.NewBOM()
	bom.SerialNumber = "urn:uuid:" + uuid.NewString()
	bom.Metadata = &cdx.Metadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: &cdx.Component{
			Type: cdx.ComponentTypeApplication,
			Name: "nascat",
		},
	}

	components := make([]cdx.Component, 0, len(records))
	for _, r := range records {
		components = append(components, recordComponent(r))
	}
	bom.Components = &components
	return bom
}

func recordComponent(r *catalog.Record) cdx.Component {
	comp := cdx.Component{
		BOMRef:      r.ID,
		Type:        cdx.ComponentTypeData,
		Name:        filepath.Base(r.Root),
		Description: r.FieldString(catalog.FieldReadmeSummary),
	}
	if producer := r.FieldString(catalog.FieldProducer); producer != "" {
		comp.Manufacturer = &cdx.OrganizationalEntity{Name: producer}
	}

	props := []cdx.Property{
		{Name: "nascat:root", Value: r.Root},
		{Name: "nascat:type", Value: string(r.Type)},
		{Name: "nascat:status", Value: string(r.Status)},
		{Name: "nascat:files", Value: fmt.Sprintf("%d", len(r.Files))},
		{Name: "nascat:size-bytes", Value: fmt.Sprintf("%d", r.SizeBytes())},
	}
	fields := make([]string, 0, len(r.Fields))
	for f := range r.Fields {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		fv := r.Fields[catalog.Field(f)]
		if fv.Value == "" {
			continue
		}
		props = append(props, cdx.Property{Name: "nascat:field:" + f, Value: fv.Value})
	}
	comp.Properties = &props
	return comp
}

// WriteBOM encodes the BOM as pretty-printed CycloneDX JSON.
func WriteBOM(w io.Writer, bom *cdx.BOM) error {
	enc := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON)
	enc.SetPretty(true)
	return enc.Encode(bom)
}
