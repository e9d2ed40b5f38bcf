package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	yaml "go.yaml.in/yaml/v3"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
)

func exportRecords() []*catalog.Record {
	r := catalog.NewRecord("/nas/baltic")
	r.Type = classify.Tabular
	r.Status = catalog.StatusAccepted
	r.Fields[catalog.FieldProducer] = catalog.FieldValue{Value: "FMI", Source: catalog.SourceReadme, Confidence: 0.8}
	r.Fields[catalog.FieldVariables] = catalog.FieldValue{Value: "time, temp", Source: catalog.SourceHandler, Confidence: 1}
	r.Files = []catalog.File{{Type: classify.Tabular}}
	r.Files[0].RelPath = "obs.csv"
	r.Files[0].Size = 2048
	return []*catalog.Record{r}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"jsonl", "YAML", " cyclonedx "} {
		if _, ok := ParseFormat(s); !ok {
			t.Errorf("%q should parse", s)
		}
	}
	if _, ok := ParseFormat("csv"); ok {
		t.Error("csv is not an export format")
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, exportRecords(), FormatJSONL); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	var r catalog.Record
	if err := json.Unmarshal([]byte(lines[0]), &r); err != nil {
		t.Fatal(err)
	}
	if r.Root != "/nas/baltic" || r.Fields[catalog.FieldProducer].Value != "FMI" {
		t.Errorf("round trip: %+v", r)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, exportRecords(), FormatYAML); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d docs", len(out))
	}
	if out[0]["root"] != "/nas/baltic" || out[0]["status"] != "accepted" {
		t.Errorf("yaml: %+v", out[0])
	}
	fields := out[0]["fields"].(map[string]any)
	if fields["producer"] != "FMI" {
		t.Errorf("fields: %+v", fields)
	}
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "catalog.jsonl")
	if err := WriteFile(path, exportRecords(), Format("bogus")); err == nil {
		t.Fatal("unsupported format should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed export left a file at %s", path)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed export left stray files: %v", entries)
	}
}

func TestWriteFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.jsonl")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, exportRecords(), FormatJSONL); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/nas/baltic") || strings.Contains(string(data), "stale") {
		t.Errorf("file not replaced: %q", data)
	}
}

func TestBuildBOM(t *testing.T) {
	bom := BuildBOM(exportRecords())
	if !strings.HasPrefix(string(bom.SerialNumber), "urn:uuid:") {
		t.Errorf("serial: %s", bom.SerialNumber)
	}
	comps := *bom.Components
	if len(comps) != 1 {
		t.Fatalf("components: %d", len(comps))
	}
	c := comps[0]
	if c.Name != "baltic" || c.Manufacturer == nil || c.Manufacturer.Name != "FMI" {
		t.Errorf("component: %+v", c)
	}
	found := map[string]string{}
	for _, p := range *c.Properties {
		found[p.Name] = p.Value
	}
	if found["nascat:type"] != "tabular" || found["nascat:field:variables"] != "time, temp" {
		t.Errorf("properties: %v", found)
	}
}

func TestWriteBOMIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, exportRecords(), FormatCycloneDX); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["bomFormat"] != "CycloneDX" {
		t.Errorf("bomFormat: %v", doc["bomFormat"])
	}
}
