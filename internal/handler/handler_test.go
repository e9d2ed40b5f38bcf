package handler

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/walker"
)

func writeFile(t *testing.T, dir, name string, data []byte) walker.FileDescriptor {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	sig := data
	if len(sig) > walker.SignatureBytes {
		sig = sig[:walker.SignatureBytes]
	}
	return walker.FileDescriptor{
		Path:      path,
		RelPath:   name,
		Size:      int64(len(data)),
		Ext:       strings.ToLower(filepath.Ext(name)),
		Signature: append([]byte(nil), sig...),
	}
}

func TestTabularColumns(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		data string
		want string
	}{
		{"comma.csv", "time,lat,lon,temperature\n1,2,3,4\n", "time, lat, lon, temperature"},
		{"tabs.tsv", "station\tdepth\tsalinity\nA\t10\t35\n", "station, depth, salinity"},
		{"semi.csv", "a;b;c\n1;2;3\n", "a, b, c"},
	}
	for _, tc := range cases {
		fd := writeFile(t, dir, tc.name, []byte(tc.data))
		rec, err := produceTabular(fd)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := rec.Fields[catalog.FieldVariables]; got != tc.want {
			t.Errorf("%s: variables = %q, want %q", tc.name, got, tc.want)
		}
		if rec.Fields[catalog.FieldDataType] != "table" {
			t.Errorf("%s: data-type = %q", tc.name, rec.Fields[catalog.FieldDataType])
		}
	}
}

func TestTabularBinaryFormatNotOpened(t *testing.T) {
	fd := walker.FileDescriptor{Path: "/nonexistent/report.xlsx", Ext: ".xlsx"}
	rec, err := produceTabular(fd)
	if err != nil {
		t.Fatalf("binary table formats must not be opened: %v", err)
	}
	if len(rec.Warnings) != 1 {
		t.Errorf("warnings: %v", rec.Warnings)
	}
}

func TestTabularEmptyFileUnreadable(t *testing.T) {
	fd := writeFile(t, t.TempDir(), "empty.csv", nil)
	_, err := produceTabular(fd)
	var u *UnreadableMetadata
	if !errors.As(err, &u) {
		t.Fatalf("got %v, want UnreadableMetadata", err)
	}
	if u.Path != fd.Path {
		t.Errorf("path = %q", u.Path)
	}
}

// Helpers for building NetCDF classic headers by hand.

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func ncName(s string) []byte {
	out := be32(uint32(len(s)))
	out = append(out, s...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func ncCharAttr(name, value string) []byte {
	out := ncName(name)
	out = append(out, be32(2)...) // NC_CHAR
	out = append(out, be32(uint32(len(value)))...)
	out = append(out, value...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func buildNetCDF() []byte {
	var b []byte
	b = append(b, "CDF\x01"...)
	b = append(b, be32(12)...) // numrecs

	// Dimensions: time (unlimited), lat.
	b = append(b, be32(ncDimension)...)
	b = append(b, be32(2)...)
	b = append(b, ncName("time")...)
	b = append(b, be32(0)...)
	b = append(b, ncName("lat")...)
	b = append(b, be32(180)...)

	// Global attributes.
	b = append(b, be32(ncAttribute)...)
	b = append(b, be32(2)...)
	b = append(b, ncCharAttr("institution", "FMI")...)
	b = append(b, ncCharAttr("source", "model output")...)

	// One variable with a units attribute.
	b = append(b, be32(ncVariable)...)
	b = append(b, be32(1)...)
	b = append(b, ncName("temp")...)
	b = append(b, be32(2)...) // ndims
	b = append(b, be32(0)...)
	b = append(b, be32(1)...)
	b = append(b, be32(ncAttribute)...)
	b = append(b, be32(1)...)
	b = append(b, ncCharAttr("units", "K")...)
	b = append(b, be32(5)...) // NC_FLOAT
	b = append(b, be32(4)...) // vsize
	b = append(b, be32(0)...) // begin
	return b
}

func TestNetCDFHeader(t *testing.T) {
	fd := writeFile(t, t.TempDir(), "sst.nc", buildNetCDF())
	rec, err := produceNDArray(fd)
	if err != nil {
		t.Fatal(err)
	}
	want := map[catalog.Field]string{
		catalog.FieldDataType:  "grid",
		catalog.FieldProducer:  "FMI",
		catalog.FieldMethod:    "model output",
		catalog.FieldVariables: "temp",
		catalog.FieldUnits:     "temp=K",
		catalog.FieldGridSize:  "time=12 (unlimited), lat=180",
	}
	for f, v := range want {
		if got := rec.Fields[f]; got != v {
			t.Errorf("%s = %q, want %q", f, got, v)
		}
	}
}

func TestNetCDFTruncatedUnreadable(t *testing.T) {
	full := buildNetCDF()
	fd := writeFile(t, t.TempDir(), "cut.nc", full[:len(full)/2])
	_, err := produceNDArray(fd)
	var u *UnreadableMetadata
	if !errors.As(err, &u) {
		t.Fatalf("got %v, want UnreadableMetadata", err)
	}
}

func TestNumpyShape(t *testing.T) {
	dict := "{'descr': '<f8', 'fortran_order': False, 'shape': (365, 180), }"
	var b []byte
	b = append(b, "\x93NUMPY\x01\x00"...)
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(dict)))
	b = append(b, hlen[:]...)
	b = append(b, dict...)

	fd := writeFile(t, t.TempDir(), "grid.npy", b)
	rec, err := produceNDArray(fd)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Fields[catalog.FieldGridSize]; got != "(365, 180)" {
		t.Errorf("grid-size = %q", got)
	}
}

func TestRasterDimensions(t *testing.T) {
	dir := t.TempDir()

	png := append([]byte("\x89PNG\r\n\x1a\n"), be32(13)...)
	png = append(png, "IHDR"...)
	png = append(png, be32(640)...)
	png = append(png, be32(480)...)

	gif := []byte("GIF89a")
	gif = append(gif, 0x80, 0x02, 0xE0, 0x01) // 640x480 little-endian

	jpeg := []byte{0xFF, 0xD8}
	jpeg = append(jpeg, 0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00) // APP0, len 4
	jpeg = append(jpeg, 0xFF, 0xC0, 0x00, 0x11, 0x08)       // SOF0, len 17, precision
	jpeg = append(jpeg, 0x01, 0xE0, 0x02, 0x80)             // height 480, width 640
	jpeg = append(jpeg, make([]byte, 10)...)

	cases := []struct {
		name string
		data []byte
	}{
		{"map.png", png},
		{"map.gif", gif},
		{"map.jpg", jpeg},
	}
	for _, tc := range cases {
		fd := writeFile(t, dir, tc.name, tc.data)
		rec, err := produceRaster(fd)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := rec.Fields[catalog.FieldGridSize]; got != "640x480" {
			t.Errorf("%s: grid-size = %q, want 640x480", tc.name, got)
		}
	}
}

func TestRasterCorruptUnreadable(t *testing.T) {
	fd := writeFile(t, t.TempDir(), "bad.png", []byte("\x89PNG\r\n\x1a\n short"))
	_, err := produceRaster(fd)
	var u *UnreadableMetadata
	if !errors.As(err, &u) {
		t.Fatalf("got %v, want UnreadableMetadata", err)
	}
}

func TestArchiveZipListing(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"data/2020.csv", "data/2021.csv"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("a,b\n"))
	}
	zw.Close()

	fd := writeFile(t, t.TempDir(), "bundle.zip", buf.Bytes())
	rec, err := produceArchive(fd)
	if err != nil {
		t.Fatal(err)
	}
	got := rec.Fields[catalog.FieldArchiveContents]
	if !strings.Contains(got, "data/2020.csv") || !strings.Contains(got, "data/2021.csv") {
		t.Errorf("archive-contents = %q", got)
	}
}

func TestArchiveGzipOriginalName(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Name = "observations.csv"
	gw.Write([]byte("a,b\n1,2\n"))
	gw.Close()

	fd := writeFile(t, t.TempDir(), "observations.csv.gz", buf.Bytes())
	rec, err := produceArchive(fd)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Fields[catalog.FieldArchiveContents]; got != "observations.csv" {
		t.Errorf("archive-contents = %q", got)
	}
}

func TestArchiveTarListing(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"a.csv", "b.csv"} {
		data := []byte("x,y\n")
		tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))})
		tw.Write(data)
	}
	tw.Close()

	fd := writeFile(t, t.TempDir(), "bundle.tar", buf.Bytes())
	rec, err := produceArchive(fd)
	if err != nil {
		t.Fatal(err)
	}
	got := rec.Fields[catalog.FieldArchiveContents]
	if !strings.Contains(got, "a.csv") || !strings.Contains(got, "b.csv") {
		t.Errorf("archive-contents = %q", got)
	}
}

func TestArchiveOpaqueFormat(t *testing.T) {
	fd := writeFile(t, t.TempDir(), "data.xz", []byte("\xFD7zXZ\x00payload"))
	rec, err := produceArchive(fd)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Warnings) != 1 {
		t.Errorf("warnings: %v", rec.Warnings)
	}
	if _, ok := rec.Fields[catalog.FieldArchiveContents]; ok {
		t.Error("opaque formats should not claim contents")
	}
}

func TestTextPreviewFlattened(t *testing.T) {
	fd := writeFile(t, t.TempDir(), "notes.txt", []byte("line one\nline\ttwo\r\nline three\n"))
	rec, err := produceText(fd)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Fields[catalog.FieldPreview]; got != "line one line two line three" {
		t.Errorf("preview = %q", got)
	}
}

func TestRegistryFallsBackToNoop(t *testing.T) {
	r := NewRegistry()
	rec, err := r.For(classify.Unknown).Produce(walker.FileDescriptor{Path: "/nas/x.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Empty() {
		t.Errorf("noop record not empty: %+v", rec)
	}
}

func TestRegistryOverride(t *testing.T) {
	r := NewRegistry()
	r.Register(classify.Text, HandlerFunc(func(walker.FileDescriptor) (PartialRecord, error) {
		rec := newPartial()
		rec.Fields[catalog.FieldDataType] = "custom"
		return rec, nil
	}))
	rec, err := r.For(classify.Text).Produce(walker.FileDescriptor{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Fields[catalog.FieldDataType] != "custom" {
		t.Error("Register should replace the handler")
	}
}
