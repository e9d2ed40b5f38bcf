// Package classify maps file descriptors to file-type tags. Classification
// is a pure function of the descriptor: extension lookup first, magic-byte
// sniffing second, with the signature winning disagreements.
package classify

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/geonas-tools/nascat/internal/walker"
)

// Tag is the declared file-type of a scanned file. Determined once per file,
// never mutated.
type Tag string

const (
	Tabular Tag = "tabular"
	Raster  Tag = "raster-grid"
	NDArray Tag = "multidimensional-array"
	Archive Tag = "archive"
	Text    Tag = "text"
	Readme  Tag = "readme"
	Unknown Tag = "unknown"
)

// Tags lists every known tag, for query validation and registry iteration.
func Tags() []Tag {
	return []Tag{Tabular, Raster, NDArray, Archive, Text, Readme, Unknown}
}

// Result is a classification outcome. Warning is non-empty when the
// extension and the signature disagreed; the discrepancy is preserved rather
// than discarded.
type Result struct {
	Tag     Tag
	Warning string
}

var extTable = map[string]Tag{
	".csv":     Tabular,
	".tsv":     Tabular,
	".xls":     Tabular,
	".xlsx":    Tabular,
	".parquet": Tabular,

	".tif":  Raster,
	".tiff": Raster,
	".png":  Raster,
	".jpg":  Raster,
	".jpeg": Raster,
	".gif":  Raster,
	".bmp":  Raster,
	".asc":  Raster,
	".grd":  Raster,

	".nc":     NDArray,
	".cdf":    NDArray,
	".netcdf": NDArray,
	".hdf":    NDArray,
	".h5":     NDArray,
	".hdf5":   NDArray,
	".npy":    NDArray,
	".npz":    NDArray,

	".zip": Archive,
	".tar": Archive,
	".gz":  Archive,
	".tgz": Archive,
	".bz2": Archive,
	".xz":  Archive,
	".zst": Archive,
	".7z":  Archive,
	".rar": Archive,

	".txt":      Text,
	".md":       Text,
	".markdown": Text,
	".rst":      Text,
	".log":      Text,
	".json":     Text,
	".yaml":     Text,
	".yml":      Text,
}

// readmeStems are basenames (without extension, lowercased) that mark a file
// as dataset description rather than data.
var readmeStems = map[string]bool{
	"readme":      true,
	"read_me":     true,
	"read-me":     true,
	"description": true,
	"metadata":    true,
}

type signature struct {
	offset int
	magic  []byte
	tag    Tag
}

// Magic-byte table. Longer/more specific signatures first so prefix
// ambiguities resolve deterministically.
var signatures = []signature{
	{0, []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}, NDArray}, // HDF5
	{0, []byte("CDF\x01"), NDArray},                                   // NetCDF classic
	{0, []byte("CDF\x02"), NDArray},                                   // NetCDF 64-bit offset
	{0, []byte("\x93NUMPY"), NDArray},                                 // NumPy .npy

	{0, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, Raster}, // PNG
	{0, []byte{0xFF, 0xD8, 0xFF}, Raster},                            // JPEG
	{0, []byte("GIF87a"), Raster},                                    // GIF
	{0, []byte("GIF89a"), Raster},                                    // GIF
	{0, []byte("II*\x00"), Raster},                                   // TIFF little-endian
	{0, []byte("MM\x00*"), Raster},                                   // TIFF big-endian
	{0, []byte("BM"), Raster},                                        // BMP

	{0, []byte{0x1F, 0x8B}, Archive},                   // gzip
	{0, []byte("PK\x03\x04"), Archive},                 // zip
	{0, []byte("7z\xBC\xAF\x27\x1C"), Archive},         // 7z
	{0, []byte{0x28, 0xB5, 0x2F, 0xFD}, Archive},       // zstd
	{0, []byte("\xFD7zXZ\x00"), Archive},               // xz
	{0, []byte("BZh"), Archive},                        // bzip2
	{0, []byte("Rar!\x1A\x07"), Archive},               // rar
	{257, []byte("ustar"), Archive},                    // tar (POSIX)

	{0, []byte("%PDF"), Text},
	{0, []byte{0xEF, 0xBB, 0xBF}, Text}, // UTF-8 BOM
}

// containerCompat lists extensions whose declared format is legitimately
// stored inside a container signature (xlsx is a zip, npz is a zip, tgz is
// gzip). These never count as a mismatch.
var containerCompat = map[string]Tag{
	".xlsx": Archive,
	".npz":  Archive,
	".tgz":  Archive,
	".gz":   Archive,
}

// Classify is deterministic: the same descriptor always yields the same tag.
func Classify(fd walker.FileDescriptor) Result {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(fd.Path), filepath.Ext(fd.Path)))
	if readmeStems[stem] {
		if fd.Ext == "" || extTable[fd.Ext] == Text || fd.Ext == ".text" {
			return Result{Tag: Readme}
		}
	}

	byExt, extKnown := extTable[fd.Ext]
	bySig, sigKnown := sniff(fd.Signature)

	switch {
	case extKnown && sigKnown:
		if byExt == bySig {
			return Result{Tag: byExt}
		}
		if containerCompat[fd.Ext] == bySig {
			return Result{Tag: byExt}
		}
		// Content over naming convention: the signature wins, but the
		// discrepancy stays visible downstream.
		return Result{
			Tag: bySig,
			Warning: fmt.Sprintf("extension %s suggests %s but signature says %s",
				fd.Ext, byExt, bySig),
		}
	case sigKnown:
		return Result{Tag: bySig}
	case extKnown:
		return Result{Tag: byExt}
	default:
		if looksTextual(fd.Signature) {
			return Result{Tag: Text}
		}
		return Result{Tag: Unknown}
	}
}

func sniff(head []byte) (Tag, bool) {
	if len(head) == 0 {
		return Unknown, false
	}
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(head) < end {
			continue
		}
		if bytes.Equal(head[s.offset:end], s.magic) {
			return s.tag, true
		}
	}
	return Unknown, false
}

// looksTextual reports whether an unrecognized head is plausibly plain text:
// valid UTF-8 with no NUL bytes.
func looksTextual(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	// A truncated multi-byte rune at the buffer edge is fine.
	trimmed := head
	for len(trimmed) > 0 && !utf8.Valid(trimmed) {
		trimmed = trimmed[:len(trimmed)-1]
		if len(head)-len(trimmed) > 4 {
			return false
		}
	}
	return len(trimmed) > 0
}
