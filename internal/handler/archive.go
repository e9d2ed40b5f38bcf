package handler

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// maxArchiveEntries caps how many member names are recorded per archive.
const maxArchiveEntries = 20

// produceArchive lists member names of archive containers. Zip central
// directories and tar entry headers are metadata, not payload, so reading
// them stays within the header-only contract. Opaque compressed formats are
// tagged without inspection.
func produceArchive(fd walker.FileDescriptor) (PartialRecord, error) {
	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "archive"

	sig := fd.Signature
	switch {
	case bytes.HasPrefix(sig, []byte("PK\x03\x04")), bytes.HasPrefix(sig, []byte("PK\x05\x06")):
		return zipContents(fd.Path, rec)
	case bytes.HasPrefix(sig, []byte{0x1F, 0x8B}):
		return gzipContents(fd.Path, rec)
	case len(sig) >= 262 && bytes.Equal(sig[257:262], []byte("ustar")):
		return tarContents(fd.Path, rec)
	default:
		// 7z, zstd, xz, bzip2, rar: member listings need full decompression.
		rec.Warnings = append(rec.Warnings, "compressed container, contents not inspected")
		return rec, nil
	}
}

func zipContents(path string, rec PartialRecord) (PartialRecord, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return PartialRecord{}, unreadable(path, "corrupt zip archive", err)
	}
	defer zr.Close()

	names := make([]string, 0, maxArchiveEntries)
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
		if len(names) == maxArchiveEntries {
			break
		}
	}
	setContents(&rec, names, len(zr.File))
	return rec, nil
}

// gzipContents reads the gzip member header; the FNAME flag, when set,
// carries the original file name as a zero-terminated string.
func gzipContents(path string, rec PartialRecord) (PartialRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return PartialRecord{}, unreadable(path, "open failed", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return PartialRecord{}, unreadable(path, "header read failed", err)
	}
	head = head[:n]
	if len(head) < 10 {
		return PartialRecord{}, unreadable(path, "truncated gzip header", nil)
	}

	flags := head[3]
	off := 10
	if flags&0x04 != 0 { // FEXTRA
		if off+2 > len(head) {
			return rec, nil
		}
		xlen := int(head[off]) | int(head[off+1])<<8
		off += 2 + xlen
	}
	if flags&0x08 != 0 && off < len(head) { // FNAME
		if end := bytes.IndexByte(head[off:], 0); end >= 0 {
			rec.Fields[catalog.FieldArchiveContents] = string(head[off : off+end])
		}
	}
	return rec, nil
}

func tarContents(path string, rec PartialRecord) (PartialRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return PartialRecord{}, unreadable(path, "open failed", err)
	}
	defer f.Close()

	// Entry headers inside the budget are enough for a member listing;
	// payload blocks past it are skipped, not read.
	tr := tar.NewReader(io.LimitReader(f, headerBudget))
	var names []string
	truncated := false
	for len(names) < maxArchiveEntries {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(names) == 0 {
				return PartialRecord{}, unreadable(path, "corrupt tar archive", err)
			}
			truncated = true
			break
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		names = append(names, hdr.Name)
	}
	setContents(&rec, names, len(names))
	if truncated {
		rec.Warnings = append(rec.Warnings, "tar listing truncated at inspection budget")
	}
	return rec, nil
}

func setContents(rec *PartialRecord, names []string, total int) {
	if len(names) == 0 {
		return
	}
	listing := strings.Join(names, ", ")
	if total > len(names) {
		listing += fmt.Sprintf(" (+%d more)", total-len(names))
	}
	rec.Fields[catalog.FieldArchiveContents] = listing
}
