package handler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// produceRaster extracts pixel dimensions from image headers. Each format
// stores them in a fixed or walkable location near the start of the file.
func produceRaster(fd walker.FileDescriptor) (PartialRecord, error) {
	f, err := os.Open(fd.Path)
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, "open failed", err)
	}
	defer f.Close()

	head := make([]byte, headerBudget)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return PartialRecord{}, unreadable(fd.Path, "header read failed", err)
	}
	head = head[:n]

	w, h, err := rasterDimensions(head)
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, err.Error(), nil)
	}

	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "raster"
	rec.Fields[catalog.FieldGridSize] = fmt.Sprintf("%dx%d", w, h)
	return rec, nil
}

func rasterDimensions(head []byte) (w, h uint32, err error) {
	switch {
	case bytes.HasPrefix(head, []byte("\x89PNG\r\n\x1a\n")):
		// IHDR is mandated first: width and height at fixed offsets.
		if len(head) < 24 {
			return 0, 0, fmt.Errorf("truncated PNG header")
		}
		return binary.BigEndian.Uint32(head[16:20]), binary.BigEndian.Uint32(head[20:24]), nil

	case bytes.HasPrefix(head, []byte("GIF87a")), bytes.HasPrefix(head, []byte("GIF89a")):
		if len(head) < 10 {
			return 0, 0, fmt.Errorf("truncated GIF header")
		}
		return uint32(binary.LittleEndian.Uint16(head[6:8])), uint32(binary.LittleEndian.Uint16(head[8:10])), nil

	case bytes.HasPrefix(head, []byte("BM")):
		if len(head) < 26 {
			return 0, 0, fmt.Errorf("truncated BMP header")
		}
		height := int32(binary.LittleEndian.Uint32(head[22:26]))
		if height < 0 { // top-down bitmap
			height = -height
		}
		return binary.LittleEndian.Uint32(head[18:22]), uint32(height), nil

	case bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF}):
		return jpegDimensions(head)

	case bytes.HasPrefix(head, []byte("II*\x00")):
		return tiffDimensions(head, binary.LittleEndian)
	case bytes.HasPrefix(head, []byte("MM\x00*")):
		return tiffDimensions(head, binary.BigEndian)
	}
	return 0, 0, fmt.Errorf("unrecognized raster format")
}

// jpegDimensions walks marker segments until a start-of-frame marker, which
// carries the image height and width.
func jpegDimensions(head []byte) (uint32, uint32, error) {
	off := 2
	for off+4 <= len(head) {
		if head[off] != 0xFF {
			return 0, 0, fmt.Errorf("malformed JPEG segment at %d", off)
		}
		marker := head[off+1]
		// Standalone markers have no length word.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			off += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(head[off+2 : off+4]))
		if segLen < 2 {
			return 0, 0, fmt.Errorf("malformed JPEG segment length")
		}
		isSOF := marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC
		if isSOF {
			if off+9 > len(head) {
				return 0, 0, fmt.Errorf("truncated JPEG frame header")
			}
			h := uint32(binary.BigEndian.Uint16(head[off+5 : off+7]))
			w := uint32(binary.BigEndian.Uint16(head[off+7 : off+9]))
			return w, h, nil
		}
		off += 2 + segLen
	}
	return 0, 0, fmt.Errorf("no JPEG frame header within budget")
}

// tiffDimensions reads the first image file directory and looks for the
// ImageWidth (256) and ImageLength (257) tags.
func tiffDimensions(head []byte, bo binary.ByteOrder) (uint32, uint32, error) {
	if len(head) < 8 {
		return 0, 0, fmt.Errorf("truncated TIFF header")
	}
	ifdOff := int(bo.Uint32(head[4:8]))
	if ifdOff+2 > len(head) {
		return 0, 0, fmt.Errorf("TIFF directory beyond header budget")
	}
	count := int(bo.Uint16(head[ifdOff : ifdOff+2]))
	var w, h uint32
	for i := 0; i < count; i++ {
		entry := ifdOff + 2 + i*12
		if entry+12 > len(head) {
			return 0, 0, fmt.Errorf("truncated TIFF directory")
		}
		tag := bo.Uint16(head[entry : entry+2])
		typ := bo.Uint16(head[entry+2 : entry+4])
		var val uint32
		switch typ {
		case 3: // SHORT
			val = uint32(bo.Uint16(head[entry+8 : entry+10]))
		case 4: // LONG
			val = bo.Uint32(head[entry+8 : entry+12])
		default:
			continue
		}
		switch tag {
		case 256:
			w = val
		case 257:
			h = val
		}
	}
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("TIFF directory missing dimensions")
	}
	return w, h, nil
}
