package handler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// produceNDArray extracts metadata from multidimensional array containers.
// NetCDF classic headers are parsed in full (dimensions, variables, global
// attributes); HDF5 and NumPy containers get lighter treatment.
func produceNDArray(fd walker.FileDescriptor) (PartialRecord, error) {
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

	switch {
	case bytes.HasPrefix(head, []byte("CDF\x01")), bytes.HasPrefix(head, []byte("CDF\x02")):
		return parseNetCDFClassic(fd.Path, head)
	case bytes.HasPrefix(head, []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}):
		rec := newPartial()
		rec.Fields[catalog.FieldDataType] = "array (HDF5)"
		rec.Warnings = append(rec.Warnings, "HDF5 container, internal structure not inspected")
		return rec, nil
	case bytes.HasPrefix(head, []byte("\x93NUMPY")):
		return parseNumpyHeader(fd.Path, head)
	default:
		return PartialRecord{}, unreadable(fd.Path, "unrecognized array container", nil)
	}
}

// NetCDF classic tag constants and type sizes, per the CDF-1 format spec.
const (
	ncDimension = 0x0A
	ncVariable  = 0x0B
	ncAttribute = 0x0C
)

var ncTypeSize = map[uint32]int{
	1: 1, // NC_BYTE
	2: 1, // NC_CHAR
	3: 2, // NC_SHORT
	4: 4, // NC_INT
	5: 4, // NC_FLOAT
	6: 8, // NC_DOUBLE
}

type ncCursor struct {
	buf []byte
	off int
	bad bool
}

func (c *ncCursor) u32() uint32 {
	if c.bad || c.off+4 > len(c.buf) {
		c.bad = true
		return 0
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

func (c *ncCursor) skip(n int) {
	if c.bad || n < 0 || c.off+n > len(c.buf) {
		c.bad = true
		return
	}
	c.off += n
}

func pad4(n int) int {
	if r := n % 4; r != 0 {
		return n + 4 - r
	}
	return n
}

func (c *ncCursor) name() string {
	n := int(c.u32())
	if c.bad || n < 0 || n > len(c.buf)-c.off {
		c.bad = true
		return ""
	}
	s := string(c.buf[c.off : c.off+n])
	c.skip(pad4(n))
	return s
}

// attrValue reads an attribute value of nc_type char; other types are
// skipped and returned as "".
func (c *ncCursor) attrValue(ncType, nelems uint32) string {
	size, ok := ncTypeSize[ncType]
	if !ok {
		c.bad = true
		return ""
	}
	total := int(nelems) * size
	if ncType != 2 { // not NC_CHAR
		c.skip(pad4(total))
		return ""
	}
	if c.bad || total < 0 || c.off+total > len(c.buf) {
		c.bad = true
		return ""
	}
	s := string(c.buf[c.off : c.off+total])
	c.skip(pad4(total))
	return strings.TrimRight(s, "\x00")
}

// attrList parses a NetCDF attribute list into name → printable value.
func (c *ncCursor) attrList() map[string]string {
	tag := c.u32()
	n := c.u32()
	if c.bad {
		return nil
	}
	if tag == 0 && n == 0 {
		return nil
	}
	if tag != ncAttribute {
		c.bad = true
		return nil
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n && !c.bad; i++ {
		name := c.name()
		ncType := c.u32()
		nelems := c.u32()
		val := c.attrValue(ncType, nelems)
		if name != "" && val != "" {
			out[strings.ToLower(name)] = strings.TrimSpace(val)
		}
	}
	return out
}

type ncDim struct {
	name string
	size uint32
}

func parseNetCDFClassic(path string, head []byte) (PartialRecord, error) {
	version := head[3]
	c := &ncCursor{buf: head, off: 4}
	numrecs := c.u32()

	var dims []ncDim
	tag := c.u32()
	n := c.u32()
	if tag == ncDimension {
		for i := uint32(0); i < n && !c.bad; i++ {
			name := c.name()
			size := c.u32()
			dims = append(dims, ncDim{name, size})
		}
	} else if tag != 0 || n != 0 {
		c.bad = true
	}

	gatts := c.attrList()

	// Variable list: names and units attributes.
	var varNames []string
	units := make(map[string]string)
	tag = c.u32()
	n = c.u32()
	if tag == ncVariable {
		for i := uint32(0); i < n && !c.bad; i++ {
			name := c.name()
			ndims := c.u32()
			c.skip(int(ndims) * 4)
			vatts := c.attrList()
			c.u32() // nc_type
			c.u32() // vsize
			if version == 2 {
				c.skip(8) // begin (64-bit offset)
			} else {
				c.skip(4)
			}
			if name != "" {
				varNames = append(varNames, name)
				if u := vatts["units"]; u != "" {
					units[name] = u
				}
			}
		}
	} else if tag != 0 || n != 0 {
		c.bad = true
	}

	if c.bad {
		if len(head) == headerBudget {
			// Header outgrew the inspection budget: keep what parsed cleanly.
			rec := netcdfRecord(numrecs, dims, gatts, varNames, units)
			rec.Warnings = append(rec.Warnings, "NetCDF header larger than inspection budget, metadata may be incomplete")
			return rec, nil
		}
		return PartialRecord{}, unreadable(path, "truncated NetCDF header", nil)
	}
	return netcdfRecord(numrecs, dims, gatts, varNames, units), nil
}

func netcdfRecord(numrecs uint32, dims []ncDim, gatts map[string]string, varNames []string, units map[string]string) PartialRecord {
	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "grid"

	if len(dims) > 0 {
		parts := make([]string, 0, len(dims))
		for _, d := range dims {
			if d.size == 0 { // unlimited dimension
				parts = append(parts, fmt.Sprintf("%s=%d (unlimited)", d.name, numrecs))
			} else {
				parts = append(parts, fmt.Sprintf("%s=%d", d.name, d.size))
			}
		}
		rec.Fields[catalog.FieldGridSize] = strings.Join(parts, ", ")
	}
	if len(varNames) > 0 {
		rec.Fields[catalog.FieldVariables] = strings.Join(varNames, ", ")
	}
	if len(units) > 0 {
		parts := make([]string, 0, len(units))
		for _, v := range varNames {
			if u, ok := units[v]; ok {
				parts = append(parts, v+"="+u)
			}
		}
		rec.Fields[catalog.FieldUnits] = strings.Join(parts, "; ")
	}

	// Conventional global attributes carry dataset-level metadata.
	setIf := func(f catalog.Field, keys ...string) {
		for _, k := range keys {
			if v := gatts[k]; v != "" {
				rec.Fields[f] = v
				return
			}
		}
	}
	setIf(catalog.FieldProducer, "institution", "creator_name", "producer")
	setIf(catalog.FieldInstrument, "instrument", "platform", "sensor")
	setIf(catalog.FieldMethod, "source", "methodology")
	setIf(catalog.FieldLicense, "license")
	setIf(catalog.FieldCitation, "references", "citation")
	setIf(catalog.FieldDOI, "doi", "id")

	start, end := gatts["time_coverage_start"], gatts["time_coverage_end"]
	if start != "" && end != "" {
		rec.Fields[catalog.FieldTemporalCoverage] = start + " to " + end
	}
	latMin, latMax := gatts["geospatial_lat_min"], gatts["geospatial_lat_max"]
	lonMin, lonMax := gatts["geospatial_lon_min"], gatts["geospatial_lon_max"]
	if latMin != "" && latMax != "" && lonMin != "" && lonMax != "" {
		rec.Fields[catalog.FieldSpatialCoverage] = fmt.Sprintf("lat %s..%s, lon %s..%s", latMin, latMax, lonMin, lonMax)
	}
	return rec
}

// parseNumpyHeader reads the .npy format header: magic, version, a
// little-endian header length, then a Python dict literal describing dtype
// and shape.
func parseNumpyHeader(path string, head []byte) (PartialRecord, error) {
	if len(head) < 10 {
		return PartialRecord{}, unreadable(path, "truncated npy header", nil)
	}
	major := head[6]
	var hlen, start int
	if major >= 2 {
		if len(head) < 12 {
			return PartialRecord{}, unreadable(path, "truncated npy header", nil)
		}
		hlen = int(binary.LittleEndian.Uint32(head[8:12]))
		start = 12
	} else {
		hlen = int(binary.LittleEndian.Uint16(head[8:10]))
		start = 10
	}
	if start+hlen > len(head) {
		return PartialRecord{}, unreadable(path, "truncated npy header", nil)
	}
	dict := string(head[start : start+hlen])

	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "array (npy)"
	if shape := extractPyDictValue(dict, "shape"); shape != "" {
		rec.Fields[catalog.FieldGridSize] = shape
	}
	return rec, nil
}

// extractPyDictValue pulls a value out of the npy header dict literal
// without a Python parser; shapes look like (365, 180, 360).
func extractPyDictValue(dict, key string) string {
	idx := strings.Index(dict, "'"+key+"'")
	if idx < 0 {
		return ""
	}
	rest := dict[idx:]
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return ""
	}
	closeIdx := strings.IndexByte(rest[open:], ')')
	if closeIdx < 0 {
		return ""
	}
	return strings.TrimSpace(rest[open : open+closeIdx+1])
}
