package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"anvil/internal/handle"
)

// Image is the parsed view of an emitted binary module, enough for
// inspection tooling and round-trip tests.
type Image struct {
	FormatVersion uint16
	ModuleName    string
	Counts        map[handle.Table]uint32

	StringHeap     []byte
	BlobHeap       []byte
	UserStringHeap []byte
	Bodies         []byte
}

// TableOrder returns the fixed serialization order of the tables.
func TableOrder() []handle.Table {
	out := make([]handle.Table, len(tableOrder))
	copy(out, tableOrder)
	return out
}

// StringAt reads a string heap entry of the parsed image.
func (img *Image) StringAt(off uint32) (string, bool) {
	return stringAt(img.StringHeap, off)
}

// BlobAt reads a blob heap entry of the parsed image.
func (img *Image) BlobAt(off uint32) ([]byte, bool) {
	return blobAt(img.BlobHeap, off)
}

type imageReader struct {
	data []byte
	pos  int
}

func (r *imageReader) need(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("truncated image at offset %d", r.pos)
	}
	return nil
}

func (r *imageReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *imageReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *imageReader) sized() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:])
	r.pos += int(n)
	return out, nil
}

// ReadImage parses an emitted image back into its header, row counts and
// heaps.
func ReadImage(data []byte) (*Image, error) {
	r := &imageReader{data: data}
	if err := r.need(4); err != nil {
		return nil, err
	}
	if !bytes.Equal(r.data[:4], Magic[:]) {
		return nil, fmt.Errorf("bad magic % X", r.data[:4])
	}
	r.pos = 4
	ver, err := r.u16()
	if err != nil {
		return nil, err
	}
	if ver != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", ver)
	}
	if _, err := r.u16(); err != nil {
		return nil, err
	}
	nameOff, err := r.u32()
	if err != nil {
		return nil, err
	}

	img := &Image{FormatVersion: ver, Counts: make(map[handle.Table]uint32, len(tableOrder))}
	for _, t := range tableOrder {
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		img.Counts[t] = n
	}
	for _, t := range tableOrder {
		skip := int(img.Counts[t]) * columnCount[t] * 4
		if err := r.need(skip); err != nil {
			return nil, fmt.Errorf("table %s: %w", t, err)
		}
		r.pos += skip
	}
	if img.StringHeap, err = r.sized(); err != nil {
		return nil, err
	}
	if img.BlobHeap, err = r.sized(); err != nil {
		return nil, err
	}
	if img.UserStringHeap, err = r.sized(); err != nil {
		return nil, err
	}
	if img.Bodies, err = r.sized(); err != nil {
		return nil, err
	}
	name, ok := img.StringAt(nameOff)
	if !ok {
		return nil, fmt.Errorf("module name offset %d out of range", nameOff)
	}
	img.ModuleName = name
	return img, nil
}
