package metadata

import (
	"fmt"

	"anvil/internal/sig"
)

// heap is a content-addressed byte stream. Offset 0 is always the empty
// entry; identical content always returns the same offset.
type heap struct {
	data  []byte
	index map[string]uint32
}

func (h *heap) init() {
	h.data = []byte{0}
	h.index = make(map[string]uint32, 32)
}

func (h *heap) size() int { return len(h.data) }

// AddString interns a name into the string heap and returns its offset.
// Entries are stored UTF-8 encoded with a terminating zero byte.
func (s *Sink) AddString(v string) uint32 {
	if v == "" {
		return 0
	}
	if off, ok := s.strings.index[v]; ok {
		return off
	}
	off := uint32(len(s.strings.data))
	s.strings.data = append(s.strings.data, v...)
	s.strings.data = append(s.strings.data, 0)
	s.strings.index[v] = off
	return off
}

// AddBlob interns a blob and returns its offset. Entries carry a
// compressed-unsigned length prefix.
func (s *Sink) AddBlob(v []byte) (uint32, error) {
	if len(v) == 0 {
		return 0, nil
	}
	if off, ok := s.blobs.index[string(v)]; ok {
		return off, nil
	}
	off := uint32(len(s.blobs.data))
	var prefixed []byte
	err := sig.WithBuilder(func(b *sig.Builder) error {
		if err := b.AppendCompressedUint(uint32(len(v))); err != nil {
			return fmt.Errorf("blob of %d bytes: %w", len(v), err)
		}
		b.AppendBytes(v)
		prefixed = b.FinishBytes()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.blobs.data = append(s.blobs.data, prefixed...)
	s.blobs.index[string(v)] = off
	return off, nil
}

// AddSignature interns an encoded signature into the blob heap.
func (s *Sink) AddSignature(v sig.Signature) (uint32, error) {
	return s.AddBlob(v.Bytes())
}

// AddUserString interns a literal string for IL use and returns its
// offset. The IL token for it carries the user-string pseudo table tag.
func (s *Sink) AddUserString(v string) (uint32, error) {
	if v == "" {
		return 0, nil
	}
	if off, ok := s.userStrings.index[v]; ok {
		return off, nil
	}
	off := uint32(len(s.userStrings.data))
	var prefixed []byte
	err := sig.WithBuilder(func(b *sig.Builder) error {
		if err := b.AppendCompressedUint(uint32(len(v))); err != nil {
			return fmt.Errorf("user string of %d bytes: %w", len(v), err)
		}
		b.AppendBytes([]byte(v))
		prefixed = b.FinishBytes()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.userStrings.data = append(s.userStrings.data, prefixed...)
	s.userStrings.index[v] = off
	return off, nil
}

// StringAt reads a zero-terminated string heap entry, for inspect and
// tests.
func (s *Sink) StringAt(off uint32) (string, bool) {
	return stringAt(s.strings.data, off)
}

func stringAt(data []byte, off uint32) (string, bool) {
	if int(off) >= len(data) {
		return "", false
	}
	end := int(off)
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end == len(data) {
		return "", false
	}
	return string(data[int(off):end]), true
}

// BlobAt reads a length-prefixed blob heap entry.
func (s *Sink) BlobAt(off uint32) ([]byte, bool) {
	return blobAt(s.blobs.data, off)
}

func blobAt(data []byte, off uint32) ([]byte, bool) {
	if int(off) >= len(data) {
		return nil, false
	}
	n, used, err := sig.DecodeCompressedUint(data[off:])
	if err != nil {
		return nil, false
	}
	start := int(off) + used
	if start+int(n) > len(data) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, data[start:start+int(n)])
	return out, true
}
