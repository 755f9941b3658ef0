// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpmkit

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrBadMagic is returned when a section does not start with the expected magic.
	ErrBadMagic = errors.New("bad rpm magic")
	// ErrHeaderTooLarge is returned when a header declares more entries or store
	// bytes than rpm itself accepts.
	ErrHeaderTooLarge = errors.New("rpm header too large")
	// ErrTagNotFound is returned by the typed accessors of InputHeader.
	ErrTagNotFound = errors.New("rpm tag not found")
)

// Limits as enforced by rpm (rpmtag.h HEADER_MAX_BYTES and headerVerifyInfo).
const (
	maxIndexEntries = 0xffff
	maxStoreBytes   = 256 << 20

	indexEntrySize = 0x10
	preambleSize   = 0x10
)

// IndexRecord is the raw on-disk form of one index entry.
type IndexRecord struct {
	Tag    int32
	Type   int32
	Offset int32
	Count  int32
}

// InputHeader is a parsed, read-only header section.
type InputHeader struct {
	entries map[int]*HeaderValue
	order   []int
	start   int64
	length  int64
	raw     []byte
}

// NewInputHeader indexes entries by tag. If a tag repeats, the last entry wins.
// start and length locate the section in its source.
func NewInputHeader(entries []*HeaderValue, start, length int64) *InputHeader {
	h := &InputHeader{entries: make(map[int]*HeaderValue, len(entries)), start: start, length: length}
	for _, e := range entries {
		if _, ok := h.entries[e.Tag()]; !ok {
			h.order = append(h.order, e.Tag())
		}
		h.entries[e.Tag()] = e
	}
	return h
}

// ReadHeader reads one header section from r. start is the offset of the
// section in its source and is only recorded.
func ReadHeader(r io.Reader, start int64) (*InputHeader, error) {
	pre := make([]byte, preambleSize)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, errors.Wrap(err, "failed to read header preamble")
	}
	count, size, err := parsePreamble(pre)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, count*indexEntrySize+size)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, errors.Wrap(err, "failed to read header index and store")
	}
	return parseSection(append(pre, rest...), count, size, start)
}

// ParseHeader parses a header section held in b. Trailing bytes are ignored.
func ParseHeader(b []byte, start int64) (*InputHeader, error) {
	if len(b) < preambleSize {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "failed to read header preamble")
	}
	count, size, err := parsePreamble(b[:preambleSize])
	if err != nil {
		return nil, err
	}
	total := preambleSize + count*indexEntrySize + size
	if len(b) < total {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "header needs %d bytes, got %d", total, len(b))
	}
	return parseSection(b[:total:total], count, size, start)
}

func parsePreamble(pre []byte) (int, int, error) {
	if !bytes.Equal(pre[:4], headerMagic[:4]) {
		return 0, 0, errors.Wrapf(ErrBadMagic, "header magic %x", pre[:4])
	}
	count := int32(binary.BigEndian.Uint32(pre[8:12]))
	size := int32(binary.BigEndian.Uint32(pre[12:16]))
	if count < 1 || count > maxIndexEntries {
		return 0, 0, errors.Wrapf(ErrHeaderTooLarge, "%d index entries", count)
	}
	if size < 0 || size > maxStoreBytes {
		return 0, 0, errors.Wrapf(ErrHeaderTooLarge, "%d store bytes", size)
	}
	return int(count), int(size), nil
}

func parseSection(b []byte, count, size int, start int64) (*InputHeader, error) {
	records := make([]IndexRecord, count)
	if err := binary.Read(bytes.NewReader(b[preambleSize:preambleSize+count*indexEntrySize]), binary.BigEndian, records); err != nil {
		return nil, errors.Wrap(err, "failed to read index entries")
	}
	store := b[preambleSize+count*indexEntrySize:]
	values := make([]*HeaderValue, 0, count)
	for i, rec := range records {
		if rec.Offset < 0 || int(rec.Offset) > size || rec.Count < 0 {
			return nil, errors.Wrapf(ErrCorruptEntry, "index entry %d (tag %d): offset %d count %d, store %d bytes", i, rec.Tag, rec.Offset, rec.Count, size)
		}
		values = append(values, NewHeaderValue(int(rec.Tag), int(rec.Type), int(rec.Offset), int(rec.Count), store))
	}
	h := NewInputHeader(values, start, int64(len(b)))
	h.raw = b
	return h, nil
}

// Start returns the offset of the header section in its source.
func (h *InputHeader) Start() int64 {
	return h.start
}

// Length returns the size of the header section in bytes.
func (h *InputHeader) Length() int64 {
	return h.length
}

// End is the offset of the first byte after the header section.
func (h *InputHeader) End() int64 {
	return h.start + h.length
}

// Raw returns the section bytes when the header was read from a source, nil otherwise.
func (h *InputHeader) Raw() []byte {
	return h.raw
}

// Entry returns the index entry of tag.
func (h *InputHeader) Entry(tag int) (*HeaderValue, bool) {
	e, ok := h.entries[tag]
	return e, ok
}

// Entries returns the entries in the order they were found.
func (h *InputHeader) Entries() []*HeaderValue {
	r := make([]*HeaderValue, len(h.order))
	for i, tag := range h.order {
		r[i] = h.entries[tag]
	}
	return r
}

// Tags returns all tags in ascending order.
func (h *InputHeader) Tags() []int {
	t := append([]int(nil), h.order...)
	sort.Ints(t)
	return t
}

// Has reports whether tag is present. A present tag may hold the NULL value.
func (h *InputHeader) Has(tag int) bool {
	_, ok := h.entries[tag]
	return ok
}

// Value returns the decoded value of tag. ok is false when the tag is absent;
// a tag stored as null is present with a NULL value.
func (h *InputHeader) Value(tag int) (v TagValue, ok bool, err error) {
	e, ok := h.entries[tag]
	if !ok {
		return TagValue{}, false, nil
	}
	v, err = e.Value()
	return v, true, err
}

func (h *InputHeader) mustValue(tag int) (TagValue, error) {
	v, ok, err := h.Value(tag)
	if err != nil {
		return TagValue{}, err
	}
	if !ok {
		return TagValue{}, errors.Wrapf(ErrTagNotFound, "tag %d", tag)
	}
	return v, nil
}

// String returns a STRING tag, or the first element of a string array tag.
func (h *InputHeader) String(tag int) (string, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return "", err
	}
	s, err := v.AsString()
	return s, errors.Wrapf(err, "tag %d", tag)
}

// Strings returns a STRING_ARRAY or I18N_STRING tag.
func (h *InputHeader) Strings(tag int) ([]string, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return nil, err
	}
	s, err := v.AsStringArray()
	return s, errors.Wrapf(err, "tag %d", tag)
}

// Int returns a single INT tag.
func (h *InputHeader) Int(tag int) (int32, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return 0, err
	}
	i, err := v.AsInt()
	return i, errors.Wrapf(err, "tag %d", tag)
}

// Ints returns an INT tag as a slice.
func (h *InputHeader) Ints(tag int) ([]int32, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return nil, err
	}
	i, err := v.AsIntArray()
	return i, errors.Wrapf(err, "tag %d", tag)
}

// Long returns a single integer tag of any width.
func (h *InputHeader) Long(tag int) (int64, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return 0, err
	}
	i, err := v.AsLong()
	return i, errors.Wrapf(err, "tag %d", tag)
}

// Bytes returns a BYTE, BLOB or unknown tag.
func (h *InputHeader) Bytes(tag int) ([]byte, error) {
	v, err := h.mustValue(tag)
	if err != nil {
		return nil, err
	}
	b, err := v.AsByteArray()
	return b, errors.Wrapf(err, "tag %d", tag)
}

// Size returns the size stored under intTag, or under longTag for sizes that
// need 64 bits. It is the reverse of Header.PutSize.
func (h *InputHeader) Size(intTag, longTag int) (int64, error) {
	if h.Has(longTag) {
		return h.Long(longTag)
	}
	return h.Long(intTag)
}

// Header decodes all entries into a new write model. Region entries are left
// out, Header.Bytes writes its own.
func (h *InputHeader) Header() (*Header, error) {
	out := NewHeader()
	for _, tag := range h.order {
		if isRegion(tag) {
			continue
		}
		v, err := h.entries[tag].Value()
		if err != nil {
			return nil, err
		}
		out.PutValue(tag, v)
	}
	return out, nil
}
