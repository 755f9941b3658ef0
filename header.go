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
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrUnsupportedValue is returned when a native value has no rpm encoding.
	ErrUnsupportedValue = errors.New("unsupported header value type")
	// ErrNilValue is returned when nil is put where a value is required. Use PutNull
	// to store an explicit null.
	ErrNilValue = errors.New("nil header value")
)

var headerMagic = []byte{0x8e, 0xad, 0xe8, 0x01, 0, 0, 0, 0}

// Only integer types are aligned. This is not just an optimization - some versions
// of rpm fail when integers are not aligned. Other versions fail when non-integers are aligned.
var boundaries = map[Type]int{
	TypeShort: 2,
	TypeInt:   4,
	TypeLong:  8,
}

// HeaderEntry is one encoded tag of a Header. Entries are never modified after
// creation, so headers may share them.
type HeaderEntry struct {
	Tag   int
	Count int
	// Data is the canonical store encoding of Value.
	Data  []byte
	Value TagValue
}

// Type returns the physical type of the entry.
func (e *HeaderEntry) Type() Type {
	return e.Value.Type()
}

func (e *HeaderEntry) indexBytes(offset int) ([]byte, error) {
	b := &bytes.Buffer{}
	if err := binary.Write(b, binary.BigEndian, []int32{int32(e.Tag), int32(e.Value.RawType()), int32(offset), int32(e.Count)}); err != nil {
		// binary.Write can fail if the underlying Write fails, or the types are invalid.
		// bytes.Buffer's write never error out, it can only panic with OOM.
		return nil, err
	}
	return b.Bytes(), nil
}

// newEntry freezes the encoding of v.
func newEntry(tag int, v TagValue) *HeaderEntry {
	return &HeaderEntry{Tag: tag, Count: v.Count(), Data: encodeValue(v), Value: v}
}

// encodeValue returns the store bytes of a value. Integers are big endian,
// strings are NUL terminated, blobs are copied as is.
func encodeValue(v TagValue) []byte {
	switch val := v.Value().(type) {
	case Char:
		return []byte{byte(val)}
	case []Char:
		b := make([]byte, len(val))
		for i, c := range val {
			b[i] = byte(c)
		}
		return b
	case byte:
		return []byte{val}
	case []byte:
		return append([]byte(nil), val...)
	case int16:
		return encodeInts([]int16{val})
	case []int16:
		return encodeInts(val)
	case int32:
		return encodeInts([]int32{val})
	case []int32:
		return encodeInts(val)
	case int64:
		return encodeInts([]int64{val})
	case []int64:
		return encodeInts(val)
	case string:
		return append([]byte(val), 0x00)
	case []string:
		b := &bytes.Buffer{}
		for _, s := range val {
			b.WriteString(s)
			b.WriteByte(0x00)
		}
		return b.Bytes()
	}
	return nil
}

func encodeInts(value interface{}) []byte {
	b := &bytes.Buffer{}
	// Writing fixed size slices into a bytes.Buffer cannot fail.
	_ = binary.Write(b, binary.BigEndian, value)
	return b.Bytes()
}

// NewHeaderEntry encodes a native Go value. Unsigned integers keep their bit
// pattern, time.Time is stored as an INT of its unix seconds.
func NewHeaderEntry(tag int, value interface{}) (*HeaderEntry, error) {
	switch value := value.(type) {
	case nil:
		return nil, errors.Wrapf(ErrNilValue, "tag %d", tag)
	case TagValue:
		return newEntry(tag, value), nil
	case []byte:
		return newEntry(tag, BlobValue(value)), nil
	case []int16:
		return newEntry(tag, ShortValue(value...)), nil
	case []uint16:
		v := make([]int16, len(value))
		for i, x := range value {
			v[i] = int16(x)
		}
		return newEntry(tag, ShortValue(v...)), nil
	case []int32:
		return newEntry(tag, IntValue(value...)), nil
	case []uint32:
		v := make([]int32, len(value))
		for i, x := range value {
			v[i] = int32(x)
		}
		return newEntry(tag, IntValue(v...)), nil
	case []int64:
		return newEntry(tag, LongValue(value...)), nil
	case []uint64:
		v := make([]int64, len(value))
		for i, x := range value {
			v[i] = int64(x)
		}
		return newEntry(tag, LongValue(v...)), nil
	case string:
		return newEntry(tag, StringValue(value)), nil
	case []string:
		return newEntry(tag, StringArrayValue(value...)), nil
	case time.Time:
		return newEntry(tag, IntValue(int32(value.Unix()))), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedValue, "tag %d: %T", tag, value)
}

// Header is the write side of an rpm header: an insertion ordered map from tag
// to encoded entry. A Header is not safe for concurrent mutation.
type Header struct {
	entries map[int]*HeaderEntry
	order   []int
	// charset encodes STRING, STRING_ARRAY and I18N_STRING values. nil is UTF-8.
	charset encoding.Encoding
}

// NewHeader returns an empty header writing UTF-8 strings.
func NewHeader() *Header {
	return &Header{entries: make(map[int]*HeaderEntry)}
}

// NewHeaderWithCharset returns an empty header whose strings are stored in
// charset. Characters charset cannot represent are replaced by its
// substitute character. A nil charset is UTF-8.
func NewHeaderWithCharset(charset encoding.Encoding) *Header {
	h := NewHeader()
	h.charset = charset
	return h
}

// Charset returns the encoding of the header strings.
func (h *Header) Charset() encoding.Encoding {
	if h.charset == nil {
		return unicode.UTF8
	}
	return h.charset
}

// Clone copies the tag map and the charset. Entries are shared.
func (h *Header) Clone() *Header {
	c := NewHeaderWithCharset(h.charset)
	c.PutAll(h)
	return c
}

func isText(t Type) bool {
	return t == TypeString || t == TypeStringArray || t == TypeI18NString
}

// entry encodes v, strings in the charset of h.
func (h *Header) entry(tag int, v TagValue) *HeaderEntry {
	e := newEntry(tag, v)
	if h.charset != nil && isText(v.Type()) {
		e.Data = encodeText(v, h.charset)
	}
	return e
}

func encodeText(v TagValue, charset encoding.Encoding) []byte {
	var strs []string
	switch val := v.Value().(type) {
	case string:
		strs = []string{val}
	case []string:
		strs = val
	}
	enc := encoding.ReplaceUnsupported(charset.NewEncoder())
	b := &bytes.Buffer{}
	for _, s := range strs {
		if t, err := enc.String(s); err == nil {
			s = t
		}
		b.WriteString(s)
		b.WriteByte(0x00)
	}
	return b.Bytes()
}

func (h *Header) add(e *HeaderEntry) {
	if h.entries == nil {
		h.entries = make(map[int]*HeaderEntry)
	}
	if _, ok := h.entries[e.Tag]; !ok {
		h.order = append(h.order, e.Tag)
	}
	h.entries[e.Tag] = e
}

// Len returns the number of tags, explicit nulls included.
func (h *Header) Len() int {
	return len(h.entries)
}

// Put stores a native value, see NewHeaderEntry.
func (h *Header) Put(tag int, value interface{}) error {
	e, err := NewHeaderEntry(tag, value)
	if err != nil {
		return err
	}
	if isText(e.Type()) {
		e = h.entry(tag, e.Value)
	}
	h.add(e)
	return nil
}

// PutValue stores an already typed value.
func (h *Header) PutValue(tag int, v TagValue) {
	h.add(h.entry(tag, v))
}

// PutNull marks tag as explicitly null, which is different from not having the tag.
func (h *Header) PutNull(tag int) {
	h.add(h.entry(tag, NullValue()))
}

func (h *Header) PutChar(tag int, v ...Char) {
	h.add(h.entry(tag, CharValue(v...)))
}

func (h *Header) PutByte(tag int, v ...byte) {
	h.add(h.entry(tag, ByteValue(v...)))
}

func (h *Header) PutShort(tag int, v ...int16) {
	h.add(h.entry(tag, ShortValue(v...)))
}

func (h *Header) PutInt(tag int, v ...int32) {
	h.add(h.entry(tag, IntValue(v...)))
}

func (h *Header) PutLong(tag int, v ...int64) {
	h.add(h.entry(tag, LongValue(v...)))
}

func (h *Header) PutString(tag int, v string) {
	h.add(h.entry(tag, StringValue(v)))
}

// PutStringOptional stores *v, and does nothing if v is nil.
func (h *Header) PutStringOptional(tag int, v *string) {
	if v == nil {
		return
	}
	h.PutString(tag, *v)
}

func (h *Header) PutStringArray(tag int, v ...string) {
	h.add(h.entry(tag, StringArrayValue(v...)))
}

func (h *Header) PutI18NString(tag int, v ...string) {
	h.add(h.entry(tag, I18NStringValue(v...)))
}

func (h *Header) PutBlob(tag int, v []byte) {
	h.add(h.entry(tag, BlobValue(v)))
}

// PutSize stores a size as INT under intTag, or as LONG under longTag once it
// does not fit 32 bits. Negative sizes are stored as zero.
func (h *Header) PutSize(value int64, intTag, longTag int) {
	if value <= 0 {
		value = 0
	}
	if value > math.MaxInt32 {
		h.PutLong(longTag, value)
		return
	}
	h.PutInt(intTag, int32(value))
}

// PutAll copies all entries of o, replacing entries with the same tag.
// Strings are stored in the charset of h.
func (h *Header) PutAll(o *Header) {
	for _, tag := range o.order {
		e := o.entries[tag]
		if isText(e.Type()) {
			e = h.entry(tag, e.Value)
		}
		h.add(e)
	}
}

// Remove deletes tag.
func (h *Header) Remove(tag int) {
	if _, ok := h.entries[tag]; !ok {
		return
	}
	delete(h.entries, tag)
	for i, t := range h.order {
		if t == tag {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

// Get returns the entry for tag.
func (h *Header) Get(tag int) (*HeaderEntry, bool) {
	e, ok := h.entries[tag]
	return e, ok
}

// Has reports whether tag is present, as a value or as explicit null.
func (h *Header) Has(tag int) bool {
	_, ok := h.entries[tag]
	return ok
}

// MakeEntries returns the entries in insertion order. Later changes to h do not
// affect the returned slice.
func (h *Header) MakeEntries() []*HeaderEntry {
	r := make([]*HeaderEntry, 0, len(h.order))
	for _, tag := range h.order {
		r = append(r, h.entries[tag])
	}
	return r
}

// sortedTags leaves out region tags, Bytes writes its own region entry.
func (h *Header) sortedTags(regionTag int) []int {
	t := make([]int, 0, len(h.order))
	for _, tag := range h.order {
		if tag == regionTag || isRegion(tag) {
			continue
		}
		t = append(t, tag)
	}
	sort.Ints(t)
	return t
}

func isRegion(tag int) bool {
	return tag >= 61 && tag <= RegionImmutable
}

func pad(w *bytes.Buffer, t Type, offset int) {
	// We need to align integer entries...
	if b, ok := boundaries[t]; ok && offset%b != 0 {
		w.Write(make([]byte, b-offset%b))
	}
}

// Bytes returns the header section: the preamble, the index entries and the store.
// The region entry for regionTag is added in front, covering the whole header.
func (h *Header) Bytes(regionTag int) ([]byte, error) {
	var err error
	var entry *HeaderEntry
	var entryBytes []byte
	w := &bytes.Buffer{}
	// Even the header has three parts: The magic, the index entries, and the store.
	// Because of alignment, we can only tell the actual size and offset after writing
	// the entries.
	entryData := &bytes.Buffer{}
	tags := h.sortedTags(regionTag)
	offsets := make([]int, len(tags))
	for ii, tag := range tags {
		e := h.entries[tag]
		pad(entryData, e.Type(), entryData.Len())
		offsets[ii] = entryData.Len()
		entryData.Write(e.Data)
	}
	entry = h.eigenHeader(regionTag, len(tags))
	entryData.Write(entry.Data)

	w.Write(headerMagic)
	// 4 count and 4 size
	// We add the pseudo entry "eigenHeader" to count.
	if err = binary.Write(w, binary.BigEndian, []int32{int32(len(tags)) + 1, int32(entryData.Len())}); err != nil {
		return nil, errors.Wrap(err, "failed to write eigenHeader")
	}
	if entryBytes, err = entry.indexBytes(entryData.Len() - 0x10); err != nil {
		return nil, err
	}
	w.Write(entryBytes)
	// Write all of the other index entries
	var idxBytes []byte
	for ii, tag := range tags {
		if idxBytes, err = h.entries[tag].indexBytes(offsets[ii]); err != nil {
			return nil, errors.Wrapf(err, "failed to write index entry %d", tag)
		}
		w.Write(idxBytes)
	}
	w.Write(entryData.Bytes())
	return w.Bytes(), nil
}

// the eigenHeader is a weird entry. Its index entry is sorted first, but its content
// is last. The content is a 16 byte index entry, which is almost the same as the index
// entry except for the offset. The offset here is ... minus the length of the index entry region.
// Which is always 0x10 * number of entries.
// I kid you not.
func (h *Header) eigenHeader(regionTag, entries int) *HeaderEntry {
	b := encodeInts([]int32{int32(regionTag), int32(TypeBlob), -int32(0x10 * (entries + 1)), int32(0x10)})
	return newEntry(regionTag, BlobValue(b))
}
