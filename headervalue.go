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
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrCorruptEntry is returned when an index entry does not fit its store.
var ErrCorruptEntry = errors.New("corrupt header entry")

// HeaderValue is one index entry of a parsed header. Its value is decoded from
// the store on first access; the decoded value is cached and safe to read from
// multiple goroutines.
type HeaderValue struct {
	tag     int
	rawType int
	typ     Type
	index   int
	count   int
	store   []byte

	once  sync.Once
	value TagValue
	err   error
}

// NewHeaderValue describes count elements of the given raw type at byte
// offset index of store. store is only read.
func NewHeaderValue(tag, rawType, index, count int, store []byte) *HeaderValue {
	return &HeaderValue{
		tag:     tag,
		rawType: rawType,
		typ:     TypeFromCode(rawType),
		index:   index,
		count:   count,
		store:   store,
	}
}

func (v *HeaderValue) Tag() int     { return v.tag }
func (v *HeaderValue) Type() Type   { return v.typ }
func (v *HeaderValue) RawType() int { return v.rawType }
func (v *HeaderValue) Index() int   { return v.index }
func (v *HeaderValue) Count() int   { return v.count }

// Value decodes the entry once and returns the cached result afterwards.
func (v *HeaderValue) Value() (TagValue, error) {
	v.once.Do(func() {
		v.value, v.err = DecodeValue(v.store, v.rawType, v.index, v.count)
		if v.err != nil {
			v.err = errors.Wrapf(v.err, "tag %d", v.tag)
		}
	})
	return v.value, v.err
}

func (v *HeaderValue) String() string {
	val, err := v.Value()
	if err != nil {
		return fmt.Sprintf("[%d = <%v> - %s # %d]", v.tag, err, v.typ, v.count)
	}
	return fmt.Sprintf("[%d = %s - %s # %d]", v.tag, val, v.typ, v.count)
}

// DecodeValue decodes count elements of rawType found at offset in store. It
// reads at explicit offsets only, so concurrent decodes of one store are fine.
func DecodeValue(store []byte, rawType, offset, count int) (TagValue, error) {
	if offset < 0 || count < 0 || offset > len(store) {
		return TagValue{}, errors.Wrapf(ErrCorruptEntry, "offset %d count %d outside store of %d bytes", offset, count, len(store))
	}
	switch typ := TypeFromCode(rawType); typ {
	case TypeNull:
		return NullValue(), nil
	case TypeChar:
		b, err := fixed(store, offset, count, 1)
		if err != nil {
			return TagValue{}, err
		}
		c := make([]Char, count)
		for i := range c {
			c[i] = Char(b[i])
		}
		return CharValue(c...), nil
	case TypeByte:
		b, err := fixed(store, offset, count, 1)
		if err != nil {
			return TagValue{}, err
		}
		return ByteValue(b...), nil
	case TypeShort:
		b, err := fixed(store, offset, count, 2)
		if err != nil {
			return TagValue{}, err
		}
		if count == 1 {
			return ShortValue(int16(binary.BigEndian.Uint16(b))), nil
		}
		r := make([]int16, count)
		for i := range r {
			r[i] = int16(binary.BigEndian.Uint16(b[i*2:]))
		}
		return ShortValue(r...), nil
	case TypeInt:
		b, err := fixed(store, offset, count, 4)
		if err != nil {
			return TagValue{}, err
		}
		if count == 1 {
			return IntValue(int32(binary.BigEndian.Uint32(b))), nil
		}
		r := make([]int32, count)
		for i := range r {
			r[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}
		return IntValue(r...), nil
	case TypeLong:
		b, err := fixed(store, offset, count, 8)
		if err != nil {
			return TagValue{}, err
		}
		if count == 1 {
			return LongValue(int64(binary.BigEndian.Uint64(b))), nil
		}
		r := make([]int64, count)
		for i := range r {
			r[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}
		return LongValue(r...), nil
	case TypeString:
		// only one allowed
		s, _, err := cString(store, offset)
		if err != nil {
			return TagValue{}, err
		}
		return StringValue(s), nil
	case TypeStringArray, TypeI18NString:
		r := make([]string, count)
		pos := offset
		for i := range r {
			s, next, err := cString(store, pos)
			if err != nil {
				return TagValue{}, errors.Wrapf(err, "element %d", i)
			}
			r[i] = s
			pos = next
		}
		if typ == TypeI18NString {
			return I18NStringValue(r...), nil
		}
		return StringArrayValue(r...), nil
	case TypeBlob:
		b, err := fixed(store, offset, count, 1)
		if err != nil {
			return TagValue{}, err
		}
		return BlobValue(b), nil
	default:
		b, err := fixed(store, offset, count, 1)
		if err != nil {
			return TagValue{}, err
		}
		return UnknownValue(rawType, b), nil
	}
}

func fixed(store []byte, offset, count, size int) ([]byte, error) {
	end := offset + count*size
	if count > len(store) || end > len(store) {
		return nil, errors.Wrapf(ErrCorruptEntry, "%d elements of %d bytes at %d exceed store of %d bytes", count, size, offset, len(store))
	}
	return store[offset:end], nil
}

// cString returns the NUL terminated string at offset and the offset after its terminator.
func cString(store []byte, offset int) (string, int, error) {
	if offset >= len(store) {
		return "", 0, errors.Wrapf(ErrCorruptEntry, "string at %d outside store of %d bytes", offset, len(store))
	}
	n := bytes.IndexByte(store[offset:], 0)
	if n < 0 {
		return "", 0, errors.Wrapf(ErrCorruptEntry, "null byte missing after %d", offset)
	}
	return string(store[offset : offset+n]), offset + n + 1, nil
}
