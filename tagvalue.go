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
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrTypeMismatch is returned when a value is projected to a shape it does not have.
	ErrTypeMismatch = errors.New("rpm tag value type mismatch")
	// ErrNoValue is returned when a projection has nothing to return, such as
	// the first element of an empty string array.
	ErrNoValue = errors.New("rpm tag value is empty")
	// ErrUnrepresentable is returned when a value cannot be rendered as text.
	ErrUnrepresentable = errors.New("rpm tag value is unrepresentable")
)

// Type is the physical (wire) type of a header entry.
type Type int

// The values of the known types are their rpm type codes.
const (
	TypeNull        Type = 0
	TypeChar        Type = 1
	TypeByte        Type = 2
	TypeShort       Type = 3
	TypeInt         Type = 4
	TypeLong        Type = 5
	TypeString      Type = 6
	TypeBlob        Type = 7
	TypeStringArray Type = 8
	TypeI18NString  Type = 9
	TypeUnknown     Type = -1
	// TypeAbsent is the type of the zero TagValue. It never appears on the wire.
	TypeAbsent      Type = -2
)

// rawUnknown is the raw type code of an unknown value built without one.
const rawUnknown = math.MaxInt32

var typeNames = map[Type]string{
	TypeNull:        "NULL",
	TypeChar:        "CHAR",
	TypeByte:        "BYTE",
	TypeShort:       "SHORT",
	TypeInt:         "INT",
	TypeLong:        "LONG",
	TypeString:      "STRING",
	TypeBlob:        "BLOB",
	TypeStringArray: "STRING_ARRAY",
	TypeI18NString:  "I18N_STRING",
	TypeUnknown:     "UNKNOWN",
	TypeAbsent:      "ABSENT",
}

// TypeFromCode maps a raw rpm type code to a Type. Codes rpm does not define
// map to TypeUnknown; callers keep the raw code next to it.
func TypeFromCode(code int) Type {
	if code >= int(TypeNull) && code <= int(TypeI18NString) {
		return Type(code)
	}
	return TypeUnknown
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Char is a single CHAR element. It is a distinct type so that CHAR values
// do not collide with BYTE values.
type Char byte

// TagValue is an immutable, typed header value. The payload shape always
// agrees with the physical type:
//
//	NULL          nil
//	CHAR          Char (count 1) or []Char
//	BYTE          byte (count 1) or []byte
//	SHORT         int16 (count 1) or []int16
//	INT           int32 (count 1) or []int32
//	LONG          int64 (count 1) or []int64
//	STRING        string
//	BLOB          []byte
//	STRING_ARRAY  []string
//	I18N_STRING   []string
//	UNKNOWN       []byte
//
// The zero TagValue stands for a missing value. It has type TypeAbsent, is
// not null and equals no constructed value.
type TagValue struct {
	typ     Type
	rawType int
	value   interface{}
	set     bool
}

func newValue(typ Type, rawType int, value interface{}) TagValue {
	return TagValue{typ: typ, rawType: rawType, value: value, set: true}
}

// NullValue is the explicit null value.
func NullValue() TagValue {
	return newValue(TypeNull, int(TypeNull), nil)
}

// CharValue holds one or more CHAR elements.
func CharValue(v ...Char) TagValue {
	if len(v) == 1 {
		return newValue(TypeChar, int(TypeChar), v[0])
	}
	return newValue(TypeChar, int(TypeChar), append(make([]Char, 0, len(v)), v...))
}

// ByteValue holds one or more BYTE elements.
func ByteValue(v ...byte) TagValue {
	if len(v) == 1 {
		return newValue(TypeByte, int(TypeByte), v[0])
	}
	return newValue(TypeByte, int(TypeByte), append(make([]byte, 0, len(v)), v...))
}

// ShortValue holds one or more 16 bit integers.
func ShortValue(v ...int16) TagValue {
	if len(v) == 1 {
		return newValue(TypeShort, int(TypeShort), v[0])
	}
	return newValue(TypeShort, int(TypeShort), append(make([]int16, 0, len(v)), v...))
}

// IntValue holds one or more 32 bit integers.
func IntValue(v ...int32) TagValue {
	if len(v) == 1 {
		return newValue(TypeInt, int(TypeInt), v[0])
	}
	return newValue(TypeInt, int(TypeInt), append(make([]int32, 0, len(v)), v...))
}

// LongValue holds one or more 64 bit integers.
func LongValue(v ...int64) TagValue {
	if len(v) == 1 {
		return newValue(TypeLong, int(TypeLong), v[0])
	}
	return newValue(TypeLong, int(TypeLong), append(make([]int64, 0, len(v)), v...))
}

// StringValue holds a single string.
func StringValue(v string) TagValue {
	return newValue(TypeString, int(TypeString), v)
}

// StringArrayValue holds a list of strings.
func StringArrayValue(v ...string) TagValue {
	return newValue(TypeStringArray, int(TypeStringArray), append(make([]string, 0, len(v)), v...))
}

// I18NStringValue holds a list of localized strings, one per header locale.
func I18NStringValue(v ...string) TagValue {
	return newValue(TypeI18NString, int(TypeI18NString), append(make([]string, 0, len(v)), v...))
}

// BlobValue holds opaque bytes.
func BlobValue(v []byte) TagValue {
	return newValue(TypeBlob, int(TypeBlob), append(make([]byte, 0, len(v)), v...))
}

// UnknownValue holds the raw bytes of a value whose type code rpm does not define.
func UnknownValue(rawType int, v []byte) TagValue {
	return newValue(TypeUnknown, rawType, append(make([]byte, 0, len(v)), v...))
}

// Type returns the physical type.
func (v TagValue) Type() Type {
	if !v.set {
		return TypeAbsent
	}
	return v.typ
}

// RawType returns the type code as found on the wire.
func (v TagValue) RawType() int {
	if v.typ == TypeUnknown && v.rawType == 0 {
		return rawUnknown
	}
	return v.rawType
}

// Value returns the payload as documented on TagValue.
func (v TagValue) Value() interface{} {
	return v.value
}

// IsNull reports whether v is the explicit null value.
func (v TagValue) IsNull() bool {
	return v.set && v.typ == TypeNull
}

// IsAbsent reports whether v is the zero TagValue.
func (v TagValue) IsAbsent() bool {
	return !v.set
}

// Count returns the element count the value occupies in an index entry.
func (v TagValue) Count() int {
	switch val := v.value.(type) {
	case nil:
		return 0
	case string:
		return 1
	case Char, byte, int16, int32, int64:
		return 1
	case []Char:
		return len(val)
	case []byte:
		return len(val)
	case []int16:
		return len(val)
	case []int32:
		return len(val)
	case []int64:
		return len(val)
	case []string:
		return len(val)
	}
	return 0
}

// Equal reports whether both values have the same type and payload.
func (v TagValue) Equal(o TagValue) bool {
	return v.set == o.set && v.typ == o.typ && v.RawType() == o.RawType() && reflect.DeepEqual(v.value, o.value)
}

func (v TagValue) mismatch(want string) error {
	return errors.Wrapf(ErrTypeMismatch, "%s value is not %s", v.Type(), want)
}

// AsByteArray returns BYTE, BLOB and UNKNOWN values as bytes.
func (v TagValue) AsByteArray() ([]byte, error) {
	switch val := v.value.(type) {
	case byte:
		return []byte{val}, nil
	case []byte:
		return val, nil
	}
	return nil, v.mismatch("a byte array")
}

// AsShortArray returns SHORT values.
func (v TagValue) AsShortArray() ([]int16, error) {
	switch val := v.value.(type) {
	case int16:
		return []int16{val}, nil
	case []int16:
		return val, nil
	}
	return nil, v.mismatch("a short array")
}

// AsIntArray returns INT values.
func (v TagValue) AsIntArray() ([]int32, error) {
	switch val := v.value.(type) {
	case int32:
		return []int32{val}, nil
	case []int32:
		return val, nil
	}
	return nil, v.mismatch("an int array")
}

// AsLongArray returns LONG values.
func (v TagValue) AsLongArray() ([]int64, error) {
	switch val := v.value.(type) {
	case int64:
		return []int64{val}, nil
	case []int64:
		return val, nil
	}
	return nil, v.mismatch("a long array")
}

// AsInt returns a single INT value.
func (v TagValue) AsInt() (int32, error) {
	if val, ok := v.value.(int32); ok {
		return val, nil
	}
	return 0, v.mismatch("a single int")
}

// AsLong widens any single integer value to 64 bits.
func (v TagValue) AsLong() (int64, error) {
	switch val := v.value.(type) {
	case byte:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	}
	return 0, v.mismatch("a single integer")
}

// AsString returns a STRING value, or the first element of a string array.
// An empty array yields ErrNoValue.
func (v TagValue) AsString() (string, error) {
	switch val := v.value.(type) {
	case string:
		return val, nil
	case []string:
		if len(val) == 0 {
			return "", errors.Wrapf(ErrNoValue, "%s value has no elements", v.typ)
		}
		return val[0], nil
	}
	return "", v.mismatch("a string")
}

// AsStringArray returns STRING_ARRAY and I18N_STRING values.
func (v TagValue) AsStringArray() ([]string, error) {
	if val, ok := v.value.([]string); ok {
		return val, nil
	}
	return nil, v.mismatch("a string array")
}

// Render returns the canonical text form of the value: characters as
// themselves, single numbers in decimal, arrays as "[a, b]" and raw bytes as
// lowercase hex. NULL renders as the empty string.
func (v TagValue) Render() (string, error) {
	switch v.Type() {
	case TypeNull:
		if v.value == nil {
			return "", nil
		}
	case TypeChar:
		switch val := v.value.(type) {
		case Char:
			return string(rune(val)), nil
		case []Char:
			return join(len(val), func(i int) string { return string(rune(val[i])) }), nil
		}
	case TypeByte:
		switch val := v.value.(type) {
		case byte:
			return strconv.Itoa(int(val)), nil
		case []byte:
			return hex.EncodeToString(val), nil
		}
	case TypeShort:
		switch val := v.value.(type) {
		case int16:
			return strconv.FormatInt(int64(val), 10), nil
		case []int16:
			return join(len(val), func(i int) string { return strconv.FormatInt(int64(val[i]), 10) }), nil
		}
	case TypeInt:
		switch val := v.value.(type) {
		case int32:
			return strconv.FormatInt(int64(val), 10), nil
		case []int32:
			return join(len(val), func(i int) string { return strconv.FormatInt(int64(val[i]), 10) }), nil
		}
	case TypeLong:
		switch val := v.value.(type) {
		case int64:
			return strconv.FormatInt(val, 10), nil
		case []int64:
			return join(len(val), func(i int) string { return strconv.FormatInt(val[i], 10) }), nil
		}
	case TypeString:
		if val, ok := v.value.(string); ok {
			return val, nil
		}
	case TypeStringArray, TypeI18NString:
		if val, ok := v.value.([]string); ok {
			return join(len(val), func(i int) string { return val[i] }), nil
		}
	case TypeBlob, TypeUnknown:
		if val, ok := v.value.([]byte); ok {
			return hex.EncodeToString(val), nil
		}
	}
	return "", errors.Wrapf(ErrUnrepresentable, "%s value of kind %T", v.Type(), v.value)
}

func (v TagValue) String() string {
	s, err := v.Render()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return s
}

func join(n int, elem func(int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = elem(i)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
