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
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var codingNames = []string{"bzip2", "gzip", "lzma", "none", "xz", "zstd"}

func testPayload() []byte {
	return []byte(strings.Repeat("rpm payload coding test data 0123456789\n", 512))
}

func encode(t *testing.T, c PayloadCoding, f PayloadFlags, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf, f)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decode(c PayloadCoding, data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func TestCodingsRegistry(t *testing.T) {
	var names []string
	for _, c := range Codings() {
		names = append(names, c.Name())
	}
	require.Equal(t, codingNames, names)

	c, err := LookupCoding("")
	require.NoError(t, err)
	require.Equal(t, "gzip", c.Name())

	_, err = LookupCoding("lz4")
	require.ErrorIs(t, err, ErrUnknownCoding)
}

func TestCodingRoundTrip(t *testing.T) {
	data := testPayload()
	for _, name := range codingNames {
		t.Run(name, func(t *testing.T) {
			c, err := LookupCoding(name)
			require.NoError(t, err)

			min, max, def := c.Levels()
			for _, f := range []PayloadFlags{{}, LevelFlags(min), LevelFlags(max), LevelFlags(def)} {
				enc := encode(t, c, f, data)
				if name != "none" {
					require.Less(t, len(enc), len(data))
				}
				got, err := decode(c, enc)
				require.NoError(t, err)
				require.Equal(t, data, got)
			}
		})
	}
}

func TestCodingLevelBounds(t *testing.T) {
	testCases := []struct {
		name     string
		min, max int
		def      int
	}{
		{"none", 0, 0, 0},
		{"gzip", 1, 9, 9},
		{"bzip2", 1, 9, 9},
		{"xz", 0, 9, 6},
		{"lzma", 0, 9, 6},
		{"zstd", 1, 22, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := LookupCoding(tc.name)
			require.NoError(t, err)
			min, max, def := c.Levels()
			require.Equal(t, tc.min, min)
			require.Equal(t, tc.max, max)
			require.Equal(t, tc.def, def)

			for _, level := range []int{tc.min - 1, tc.max + 1} {
				var buf bytes.Buffer
				w, err := c.NewWriter(&buf, LevelFlags(level))
				require.ErrorIs(t, err, ErrInvalidConfig)
				require.Nil(t, w)
				require.Zero(t, buf.Len(), "bytes written before the level was rejected")
			}

			level, err := PayloadFlags{}.Resolve(c)
			require.NoError(t, err)
			require.Equal(t, tc.def, level)
		})
	}
}

func TestCodingRequirements(t *testing.T) {
	testCases := map[string]string{
		"none":  "rpmlib(PayloadFilesHavePrefix)<=4.0-1",
		"gzip":  "rpmlib(PayloadFilesHavePrefix)<=4.0-1",
		"bzip2": "rpmlib(PayloadIsBzip2)<=3.0.5-1",
		"xz":    "rpmlib(PayloadIsXz)<=5.2-1",
		"lzma":  "rpmlib(PayloadIsLzma)<=4.4.6-1",
		"zstd":  "rpmlib(PayloadIsZstd)<=5.4.18-1",
	}
	for name, want := range testCases {
		t.Run(name, func(t *testing.T) {
			c, err := LookupCoding(name)
			require.NoError(t, err)

			var got []*Relation
			c.DeclareRequirements(func(r *Relation) { got = append(got, r) })
			require.Len(t, got, 1)
			require.Equal(t, want, got[0].String())
			require.Equal(t, SenseLess|SenseEqual|SenseRPMLib, got[0].Sense)

			// Stable across calls.
			again := Requirements(c)
			require.Len(t, again, 1)
			require.True(t, again[0].Equal(got[0]))
		})
	}
}

func TestCodingMalformedInput(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xff, 0x00, 0x13, 0x37}, 64)
	for _, name := range codingNames {
		if name == "none" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			c, err := LookupCoding(name)
			require.NoError(t, err)
			_, err = decode(c, garbage)
			require.Error(t, err)
			var se *StreamError
			require.True(t, errors.As(err, &se), "error %v is not a *StreamError", err)
			require.Equal(t, name, se.Coding)
		})
	}
}

func TestCodingTruncatedInput(t *testing.T) {
	data := testPayload()
	for _, name := range []string{"gzip", "bzip2", "xz", "zstd"} {
		t.Run(name, func(t *testing.T) {
			c, err := LookupCoding(name)
			require.NoError(t, err)
			enc := encode(t, c, PayloadFlags{}, data)
			_, err = decode(c, enc[:len(enc)/2])
			var se *StreamError
			require.True(t, errors.As(err, &se), "error %v is not a *StreamError", err)
		})
	}
}

func TestPutPayloadCoding(t *testing.T) {
	c, err := LookupCoding("xz")
	require.NoError(t, err)

	h := NewHeader()
	require.NoError(t, h.PutPayloadCoding(c, LevelFlags(2)))
	for tag, want := range map[int]string{
		TagPayloadFormat:     "cpio",
		TagPayloadCompressor: "xz",
		TagPayloadFlags:      "2",
	} {
		e, ok := h.Get(tag)
		require.True(t, ok)
		s, err := e.Value.AsString()
		require.NoError(t, err)
		require.Equal(t, want, s)
	}

	require.ErrorIs(t, NewHeader().PutPayloadCoding(c, LevelFlags(10)), ErrInvalidConfig)
}
