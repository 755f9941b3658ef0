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
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidConfig is returned when a compression level is outside the
	// bounds of its coding. No output is written in that case.
	ErrInvalidConfig = errors.New("invalid payload coding config")
	// ErrUnknownCoding is returned for coding names outside the registry.
	ErrUnknownCoding = errors.New("unknown payload coding")
)

// StreamError reports malformed compressed input.
type StreamError struct {
	Coding string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s payload stream: %v", e.Coding, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// PayloadFlags configures a payload encoder. A nil Level selects the default
// level of the coding.
type PayloadFlags struct {
	Level *int
}

// LevelFlags returns flags with the given level.
func LevelFlags(level int) PayloadFlags {
	return PayloadFlags{Level: &level}
}

// Resolve returns the level to use with c, failing with ErrInvalidConfig if
// the level is out of bounds.
func (f PayloadFlags) Resolve(c PayloadCoding) (int, error) {
	min, max, def := c.Levels()
	if f.Level == nil {
		return def, nil
	}
	if l := *f.Level; l < min || l > max {
		return 0, errors.Wrapf(ErrInvalidConfig, "%s level %d not in [%d, %d]", c.Name(), l, min, max)
	}
	return *f.Level, nil
}

// PayloadCoding is one payload compression. Implementations are stateless and
// safe for concurrent use; the streams they return are not.
type PayloadCoding interface {
	// Name is the value of the PayloadCompressor tag.
	Name() string
	// Levels returns the accepted level range and the default level.
	Levels() (min, max, def int)
	// NewReader decodes r. Malformed input surfaces as *StreamError.
	NewReader(r io.Reader) (io.ReadCloser, error)
	// NewWriter encodes to w. Close flushes the encoder but leaves w open.
	NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error)
	// DeclareRequirements adds the rpmlib requirement an installer must
	// satisfy to unpack this coding.
	DeclareRequirements(add func(*Relation))
}

var builtinCodings = map[string]PayloadCoding{}

func register(c PayloadCoding) {
	builtinCodings[c.Name()] = c
}

// LookupCoding returns the coding registered under name. The empty name is
// gzip, which is what rpm assumes when the PayloadCompressor tag is missing.
func LookupCoding(name string) (PayloadCoding, error) {
	if name == "" {
		name = "gzip"
	}
	if c, ok := builtinCodings[name]; ok {
		return c, nil
	}
	return nil, errors.Wrapf(ErrUnknownCoding, "%q", name)
}

// Codings returns all registered codings sorted by name.
func Codings() []PayloadCoding {
	r := make([]PayloadCoding, 0, len(builtinCodings))
	for _, c := range builtinCodings {
		r = append(r, c)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name() < r[j].Name() })
	return r
}

// PutPayloadCoding sets the payload format, compressor and flags tags for c.
func (h *Header) PutPayloadCoding(c PayloadCoding, f PayloadFlags) error {
	level, err := f.Resolve(c)
	if err != nil {
		return err
	}
	h.PutString(TagPayloadFormat, "cpio")
	h.PutString(TagPayloadCompressor, c.Name())
	h.PutString(TagPayloadFlags, strconv.Itoa(level))
	return nil
}

// Requirements collects the requirements of c into a new Relations.
func Requirements(c PayloadCoding) Relations {
	var r Relations
	c.DeclareRequirements(r.Add)
	return r
}

func rpmlib(feature, version string) *Relation {
	return &Relation{
		Name:    "rpmlib(" + feature + ")",
		Version: version,
		Sense:   SenseLess | SenseEqual | SenseRPMLib,
	}
}

// streamReader turns decoder failures into *StreamError.
type streamReader struct {
	coding string
	r      io.Reader
	closer func() error
}

func newStreamReader(coding string, r io.Reader, closer func() error) *streamReader {
	if closer == nil {
		closer = func() error { return nil }
	}
	return &streamReader{coding: coding, r: r, closer: closer}
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &StreamError{Coding: s.coding, Err: err}
	}
	return n, err
}

func (s *streamReader) Close() error {
	return s.closer()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newWriterLog(c PayloadCoding, level int) {
	log.WithFields(log.Fields{"coding": c.Name(), "level": level}).Debug("opening payload encoder")
}
