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
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

func init() {
	register(noneCoding{})
	register(gzipCoding{})
	register(bzip2Coding{})
	register(xzCoding{})
	register(lzmaCoding{})
	register(zstdCoding{})
}

// Every coding rpm knows implies payload paths starting with "./".
func prefixRequirement(add func(*Relation)) {
	add(rpmlib("PayloadFilesHavePrefix", "4.0-1"))
}

type noneCoding struct{}

func (noneCoding) Name() string                { return "none" }
func (noneCoding) Levels() (min, max, def int) { return 0, 0, 0 }

func (c noneCoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	return newStreamReader(c.Name(), r, nil), nil
}

func (c noneCoding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	if _, err := f.Resolve(c); err != nil {
		return nil, err
	}
	return nopWriteCloser{w}, nil
}

func (noneCoding) DeclareRequirements(add func(*Relation)) {
	prefixRequirement(add)
}

type gzipCoding struct{}

func (gzipCoding) Name() string                { return "gzip" }
func (gzipCoding) Levels() (min, max, def int) { return 1, 9, 9 }

func (c gzipCoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &StreamError{Coding: c.Name(), Err: err}
	}
	return newStreamReader(c.Name(), zr, zr.Close), nil
}

func (c gzipCoding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	level, err := f.Resolve(c)
	if err != nil {
		return nil, err
	}
	newWriterLog(c, level)
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip writer")
	}
	return zw, nil
}

func (gzipCoding) DeclareRequirements(add func(*Relation)) {
	prefixRequirement(add)
}

// bzip2 levels are block sizes in units of 100kB.
type bzip2Coding struct{}

func (bzip2Coding) Name() string                { return "bzip2" }
func (bzip2Coding) Levels() (min, max, def int) { return 1, 9, 9 }

func (c bzip2Coding) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, &StreamError{Coding: c.Name(), Err: err}
	}
	return newStreamReader(c.Name(), zr, zr.Close), nil
}

func (c bzip2Coding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	level, err := f.Resolve(c)
	if err != nil {
		return nil, err
	}
	newWriterLog(c, level)
	zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bzip2 writer")
	}
	return zw, nil
}

func (bzip2Coding) DeclareRequirements(add func(*Relation)) {
	add(rpmlib("PayloadIsBzip2", "3.0.5-1"))
}

// presetDictCap maps xz-utils presets 0 to 9 to their dictionary sizes.
var presetDictCap = [...]int{
	256 << 10,
	1 << 20,
	2 << 20,
	4 << 20,
	4 << 20,
	8 << 20,
	8 << 20,
	16 << 20,
	32 << 20,
	64 << 20,
}

type xzCoding struct{}

func (xzCoding) Name() string                { return "xz" }
func (xzCoding) Levels() (min, max, def int) { return 0, 9, 6 }

func (c xzCoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, &StreamError{Coding: c.Name(), Err: err}
	}
	return newStreamReader(c.Name(), zr, nil), nil
}

func (c xzCoding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	level, err := f.Resolve(c)
	if err != nil {
		return nil, err
	}
	newWriterLog(c, level)
	zw, err := xz.WriterConfig{DictCap: presetDictCap[level]}.NewWriter(w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create xz writer")
	}
	return zw, nil
}

func (xzCoding) DeclareRequirements(add func(*Relation)) {
	add(rpmlib("PayloadIsXz", "5.2-1"))
}

type lzmaCoding struct{}

func (lzmaCoding) Name() string                { return "lzma" }
func (lzmaCoding) Levels() (min, max, def int) { return 0, 9, 6 }

func (c lzmaCoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := lzma.NewReader(r)
	if err != nil {
		return nil, &StreamError{Coding: c.Name(), Err: err}
	}
	return newStreamReader(c.Name(), zr, nil), nil
}

func (c lzmaCoding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	level, err := f.Resolve(c)
	if err != nil {
		return nil, err
	}
	newWriterLog(c, level)
	zw, err := lzma.WriterConfig{DictCap: presetDictCap[level]}.NewWriter(w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lzma writer")
	}
	return zw, nil
}

func (lzmaCoding) DeclareRequirements(add func(*Relation)) {
	add(rpmlib("PayloadIsLzma", "4.4.6-1"))
}

type zstdCoding struct{}

func (zstdCoding) Name() string                { return "zstd" }
func (zstdCoding) Levels() (min, max, def int) { return 1, 22, 3 }

func (c zstdCoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, &StreamError{Coding: c.Name(), Err: err}
	}
	rc := zr.IOReadCloser()
	return newStreamReader(c.Name(), rc, rc.Close), nil
}

func (c zstdCoding) NewWriter(w io.Writer, f PayloadFlags) (io.WriteCloser, error) {
	level, err := f.Resolve(c)
	if err != nil {
		return nil, err
	}
	newWriterLog(c, level)
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd writer")
	}
	return zw, nil
}

func (zstdCoding) DeclareRequirements(add func(*Relation)) {
	add(rpmlib("PayloadIsZstd", "5.4.18-1"))
}
