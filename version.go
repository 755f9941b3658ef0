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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrIllegalChar is returned for characters rpm does not allow in a version field.
	ErrIllegalChar = errors.New("illegal character in version")
	// ErrIllegalSequence is returned for versions containing "..".
	ErrIllegalSequence = errors.New("illegal sequence in version")
	// ErrEmptyVersion is returned when the version part is missing.
	ErrEmptyVersion = errors.New("empty version")
	// ErrBadEpoch is returned for epochs that are not a 32 bit decimal number.
	ErrBadEpoch = errors.New("bad epoch")
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

// isVerRel matches the characters allowed in a version or release.
func isVerRel(c byte) bool { return isAlnum(c) || strings.IndexByte("._+~^", c) >= 0 }

// isEVR additionally allows the epoch and release separators.
func isEVR(c byte) bool { return isVerRel(c) || c == '-' || c == ':' }

func checkChars(field string, allowed func(byte) bool) error {
	for i := 0; i < len(field); i++ {
		if c := field[i]; !allowed(c) {
			return errors.Wrapf(ErrIllegalChar, "'%c' (0x%x) at position %d in %q", c, c, i, field)
		}
	}
	if strings.Contains(field, "..") {
		return errors.Wrapf(ErrIllegalSequence, "'..' in %q", field)
	}
	return nil
}

// Version is an rpm epoch, version and release. Epoch and release are optional,
// and an absent one is different from a zero or empty one.
type Version struct {
	epoch      int32
	hasEpoch   bool
	version    string
	release    string
	hasRelease bool
}

// VersionOption sets an optional part of a Version.
type VersionOption func(*Version)

// WithEpoch sets the epoch.
func WithEpoch(epoch int32) VersionOption {
	return func(v *Version) {
		v.epoch = epoch
		v.hasEpoch = true
	}
}

// WithRelease sets the release.
func WithRelease(release string) VersionOption {
	return func(v *Version) {
		v.release = release
		v.hasRelease = true
	}
}

// NewVersion validates and returns a version.
func NewVersion(version string, opts ...VersionOption) (Version, error) {
	v := Version{version: version}
	for _, o := range opts {
		o(&v)
	}
	if v.version == "" {
		return Version{}, ErrEmptyVersion
	}
	if v.epoch < 0 {
		return Version{}, errors.Wrapf(ErrBadEpoch, "%d is negative", v.epoch)
	}
	if err := checkChars(v.version, isVerRel); err != nil {
		return Version{}, errors.Wrap(err, "version")
	}
	if v.hasRelease {
		if err := checkChars(v.release, isVerRel); err != nil {
			return Version{}, errors.Wrap(err, "release")
		}
	}
	return v, nil
}

// ParseVersion parses "[epoch:]version[-release]". An empty string is no
// version and returns nil without an error.
func ParseVersion(s string) (*Version, error) {
	if s == "" {
		return nil, nil
	}
	if err := checkChars(s, isEVR); err != nil {
		return nil, err
	}

	var opts []VersionOption
	rest := s
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		epoch := rest[:i]
		if epoch == "" {
			return nil, errors.Wrapf(ErrBadEpoch, "empty epoch in %q", s)
		}
		if err := checkChars(epoch, isDigit); err != nil {
			return nil, errors.Wrap(err, "epoch")
		}
		e, err := strconv.ParseInt(epoch, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrBadEpoch, "%q: %v", epoch, err)
		}
		opts = append(opts, WithEpoch(int32(e)))
		rest = rest[i+1:]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		opts = append(opts, WithRelease(rest[i+1:]))
		rest = rest[:i]
	}

	v, err := NewVersion(rest, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %q", s)
	}
	return &v, nil
}

// Epoch returns the epoch and whether it is set.
func (v Version) Epoch() (int32, bool) {
	return v.epoch, v.hasEpoch
}

// Upstream returns the version part.
func (v Version) Upstream() string {
	return v.version
}

// Release returns the release and whether it is set.
func (v Version) Release() (string, bool) {
	return v.release, v.hasRelease
}

// String returns "[epoch:]version[-release]". An empty release is left out.
func (v Version) String() string {
	var sb strings.Builder
	if v.hasEpoch {
		sb.WriteString(strconv.FormatInt(int64(v.epoch), 10))
		sb.WriteByte(':')
	}
	sb.WriteString(v.version)
	if v.hasRelease && v.release != "" {
		sb.WriteByte('-')
		sb.WriteString(v.release)
	}
	return sb.String()
}

// Equal reports whether all parts, and their presence, are identical.
func (v Version) Equal(o Version) bool {
	return v == o
}

// Compare orders versions the way rpm does: by epoch, then version, then
// release. A missing epoch or release sorts before a present one.
func (v Version) Compare(o Version) int {
	switch {
	case v.hasEpoch && !o.hasEpoch:
		return 1
	case !v.hasEpoch && o.hasEpoch:
		return -1
	case v.epoch > o.epoch:
		return 1
	case v.epoch < o.epoch:
		return -1
	}

	if c := Vercmp(v.version, o.version); c != 0 {
		return c
	}

	switch {
	case v.hasRelease && !o.hasRelease:
		return 1
	case !v.hasRelease && o.hasRelease:
		return -1
	case v.hasRelease:
		return Vercmp(v.release, o.release)
	}
	return 0
}

// CompareVersions parses and compares two "[epoch:]version[-release]" strings.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	switch {
	case va == nil && vb == nil:
		return 0, nil
	case va == nil:
		return -1, nil
	case vb == nil:
		return 1, nil
	}
	return va.Compare(*vb), nil
}

// segmentScanner walks the segments of one version string. Separators
// (anything but letters, digits, '~' and '^') are skipped.
type segmentScanner struct {
	s   string
	pos int
}

func (sc *segmentScanner) skip() {
	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]
		if isAlnum(c) || c == '~' || c == '^' {
			return
		}
		sc.pos++
	}
}

func (sc *segmentScanner) peek() (byte, bool) {
	sc.skip()
	if sc.pos >= len(sc.s) {
		return 0, false
	}
	return sc.s[sc.pos], true
}

func (sc *segmentScanner) hasNext() bool {
	_, ok := sc.peek()
	return ok
}

func (sc *segmentScanner) hasNextTilde() bool {
	c, ok := sc.peek()
	return ok && c == '~'
}

func (sc *segmentScanner) hasNextCaret() bool {
	c, ok := sc.peek()
	return ok && c == '^'
}

func (sc *segmentScanner) hasNextAlpha() bool {
	c, ok := sc.peek()
	return ok && isAlpha(c)
}

func (sc *segmentScanner) hasNextDigit() bool {
	c, ok := sc.peek()
	return ok && isDigit(c)
}

// next returns the next segment: a single '~' or '^', a run of letters, or a
// run of digits without its leading zeros.
func (sc *segmentScanner) next() string {
	c, ok := sc.peek()
	if !ok {
		return ""
	}
	start := sc.pos
	switch {
	case c == '~' || c == '^':
		sc.pos++
		return sc.s[start:sc.pos]
	case isDigit(c):
		for sc.pos < len(sc.s) && isDigit(sc.s[sc.pos]) {
			sc.pos++
		}
		return strings.TrimLeft(sc.s[start:sc.pos], "0")
	default:
		for sc.pos < len(sc.s) && isAlpha(sc.s[sc.pos]) {
			sc.pos++
		}
		return sc.s[start:sc.pos]
	}
}

// Vercmp compares two version or release strings segment by segment and
// returns -1, 0 or 1. '~' sorts before anything, even the end of the string;
// '^' sorts after the end of the string but before anything else; digit runs
// sort after letter runs and compare numerically.
func Vercmp(a, b string) int {
	if a == b {
		return 0
	}

	one := &segmentScanner{s: a}
	two := &segmentScanner{s: b}

	for one.hasNext() || two.hasNext() {
		if one.hasNextTilde() || two.hasNextTilde() {
			if !one.hasNextTilde() {
				return 1
			}
			if !two.hasNextTilde() {
				return -1
			}
			one.next()
			two.next()
			continue
		}

		if one.hasNextCaret() || two.hasNextCaret() {
			if !one.hasNext() {
				return -1
			}
			if !two.hasNext() {
				return 1
			}
			if !one.hasNextCaret() {
				return 1
			}
			if !two.hasNextCaret() {
				return -1
			}
			one.next()
			two.next()
			continue
		}

		if one.hasNextAlpha() && two.hasNextAlpha() {
			if c := strings.Compare(one.next(), two.next()); c != 0 {
				return c
			}
			continue
		}

		digit1, digit2 := one.hasNextDigit(), two.hasNextDigit()
		switch {
		case digit1 && digit2:
			s1, s2 := one.next(), two.next()
			if len(s1) != len(s2) {
				if len(s1) > len(s2) {
					return 1
				}
				return -1
			}
			if c := strings.Compare(s1, s2); c != 0 {
				return c
			}
		case digit1:
			return 1
		case digit2:
			return -1
		case one.hasNext():
			return 1
		default:
			return -1
		}
	}

	return 0
}
