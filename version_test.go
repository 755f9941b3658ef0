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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestCompareVersions(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.1", -1},
		{"1.0~rc1", "1.0", -1},
		{"1.0^", "1.0", 1},
		{"2:1.0", "1:9.9", 1},
		{"1.0-1", "1.0-2", -1},
		{"10", "9", 1},
		{"1.0a", "1.0.1", -1},
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", -1},
		{"1.01", "1.1", 0},
		{"1.0~rc1", "1.0~rc2", -1},
		{"1.0~~", "1.0~", -1},
		{"1.0^git1", "1.0", 1},
		{"1.0^git1", "1.0.1", -1},
		{"1.0^git1", "1.0^git2", -1},
		{"1.0~rc1^git1", "1.0~rc1", 1},
		{"a", "b", -1},
		{"abc", "ab", 1},
		{"1.0", "1.0a", -1},
		{"0:1.0", "1.0", 1},
		{"1.0-1", "1.0", 1},
		{"1.0-", "1.0", 1},
		{"", "", 0},
		{"", "0", -1},
	}
	for _, tc := range testCases {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			got, err := CompareVersions(tc.a, tc.b)
			if err != nil {
				t.Fatalf("CompareVersions() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
			rev, err := CompareVersions(tc.b, tc.a)
			if err != nil {
				t.Fatalf("CompareVersions() error: %v", err)
			}
			if rev != -tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.b, tc.a, rev, -tc.want)
			}
		})
	}
}

func TestVercmpSeparators(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1_0", 0},
		{"1+0", "1.0", 0},
		{"1.0.", "1.0", 0},
		{"fc4", "fc.4", 0},
		{"2.0.1a", "2.0.1", 1},
		{"5.5p1", "5.5p10", -1},
		{"xyz10", "xyz10.1", -1},
		{"1.0~rc1", "1.0rc1", -1},
	}
	for _, tc := range testCases {
		if got := Vercmp(tc.a, tc.b); got != tc.want {
			t.Errorf("Vercmp(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("3:1.2.3-4.el9")
	if err != nil {
		t.Fatalf("ParseVersion() error: %v", err)
	}
	epoch, ok := v.Epoch()
	if !ok || epoch != 3 {
		t.Errorf("Epoch() = %d, %v", epoch, ok)
	}
	if v.Upstream() != "1.2.3" {
		t.Errorf("Upstream() = %q", v.Upstream())
	}
	if r, ok := v.Release(); !ok || r != "4.el9" {
		t.Errorf("Release() = %q, %v", r, ok)
	}
	if v.String() != "3:1.2.3-4.el9" {
		t.Errorf("String() = %q", v.String())
	}

	v, err = ParseVersion("1.0")
	if err != nil {
		t.Fatalf("ParseVersion() error: %v", err)
	}
	if _, ok := v.Epoch(); ok {
		t.Error("Epoch() present without an epoch")
	}
	if _, ok := v.Release(); ok {
		t.Error("Release() present without a release")
	}

	v, err = ParseVersion("")
	if err != nil || v != nil {
		t.Errorf("ParseVersion(\"\") = %v, %v; want no version", v, err)
	}
}

func TestParseVersionErrors(t *testing.T) {
	testCases := []struct {
		in   string
		want error
	}{
		{"1.0@2", ErrIllegalChar},
		{"1..0", ErrIllegalSequence},
		{"1.0-1..2", ErrIllegalSequence},
		{"1.0-a/b", ErrIllegalChar},
		{"x:1.0", ErrIllegalChar},
		{":1.0", ErrBadEpoch},
		{"99999999999:1.0", ErrBadEpoch},
		{"1:", ErrEmptyVersion},
		{"-1", ErrEmptyVersion},
		{"1.0 ", ErrIllegalChar},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			if _, err := ParseVersion(tc.in); !errors.Is(err, tc.want) {
				t.Errorf("ParseVersion(%q) error = %v, want %v", tc.in, err, tc.want)
			}
		})
	}
}

func TestNewVersion(t *testing.T) {
	v, err := NewVersion("1.0", WithEpoch(0), WithRelease(""))
	if err != nil {
		t.Fatalf("NewVersion() error: %v", err)
	}
	if v.String() != "0:1.0" {
		t.Errorf("String() = %q, want %q", v.String(), "0:1.0")
	}
	if _, err := NewVersion("1.0", WithEpoch(-1)); !errors.Is(err, ErrBadEpoch) {
		t.Errorf("NewVersion() negative epoch error = %v", err)
	}
	if _, err := NewVersion(""); !errors.Is(err, ErrEmptyVersion) {
		t.Errorf("NewVersion(\"\") error = %v", err)
	}
	if _, err := NewVersion("1.0", WithRelease("a@b")); !errors.Is(err, ErrIllegalChar) {
		t.Errorf("NewVersion() bad release error = %v", err)
	}

	a, _ := NewVersion("1.0", WithRelease("1"))
	b, _ := NewVersion("1.0", WithRelease("1"))
	c, _ := NewVersion("1.0")
	if !a.Equal(b) || a.Equal(c) {
		t.Error("Equal() disagrees with the parts")
	}
	if a.Compare(c) != 1 || c.Compare(a) != -1 {
		t.Error("a missing release should sort before a present one")
	}
}

// versionCorpus mixes tildes, carets, epochs, releases and digit runs with
// leading zeros.
var versionCorpus = []string{
	"0", "00", "1", "01", "1.0", "1.00", "1.0.0", "1.0.1", "1.1", "1.10", "1.9",
	"1.0~rc1", "1.0~rc2", "1.0~~", "1.0~", "1.0^", "1.0^git1", "1.0^git2", "1.0~rc1^1",
	"1.0a", "1.0b", "1.a", "a", "b", "aa", "1a1", "1.0-1", "1.0-2", "1.0-1.fc39",
	"1.0-1~beta", "1:1.0", "1:0.1", "2:0", "0:1.0", "10", "9", "1_0", "2.0.1a",
	"5.5p1", "5.5p10", "xyz10", "xyz10.1",
}

func TestCompareOrder(t *testing.T) {
	var vs []Version
	for _, s := range versionCorpus {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatalf("ParseVersion(%q) error: %v", s, err)
		}
		vs = append(vs, *v)
	}
	for _, a := range vs {
		if c := a.Compare(a); c != 0 {
			t.Errorf("Compare(%s, %s) = %d", a, a, c)
		}
		for j, b := range vs {
			ab, ba := a.Compare(b), b.Compare(a)
			if ab != -ba {
				t.Errorf("Compare(%s, %s) = %d but Compare(%s, %s) = %d", a, b, ab, b, a, ba)
			}
			for _, c := range vs[:j] {
				bc, ac := b.Compare(c), a.Compare(c)
				if ab <= 0 && bc <= 0 && ac > 0 {
					t.Errorf("%s <= %s <= %s but Compare(%s, %s) = %d", a, b, c, a, c, ac)
				}
				if ab == 0 && bc == 0 && ac != 0 {
					t.Errorf("%s == %s == %s but Compare(%s, %s) = %d", a, b, c, a, c, ac)
				}
			}
		}
	}
}

func TestVersionStringRoundTrip(t *testing.T) {
	for _, s := range versionCorpus {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatalf("ParseVersion(%q) error: %v", s, err)
		}
		back, err := ParseVersion(v.String())
		if err != nil {
			t.Fatalf("ParseVersion(%q) error: %v", v.String(), err)
		}
		if d := cmp.Diff(v.String(), back.String()); d != "" {
			t.Errorf("String() round trip differs (want->got):\n%v", d)
		}
		if back.Compare(*v) != 0 {
			t.Errorf("%q does not compare equal to its round trip", s)
		}
	}
}
