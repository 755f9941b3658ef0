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

package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cavaliercoder/go-cpio"
	"github.com/google/rpmkit"
	"github.com/stretchr/testify/require"
)

// writeRPM writes a small zstd rpm holding one file and returns its path.
func writeRPM(t *testing.T, version string) string {
	t.Helper()
	raw := &bytes.Buffer{}
	cw := cpio.NewWriter(raw)
	body := "hello\n"
	require.NoError(t, cw.WriteHeader(&cpio.Header{Name: "./etc/hello.conf", Mode: cpio.FileMode(0100644), Size: int64(len(body))}))
	_, err := cw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, cw.Close())

	c, err := rpmkit.LookupCoding("zstd")
	require.NoError(t, err)
	payload := &bytes.Buffer{}
	zw, err := c.NewWriter(payload, rpmkit.PayloadFlags{})
	require.NoError(t, err)
	_, err = zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	h := rpmkit.NewHeader()
	h.PutString(rpmkit.TagName, "hello")
	h.PutString(rpmkit.TagVersion, version)
	h.PutString(rpmkit.TagRelease, "1")
	h.PutString(rpmkit.TagOS, "linux")
	h.PutString(rpmkit.TagArch, "noarch")
	h.PutString(rpmkit.TagSummary, strings.Repeat("un résumé très long ", 10))
	h.PutSize(int64(len(body)), rpmkit.TagSize, rpmkit.TagLongSize)
	h.PutSize(int64(raw.Len()), rpmkit.TagArchiveSize, rpmkit.TagLongArchiveSize)
	require.NoError(t, h.PutPayloadCoding(c, rpmkit.PayloadFlags{}))
	requires := rpmkit.Requirements(c)
	require.NoError(t, requires.AddToHeader(rpmkit.RequiresCategory, h))
	hb, err := h.Bytes(rpmkit.RegionImmutable)
	require.NoError(t, err)

	s := rpmkit.NewHeader()
	s.PutInt(rpmkit.SigSize, int32(len(hb)+payload.Len()))
	s.PutString(rpmkit.SigSHA256, fmt.Sprintf("%x", sha256.Sum256(hb)))
	s.PutSize(int64(raw.Len()), rpmkit.SigPayloadSize, rpmkit.SigLongArchive)
	sb, err := s.Bytes(rpmkit.RegionSignatures)
	require.NoError(t, err)

	lead := make([]byte, rpmkit.LeadSize)
	copy(lead, []byte{0xed, 0xab, 0xee, 0xdb, 0x03, 0x00})
	copy(lead[10:], "hello-"+version+"-1")

	out := &bytes.Buffer{}
	out.Write(lead)
	out.Write(sb)
	out.Write(make([]byte, (8-len(sb)%8)%8))
	out.Write(hb)
	out.Write(payload.Bytes())

	path := filepath.Join(t.TempDir(), "hello-"+version+"-1.noarch.rpm")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestDumpCmd(t *testing.T) {
	path := writeRPM(t, "1.2")
	out, err := run(t, nil, "dump", path)
	require.NoError(t, err)
	require.Contains(t, out, `lead: "hello-1.2-1" version 3.0`)
	require.Contains(t, out, "PAYLOADCOMPRESSOR")
	require.Contains(t, out, "zstd")
	require.Contains(t, out, "...")
	require.True(t, utf8.ValidString(out), "dump split a multi-byte character")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "SUMMARY") {
			require.Contains(t, line, "un résumé très long")
		}
	}
}

func TestVerifyCmd(t *testing.T) {
	a, b := writeRPM(t, "1.2"), writeRPM(t, "1.3")
	out, err := run(t, nil, "verify", a, b)
	require.NoError(t, err)
	require.Equal(t, a+": OK\n"+b+": OK\n", out)

	bad := filepath.Join(t.TempDir(), "bad.rpm")
	require.NoError(t, os.WriteFile(bad, []byte("not an rpm"), 0o644))
	_, err = run(t, nil, "verify", bad)
	require.Error(t, err)
}

func TestLsCmd(t *testing.T) {
	out, err := run(t, nil, "ls", writeRPM(t, "1.2"))
	require.NoError(t, err)
	require.Contains(t, out, "./etc/hello.conf")
	require.Contains(t, out, "6 B")
}

func TestVerifyRequires(t *testing.T) {
	path := writeRPM(t, "1.2")
	out, err := run(t, nil, "verify", "--requires", "rpmlib(PayloadIsZstd) <= 5.4.18-1", path)
	require.NoError(t, err)
	require.Equal(t, path+": OK\n", out)

	_, err = run(t, nil, "verify", "--requires", "rpmlib(PayloadIsZstd) <= 5.4.18-1", "--requires", "bash >= 5", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing requirement bash>=5")
}
