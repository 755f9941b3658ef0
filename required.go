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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"

	"github.com/pkg/errors"
)

var (
	ErrMissingRequiredTag = errors.New("required rpm tag is missing")
	ErrInvalidRPMTagType  = errors.New("rpm tag is wrong type")
	ErrDigestMismatch     = errors.New("rpm header digest mismatch")
	ErrSizeMismatch       = errors.New("rpm archive size mismatch")
)

type requiredInfo struct {
	rpmType     Type
	description string
}

var requiredTags = map[string]map[int]*requiredInfo{
	"signatures": {
		SigSHA256: {TypeString, "signature sha256"},
		SigSize:   {TypeInt, "signature size"},
	},
	"header": {
		TagName:              {TypeString, "rpm name"},
		TagVersion:           {TypeString, "rpm version"},
		TagRelease:           {TypeString, "rpm release"},
		TagOS:                {TypeString, "rpm os"},
		TagArch:              {TypeString, "rpm architecture"},
		TagPayloadFormat:     {TypeString, "rpm payload format"},
		TagPayloadCompressor: {TypeString, "rpm payload compressor"},
		TagPayloadFlags:      {TypeString, "rpm payload flags"},
	},
}

// VerifyRequiredTags checks that both headers carry the tags rpm needs, with
// the right types. When the header records the archive size it has to agree
// with the signature. The installed size (TagSize) is a different number and
// is not compared.
func (p *Package) VerifyRequiredTags() error {
	if err := verifySection(p.Signature, requiredTags["signatures"]); err != nil {
		return errors.Wrap(err, "signature")
	}
	if err := verifySection(p.Header, requiredTags["header"]); err != nil {
		return errors.Wrap(err, "header")
	}
	if !p.Header.Has(TagArchiveSize) && !p.Header.Has(TagLongArchiveSize) {
		return nil
	}
	want, err := p.ArchiveSize()
	if err != nil {
		return err
	}
	got, err := p.Header.Size(TagArchiveSize, TagLongArchiveSize)
	if err != nil {
		return err
	}
	if got != want {
		return errors.Wrapf(ErrSizeMismatch, "header archive size %d, signature says %d", got, want)
	}
	return nil
}

// ArchiveSize returns the uncompressed payload size recorded in the signature.
func (p *Package) ArchiveSize() (int64, error) {
	if !p.Signature.Has(SigPayloadSize) && !p.Signature.Has(SigLongArchive) {
		return 0, errors.Wrap(ErrMissingRequiredTag, "signature payload size")
	}
	return p.Signature.Size(SigPayloadSize, SigLongArchive)
}

// VerifyPayload decodes the whole payload and compares its length with the
// archive size in the signature. It consumes the payload.
func (p *Package) VerifyPayload() error {
	want, err := p.ArchiveSize()
	if err != nil {
		return err
	}
	rc, err := p.Payload()
	if err != nil {
		return err
	}
	defer rc.Close()
	got, err := io.Copy(io.Discard, rc)
	if err != nil {
		return errors.Wrap(err, "failed to decode payload")
	}
	if got != want {
		return errors.Wrapf(ErrSizeMismatch, "decoded %d payload bytes, signature says %d", got, want)
	}
	return nil
}

// VerifyDigest compares the SHA256 of the raw header section with the one
// recorded in the signature.
func (p *Package) VerifyDigest() error {
	want, err := p.Signature.String(SigSHA256)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(p.Header.Raw())
	if got := hex.EncodeToString(sum[:]); got != want {
		return errors.Wrapf(ErrDigestMismatch, "got %s, signature says %s", got, want)
	}
	return nil
}

// Verify checks the required tags and the header digest. It leaves the
// payload unread, see VerifyPayload.
func (p *Package) Verify() error {
	if err := p.VerifyRequiredTags(); err != nil {
		return err
	}
	return p.VerifyDigest()
}

func verifySection(h *InputHeader, required map[int]*requiredInfo) error {
	tags := make([]int, 0, len(required))
	for tag := range required {
		tags = append(tags, tag)
	}
	// Deterministic error reporting.
	sort.Ints(tags)
	for _, tag := range tags {
		info := required[tag]
		entry, ok := h.Entry(tag)
		if !ok {
			return errors.Wrap(ErrMissingRequiredTag, info.description)
		}
		if err := verifyEntry(entry, info); err != nil {
			return err
		}
	}
	return nil
}

func verifyEntry(entry *HeaderValue, info *requiredInfo) error {
	if entry.Type() != info.rpmType {
		return errors.Wrapf(ErrInvalidRPMTagType, "%s got: %s expected: %s", info.description, entry.Type(), info.rpmType)
	}
	v, err := entry.Value()
	if err != nil {
		return errors.Wrap(err, info.description)
	}
	if s, ok := v.Value().(string); ok && s == "" {
		return errors.Wrapf(ErrMissingRequiredTag, "%s cannot be empty", info.description)
	}
	return nil
}
