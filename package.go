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

// Package rpmkit reads and writes rpm headers, orders rpm versions and
// encodes rpm payloads.
package rpmkit

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cavaliercoder/go-cpio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrPayloadConsumed is returned when the payload of a Package is read twice.
var ErrPayloadConsumed = errors.New("rpm payload already read")

var leadMagic = []byte{0xed, 0xab, 0xee, 0xdb}

// LeadSize is the fixed size of the lead.
const LeadSize = 96

// Lead is the legacy preamble of an rpm file. Modern rpm ignores everything
// in it but the magic.
type Lead struct {
	Major, Minor  byte
	Type          int16
	ArchNum       int16
	Name          string
	OSNum         int16
	SignatureType int16
}

// ParseLead parses the 96 byte lead.
func ParseLead(b []byte) (*Lead, error) {
	// RPM format = 0xedabeedb
	// version 3.0 = 0x0300
	// type binary = 0x0000
	// machine archnum = 0x0001
	// name ( 66 bytes, with null termination)
	// osnum = 0x0001
	// sig type (header-style) = 0x0005
	// reserved 16 bytes of 0x00
	if len(b) < LeadSize {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "lead needs %d bytes, got %d", LeadSize, len(b))
	}
	if !bytes.Equal(b[:4], leadMagic) {
		return nil, errors.Wrapf(ErrBadMagic, "lead magic %x", b[:4])
	}
	name := b[10:76]
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	return &Lead{
		Major:         b[4],
		Minor:         b[5],
		Type:          int16(binary.BigEndian.Uint16(b[6:8])),
		ArchNum:       int16(binary.BigEndian.Uint16(b[8:10])),
		Name:          string(name),
		OSNum:         int16(binary.BigEndian.Uint16(b[76:78])),
		SignatureType: int16(binary.BigEndian.Uint16(b[78:80])),
	}, nil
}

// Package is an rpm file: the lead, the signature header, the main header and
// the still compressed payload.
type Package struct {
	Lead      *Lead
	Signature *InputHeader
	Header    *InputHeader

	payload io.Reader
}

// ReadPackage reads everything up to the payload from r. The payload is left
// unread in r and can be consumed once through Payload or ListPayload.
func ReadPackage(r io.Reader) (*Package, error) {
	br := bufio.NewReader(r)
	lb := make([]byte, LeadSize)
	if _, err := io.ReadFull(br, lb); err != nil {
		return nil, errors.Wrap(err, "failed to read lead")
	}
	lead, err := ParseLead(lb)
	if err != nil {
		return nil, err
	}

	sig, err := ReadHeader(br, LeadSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read signature header")
	}
	// Signatures are padded to 8-byte boundaries
	pad := (8 - sig.Length()%8) % 8
	if _, err := io.CopyN(io.Discard, br, pad); err != nil {
		return nil, errors.Wrap(err, "failed to read signature padding")
	}

	hdr, err := ReadHeader(br, sig.End()+pad)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	log.WithFields(log.Fields{
		"name":      lead.Name,
		"signature": sig.Start(),
		"header":    hdr.Start(),
		"payload":   hdr.End(),
	}).Debug("read rpm sections")

	return &Package{Lead: lead, Signature: sig, Header: hdr, payload: br}, nil
}

// PayloadOffset is the offset of the payload in the rpm file.
func (p *Package) PayloadOffset() int64 {
	return p.Header.End()
}

// Name returns the package name.
func (p *Package) Name() (string, error) {
	return p.Header.String(TagName)
}

// Version returns the epoch, version and release of the package.
func (p *Package) Version() (Version, error) {
	var opts []VersionOption
	if p.Header.Has(TagEpoch) {
		epoch, err := p.Header.Int(TagEpoch)
		if err != nil {
			return Version{}, err
		}
		opts = append(opts, WithEpoch(epoch))
	}
	if p.Header.Has(TagRelease) {
		release, err := p.Header.String(TagRelease)
		if err != nil {
			return Version{}, err
		}
		opts = append(opts, WithRelease(release))
	}
	version, err := p.Header.String(TagVersion)
	if err != nil {
		return Version{}, err
	}
	return NewVersion(version, opts...)
}

// Coding returns the payload coding named by the header. rpm assumes gzip
// when the header does not name one.
func (p *Package) Coding() (PayloadCoding, error) {
	var name string
	if p.Header.Has(TagPayloadCompressor) {
		var err error
		if name, err = p.Header.String(TagPayloadCompressor); err != nil {
			return nil, err
		}
	}
	return LookupCoding(name)
}

// Requirements returns the requirements recorded in the header.
func (p *Package) Requirements() (Relations, error) {
	return RelationsFromHeader(RequiresCategory, p.Header)
}

// Payload returns the decompressed payload. It can be called once.
func (p *Package) Payload() (io.ReadCloser, error) {
	if p.payload == nil {
		return nil, ErrPayloadConsumed
	}
	c, err := p.Coding()
	if err != nil {
		return nil, err
	}
	log.WithField("coding", c.Name()).Debug("decoding rpm payload")
	r := p.payload
	p.payload = nil
	return c.NewReader(r)
}

// ListPayload returns the headers of all files in the cpio payload.
func (p *Package) ListPayload() ([]*cpio.Header, error) {
	rc, err := p.Payload()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var hdrs []*cpio.Header
	cr := cpio.NewReader(rc)
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			return hdrs, nil
		}
		if err != nil {
			return hdrs, errors.Wrap(err, "failed to read cpio payload")
		}
		hdrs = append(hdrs, hdr)
	}
}
