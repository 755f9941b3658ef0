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
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/rpmkit"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// maxValueLen bounds the width of values printed by dump, in terminal cells.
const maxValueLen = 72

func openPackage(path string) (*rpmkit.Package, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := rpmkit.ReadPackage(f)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return p, f, nil
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the lead, the signature and the header of an rpm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, f, err := openPackage(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return dump(cmd.OutOrStdout(), p)
		},
	}
}

func dump(w io.Writer, p *rpmkit.Package) error {
	fmt.Fprintf(w, "lead: %q version %d.%d type %d\n", p.Lead.Name, p.Lead.Major, p.Lead.Minor, p.Lead.Type)
	fmt.Fprintf(w, "\nsignature: %s at %d\n", humanize.IBytes(uint64(p.Signature.Length())), p.Signature.Start())
	if err := dumpSection(w, p.Signature, rpmkit.SignatureTagName); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nheader: %s at %d\n", humanize.IBytes(uint64(p.Header.Length())), p.Header.Start())
	if err := dumpSection(w, p.Header, rpmkit.HeaderTagName); err != nil {
		return err
	}
	if size, err := p.Header.Size(rpmkit.TagSize, rpmkit.TagLongSize); err == nil {
		fmt.Fprintf(w, "\npayload: %s installed, at %d\n", humanize.IBytes(uint64(size)), p.PayloadOffset())
	}
	return nil
}

func dumpSection(w io.Writer, h *rpmkit.InputHeader, name func(int) string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tag := range h.Tags() {
		e, _ := h.Entry(tag)
		v, err := e.Value()
		if err != nil {
			return err
		}
		s := truncate.StringWithTail(v.String(), maxValueLen, "...")
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", tag, name(tag), e.Type(), e.Count(), s)
	}
	return tw.Flush()
}

func newVerifyCmd() *cobra.Command {
	var requires rpmkit.Relations
	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check required tags, the header digest and the payload size of rpms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				p, f, err := openPackage(path)
				if err != nil {
					return err
				}
				err = p.Verify()
				if err == nil {
					err = checkRequires(p, requires)
				}
				if err == nil {
					err = p.VerifyPayload()
				}
				f.Close()
				if err != nil {
					return errors.Wrapf(err, "%s", path)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
			}
			return nil
		},
	}
	cmd.Flags().Var(&requires, "requires", "fail unless each rpm requires `RELATION`, may be repeated")
	return cmd
}

func checkRequires(p *rpmkit.Package, want rpmkit.Relations) error {
	if len(want) == 0 {
		return nil
	}
	have, err := p.Requirements()
	if err != nil {
		return err
	}
	for _, r := range want {
		if !have.Contains(r) {
			return errors.Errorf("missing requirement %s", r)
		}
	}
	return nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls FILE",
		Short: "List the files in the payload of an rpm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, f, err := openPackage(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			hdrs, err := p.ListPayload()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, h := range hdrs {
				fmt.Fprintf(tw, "%v\t%d/%d\t%s\t%s\n", h.Mode, h.UID, h.GID, humanize.IBytes(uint64(h.Size)), h.Name)
			}
			return tw.Flush()
		},
	}
}
