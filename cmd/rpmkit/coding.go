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
	"text/tabwriter"

	"github.com/google/rpmkit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newVercmpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vercmp A B",
		Short: "Compare two [epoch:]version[-release] strings the way rpm does",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rpmkit.CompareVersions(args[0], args[1])
			if err != nil {
				return err
			}
			op := "="
			switch {
			case c < 0:
				op = "<"
			case c > 0:
				op = ">"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", args[0], op, args[1])
			return nil
		},
	}
}

func newCodingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codings",
		Short: "List the payload codings with their levels and requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLEVELS\tDEFAULT\tREQUIRES")
			for _, c := range rpmkit.Codings() {
				min, max, def := c.Levels()
				req := rpmkit.Requirements(c)
				fmt.Fprintf(tw, "%s\t%d-%d\t%d\t%s\n", c.Name(), min, max, def, req.String())
			}
			return tw.Flush()
		},
	}
}

// codingFromConfig resolves the coding and level from flags, environment
// and config file.
func codingFromConfig(v *viper.Viper) (rpmkit.PayloadCoding, rpmkit.PayloadFlags, error) {
	c, err := rpmkit.LookupCoding(v.GetString("coding"))
	if err != nil {
		return nil, rpmkit.PayloadFlags{}, err
	}
	var f rpmkit.PayloadFlags
	if v.IsSet("level") {
		f = rpmkit.LevelFlags(v.GetInt("level"))
	}
	return c, f, nil
}

// addCodingFlags defines the coding flags of cmd. They are bound to v only
// when cmd runs, sibling commands share v.
func addCodingFlags(cmd *cobra.Command, v *viper.Viper, withLevel bool) {
	cmd.Flags().StringP("coding", "c", "gzip", "payload coding, see the codings command")
	if withLevel {
		cmd.Flags().IntP("level", "l", 0, "compression level, defaults to the level rpm uses for the coding")
	}
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := v.BindPFlag("coding", cmd.Flags().Lookup("coding")); err != nil {
			return err
		}
		if withLevel {
			return v.BindPFlag("level", cmd.Flags().Lookup("level"))
		}
		return nil
	}
}

func newCompressCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Compress stdin to stdout with a payload coding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, f, err := codingFromConfig(v)
			if err != nil {
				return err
			}
			return compress(cmd.OutOrStdout(), cmd.InOrStdin(), c, f)
		},
	}
	addCodingFlags(cmd, v, true)
	return cmd
}

func compress(w io.Writer, r io.Reader, c rpmkit.PayloadCoding, f rpmkit.PayloadFlags) error {
	zw, err := c.NewWriter(w, f)
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return errors.Wrapf(err, "failed to compress with %s", c.Name())
	}
	return errors.Wrapf(zw.Close(), "failed to finish %s stream", c.Name())
}

func newDecompressCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress",
		Short: "Decompress stdin to stdout with a payload coding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := codingFromConfig(v)
			if err != nil {
				return err
			}
			zr, err := c.NewReader(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer zr.Close()
			_, err = io.Copy(cmd.OutOrStdout(), zr)
			return err
		},
	}
	addCodingFlags(cmd, v, false)
	return cmd
}
