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
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newConfig returns the configuration with its defaults. Values come, in
// order of precedence, from flags, RPMKIT_ environment variables and the
// --config file.
func newConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", "warning")
	v.SetDefault("coding", "gzip")
	v.SetEnvPrefix("RPMKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCmd() *cobra.Command {
	v := newConfig()
	var cfgFile string

	root := &cobra.Command{
		Use:          "rpmkit",
		Short:        "Inspect rpm headers, compare rpm versions and code rpm payloads",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return errors.Wrapf(err, "failed to read config %s", cfgFile)
				}
			}
			level, err := log.ParseLevel(v.GetString("log_level"))
			if err != nil {
				return errors.Wrap(err, "log_level")
			}
			log.SetOutput(cmd.ErrOrStderr())
			log.SetLevel(level)
			log.WithField("config", v.ConfigFileUsed()).Debug("configuration loaded")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "read configuration from `FILE`")
	root.PersistentFlags().String("log-level", "warning", "log level (debug, info, warning, error)")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newDumpCmd(),
		newVerifyCmd(),
		newLsCmd(),
		newVercmpCmd(),
		newCodingsCmd(),
		newCompressCmd(v),
		newDecompressCmd(v),
	)
	return root
}
