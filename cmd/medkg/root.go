// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/medkg-dev/medkg/internal/config"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root medkg command with all subcommands registered.
// Each root owns its own Viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "medkg",
		Short:         "medkg: medical knowledge subgraph extractor",
		Long:          "medkg expands a set of seed medical conditions into a bounded Wikidata subgraph, analyses it and writes a snapshot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd, v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")

	root.AddCommand(
		newInitCmd(),
		newCrawlCmd(v),
		newAnalyzeCmd(v),
		newInspectCmd(v),
		newCatalogCmd(v),
		newVersionCmd(),
	)

	return root
}

// initViper loads defaults, env bindings, the optional config file and the
// persistent flags into v so the standard precedence
// (flag > env > file > defaults) is handled uniformly. It then installs the
// process logger.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return medkgerr.Wrap(err, medkgerr.CodeConfigLoadReadFailure, "reading config file", medkgerr.FieldPath(cfgFile))
		}
	} else {
		// SetConfigType is omitted: with it set, Viper also tries the bare
		// name, which collides with a ./medkg binary.
		v.SetConfigName("medkg")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/medkg")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return medkgerr.Errorf(medkgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("log.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
		return medkgerr.Errorf(medkgerr.CodeCLISetupFailure, "binding log-level flag: %w", err)
	}
	if err := v.BindPFlag("log.format", cmd.Root().PersistentFlags().Lookup("log-format")); err != nil {
		return medkgerr.Errorf(medkgerr.CodeCLISetupFailure, "binding log-format flag: %w", err)
	}

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), v.GetString("log.level"), v.GetString("log.format")))
	return nil
}

// newLogger builds the handler selected by format. Unknown levels fall back
// to info; config validation reports them.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
