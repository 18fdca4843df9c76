// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/config"
	"github.com/medkg-dev/medkg/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCatalogCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the active relation catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			report.New(cmd.OutOrStdout()).Catalog(cat.Relations())
			return nil
		},
	}
}
