// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"encoding/json"

	"github.com/medkg-dev/medkg/internal/analysis"
	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/config"
	"github.com/medkg-dev/medkg/internal/report"
	"github.com/medkg-dev/medkg/internal/snapshot"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <snapshot.json>",
		Short: "Re-run the analysis over a saved JSON snapshot",
		Long:  "Load a JSON snapshot, recompute the analysis with the active catalog and print the summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, v, args[0])
		},
	}

	cmd.Flags().Int("top-k", 0, "number of hub entities to list")
	cmd.Flags().Bool("json", false, "print the analysis as JSON")
	_ = v.BindPFlag("analysis.top_k", cmd.Flags().Lookup("top-k"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, v *viper.Viper, path string) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	doc, err := snapshot.Read(path)
	if err != nil {
		return err
	}

	a := analysis.Analyze(doc.ToSubgraph(), cat, analysis.Options{
		InstanceOf: catalog.InstanceOf,
		TopK:       cfg.Analysis.TopK,
	})

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return medkgerr.Errorf(medkgerr.CodeInternalFailure, "encoding analysis: %w", err)
		}
		return nil
	}

	report.New(cmd.OutOrStdout()).Summary(a)
	return nil
}
