// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"fmt"

	"github.com/medkg-dev/medkg/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long:  "Write a commented medkg.yaml holding every default. The default location is ~/.config/medkg/medkg.yaml.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	cmd.Flags().String("path", "", "destination (default ~/.config/medkg/medkg.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return err
}
