// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/medkg-dev/medkg/internal/report"
	"github.com/medkg-dev/medkg/internal/snapshot"
	"github.com/medkg-dev/medkg/internal/store"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the neighbourhood of a node in a saved snapshot",
		Long: "Walk the triples of a snapshot outward from --node up to --depth hops and print the entities and relations reached. " +
			"SQLite snapshots are queried in place; JSON snapshots are loaded into a temporary store first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, v)
		},
	}

	cmd.Flags().String("snapshot", "", "snapshot file (.db or .json); defaults to output.path")
	cmd.Flags().String("node", "", "start entity id (required)")
	cmd.Flags().Int("depth", 1, "maximum hop distance")
	cmd.Flags().StringSlice("relation", nil, "only follow these relation ids (repeatable)")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}

func runInspect(cmd *cobra.Command, v *viper.Viper) error {
	path, _ := cmd.Flags().GetString("snapshot")
	node, _ := cmd.Flags().GetString("node")
	depth, _ := cmd.Flags().GetInt("depth")
	relations, _ := cmd.Flags().GetStringSlice("relation")

	if path == "" {
		path = v.GetString("output.path")
	}
	if depth < 1 {
		return medkgerr.Errorf(medkgerr.CodeCLIInputInvalid, "depth must be at least 1 (got %d)", depth)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return medkgerr.Wrap(err, medkgerr.CodeSnapshotReadFailure, "snapshot not found", medkgerr.FieldPath(path))
		}
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotReadFailure, "checking snapshot", medkgerr.FieldPath(path))
	}

	ctx := cmd.Context()
	st, cleanup, err := openSnapshotStore(ctx, path)
	if err != nil {
		return err
	}
	defer cleanup()

	g, err := st.Traverse(ctx, node, depth, store.TraversalFilter{RelationshipTypes: relations})
	if err != nil {
		return medkgerr.With(err, medkgerr.FieldPath(path))
	}

	report.New(cmd.OutOrStdout()).Traversal(node, g)
	return nil
}

// openSnapshotStore opens path as a store. A JSON snapshot is first written
// to a store in a scratch directory that cleanup removes.
func openSnapshotStore(ctx context.Context, path string) (store.SnapshotStore, func(), error) {
	cfg := &store.StorageConfig{Backend: "sqlite"}

	if !strings.EqualFold(filepath.Ext(path), ".json") {
		st, err := store.Open(cfg, path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}

	doc, err := snapshot.Read(path)
	if err != nil {
		return nil, nil, err
	}
	dir, err := os.MkdirTemp("", "medkg-inspect-*")
	if err != nil {
		return nil, nil, medkgerr.Errorf(medkgerr.CodeCLISetupFailure, "creating scratch directory: %w", err)
	}
	dbPath := filepath.Join(dir, "snapshot.db")
	if err := snapshot.WriteStore(ctx, cfg, dbPath, doc); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	st, err := store.Open(cfg, dbPath)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	return st, func() {
		_ = st.Close()
		_ = os.RemoveAll(dir)
	}, nil
}
