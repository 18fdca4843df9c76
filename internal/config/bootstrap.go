// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

//go:embed medkg.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/medkg/medkg.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", medkgerr.Errorf(medkgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "medkg", "medkg.yaml"), nil
}

// ErrConfigExists is returned by WriteDefault when path exists and force is
// not set.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes the commented default config to path, creating parent
// directories. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return medkgerr.Wrap(ErrConfigExists, medkgerr.CodeCLIInputInvalid, "refusing to overwrite", medkgerr.FieldPath(path))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return medkgerr.Wrap(err, medkgerr.CodeConfigLoadReadFailure, "checking config path", medkgerr.FieldPath(path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeCLISetupFailure, "creating config directory", medkgerr.FieldPath(path))
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeCLISetupFailure, "writing config", medkgerr.FieldPath(path))
	}
	return nil
}
