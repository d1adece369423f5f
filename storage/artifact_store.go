package storage

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"luminastay/ml"
)

// ErrArtifactNotFound is returned by LoadArtifact when no file exists at the path.
var ErrArtifactNotFound = errors.New("artifact not found")

// SaveArtifact writes the artifact to a temporary file and renames it into
// place, so readers never observe a partially written file.
func SaveArtifact(path string, a *ml.Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("artifact: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("artifact: replace %q: %w", path, err)
	}
	return nil
}

// LoadArtifact decodes and validates the artifact stored at path.
func LoadArtifact(path string) (*ml.Artifact, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: open %q: %w", path, err)
	}
	defer f.Close()

	var a ml.Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("artifact: decode %q: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
