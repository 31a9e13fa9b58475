package repository

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeSnapshot reads a YAML snapshot fixture. Unknown keys are rejected so
// that misspelled fields do not silently load as zero values.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return Snapshot{}, fmt.Errorf("%w: empty document", ErrFixture)
		}
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFixture, err)
	}
	return snap, nil
}

// ReadSnapshotFile decodes the YAML snapshot fixture at path.
func ReadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return DecodeSnapshot(f)
}
