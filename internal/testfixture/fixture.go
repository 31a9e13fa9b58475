// Package testfixture provides a small star-rating snapshot for tests.
package testfixture

import (
	"bytes"
	_ "embed"

	"github.com/okian/starsim/internal/adapters/repository"
)

//go:embed snapshot.yaml
var snapshotYAML []byte

// YAML returns the raw fixture document.
func YAML() []byte {
	return bytes.Clone(snapshotYAML)
}

// Snapshot decodes the fixture. It panics on a malformed fixture, which is a
// bug in this package rather than in the caller.
func Snapshot() repository.Snapshot {
	snap, err := repository.DecodeSnapshot(bytes.NewReader(snapshotYAML))
	if err != nil {
		panic(err)
	}
	return snap
}
