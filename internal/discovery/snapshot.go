package discovery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// SnapshotWriter persists the deduplicated candidate list.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, candidates []Candidate) error
}

// SnapshotFunc adapts a function to SnapshotWriter.
type SnapshotFunc func(ctx context.Context, candidates []Candidate) error

// WriteSnapshot calls f.
func (f SnapshotFunc) WriteSnapshot(ctx context.Context, candidates []Candidate) error {
	return f(ctx, candidates)
}

// MultiSnapshot writes to every writer, returning the first error after
// all have been attempted.
func MultiSnapshot(writers ...SnapshotWriter) SnapshotWriter {
	return SnapshotFunc(func(ctx context.Context, candidates []Candidate) error {
		var first error
		for _, w := range writers {
			if w == nil {
				continue
			}
			if err := w.WriteSnapshot(ctx, candidates); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// FileSnapshot writes candidates as an indented JSON array.
type FileSnapshot struct {
	Path string
}

// WriteSnapshot writes to a temp file beside Path and renames it into place.
func (f FileSnapshot) WriteSnapshot(_ context.Context, candidates []Candidate) error {
	if candidates == nil {
		candidates = []Candidate{}
	}
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return eris.Wrap(err, "discovery: marshal snapshot")
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "discovery: create snapshot dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return eris.Wrap(err, "discovery: create temp snapshot")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "discovery: write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "discovery: close snapshot")
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return eris.Wrapf(err, "discovery: rename snapshot to %s", f.Path)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by FileSnapshot.
func ReadSnapshot(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read snapshot %s", path)
	}
	var out []Candidate
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "discovery: parse snapshot")
	}
	return out, nil
}
