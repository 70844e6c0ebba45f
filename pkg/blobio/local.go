package blobio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	vlfs "github.com/trkbt10/vectorlite/pkg/fs"
)

const filePerms = 0o644

// Local is the local-filesystem BlobIO (the file: scheme), built on
// pkg/fs.AtomicWriter for its tmp+fsync+rename+fsync(dir) durability
// contract (spec.md §4.1).
type Local struct {
	dir    string
	fs     vlfs.FS
	writer *vlfs.AtomicWriter
}

// NewLocal constructs a Local blob store rooted at dir.
func NewLocal(dir string) *Local {
	return NewLocalWithFS(dir, vlfs.NewReal())
}

// NewLocalWithFS constructs a Local blob store over a caller-supplied FS,
// letting tests swap in fs.Chaos to exercise the atomic-commit failure
// injection required by spec.md §8 testable property 7 and end-to-end
// scenario S5.
func NewLocalWithFS(dir string, fsys vlfs.FS) *Local {
	return &Local{dir: dir, fs: fsys, writer: vlfs.NewAtomicWriter(fsys)}
}

func (l *Local) path(key string) string { return filepath.Join(l.dir, key) }

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	data, err := l.fs.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

func (l *Local) Write(_ context.Context, key string, data []byte) error {
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	return l.fs.WriteFile(l.path(key), data, filePerms)
}

func (l *Local) Append(_ context.Context, key string, data []byte) error {
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	f, err := l.fs.OpenFile(l.path(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerms)
	if err != nil {
		return err
	}

	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}

	return f.Sync()
}

func (l *Local) AtomicWrite(_ context.Context, key string, data []byte) error {
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	return l.writer.Write(l.path(key), bytes.NewReader(data), vlfs.AtomicWriteOptions{SyncDir: true, Perm: filePerms})
}

func (l *Local) Del(_ context.Context, key string) error {
	err := l.fs.Remove(l.path(key))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
