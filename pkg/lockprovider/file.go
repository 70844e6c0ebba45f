package lockprovider

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

const filePerms = 0o644

type fileLockMeta struct {
	Epoch     uint64    `json:"epoch"`
	HolderID  string    `json:"holderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// File is the filesystem-backed lock provider for multi-process hosts
// sharing a directory. It follows the teacher's separate-lock-file
// convention (a dedicated ".flock" marker distinct from the data it
// protects) but splits bookkeeping into its own ".meta.json" so that the
// metadata can be rewritten atomically (via github.com/natefinch/atomic)
// without ever renaming out from under the held flock's inode.
type File struct {
	dir string

	mu   sync.Mutex
	open map[string]*os.File // name -> held flock fd, while we are the holder
}

// NewFile constructs a file-based lock provider rooted at dir. dir must
// already exist.
func NewFile(dir string) *File {
	return &File{dir: dir, open: make(map[string]*os.File)}
}

func (p *File) flockPath(name string) string { return filepath.Join(p.dir, name+".flock") }
func (p *File) metaPath(name string) string  { return filepath.Join(p.dir, name+".meta.json") }

func (p *File) readMeta(name string) (fileLockMeta, bool) {
	data, err := os.ReadFile(p.metaPath(name)) //nolint:gosec // path built from caller-controlled lock name
	if err != nil {
		return fileLockMeta{}, false
	}

	var meta fileLockMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fileLockMeta{}, false
	}

	return meta, true
}

func (p *File) writeMeta(name string, meta fileLockMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return atomic.WriteFile(p.metaPath(name), bytes.NewReader(data))
}

// Acquire takes a non-blocking exclusive flock on name's marker file. The
// OS-level flock is the actual exclusion mechanism (and is automatically
// released if this process dies); ttl/holderID are recorded in the meta
// file for observability and for Renew's staleness bookkeeping.
func (p *File) Acquire(name string, ttl time.Duration, holderID string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, already := p.open[name]; already {
		return 0, ErrLocked
	}

	f, err := os.OpenFile(p.flockPath(name), os.O_CREATE|os.O_RDWR, filePerms) //nolint:gosec // path built from caller-controlled lock name
	if err != nil {
		return 0, err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		return 0, ErrLocked
	}

	prev, _ := p.readMeta(name)
	epoch := prev.Epoch + 1

	meta := fileLockMeta{Epoch: epoch, HolderID: holderID, ExpiresAt: time.Now().Add(ttl)}
	if err := p.writeMeta(name, meta); err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()

		return 0, err
	}

	p.open[name] = f

	return epoch, nil
}

func (p *File) Release(name string, epoch uint64, holderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, held := p.open[name]
	if !held {
		return nil
	}

	meta, ok := p.readMeta(name)
	if ok && (meta.Epoch != epoch || meta.HolderID != holderID) {
		return nil
	}

	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = f.Close()
	delete(p.open, name)

	return nil
}

func (p *File) Renew(name string, epoch uint64, ttl time.Duration, holderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, held := p.open[name]; !held {
		return ErrLocked
	}

	meta, ok := p.readMeta(name)
	if !ok || meta.Epoch != epoch || meta.HolderID != holderID {
		return ErrLocked
	}

	meta.ExpiresAt = time.Now().Add(ttl)

	return p.writeMeta(name, meta)
}
