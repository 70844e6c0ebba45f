package fs

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
)

// ErrInjected marks a failure manufactured by [Chaos] rather than one
// returned by the underlying filesystem.
var ErrInjected = fmt.Errorf("fs: injected failure")

// ChaosConfig controls [Chaos]'s fault-injection rate.
//
// The zero value disables injection (every call passes through).
type ChaosConfig struct {
	// WriteFailRate is the probability, in [0,1], that a call which
	// mutates the filesystem (WriteFile, OpenFile for writing, Create,
	// MkdirAll, Rename, Remove, RemoveAll) fails with [ErrInjected]
	// instead of reaching the underlying FS.
	WriteFailRate float64
}

// Chaos wraps an [FS] and deterministically injects write failures,
// exercising the atomic-commit contract persistence.Save depends on:
// a write that never happens must leave whatever was there before
// untouched.
//
// Chaos is not meant for production use.
type Chaos struct {
	underlying FS
	config     ChaosConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewChaos wraps underlying with deterministic, seeded fault injection.
// The same seed and call order always produce the same failures.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if config == nil {
		config = &ChaosConfig{}
	}

	return &Chaos{
		underlying: underlying,
		config:     *config,
		rng:        rand.New(rand.NewPCG(uint64(seed), uint64(seed))), //nolint:gosec // deterministic injection, not security-sensitive
	}
}

func (c *Chaos) fail() bool {
	if c.config.WriteFailRate <= 0 {
		return false
	}

	c.mu.Lock()
	roll := c.rng.Float64()
	c.mu.Unlock()

	return roll < c.config.WriteFailRate
}

func (c *Chaos) injectedErr(op string) error {
	return fmt.Errorf("fs: chaos: %s: %w", op, ErrInjected)
}

var _ FS = (*Chaos)(nil)

func (c *Chaos) Open(path string) (File, error) { return c.underlying.Open(path) }

func (c *Chaos) Create(path string) (File, error) {
	if c.fail() {
		return nil, c.injectedErr("create " + path)
	}

	return c.underlying.Create(path)
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && c.fail() {
		return nil, c.injectedErr("open " + path)
	}

	return c.underlying.OpenFile(path, flag, perm)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) { return c.underlying.ReadFile(path) }

func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) error {
	if c.fail() {
		return c.injectedErr("write " + path)
	}

	return c.underlying.WriteFile(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) { return c.underlying.ReadDir(path) }

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if c.fail() {
		return c.injectedErr("mkdir " + path)
	}

	return c.underlying.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) { return c.underlying.Stat(path) }

func (c *Chaos) Exists(path string) (bool, error) { return c.underlying.Exists(path) }

func (c *Chaos) Remove(path string) error {
	if c.fail() {
		return c.injectedErr("remove " + path)
	}

	return c.underlying.Remove(path)
}

func (c *Chaos) RemoveAll(path string) error {
	if c.fail() {
		return c.injectedErr("remove all " + path)
	}

	return c.underlying.RemoveAll(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.fail() {
		return c.injectedErr("rename " + oldpath + " -> " + newpath)
	}

	return c.underlying.Rename(oldpath, newpath)
}
