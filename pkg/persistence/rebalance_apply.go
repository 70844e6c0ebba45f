package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	"github.com/trkbt10/vectorlite/pkg/lockprovider"
	"github.com/trkbt10/vectorlite/pkg/metrics"
	"github.com/trkbt10/vectorlite/pkg/placement"
)

// ApplyRebalanceRequest bundles what ApplyRebalance needs to execute a
// placement.Move plan against live data targets (spec.md §4.12).
type ApplyRebalanceRequest struct {
	Name        string
	Moves       []placement.Move
	IndexStore  blobio.BlobIO
	DataTargets map[string]blobio.BlobIO

	Lock     lockprovider.Provider
	LockName string
	LockTTL  time.Duration
	HolderID string

	DeleteOrphans bool

	Metrics metrics.Recorder
}

// ApplyRebalance copies each moved segment's blob from its old target to its
// new one, then rewrites the manifest's TargetKey for that segment and
// CAS-updates HEAD, exactly as Save does (spec.md §4.12 steps 1-4). Applying
// the same plan twice is a no-op the second time: a segment already present
// at its destination is detected by a successful read and the copy is
// skipped, and a manifest already pointing at the destination is left
// unchanged.
func ApplyRebalance(ctx context.Context, req ApplyRebalanceRequest) (Manifest, error) {
	if req.Metrics == nil {
		req.Metrics = metrics.Noop{}
	}

	epoch, err := req.Lock.Acquire(req.LockName, req.LockTTL, req.HolderID)
	if err != nil {
		return Manifest{}, fmt.Errorf("acquire lock: %w", err)
	}

	defer func() { _ = req.Lock.Release(req.LockName, epoch, req.HolderID) }()

	head, exists, err := readHead(ctx, req.IndexStore, req.Name)
	if err != nil {
		return Manifest{}, err
	}

	if !exists {
		return Manifest{}, fmt.Errorf("persistence: collection %q has no head", req.Name)
	}

	manifestBytes, err := req.IndexStore.Read(ctx, head.Manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := ParseManifest(manifestBytes)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	byName := make(map[string]int, len(manifest.Segments))
	for i, seg := range manifest.Segments {
		byName[seg.Name] = i
	}

	for _, mv := range req.Moves {
		idx, ok := byName[mv.Segment]
		if !ok {
			continue
		}

		fromStore, ok := req.DataTargets[mv.From]
		if !ok {
			return Manifest{}, fmt.Errorf("persistence: no data target registered for key %q", mv.From)
		}

		toStore, ok := req.DataTargets[mv.To]
		if !ok {
			return Manifest{}, fmt.Errorf("persistence: no data target registered for key %q", mv.To)
		}

		key := mv.Segment + ".data"

		if _, err := toStore.Read(ctx, key); err == nil {
			manifest.Segments[idx].TargetKey = mv.To

			continue
		}

		data, err := fromStore.Read(ctx, key)
		if err != nil {
			return Manifest{}, fmt.Errorf("read segment %q from %q: %w", mv.Segment, mv.From, err)
		}

		if err := toStore.AtomicWrite(ctx, key, data); err != nil {
			return Manifest{}, fmt.Errorf("write segment %q to %q: %w", mv.Segment, mv.To, err)
		}

		manifest.Segments[idx].TargetKey = mv.To

		req.Metrics.RebalanceMove()

		if req.DeleteOrphans {
			if err := fromStore.Del(ctx, key); err != nil && !errors.Is(err, blobio.ErrNotFound) {
				return Manifest{}, fmt.Errorf("delete orphan segment %q from %q: %w", mv.Segment, mv.From, err)
			}
		}
	}

	current, currentExists, err := readHead(ctx, req.IndexStore, req.Name)
	if err != nil {
		return Manifest{}, err
	}

	if !currentExists || current.Epoch != head.Epoch {
		return Manifest{}, ErrConflictEpoch
	}

	manifest.Epoch = head.Epoch + 1

	manifestBytes, err = manifest.JSON()
	if err != nil {
		return Manifest{}, err
	}

	if err := req.IndexStore.AtomicWrite(ctx, head.Manifest, manifestBytes); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	newHead := Head{Manifest: head.Manifest, Epoch: manifest.Epoch, CommitTs: head.CommitTs}

	headBytes, err := newHead.JSON()
	if err != nil {
		return Manifest{}, err
	}

	if err := req.IndexStore.AtomicWrite(ctx, headKey(req.Name), headBytes); err != nil {
		return Manifest{}, fmt.Errorf("write head: %w", err)
	}

	return manifest, nil
}
