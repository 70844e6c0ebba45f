package persistence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	"github.com/trkbt10/vectorlite/pkg/lockprovider"
	"github.com/trkbt10/vectorlite/pkg/metrics"
	"github.com/trkbt10/vectorlite/pkg/placement"
)

// ErrConflict is returned by Save when the caller's view of the last commit
// is behind the current HEAD (spec.md §4.11 step 2).
var ErrConflict = errors.New("persistence: conflicting commit")

// ErrConflictEpoch is returned when the CAS HEAD update loses a race
// against a concurrent writer (spec.md §7 ConflictEpoch, §9 "HEAD CAS...
// this spec requires it to be authoritative").
var ErrConflictEpoch = errors.New("persistence: head epoch conflict")

// SaveRequest bundles everything the save procedure needs (spec.md §4.11).
type SaveRequest struct {
	Name string
	Data DataSource

	IndexStore  blobio.BlobIO
	DataTargets map[string]blobio.BlobIO
	Placement   placement.Map

	Lock     lockprovider.Provider
	LockName string
	LockTTL  time.Duration
	HolderID string

	Clock           func() time.Time
	SegmentBytes    int
	IncludeANN      bool
	ANNPayload      []byte
	LastCommittedTs int64

	Metric   string
	Strategy string

	Metrics metrics.Recorder
}

// DataSource is the read-only view Save needs of a vector store: enough to
// pack segments without persistence depending on vecstore's mutable API.
type DataSource interface {
	AllIDs() []uint32
	Get(id uint32) (vec []float32, meta []byte, ok bool)
	Dim() uint32
}

// Save runs the single-writer save procedure: acquire lock, reject stale
// callers, pack+write segments, write manifest+catalog, optionally write
// the ANN payload, CAS-update HEAD, truncate the WAL (spec.md §4.11 steps
// 1-8).
func Save(ctx context.Context, req SaveRequest) (Manifest, error) {
	if req.Metrics == nil {
		req.Metrics = metrics.Noop{}
	}

	start := time.Now()

	epoch, err := req.Lock.Acquire(req.LockName, req.LockTTL, req.HolderID)
	if err != nil {
		return Manifest{}, fmt.Errorf("acquire lock: %w", err)
	}

	defer func() { _ = req.Lock.Release(req.LockName, epoch, req.HolderID) }()

	oldHead, headExists, err := readHead(ctx, req.IndexStore, req.Name)
	if err != nil {
		return Manifest{}, err
	}

	if headExists && req.LastCommittedTs != 0 && req.LastCommittedTs < oldHead.CommitTs {
		return Manifest{}, ErrConflict
	}

	segRows := packSegments(req.Data, req.SegmentBytes)

	var segRefs []SegmentRef

	now := req.Clock().UnixMilli()

	newEpoch := oldHead.Epoch + 1
	if !headExists {
		newEpoch = 1
	}

	for i, rows := range segRows {
		name := segmentName(req.Name, newEpoch, i)
		encoded := EncodeSegment(req.Data.Dim(), rows)

		targets := req.Placement.Assign(name)
		if len(targets) == 0 {
			return Manifest{}, fmt.Errorf("persistence: no placement targets configured for segment %q", name)
		}

		for _, t := range targets {
			store, ok := req.DataTargets[t.Key]
			if !ok {
				return Manifest{}, fmt.Errorf("persistence: no data target registered for key %q", t.Key)
			}

			if err := store.AtomicWrite(ctx, name+".data", encoded); err != nil {
				return Manifest{}, fmt.Errorf("write segment %q to target %q: %w", name, t.Key, err)
			}
		}

		segRefs = append(segRefs, SegmentRef{
			Name:      name,
			TargetKey: targets[0].Key,
			Size:      int64(len(encoded)),
			Checksum:  segmentChecksum(encoded),
			Rows:      uint32(len(rows)),
			Epoch:     newEpoch,
			CommitTs:  now,
		})
	}

	manifest := Manifest{
		Version:  ManifestVersion,
		Epoch:    newEpoch,
		CommitTs: now,
		Dim:      req.Data.Dim(),
		Metric:   req.Metric,
		Strategy: req.Strategy,
		Segments: segRefs,
	}

	manifestBytes, err := manifest.JSON()
	if err != nil {
		return Manifest{}, err
	}

	catalog := Catalog{Dim: manifest.Dim, Metric: manifest.Metric, Strategy: manifest.Strategy, Count: totalRows(segRefs), SegmentLayoutVersion: 1}

	catalogBytes, err := catalog.JSON()
	if err != nil {
		return Manifest{}, err
	}

	if err := req.IndexStore.AtomicWrite(ctx, manifestKey(req.Name), manifestBytes); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	if err := req.IndexStore.AtomicWrite(ctx, catalogKey(req.Name), catalogBytes); err != nil {
		return Manifest{}, fmt.Errorf("write catalog: %w", err)
	}

	if req.IncludeANN && req.ANNPayload != nil {
		if err := req.IndexStore.AtomicWrite(ctx, indexKey(req.Name), req.ANNPayload); err != nil {
			return Manifest{}, fmt.Errorf("write ann payload: %w", err)
		}
	}

	// CAS-update HEAD: re-read and proceed only if the epoch we observed at
	// the start of this save is still current (spec.md §4.11 step 7, §9
	// "this spec requires it to be authoritative").
	currentHead, currentExists, err := readHead(ctx, req.IndexStore, req.Name)
	if err != nil {
		return Manifest{}, err
	}

	if currentExists != headExists || (currentExists && currentHead.Epoch != oldHead.Epoch) {
		return Manifest{}, ErrConflictEpoch
	}

	newHead := Head{Manifest: manifestKey(req.Name), Epoch: newEpoch, CommitTs: now}

	headBytes, err := newHead.JSON()
	if err != nil {
		return Manifest{}, err
	}

	if err := req.IndexStore.AtomicWrite(ctx, headKey(req.Name), headBytes); err != nil {
		return Manifest{}, fmt.Errorf("write head: %w", err)
	}

	if err := req.IndexStore.Write(ctx, walKey(req.Name), nil); err != nil {
		return Manifest{}, fmt.Errorf("truncate wal: %w", err)
	}

	req.Metrics.SaveCompleted(time.Since(start), len(segRefs))

	return manifest, nil
}

func totalRows(segs []SegmentRef) uint32 {
	var n uint32
	for _, s := range segs {
		n += s.Rows
	}

	return n
}

func packSegments(data DataSource, segmentBytes int) [][]SegmentRow {
	if segmentBytes <= 0 {
		segmentBytes = 1 << 20
	}

	ids := data.AllIDs()

	var segments [][]SegmentRow

	var current []SegmentRow

	currentBytes := segmentHeaderLen

	for _, id := range ids {
		vec, meta, ok := data.Get(id)
		if !ok {
			continue
		}

		row := SegmentRow{ID: id, Meta: meta, Vec: vec}
		rowBytes := 8 + len(meta) + len(vec)*4

		if len(current) > 0 && currentBytes+rowBytes > segmentBytes {
			segments = append(segments, current)
			current = nil
			currentBytes = segmentHeaderLen
		}

		current = append(current, row)
		currentBytes += rowBytes
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

func readHead(ctx context.Context, store blobio.BlobIO, name string) (Head, bool, error) {
	data, err := store.Read(ctx, headKey(name))
	if err != nil {
		if errors.Is(err, blobio.ErrNotFound) {
			return Head{}, false, nil
		}

		return Head{}, false, err
	}

	head, err := ParseHead(data)
	if err != nil {
		return Head{}, false, err
	}

	return head, true, nil
}

// segmentChecksum reads back the checksum EncodeSegment already computed,
// rather than hashing the body a second time.
func segmentChecksum(encoded []byte) uint64 {
	if len(encoded) < segmentHeaderLen {
		return 0
	}

	return binary.LittleEndian.Uint64(encoded[16:24])
}
