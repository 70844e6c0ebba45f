package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
	"github.com/trkbt10/vectorlite/pkg/wal"
)

// OpenRequest bundles everything the open procedure needs (spec.md §4.11
// "open" steps).
type OpenRequest struct {
	Name string

	IndexStore  blobio.BlobIO
	DataTargets map[string]blobio.BlobIO

	NewIndex func(metric vecstore.Metric) vecstore.Index

	AllowStale bool
}

// Opened is the result of a successful Open: the hydrated store plus the
// manifest it was built from, so the caller can thread CommitTs into a
// later SaveRequest.LastCommittedTs for conflict detection.
type Opened struct {
	Store    *vecstore.Store
	Manifest Manifest
}

// Open reads HEAD, the manifest it names, and every referenced segment
// (falling back to a replica target on a checksum failure), then replays
// the WAL tail on top (spec.md §4.11 open procedure).
func Open(ctx context.Context, req OpenRequest) (Opened, error) {
	data, err := req.IndexStore.Read(ctx, headKey(req.Name))
	if err != nil {
		if errors.Is(err, blobio.ErrNotFound) {
			return Opened{}, fmt.Errorf("persistence: collection %q has no head", req.Name)
		}

		return Opened{}, err
	}

	head, err := ParseHead(data)
	if err != nil {
		return Opened{}, fmt.Errorf("parse head: %w", err)
	}

	manifestBytes, err := req.IndexStore.Read(ctx, head.Manifest)
	if err != nil {
		return Opened{}, fmt.Errorf("read manifest %q: %w", head.Manifest, err)
	}

	manifest, err := ParseManifest(manifestBytes)
	if err != nil {
		return Opened{}, fmt.Errorf("parse manifest: %w", err)
	}

	catalogBytes, err := req.IndexStore.Read(ctx, catalogKey(req.Name))
	if err != nil {
		return Opened{}, fmt.Errorf("read catalog: %w", err)
	}

	catalog, err := ParseCatalog(catalogBytes)
	if err != nil {
		return Opened{}, fmt.Errorf("parse catalog: %w", err)
	}

	metric, ok := vecstore.ParseMetric(catalog.Metric)
	if !ok {
		return Opened{}, fmt.Errorf("persistence: unsupported metric %q in catalog", catalog.Metric)
	}

	var idx vecstore.Index
	if req.NewIndex != nil {
		idx = req.NewIndex(metric)
	}

	store := vecstore.New(catalog.Dim, metric, idx)

	for _, ref := range manifest.Segments {
		rows, err := readSegment(ctx, req, ref)
		if err != nil {
			return Opened{}, fmt.Errorf("segment %q: %w", ref.Name, err)
		}

		for _, row := range rows {
			if err := store.Add(row.ID, row.Vec, row.Meta, true); err != nil {
				return Opened{}, fmt.Errorf("segment %q: row id=%d: %w", ref.Name, row.ID, err)
			}
		}
	}

	walBytes, err := req.IndexStore.Read(ctx, walKey(req.Name))
	if err != nil && !errors.Is(err, blobio.ErrNotFound) {
		return Opened{}, fmt.Errorf("read wal: %w", err)
	}

	if len(walBytes) > 0 {
		records, _, err := wal.DecodeAll(walBytes)
		if err != nil {
			return Opened{}, fmt.Errorf("decode wal: %w", err)
		}

		if err := wal.Replay(store, records); err != nil {
			return Opened{}, fmt.Errorf("replay wal: %w", err)
		}
	}

	if idx != nil && idx.NeedsRebuild() {
		idx.Rebuild(store)
	}

	return Opened{Store: store, Manifest: manifest}, nil
}

// readSegment tries the segment's primary target first, then scans the
// remaining registered data targets on a read or checksum failure (spec.md
// §4.10 "replica fallback on read").
func readSegment(ctx context.Context, req OpenRequest, ref SegmentRef) ([]SegmentRow, error) {
	order := make([]string, 0, len(req.DataTargets))

	if _, ok := req.DataTargets[ref.TargetKey]; ok {
		order = append(order, ref.TargetKey)
	}

	for key := range req.DataTargets {
		if key != ref.TargetKey {
			order = append(order, key)
		}
	}

	var lastErr error

	for _, key := range order {
		store := req.DataTargets[key]

		data, err := store.Read(ctx, ref.Name+".data")
		if err != nil {
			lastErr = err

			continue
		}

		_, rows, err := DecodeSegment(data)
		if err != nil {
			lastErr = err

			continue
		}

		return rows, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("persistence: no data target held segment %q", ref.Name)
	}

	return nil, lastErr
}
