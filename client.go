package vectorlite

import (
	"context"
	"errors"

	"github.com/trkbt10/vectorlite/pkg/ann"
	"github.com/trkbt10/vectorlite/pkg/attridx"
	"github.com/trkbt10/vectorlite/pkg/filterexpr"
	"github.com/trkbt10/vectorlite/pkg/lockprovider"
	"github.com/trkbt10/vectorlite/pkg/persistence"
	"github.com/trkbt10/vectorlite/pkg/placement"
	"github.com/trkbt10/vectorlite/pkg/search"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
	"github.com/trkbt10/vectorlite/pkg/wal"
)

// Client is the open handle to one collection: the in-memory vector store,
// its attribute index, and everything Connect resolved from Config
// (spec.md §6 "connect(config) -> Client").
type Client struct {
	cfg Config

	store *vecstore.Store
	attrs attridx.Index

	walBuf []wal.Record
	lastTs int64

	index indexFacade
}

// indexFacade groups the Client.index.* operations from spec.md §6.
type indexFacade struct {
	c *Client
}

// Record is one vector + attributes + opaque meta, as accepted by Set/Push.
type Record struct {
	ID     uint32
	Vector []float32
	Attrs  attridx.Attrs
	Meta   []byte
}

// SetOptions configures Set (spec.md §6 "set(id, {vector, meta}, {upsert})").
type SetOptions struct {
	Upsert bool
}

// FindOptions configures Find/FindMany (spec.md §6, §4.8 filter search).
type FindOptions struct {
	K            int
	Filter       filterexpr.Expr
	Mode         vecstore.FilterMode
	BridgeBudget int
	Seeds        int
	SeedStrategy vecstore.SeedStrategy
	AdaptiveEf   bool
	EarlyStop    vecstore.EarlyStop
}

// Connect validates cfg, applies defaults, builds the ANN strategy, and
// returns a ready-to-use Client over an empty collection (spec.md §6
// "connect(config) -> Client"). Use Client.Index().OpenState to hydrate an
// existing collection from storage instead of starting empty.
func Connect(cfg Config) (*Client, error) {
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	idx := newIndexForStrategy(cfg)

	store := vecstore.New(cfg.Database.Dim, cfg.Database.Metric, idx)

	c := &Client{cfg: cfg, store: store, attrs: attridx.NewBasic()}
	c.index.c = c

	return c, nil
}

func newIndexForStrategy(cfg Config) vecstore.Index {
	switch cfg.Database.Strategy {
	case StrategyHNSW:
		params := ann.DefaultHNSWParams()
		if cfg.Database.HNSW.M > 0 {
			params.M = cfg.Database.HNSW.M
		}

		if cfg.Database.HNSW.EfConstruction > 0 {
			params.EfConstruction = cfg.Database.HNSW.EfConstruction
		}

		if cfg.Database.HNSW.EfSearch > 0 {
			params.EfSearch = cfg.Database.HNSW.EfSearch
		}

		if cfg.Database.HNSW.Seed != 0 {
			params.Seed = cfg.Database.HNSW.Seed
		}

		return ann.NewHNSW(params, cfg.Database.Metric)
	case StrategyIVF:
		params := ann.DefaultIVFParams()
		if cfg.Database.IVF.NList > 0 {
			params.NList = cfg.Database.IVF.NList
		}

		if cfg.Database.IVF.NProbe > 0 {
			params.NProbe = cfg.Database.IVF.NProbe
		}

		return ann.NewIVF(params, cfg.Database.Metric, int(cfg.Database.Dim))
	default:
		return nil
	}
}

// Set inserts or replaces id (spec.md §6 "Client.set").
func (c *Client) Set(id uint32, vec []float32, attrs attridx.Attrs, meta []byte, opts SetOptions) error {
	if err := c.store.Add(id, vec, meta, opts.Upsert); err != nil {
		return c.wrapVectorErr(id, err)
	}

	if attrs != nil {
		c.attrs.SetAttrs(id, attrs)
	}

	c.walBuf = append(c.walBuf, wal.Record{Type: wal.Upsert, ID: id, Vec: vec, Meta: meta})

	return nil
}

// Push appends a record, requiring it be new (upsert=false).
func (c *Client) Push(r Record) error {
	return c.Set(r.ID, r.Vector, r.Attrs, r.Meta, SetOptions{Upsert: false})
}

// Upsert writes every record, returning the count written before the first
// error (spec.md §6 "upsert(records...) -> count").
func (c *Client) Upsert(records ...Record) (int, error) {
	for i, r := range records {
		if err := c.Set(r.ID, r.Vector, r.Attrs, r.Meta, SetOptions{Upsert: true}); err != nil {
			return i, err
		}
	}

	return len(records), nil
}

// Delete removes id, returning whether it was present (spec.md §6
// "delete(id) -> bool").
func (c *Client) Delete(id uint32) bool {
	removed := c.store.Remove(id)
	if removed {
		c.attrs.Remove(id)
		c.walBuf = append(c.walBuf, wal.Record{Type: wal.Remove, ID: id})
	}

	return removed
}

// Get returns the stored vector and meta for id (spec.md §6 "get(id) ->
// record | null").
func (c *Client) Get(id uint32) (*Record, bool) {
	vec, meta, ok := c.store.Get(id)
	if !ok {
		return nil, false
	}

	return &Record{ID: id, Vector: vec, Meta: meta}, true
}

// Has reports whether id is present.
func (c *Client) Has(id uint32) bool { return c.store.Has(id) }

// Size returns the number of live records.
func (c *Client) Size() uint32 { return uint32(c.store.Size()) }

// Find returns the single best match, or nil if the collection (or the
// filtered candidate set) is empty (spec.md §6 "find(query, {filter?}) ->
// hit | null").
func (c *Client) Find(query []float32, opts FindOptions) (*vecstore.Hit, error) {
	opts.K = 1

	hits, err := c.FindMany(query, opts)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return nil, nil
	}

	return &hits[0], nil
}

// FindMany returns up to opts.K ranked hits (spec.md §6 "findMany(query,
// {k, filter?}) -> hit[]", §4.8 filter search dispatch).
func (c *Client) FindMany(query []float32, opts FindOptions) ([]vecstore.Hit, error) {
	if opts.K <= 0 {
		opts.K = 10
	}

	searchOpts := search.Options{
		K:            opts.K,
		Mode:         opts.Mode,
		BridgeBudget: opts.BridgeBudget,
		Seeds:        opts.Seeds,
		SeedStrategy: opts.SeedStrategy,
		AdaptiveEf:   opts.AdaptiveEf,
		EarlyStop:    opts.EarlyStop,
	}

	collab := search.Collaborators{Attrs: c.attrs}

	hits, err := search.Find(c.store, query, opts.Filter, searchOpts, collab)
	if err != nil {
		if errors.Is(err, vecstore.ErrDimensionMismatch) {
			return nil, wrap(ErrDimensionMismatch, withCollection(c.cfg.Index.Name))
		}

		return nil, err
	}

	return hits, nil
}

// Index exposes the saveState/openState/rebuildState/planRebalance/
// applyRebalance group (spec.md §6 "Client.index.*").
func (c *Client) Index() *indexFacade { return &c.index }

func (c *Client) wrapVectorErr(id uint32, err error) error {
	switch {
	case errors.Is(err, vecstore.ErrDimensionMismatch):
		return wrap(ErrDimensionMismatch, withCollection(c.cfg.Index.Name), withVectorID(id))
	case errors.Is(err, vecstore.ErrInvalidVector):
		return wrap(ErrInvalidVector, withCollection(c.cfg.Index.Name), withVectorID(id))
	case errors.Is(err, vecstore.ErrAlreadyExists):
		return wrap(ErrAlreadyExists, withCollection(c.cfg.Index.Name), withVectorID(id))
	case errors.Is(err, vecstore.ErrNotFound):
		return wrap(ErrNotFound, withCollection(c.cfg.Index.Name), withVectorID(id))
	default:
		return wrap(err, withCollection(c.cfg.Index.Name), withVectorID(id))
	}
}

// SaveStateOptions configures Index().SaveState (spec.md §6
// "saveState(state, {baseName, includeAnn?})").
type SaveStateOptions struct {
	IncludeANN bool
}

// SaveState persists the collection: it is the Client-facing entry point
// into pkg/persistence.Save (spec.md §4.11, §6).
func (ix *indexFacade) SaveState(ctx context.Context, opts SaveStateOptions) (persistence.Manifest, error) {
	c := ix.c

	if idx := c.store.Index(); idx != nil && idx.NeedsRebuild() {
		idx.Rebuild(c.store)
	}

	manifest, err := persistence.Save(ctx, persistence.SaveRequest{
		Name:            c.cfg.Index.Name,
		Data:            storeDataSource{c.store},
		IndexStore:      c.cfg.Storage.Index,
		DataTargets:     c.cfg.Storage.Data,
		Placement:       c.cfg.Placement,
		Lock:            c.cfg.Server.Lock,
		LockName:        lockNameOrDefault(c.cfg),
		LockTTL:         c.cfg.Server.LockTTL,
		HolderID:        c.cfg.Server.HolderID,
		Clock:           c.cfg.Server.Clock,
		SegmentBytes:    c.cfg.Index.SegmentBytes,
		IncludeANN:      opts.IncludeANN || c.cfg.Index.IncludeANN,
		LastCommittedTs: c.lastTs,
		Metric:          c.cfg.Database.Metric.String(),
		Strategy:        string(c.cfg.Database.Strategy),
		Metrics:         c.cfg.Metrics,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConflictEpoch) {
			return persistence.Manifest{}, wrap(ErrConflictEpoch, withCollection(c.cfg.Index.Name))
		}

		if errors.Is(err, persistence.ErrConflict) {
			return persistence.Manifest{}, wrap(ErrConflictEpoch, withCollection(c.cfg.Index.Name))
		}

		if errors.Is(err, lockprovider.ErrLocked) {
			return persistence.Manifest{}, wrap(ErrLocked, withCollection(c.cfg.Index.Name))
		}

		return persistence.Manifest{}, wrap(ErrIO, withCollection(c.cfg.Index.Name))
	}

	c.lastTs = manifest.CommitTs
	c.walBuf = nil

	return manifest, nil
}

// OpenState loads the collection from storage, replacing the in-memory
// store (spec.md §6 "openState({baseName}) -> state", §4.11).
func (ix *indexFacade) OpenState(ctx context.Context) error {
	c := ix.c

	opened, err := persistence.Open(ctx, persistence.OpenRequest{
		Name:        c.cfg.Index.Name,
		IndexStore:  c.cfg.Storage.Index,
		DataTargets: c.cfg.Storage.Data,
		NewIndex: func(metric vecstore.Metric) vecstore.Index {
			return newIndexForStrategy(c.cfg)
		},
	})
	if err != nil {
		return wrap(ErrIO, withCollection(c.cfg.Index.Name))
	}

	// A loaded segment carries only vector+meta (spec.md §3 Vector record
	// has no attrs field of its own); the host must resupply attrs via Set
	// for any filtered search to see them again.
	c.store = opened.Store
	c.lastTs = opened.Manifest.CommitTs
	c.walBuf = nil
	c.attrs = attridx.NewBasic()

	return nil
}

// RebuildState forces the ANN artifact to rebuild from the live store
// (spec.md §6 "rebuildState({baseName}) -> state").
func (ix *indexFacade) RebuildState() {
	c := ix.c

	if c.store.Index() != nil {
		c.store.Index().Rebuild(c.store)
	}
}

// PlanRebalance computes the move set for a new placement map against the
// collection's current manifest (spec.md §6 "planRebalance(manifest) ->
// moves", §4.12).
func (ix *indexFacade) PlanRebalance(currentManifest persistence.Manifest, newMap placement.Map) []placement.Move {
	segments := make([]string, len(currentManifest.Segments))
	current := make(map[string]string, len(currentManifest.Segments))

	for i, seg := range currentManifest.Segments {
		segments[i] = seg.Name
		current[seg.Name] = seg.TargetKey
	}

	return placement.PlanRebalance(segments, current, newMap)
}

// ApplyRebalanceOptions configures Index().ApplyRebalance (spec.md §6
// "applyRebalance(baseName, moves, {verify?, cleanup?})").
type ApplyRebalanceOptions struct {
	Cleanup bool
}

// ApplyRebalance executes a move plan against live storage (spec.md §4.12,
// §6).
func (ix *indexFacade) ApplyRebalance(ctx context.Context, moves []placement.Move, opts ApplyRebalanceOptions) error {
	c := ix.c

	_, err := persistence.ApplyRebalance(ctx, persistence.ApplyRebalanceRequest{
		Name:          c.cfg.Index.Name,
		Moves:         moves,
		IndexStore:    c.cfg.Storage.Index,
		DataTargets:   c.cfg.Storage.Data,
		Lock:          c.cfg.Server.Lock,
		LockName:      lockNameOrDefault(c.cfg),
		LockTTL:       c.cfg.Server.LockTTL,
		HolderID:      c.cfg.Server.HolderID,
		DeleteOrphans: opts.Cleanup || c.cfg.Server.DeleteOrphansOnRebalance,
		Metrics:       c.cfg.Metrics,
	})
	if err != nil {
		return wrap(ErrIO, withCollection(c.cfg.Index.Name))
	}

	return nil
}

func lockNameOrDefault(cfg Config) string {
	if cfg.Server.LockName != "" {
		return cfg.Server.LockName
	}

	return cfg.Index.Name
}

// storeDataSource adapts *vecstore.Store to persistence.DataSource.
type storeDataSource struct{ s *vecstore.Store }

func (d storeDataSource) AllIDs() []uint32 { return d.s.AllIDs() }
func (d storeDataSource) Dim() uint32      { return d.s.Dim() }

func (d storeDataSource) Get(id uint32) ([]float32, []byte, bool) {
	return d.s.Get(id)
}
