package vectorlite

import (
	"time"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	"github.com/trkbt10/vectorlite/pkg/lockprovider"
	"github.com/trkbt10/vectorlite/pkg/logging"
	"github.com/trkbt10/vectorlite/pkg/metrics"
	"github.com/trkbt10/vectorlite/pkg/placement"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// Strategy selects the ANN indexing strategy for a collection.
type Strategy string

const (
	StrategyBruteForce Strategy = "bruteforce"
	StrategyHNSW       Strategy = "hnsw"
	StrategyIVF        Strategy = "ivf"
)

// HNSWConfig configures the HNSW strategy. Zero values take the package
// defaults from pkg/ann.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

// IVFConfig configures the IVF strategy. Zero values take the package
// defaults from pkg/ann.
type IVFConfig struct {
	NList  int
	NProbe int
}

// DatabaseConfig describes the vector table itself (spec.md §6
// Configuration, "database").
type DatabaseConfig struct {
	// Dim is the fixed vector dimension. Required.
	Dim uint32

	// Metric is the distance/similarity function. Optional. Default:
	// cosine.
	Metric vecstore.Metric

	// Strategy selects the ANN index. Optional. Default: bruteforce.
	Strategy Strategy

	HNSW HNSWConfig
	IVF  IVFConfig
}

// IndexConfig describes the collection's persisted identity and placement
// (spec.md §6 Configuration, "index").
type IndexConfig struct {
	// Name identifies the collection for manifest/head/catalog key names.
	// Required.
	Name string

	// Shards, Replicas, PGs are carried for configuration parity and are not
	// read by Connect or Save; placement comes from Config.Placement. When
	// Config.Placement has no targets, it defaults to a map with 1 PG, 1
	// replica, and one target per Storage.Data key.
	Shards   int
	Replicas int
	PGs      uint64

	// Segmented is carried for configuration parity and is not read; save
	// always packs segments. SegmentBytes bounds each segment's size
	// (spec.md §4.11). Optional. Default: SegmentBytes=1<<20.
	Segmented    bool
	SegmentBytes int

	// IncludeANN is passed through to persistence.Save as its IncludeANN
	// flag. The Client supplies no ANN payload, so no .index blob is
	// written, and open always repopulates a fresh index from the loaded
	// rows.
	IncludeANN bool
}

// StorageConfig wires the Blob IO targets for the index artifacts
// (manifest/catalog/head/wal) and the segment data (spec.md §6
// Configuration, "storage").
type StorageConfig struct {
	// Index is the Blob IO target for manifest/catalog/head/wal. Required.
	Index blobio.BlobIO

	// Data maps a placement target key to its Blob IO. Required: at least
	// one entry, and every key named in Placement.Targets must be present.
	Data map[string]blobio.BlobIO
}

// ServerConfig configures resource-bound operational knobs: the lock used
// to serialize save/rebalance, and the clock used for commit timestamps
// (spec.md §6 Configuration, "server" — the HTTP façade fields
// resultConsistency/epsilonMs are out of scope per spec.md §1 and carried
// only as the lock/clock seam a future façade would read from).
type ServerConfig struct {
	Lock                     lockprovider.Provider
	LockName                 string
	LockTTL                  time.Duration
	HolderID                 string
	Clock                    func() time.Time
	DeleteOrphansOnRebalance bool
}

// Config is the fully-resolved configuration passed to Connect, following
// the struct-of-callbacks idiom this module's ancestry uses for its own
// config types: required fields are validated up front, optional fields
// are defaulted the way a zero-value numeric field implies "use the
// package default."
type Config struct {
	Database DatabaseConfig
	Index    IndexConfig
	Storage  StorageConfig
	Server   ServerConfig

	Placement placement.Map

	Logger  logging.Logger
	Metrics metrics.Recorder
}

func (c *Config) setDefaults() {
	// vecstore.Cosine is the zero value, so an unset Metric already
	// defaults correctly without an explicit check.

	if c.Database.Strategy == "" {
		c.Database.Strategy = StrategyBruteForce
	}

	if c.Index.SegmentBytes <= 0 {
		c.Index.SegmentBytes = 1 << 20
	}

	if c.Server.LockTTL <= 0 {
		c.Server.LockTTL = 10 * time.Second
	}

	if c.Server.HolderID == "" {
		c.Server.HolderID = lockprovider.NewHolderID()
	}

	if c.Server.Clock == nil {
		c.Server.Clock = time.Now
	}

	if c.Server.Lock == nil {
		c.Server.Lock = lockprovider.NewMemory()
	}

	if c.Logger == nil {
		c.Logger = logging.Noop{}
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Noop{}
	}

	if len(c.Placement.Targets) == 0 && len(c.Storage.Data) > 0 {
		for key := range c.Storage.Data {
			c.Placement.Targets = append(c.Placement.Targets, placement.Target{Key: key})
		}

		c.Placement.PGs = 1
		c.Placement.Replicas = 1
	}
}

func (c *Config) validate() error {
	if c.Database.Dim == 0 {
		return wrap(ErrUnsupported, withKey("database.dim")) // dim is required
	}

	if c.Index.Name == "" {
		return wrap(ErrUnsupported, withKey("index.name"))
	}

	if c.Storage.Index == nil {
		return wrap(ErrUnsupported, withKey("storage.index"))
	}

	if len(c.Storage.Data) == 0 {
		return wrap(ErrUnsupported, withKey("storage.data"))
	}

	return nil
}
