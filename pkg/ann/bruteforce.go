// Package ann implements the three ANN strategies named in spec.md
// §4.3-§4.5 (brute-force, HNSW, IVF) against the vecstore.Index interface.
package ann

import (
	"sort"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// BruteForce is the exact reference strategy: no auxiliary structure, always
// correct, used both as a production strategy and as the recall oracle for
// HNSW/IVF (spec.md §4.3, testable property 5).
type BruteForce struct{}

// NewBruteForce constructs the brute-force strategy. It carries no state of
// its own — Add/Remove/Rebuild are no-ops because every Search call scans
// the backing VectorSource directly.
func NewBruteForce() *BruteForce { return &BruteForce{} }

func (*BruteForce) Kind() string { return "bruteforce" }

func (*BruteForce) Add(uint32, []float32) {}

func (*BruteForce) Remove(uint32) {}

func (*BruteForce) NeedsRebuild() bool { return false }

func (*BruteForce) Rebuild(vecstore.VectorSource) {}

func (b *BruteForce) Size() int { return 0 }

// Search scans every id in src, keeping only those admitted by
// opts.Candidates/opts.PostPredicate, and ranks the top K by metric score
// descending, ties broken by smaller id (spec.md §4.2, §4.8 step 2).
func (b *BruteForce) Search(query []float32, opts vecstore.SearchOptions, src vecstore.VectorSource) []vecstore.IDScore {
	metric := src.Metric()

	type scored struct {
		id    uint32
		score float32
	}

	var results []scored

	for _, id := range src.AllIDs() {
		if !opts.Candidates.Infinite && !opts.Candidates.Contains(id) {
			continue
		}

		if opts.PostPredicate != nil && !opts.PostPredicate(id) {
			continue
		}

		vec, ok := src.VectorByID(id)
		if !ok {
			continue
		}

		results = append(results, scored{id: id, score: metric.Score(query, vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}

		return results[i].id < results[j].id
	})

	if opts.K < len(results) {
		results = results[:opts.K]
	}

	out := make([]vecstore.IDScore, len(results))
	for i, r := range results {
		out[i] = vecstore.IDScore{ID: r.id, Score: r.score}
	}

	return out
}
