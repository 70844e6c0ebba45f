package ann

import (
	"math/rand"
	"sort"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// IVFParams configures the coarse quantizer (spec.md §4.5).
type IVFParams struct {
	NList  int
	NProbe int
	Seed   int64

	// FragmentationThreshold is the tombstone-over-total ratio across
	// inverted lists that triggers a retrain on next save. Spec.md §9
	// leaves the exact value an open question; 0.3 matches the threshold
	// chosen for HNSW rebuild so both strategies age out stale structure
	// at the same fragmentation point.
	FragmentationThreshold float64
}

// DefaultIVFParams mirrors the defaults implied by spec.md §4.5 and the
// open-question resolution in §9.
func DefaultIVFParams() IVFParams {
	return IVFParams{NList: 16, NProbe: 4, Seed: 1, FragmentationThreshold: 0.3}
}

// IVF is the coarse-quantizer strategy: vectors are assigned to the nearest
// of NList centroids, trained once by a seeded k-means pass, then searched
// by probing the NProbe nearest centroids' inverted lists.
type IVF struct {
	params IVFParams
	metric vecstore.Metric
	dim    int

	trained   bool
	centroids [][]float32
	lists     [][]uint32   // centroid index -> member ids, in insertion order
	listOf    map[uint32]int // id -> centroid index
	removed   int            // count of removals since last (re)train, for fragmentation

	pending []pendingVec // buffered inserts before training has a sample to train on
}

type pendingVec struct {
	id  uint32
	vec []float32
}

// NewIVF constructs an untrained IVF index for the given metric/dimension.
func NewIVF(params IVFParams, metric vecstore.Metric, dim int) *IVF {
	return &IVF{
		params: params,
		metric: metric,
		dim:    dim,
		listOf: make(map[uint32]int),
	}
}

func (*IVF) Kind() string { return "ivf" }

func (ix *IVF) Size() int {
	n := 0
	for _, l := range ix.lists {
		n += len(l)
	}

	return n
}

// Add inserts id. Before training has happened, the vector is buffered; once
// buffered vectors reach NList, training runs automatically (spec.md §4.5:
// "Training is triggered on first nlist-reachable insert"). After training,
// inserts append directly to the nearest list.
func (ix *IVF) Add(id uint32, vec []float32) {
	ix.Remove(id) // re-add semantics: clear any prior assignment first

	if !ix.trained {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		ix.pending = append(ix.pending, pendingVec{id: id, vec: cp})

		if len(ix.pending) >= ix.params.NList {
			ix.train(ix.pending)
		}

		return
	}

	ix.assign(id, vec)
}

func (ix *IVF) assign(id uint32, vec []float32) {
	best := -1
	var bestScore float32

	for i, c := range ix.centroids {
		score := ix.metric.Score(vec, c)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	ix.lists[best] = append(ix.lists[best], id)
	ix.listOf[id] = best
}

// train runs a fixed-seed k-means pass over the buffered sample and assigns
// every buffered vector to its resulting nearest centroid.
func (ix *IVF) train(sample []pendingVec) {
	nlist := ix.params.NList
	if nlist > len(sample) {
		nlist = len(sample)
	}

	if nlist == 0 {
		return
	}

	rng := rand.New(rand.NewSource(ix.params.Seed)) //nolint:gosec // deterministic clustering, not security-sensitive

	perm := rng.Perm(len(sample))
	centroids := make([][]float32, nlist)

	for i := 0; i < nlist; i++ {
		src := sample[perm[i]].vec
		c := make([]float32, len(src))
		copy(c, src)
		centroids[i] = c
	}

	const iterations = 8

	assignments := make([]int, len(sample))

	for iter := 0; iter < iterations; iter++ {
		for i, p := range sample {
			best := 0
			bestScore := ix.metric.Score(p.vec, centroids[0])

			for c := 1; c < nlist; c++ {
				score := ix.metric.Score(p.vec, centroids[c])
				if score > bestScore {
					best, bestScore = c, score
				}
			}

			assignments[i] = best
		}

		sums := make([][]float32, nlist)
		counts := make([]int, nlist)

		for c := range sums {
			sums[c] = make([]float32, ix.dim)
		}

		for i, p := range sample {
			c := assignments[i]
			counts[c]++

			for d := 0; d < ix.dim; d++ {
				sums[c][d] += p.vec[d]
			}
		}

		for c := 0; c < nlist; c++ {
			if counts[c] == 0 {
				continue
			}

			for d := 0; d < ix.dim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}
	}

	ix.centroids = centroids
	ix.lists = make([][]uint32, nlist)
	ix.listOf = make(map[uint32]int, len(sample))
	ix.trained = true
	ix.pending = nil

	for i, p := range sample {
		c := assignments[i]
		ix.lists[c] = append(ix.lists[c], p.id)
		ix.listOf[p.id] = c
	}
}

// Remove deletes id from whichever structure currently holds it.
func (ix *IVF) Remove(id uint32) {
	if c, ok := ix.listOf[id]; ok {
		ix.lists[c] = removeID(ix.lists[c], id)
		delete(ix.listOf, id)
		ix.removed++

		return
	}

	for i, p := range ix.pending {
		if p.id == id {
			ix.pending = append(ix.pending[:i], ix.pending[i+1:]...)

			return
		}
	}
}

func removeID(list []uint32, id uint32) []uint32 {
	for i, x := range list {
		if x == id {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

// NeedsRebuild reports whether accumulated removals have fragmented the
// inverted lists past FragmentationThreshold relative to live size.
func (ix *IVF) NeedsRebuild() bool {
	return ix.FragmentationRatio() > ix.params.FragmentationThreshold
}

// FragmentationRatio returns the removed-over-total ratio across inverted
// lists, for Stats() introspection.
func (ix *IVF) FragmentationRatio() float64 {
	live := ix.Size()
	if live+ix.removed == 0 {
		return 0
	}

	return float64(ix.removed) / float64(live+ix.removed)
}

// Rebuild retrains from scratch off of src, discarding prior centroids.
func (ix *IVF) Rebuild(src vecstore.VectorSource) {
	ix.trained = false
	ix.centroids = nil
	ix.lists = nil
	ix.listOf = make(map[uint32]int)
	ix.removed = 0
	ix.pending = nil

	ids := src.AllIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	sample := make([]pendingVec, 0, len(ids))

	for _, id := range ids {
		vec, ok := src.VectorByID(id)
		if !ok {
			continue
		}

		sample = append(sample, pendingVec{id: id, vec: vec})
	}

	if len(sample) == 0 {
		return
	}

	ix.train(sample)
}

// Search probes the NProbe nearest centroids' lists, intersects scanned ids
// with opts.Candidates, and ranks exactly against the query (spec.md §4.8
// step 3). If training has not happened yet (small stores), falls back to a
// brute-force scan over src.
func (ix *IVF) Search(query []float32, opts vecstore.SearchOptions, src vecstore.VectorSource) []vecstore.IDScore {
	if !ix.trained {
		bf := BruteForce{}

		return bf.Search(query, opts, src)
	}

	nprobe := ix.params.NProbe
	if nprobe > len(ix.centroids) {
		nprobe = len(ix.centroids)
	}

	type centroidDist struct {
		idx   int
		score float32
	}

	ranked := make([]centroidDist, len(ix.centroids))
	for i, c := range ix.centroids {
		ranked[i] = centroidDist{idx: i, score: ix.metric.Score(query, c)}
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	type scored struct {
		id    uint32
		score float32
	}

	var results []scored

	seen := make(map[uint32]struct{})

	for p := 0; p < nprobe; p++ {
		for _, id := range ix.lists[ranked[p].idx] {
			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}

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

			results = append(results, scored{id: id, score: ix.metric.Score(query, vec)})
		}
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
