package ann

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// HNSWParams configures the layered proximity graph (spec.md §4.4).
type HNSWParams struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64

	// TombstoneRebuildRatio is the fraction of tombstoned-to-total nodes
	// that triggers a rebuild on next save. Spec.md §9 leaves the exact
	// value an open question and suggests 0.3 as an example; adopted as-is.
	TombstoneRebuildRatio float64
}

// DefaultHNSWParams matches the defaults named in spec.md §4.4.
func DefaultHNSWParams() HNSWParams {
	return HNSWParams{M: 16, EfConstruction: 200, EfSearch: 64, Seed: 1, TombstoneRebuildRatio: 0.3}
}

type hnswNode struct {
	id         uint32
	vec        []float32
	level      int
	neighbors  [][]uint32 // per layer, index 0..level
	tombstoned bool
}

// HNSW is the layered proximity graph strategy.
type HNSW struct {
	params     HNSWParams
	metric     vecstore.Metric
	rng        *rand.Rand
	nodes      map[uint32]*hnswNode
	entryID    uint32
	hasEntry   bool
	entryLevel int
	tombstones int
}

// NewHNSW constructs an empty graph.
func NewHNSW(params HNSWParams, metric vecstore.Metric) *HNSW {
	if params.M < 2 {
		params.M = 2
	}

	return &HNSW{
		params: params,
		metric: metric,
		rng:    rand.New(rand.NewSource(params.Seed)), //nolint:gosec // deterministic graph construction, not security-sensitive
		nodes:  make(map[uint32]*hnswNode),
	}
}

func (*HNSW) Kind() string { return "hnsw" }

func (h *HNSW) Size() int {
	n := 0

	for _, node := range h.nodes {
		if !node.tombstoned {
			n++
		}
	}

	return n
}

// assignLevel draws a node's layer per spec.md §4.4 step 1.
func (h *HNSW) assignLevel() int {
	u := h.rng.Float64()
	if u <= 0 {
		u = 1e-12
	}

	level := int(math.Floor(-math.Log(u) * (1.0 / math.Log(float64(h.params.M)))))
	if level < 0 {
		level = 0
	}

	return level
}

type candidate struct {
	id    uint32
	score float32
}

// maxHeap/minHeap over candidates, ordered by score.
type candHeap struct {
	items []candidate
	less  func(a, b candidate) bool
}

func (h *candHeap) Len() int            { return len(h.items) }
func (h *candHeap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *candHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *candHeap) Push(x interface{})  { h.items = append(h.items, x.(candidate)) }
func (h *candHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]

	return item
}

func newMinHeap() *candHeap {
	return &candHeap{less: func(a, b candidate) bool { return a.score < b.score }}
}

func newMaxHeap() *candHeap {
	return &candHeap{less: func(a, b candidate) bool { return a.score > b.score }}
}

// layerSearch runs a bounded best-first expansion at layer starting from
// entry, returning up to ef admitted candidates. canTraverse gates whether a
// neighbor is expanded (consuming bridgeBudget if it is outside the
// candidate set in soft mode); canAdmit gates whether a visited node is
// eligible to be returned as a result. Both are nil for unrestricted
// (construction-time) search, in which case every live node qualifies.
func (h *HNSW) layerSearch(query []float32, entry uint32, layer int, ef int, canTraverse, canAdmit func(uint32) bool, bridgeBudget *int) []candidate {
	visited := map[uint32]struct{}{entry: {}}

	entryNode := h.nodes[entry]
	if entryNode == nil {
		return nil
	}

	startScore := h.metric.Score(query, entryNode.vec)

	frontier := newMaxHeap() // nodes to expand, closest first
	heap.Push(frontier, candidate{id: entry, score: startScore})

	results := newMinHeap() // worst admitted result at top, bounded to ef

	if !entryNode.tombstoned && (canAdmit == nil || canAdmit(entry)) {
		heap.Push(results, candidate{id: entry, score: startScore})
	}

	for frontier.Len() > 0 {
		top := frontier.items[0]

		if results.Len() >= ef {
			worst := results.items[0]
			if top.score < worst.score {
				break
			}
		}

		heap.Pop(frontier)

		node := h.nodes[top.id]
		if node == nil || layer > node.level {
			continue
		}

		for _, nbrID := range node.neighbors[layer] {
			if _, seen := visited[nbrID]; seen {
				continue
			}

			visited[nbrID] = struct{}{}

			nbr := h.nodes[nbrID]
			if nbr == nil {
				continue
			}

			allowedToTraverse := true
			if canTraverse != nil && !canTraverse(nbrID) {
				if bridgeBudget == nil || *bridgeBudget <= 0 {
					allowedToTraverse = false
				} else {
					*bridgeBudget--
				}
			}

			if !allowedToTraverse {
				continue
			}

			score := h.metric.Score(query, nbr.vec)
			heap.Push(frontier, candidate{id: nbrID, score: score})

			if nbr.tombstoned {
				continue
			}

			if canAdmit != nil && !canAdmit(nbrID) {
				continue
			}

			heap.Push(results, candidate{id: nbrID, score: score})

			if results.Len() > ef {
				heap.Pop(results)
			}
		}
	}

	out := make([]candidate, len(results.items))
	copy(out, results.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}

		return out[i].id < out[j].id
	})

	return out
}

// selectHeuristic prunes candidates to at most M entries using the
// shrink-by-distance heuristic: greedily keep a candidate only if it is
// closer to the query than it is to every already-selected neighbor (a
// simple diversity filter against edge clustering).
func (h *HNSW) selectHeuristic(query []float32, candidates []candidate, m int) []uint32 {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var selected []candidate

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}

		cNode := h.nodes[c.id]

		keep := true

		for _, s := range selected {
			sNode := h.nodes[s.id]
			if h.metric.Score(cNode.vec, sNode.vec) > c.score {
				keep = false

				break
			}
		}

		if keep {
			selected = append(selected, c)
		}
	}

	ids := make([]uint32, len(selected))
	for i, s := range selected {
		ids[i] = s.id
	}

	return ids
}

func (h *HNSW) addBackLink(to, from uint32, layer int, score float32) {
	node := h.nodes[to]
	if node == nil || layer > node.level {
		return
	}

	for _, existing := range node.neighbors[layer] {
		if existing == from {
			return
		}
	}

	node.neighbors[layer] = append(node.neighbors[layer], from)

	if len(node.neighbors[layer]) <= h.params.M {
		return
	}

	cands := make([]candidate, 0, len(node.neighbors[layer]))

	for _, nid := range node.neighbors[layer] {
		other := h.nodes[nid]
		if other == nil {
			continue
		}

		cands = append(cands, candidate{id: nid, score: h.metric.Score(node.vec, other.vec)})
	}

	node.neighbors[layer] = h.selectHeuristic(node.vec, cands, h.params.M)
}

// Add inserts or re-inserts id following spec.md §4.4 construction steps.
func (h *HNSW) Add(id uint32, vec []float32) {
	h.Remove(id)

	if _, replaced := h.nodes[id]; replaced {
		h.tombstones-- // the tombstoned node is overwritten by the live one below
	}

	newLevel := h.assignLevel()

	node := &hnswNode{id: id, vec: vec, level: newLevel, neighbors: make([][]uint32, newLevel+1)}

	if !h.hasEntry {
		h.nodes[id] = node
		h.entryID = id
		h.entryLevel = newLevel
		h.hasEntry = true

		return
	}

	cur := h.entryID

	for layer := h.entryLevel; layer > newLevel; layer-- {
		res := h.layerSearch(vec, cur, layer, 1, nil, nil, nil)
		if len(res) > 0 {
			cur = res[0].id
		}
	}

	h.nodes[id] = node

	top := newLevel
	if h.entryLevel < top {
		top = h.entryLevel
	}

	for layer := top; layer >= 0; layer-- {
		cands := h.layerSearch(vec, cur, layer, h.params.EfConstruction, nil, nil, nil)
		neighborIDs := h.selectHeuristic(vec, cands, h.params.M)
		node.neighbors[layer] = neighborIDs

		for _, nid := range neighborIDs {
			other := h.nodes[nid]
			if other != nil {
				h.addBackLink(nid, id, layer, h.metric.Score(vec, other.vec))
			}
		}

		if len(cands) > 0 {
			cur = cands[0].id
		}
	}

	if newLevel > h.entryLevel {
		h.entryID = id
		h.entryLevel = newLevel
	}
}

// Remove tombstones id; the node stays in the graph (for traversal) until a
// rebuild purges it (spec.md §4.14 HNSW node state machine).
func (h *HNSW) Remove(id uint32) {
	node, ok := h.nodes[id]
	if !ok || node.tombstoned {
		return
	}

	node.tombstoned = true
	h.tombstones++
}

// NeedsRebuild reports whether the tombstone ratio has crossed the
// configured threshold.
func (h *HNSW) NeedsRebuild() bool {
	return h.TombstoneRatio() > h.params.TombstoneRebuildRatio
}

// TombstoneRatio returns the fraction of tombstoned-to-total nodes, for
// Stats() introspection.
func (h *HNSW) TombstoneRatio() float64 {
	total := len(h.nodes)
	if total == 0 {
		return 0
	}

	return float64(h.tombstones) / float64(total)
}

// Rebuild discards the graph and reconstructs it from src in ascending id
// order, for reproducibility.
func (h *HNSW) Rebuild(src vecstore.VectorSource) {
	h.nodes = make(map[uint32]*hnswNode)
	h.hasEntry = false
	h.entryLevel = 0
	h.tombstones = 0
	h.rng = rand.New(rand.NewSource(h.params.Seed)) //nolint:gosec // deterministic rebuild

	ids := src.AllIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		vec, ok := src.VectorByID(id)
		if !ok {
			continue
		}

		h.Add(id, vec)
	}
}

// Search performs unfiltered and filtered top-k search (spec.md §4.4 search
// procedure, §4.8 step 4 hard/soft modes).
func (h *HNSW) Search(query []float32, opts vecstore.SearchOptions, src vecstore.VectorSource) []vecstore.IDScore {
	if !h.hasEntry {
		return nil
	}

	ef := h.params.EfSearch
	if opts.K > ef {
		ef = opts.K
	}

	unrestricted := opts.Candidates.Infinite && opts.PostPredicate == nil

	var results []candidate

	switch {
	case unrestricted:
		cur := h.entryID
		for layer := h.entryLevel; layer > 0; layer-- {
			res := h.layerSearch(query, cur, layer, 1, nil, nil, nil)
			if len(res) > 0 {
				cur = res[0].id
			}
		}

		results = h.layerSearch(query, cur, 0, ef, nil, nil, nil)

	case opts.Mode == vecstore.ModeHard:
		results = h.hardSearch(query, opts, ef)

	default:
		results = h.softSearch(query, opts, ef)
	}

	if opts.K < len(results) {
		results = results[:opts.K]
	}

	out := make([]vecstore.IDScore, len(results))
	for i, c := range results {
		out[i] = vecstore.IDScore{ID: c.id, Score: c.score}
	}

	return out
}

func (h *HNSW) admit(opts vecstore.SearchOptions) func(uint32) bool {
	return func(id uint32) bool {
		inC := opts.Candidates.Infinite || opts.Candidates.Contains(id)
		if inC {
			return true
		}

		return opts.PostPredicate != nil && opts.PostPredicate(id)
	}
}

// hardSearch restricts both traversal and admission to the candidate set,
// seeding the frontier from within C.
func (h *HNSW) hardSearch(query []float32, opts vecstore.SearchOptions, ef int) []candidate {
	admit := h.admit(opts)

	seeds := h.seedsFromCandidates(query, opts)
	if len(seeds) == 0 {
		return nil
	}

	seen := map[uint32]struct{}{}

	var merged []candidate

	for _, s := range seeds {
		res := h.layerSearch(query, s, 0, ef, admit, admit, nil)

		for _, c := range res {
			if _, dup := seen[c.id]; dup {
				continue
			}

			seen[c.id] = struct{}{}
			merged = append(merged, c)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}

		return merged[i].id < merged[j].id
	})

	if len(merged) > ef {
		merged = merged[:ef]
	}

	return merged
}

// softSearch only admits candidate-set hits and expands out-of-candidate
// nodes only while bridgeBudget lasts (one unit per such expansion); once it
// is spent, traversal stays inside the candidate set. It widens ef
// adaptively when admissible recall looks low.
func (h *HNSW) softSearch(query []float32, opts vecstore.SearchOptions, ef int) []candidate {
	admit := h.admit(opts)

	budget := opts.BridgeBudget

	cur := h.entryID
	for layer := h.entryLevel; layer > 0; layer-- {
		res := h.layerSearch(query, cur, layer, 1, nil, nil, &budget)
		if len(res) > 0 {
			cur = res[0].id
		}
	}

	results := h.layerSearch(query, cur, 0, ef, admit, admit, &budget)

	if opts.AdaptiveEf && budget > 0 {
		needed := opts.K / 2
		if len(results) < needed {
			widerEf := ef * 2
			results = h.layerSearch(query, cur, 0, widerEf, admit, admit, &budget)
		}
	}

	if opts.EarlyStop.Enabled && len(results) >= opts.K {
		kth := results[opts.K-1].score
		cut := opts.K

		for cut < len(results) && results[cut].score+opts.EarlyStop.Margin < kth {
			cut++
		}

		results = results[:cut]
	}

	return results
}

// seedsFromCandidates draws the hard-mode initial frontier from C, following
// either a seeded-random or nearest-to-query strategy, sized to opts.Seeds
// or the adaptive default min(32, |C|) (spec.md §4.8).
func (h *HNSW) seedsFromCandidates(query []float32, opts vecstore.SearchOptions) []uint32 {
	ids := opts.Candidates.Slice()
	if len(ids) == 0 {
		return nil
	}

	count := opts.Seeds
	if count <= 0 {
		count = len(ids)
		if count > 32 {
			count = 32
		}
	}

	if count >= len(ids) {
		return filterLive(h, ids)
	}

	switch opts.SeedStrategy {
	case vecstore.SeedNearestCentroid:
		sort.Slice(ids, func(i, j int) bool {
			ni, oki := h.nodes[ids[i]]
			nj, okj := h.nodes[ids[j]]

			if !oki || !okj {
				return oki
			}

			return h.metric.Score(query, ni.vec) > h.metric.Score(query, nj.vec)
		})

		return filterLive(h, ids[:count])

	default: // SeedRandom
		rng := rand.New(rand.NewSource(h.params.Seed)) //nolint:gosec // deterministic seed selection
		perm := rng.Perm(len(ids))
		picked := make([]uint32, 0, count)

		for _, i := range perm {
			picked = append(picked, ids[i])
			if len(picked) == count {
				break
			}
		}

		return filterLive(h, picked)
	}
}

func filterLive(h *HNSW, ids []uint32) []uint32 {
	out := make([]uint32, 0, len(ids))

	for _, id := range ids {
		if n, ok := h.nodes[id]; ok && !n.tombstoned {
			out = append(out, id)
		}
	}

	return out
}
