// Package placement implements the CRUSH-like deterministic segment-to-target
// assignment described in spec.md §4.10.
package placement

import (
	"hash/fnv"
	"sort"
)

// Target is one placement destination; Key identifies it (e.g. a blob store
// URI or shard label).
type Target struct {
	Key string
}

// Map is a placementMap: pgs (placement groups), the replica fan-out, and
// the ordered target list.
type Map struct {
	PGs      uint64
	Replicas int
	Targets  []Target
}

// Assign computes the deterministic {primary, copies...} target set for
// segmentName (spec.md §4.10 steps 1-3). The result is stable under target
// additions/removals except for the minimal reshuffling CRUSH-style ranking
// guarantees (testable property 8).
func (m Map) Assign(segmentName string) []Target {
	if len(m.Targets) == 0 {
		return nil
	}

	pgs := m.PGs
	if pgs == 0 {
		pgs = 1
	}

	h := hash64(segmentName)
	pg := h % pgs

	type ranked struct {
		target Target
		score  uint64
	}

	ranks := make([]ranked, len(m.Targets))
	for i, t := range m.Targets {
		ranks[i] = ranked{target: t, score: hashPG(pg, t.Key)}
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].score != ranks[j].score {
			return ranks[i].score > ranks[j].score
		}

		return ranks[i].target.Key < ranks[j].target.Key
	})

	replicas := m.Replicas
	if replicas <= 0 {
		replicas = 1
	}

	if replicas > len(ranks) {
		replicas = len(ranks)
	}

	out := make([]Target, replicas)
	for i := 0; i < replicas; i++ {
		out[i] = ranks[i].target
	}

	return out
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))

	return h.Sum64()
}

func hashPG(pg uint64, targetKey string) uint64 {
	h := fnv.New64a()

	var buf [8]byte
	for i := range buf {
		buf[i] = byte(pg >> (8 * i))
	}

	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(targetKey))

	return h.Sum64()
}
