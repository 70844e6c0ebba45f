package placement_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/placement"
)

func targets(keys ...string) []placement.Target {
	out := make([]placement.Target, len(keys))
	for i, k := range keys {
		out[i] = placement.Target{Key: k}
	}

	return out
}

func TestAssign_Deterministic(t *testing.T) {
	t.Parallel()

	m := placement.Map{PGs: 8, Replicas: 2, Targets: targets("a", "b", "c")}

	first := m.Assign("seg-001")
	second := m.Assign("seg-001")

	require.Equal(t, first, second)
	require.Len(t, first, 2)
}

func TestAssign_ReplicasCappedByTargetCount(t *testing.T) {
	t.Parallel()

	m := placement.Map{PGs: 1, Replicas: 5, Targets: targets("a", "b")}

	require.Len(t, m.Assign("seg"), 2)
}

func TestPlanRebalance_StabilityBound(t *testing.T) {
	t.Parallel()

	const segmentCount = 200

	segments := make([]string, segmentCount)
	current := make(map[string]string, segmentCount)

	oldMap := placement.Map{PGs: 64, Replicas: 1, Targets: targets("a", "b", "c")}

	for i := range segments {
		name := fmt.Sprintf("seg-%04d", i)
		segments[i] = name
		current[name] = oldMap.Assign(name)[0].Key
	}

	newMap := placement.Map{PGs: 64, Replicas: 1, Targets: targets("a", "b", "c", "d")}

	moves := placement.PlanRebalance(segments, current, newMap)

	// Adding one target to four should reassign roughly 1/4 of segments;
	// allow generous statistical tolerance (spec.md §8 property 8).
	maxExpected := segmentCount / len(newMap.Targets)
	require.LessOrEqual(t, len(moves), maxExpected*2)
}

func TestPlanRebalance_IdempotentAfterApply(t *testing.T) {
	t.Parallel()

	segments := []string{"s1", "s2", "s3"}
	current := map[string]string{"s1": "a", "s2": "a", "s3": "b"}

	newMap := placement.Map{PGs: 4, Replicas: 1, Targets: targets("a", "b", "c")}

	moves := placement.PlanRebalance(segments, current, newMap)
	for _, mv := range moves {
		current[mv.Segment] = mv.To
	}

	require.Empty(t, placement.PlanRebalance(segments, current, newMap))
}
