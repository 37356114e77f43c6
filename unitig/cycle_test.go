package unitig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkCycles(t *testing.T) {
	g := handGraph(t, 5,
		testEdge(1, 2, "AC", 1), // 0
		testEdge(2, 3, "GT", 1), // 1
		testEdge(3, 1, "TT", 1), // 2
		testEdge(3, 4, "CA", 1), // 3
		testEdge(4, 4, "GG", 1), // 4
	)
	assert.Equal(t, 3, g.MarkCycles())
	want := map[EdgeID]bool{0: true, 1: true, 2: true, 3: false, 4: true}
	for id, inCycle := range want {
		e, _ := g.Edge(id)
		assert.Equal(t, inCycle, e.InCycle(), "edge %d", id)
	}
	v1, _ := g.Vertex(1)
	v3, _ := g.Vertex(3)
	v4, _ := g.Vertex(4)
	v5, _ := g.Vertex(5)
	assert.Equal(t, v1.SCC, v3.SCC)
	assert.NotEqual(t, v1.SCC, v4.SCC)
	assert.NotEqual(t, v4.SCC, v5.SCC)
}

func TestMarkCyclesDeepChain(t *testing.T) {
	const n = 100000
	var edges []Edge
	for i := uint32(1); i < n; i++ {
		edges = append(edges, testEdge(i, i+1, "A", 1))
	}
	g := handGraph(t, n, edges...)
	assert.Equal(t, n, g.MarkCycles())
	assert.Equal(t, 1, g.MarkComponents())
}

func TestMarkComponents(t *testing.T) {
	g := handGraph(t, 6,
		testEdge(1, 3, "A", 1),
		testEdge(5, 3, "C", 1),
		testEdge(2, 4, "G", 1),
	)
	assert.Equal(t, 3, g.MarkComponents())
	cc := func(idx uint32) uint32 { v, _ := g.Vertex(idx); return v.CC }
	assert.Equal(t, uint32(1), cc(1))
	assert.Equal(t, uint32(1), cc(3))
	assert.Equal(t, uint32(1), cc(5))
	assert.Equal(t, uint32(2), cc(2))
	assert.Equal(t, uint32(2), cc(4))
	assert.Equal(t, uint32(3), cc(6))
}

func TestEdgeDeque(t *testing.T) {
	var d edgeDeque
	d.PushBack(2)
	d.PushFront(1)
	d.PushBack(3)
	d.PushFront(0)
	assert.Equal(t, []EdgeID{0, 1, 2, 3}, d.Slice())
	assert.Equal(t, EdgeID(0), d.Front())
	assert.Equal(t, EdgeID(3), d.Back())
	assert.Equal(t, 4, d.Len())
}

func cycleGraph(t *testing.T) *Graph {
	return handGraph(t, 8,
		testEdge(1, 2, "AA", 2), // 0
		testEdge(2, 3, "CC", 2), // 1
		testEdge(3, 1, "GG", 2), // 2
		testEdge(2, 5, "TT", 3), // 3 exit from 2
		testEdge(3, 6, "AC", 1), // 4 exit from 3
		testEdge(7, 1, "CA", 2), // 5 entry into 1
		testEdge(8, 2, "TG", 5), // 6 entry into 2
	)
}

func TestContinueCycleForward(t *testing.T) {
	g := cycleGraph(t)
	cycle := &edgeDeque{}
	for _, id := range []EdgeID{0, 1, 2} {
		cycle.PushBack(id)
	}
	onPath := map[EdgeID]bool{0: true, 1: true, 2: true}
	unrolled, exit := g.continueCycle(cycle, onPath, true)
	assert.Equal(t, []EdgeID{2, 0}, unrolled)
	assert.Equal(t, EdgeID(3), exit)

	// with the fat exit used up the path leaves from vertex 3
	g.edges[3].SetVisited()
	unrolled, exit = g.continueCycle(cycle, onPath, true)
	assert.Equal(t, []EdgeID{2, 0, 1}, unrolled)
	assert.Equal(t, EdgeID(4), exit)

	g.edges[4].SetVisited()
	unrolled, exit = g.continueCycle(cycle, onPath, true)
	assert.Equal(t, []EdgeID{2}, unrolled)
	assert.Equal(t, NoEdge, exit)
}

func TestContinueCycleBackward(t *testing.T) {
	g := cycleGraph(t)
	cycle := &edgeDeque{}
	for _, id := range []EdgeID{2, 0, 1} {
		cycle.PushBack(id)
	}
	onPath := map[EdgeID]bool{0: true, 1: true, 2: true}
	unrolled, entry := g.continueCycle(cycle, onPath, false)
	assert.Equal(t, []EdgeID{2, 1}, unrolled)
	assert.Equal(t, EdgeID(6), entry)
}

func TestFindFattestPathCycle(t *testing.T) {
	g := cycleGraph(t)
	g.MarkComponents()
	g.MarkCycles()
	// seed 6 takes the fat exit out of 2 straight away
	path := g.findFattestPath(6)
	require.NotEmpty(t, path)
	assert.Equal(t, []EdgeID{6, 3}, path)

	g.Unvisit()
	g.edges[3].SetVisited()
	g.edges[6].SetVisited()
	// entering at 1 the loop closes on 3->1, it is walked once more and left through 3->6
	path = g.findFattestPath(5)
	assert.Equal(t, []EdgeID{5, 0, 1, 2, 0, 1, 4}, path)
}
