package unitig

import "sort"

// MarkCycles sets SCC on every vertex with Tarjan's algorithm and flags the edges that lie on
// a cycle. The recursion is replaced by an explicit frame stack, unitig graphs of large genomes
// are far too deep for the goroutine stack. Returns the number of SCCs.
func (g *Graph) MarkCycles() int {
	for _, pos := range g.graph {
		v := &g.vertices[pos]
		v.visitingTime, v.tarjanIndex, v.onStack, v.SCC = 0, 0, false, 0
	}
	type callFrame struct {
		v         VertexID
		edgeIndex int
		phase     int // 0:enter 1:edges 2:after child 3:finish
		child     VertexID
	}
	var index int
	var sccID uint32
	var stack []VertexID
	for _, idx := range g.VertexIndices() {
		start := g.graph[idx]
		if g.vertices[start].visitingTime != 0 {
			continue
		}
		callStack := []callFrame{{v: start}}
		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]
			v := &g.vertices[frame.v]
			switch frame.phase {
			case 0:
				index++
				v.visitingTime, v.tarjanIndex = index, index
				stack = append(stack, frame.v)
				v.onStack = true
				frame.phase = 1
			case 1:
				frame.phase = 3
				for frame.edgeIndex < len(v.Out) {
					e := &g.edges[v.Out[frame.edgeIndex]]
					frame.edgeIndex++
					w := g.graph[e.To]
					wv := &g.vertices[w]
					if wv.visitingTime == 0 {
						frame.phase, frame.child = 2, w
						callStack = append(callStack, callFrame{v: w})
						break
					}
					if wv.onStack && wv.visitingTime < v.tarjanIndex {
						v.tarjanIndex = wv.visitingTime
					}
				}
			case 2:
				if c := &g.vertices[frame.child]; c.tarjanIndex < v.tarjanIndex {
					v.tarjanIndex = c.tarjanIndex
				}
				frame.phase = 1
			case 3:
				if v.tarjanIndex == v.visitingTime {
					sccID++
					for {
						w := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						g.vertices[w].onStack = false
						g.vertices[w].SCC = sccID
						if w == frame.v {
							break
						}
					}
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}
	g.numSCC = sccID

	size := make(map[uint32]int)
	for _, pos := range g.graph {
		size[g.vertices[pos].SCC]++
	}
	for _, id := range g.EdgeIDs() {
		e := &g.edges[id]
		e.ResetInCycleFlag()
		from, to := g.mustVertex(e.From), g.mustVertex(e.To)
		if from.SCC == to.SCC && (size[from.SCC] > 1 || e.IsSelfLoop()) {
			e.SetInCycleFlag()
		}
	}
	return int(sccID)
}

// MarkComponents numbers the weakly connected components from 1 in vertex index order.
func (g *Graph) MarkComponents() int {
	for _, pos := range g.graph {
		g.vertices[pos].CC = 0
	}
	var cc uint32
	for _, idx := range g.VertexIndices() {
		if g.mustVertex(idx).CC != 0 {
			continue
		}
		cc++
		queue := []uint32{idx}
		g.mustVertex(idx).CC = cc
		for len(queue) > 0 {
			v := g.mustVertex(queue[0])
			queue = queue[1:]
			for _, arr := range [2][]EdgeID{v.In, v.Out} {
				for _, id := range arr {
					e := &g.edges[id]
					for _, n := range [2]uint32{e.From, e.To} {
						if nv := g.mustVertex(n); nv.CC == 0 {
							nv.CC = cc
							queue = append(queue, n)
						}
					}
				}
			}
		}
	}
	g.numCC = cc
	return int(cc)
}

// componentEdges groups live edges by the component of their source, each list sorted by
// source index then edge ID.
func (g *Graph) componentEdges() map[uint32][]EdgeID {
	m := make(map[uint32][]EdgeID)
	for _, id := range g.EdgeIDs() {
		cc := g.mustVertex(g.edges[id].From).CC
		m[cc] = append(m[cc], id)
	}
	for _, arr := range m {
		sort.Slice(arr, func(i, j int) bool {
			a, b := &g.edges[arr[i]], &g.edges[arr[j]]
			if a.From != b.From {
				return a.From < b.From
			}
			return a.ID < b.ID
		})
	}
	return m
}

// edgeDeque is a double ended edge sequence, front is stored reversed.
type edgeDeque struct {
	front, back []EdgeID
}

func (d *edgeDeque) PushFront(id EdgeID) { d.front = append(d.front, id) }
func (d *edgeDeque) PushBack(id EdgeID)  { d.back = append(d.back, id) }
func (d *edgeDeque) Len() int            { return len(d.front) + len(d.back) }

func (d *edgeDeque) At(i int) EdgeID {
	if i < len(d.front) {
		return d.front[len(d.front)-1-i]
	}
	return d.back[i-len(d.front)]
}

func (d *edgeDeque) Front() EdgeID { return d.At(0) }
func (d *edgeDeque) Back() EdgeID  { return d.At(d.Len() - 1) }

func (d *edgeDeque) Slice() []EdgeID {
	arr := make([]EdgeID, 0, d.Len())
	for i := 0; i < d.Len(); i++ {
		arr = append(arr, d.At(i))
	}
	return arr
}

func better(g *Graph, cand, best EdgeID) bool {
	if best == NoEdge {
		return true
	}
	c, b := &g.edges[cand], &g.edges[best]
	if c.Residual != b.Residual {
		return c.Residual > b.Residual
	}
	return c.ID < b.ID
}

// checkCycleOutEdges picks the fattest edge leaving (forward) or entering (backward) the cycle
// that is not a cycle edge, not visited and not on the path. The edge must join the cycle edge
// it follows (forward) or precedes (backward) on the same strand. Returns the edge and the
// position in cycle of the vertex it leaves or enters, NoEdge if there is none.
func (g *Graph) checkCycleOutEdges(cycle *edgeDeque, onPath map[EdgeID]bool, forward bool) (EdgeID, int) {
	n := cycle.Len()
	inCycle := make(map[EdgeID]bool, n)
	for i := 0; i < n; i++ {
		inCycle[cycle.At(i)] = true
	}
	best, bestPos := NoEdge, -1
	for i := 0; i < n; i++ {
		var v *Vertex
		var cands []EdgeID
		var ref *Edge
		if forward {
			// vertex From(c_i), reached through the cycle edge before it
			ref = &g.edges[cycle.At((i-1+n)%n)]
			v = g.mustVertex(g.edges[cycle.At(i)].From)
			cands = v.Out
		} else {
			// vertex To(c_i), left through the cycle edge after it
			ref = &g.edges[cycle.At((i+1)%n)]
			v = g.mustVertex(g.edges[cycle.At(i)].To)
			cands = v.In
		}
		for _, id := range cands {
			e := &g.edges[id]
			if inCycle[id] || onPath[id] || e.IsVisited() || e.Residual <= 0 {
				continue
			}
			if (forward && !ref.joins(e)) || (!forward && !e.joins(ref)) {
				continue
			}
			if better(g, id, best) {
				best, bestPos = id, i
			}
		}
	}
	return best, bestPos
}

// continueCycle unrolls cycle once. Forward, cycle is c0..cm with cm the edge that closed it;
// the result is cm followed by the cycle edges up to the vertex of the chosen exit. Backward,
// cycle is e,p0..pj with e the closing edge; the result is e followed by pj, pj-1, ... in the
// order they are pushed to the front. The exit (or entry) edge is returned separately,
// NoEdge when the cycle has none and the path ends on it.
func (g *Graph) continueCycle(cycle *edgeDeque, onPath map[EdgeID]bool, forward bool) ([]EdgeID, EdgeID) {
	n := cycle.Len()
	exit, pos := g.checkCycleOutEdges(cycle, onPath, forward)
	if forward {
		unrolled := []EdgeID{cycle.At(n - 1)}
		if exit == NoEdge {
			return unrolled, NoEdge
		}
		for i := 0; i < pos; i++ {
			unrolled = append(unrolled, cycle.At(i))
		}
		return unrolled, exit
	}
	unrolled := []EdgeID{cycle.At(0)}
	if exit == NoEdge {
		return unrolled, NoEdge
	}
	for i := n - 1; i > pos; i-- {
		unrolled = append(unrolled, cycle.At(i))
	}
	return unrolled, exit
}
