package unitig

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
)

func (g *Graph) inCapacity(v *Vertex) float64 {
	var sum float64
	for _, id := range v.In {
		sum += g.edges[id].Capacity
	}
	return sum
}

func (g *Graph) outCapacity(v *Vertex) float64 {
	var sum float64
	for _, id := range v.Out {
		sum += g.edges[id].Capacity
	}
	return sum
}

// calculateThresholds returns the dominant coverage of a component, the median edge capacity
// weighted by edge length.
func (g *Graph) calculateThresholds(edges []EdgeID) float64 {
	if len(edges) == 0 {
		return 0
	}
	arr := make([]EdgeID, len(edges))
	copy(arr, edges)
	sort.Slice(arr, func(i, j int) bool {
		a, b := &g.edges[arr[i]], &g.edges[arr[j]]
		if a.Capacity != b.Capacity {
			return a.Capacity < b.Capacity
		}
		return a.ID < b.ID
	})
	var total int
	for _, id := range arr {
		total += g.edges[id].Cap.Length
	}
	var acc int
	for _, id := range arr {
		acc += g.edges[id].Cap.Length
		if 2*acc >= total {
			return g.edges[id].Capacity
		}
	}
	return g.edges[arr[len(arr)-1]].Capacity
}

// TestHypothesis is a one sided Poisson test of the observed count num over exposure denom
// against the rate h0. It reports true when H0 is rejected, that is the count is too low to
// come from h0: P(X <= num | lambda = h0*denom) < alpha.
func TestHypothesis(num, denom, h0, alpha float64) bool {
	if denom <= 0 || h0 <= 0 {
		return false
	}
	p := distuv.Poisson{Lambda: h0 * denom}.CDF(math.Floor(num))
	return p < alpha
}

// RemoveStableSets drops the edges whose coverage is significantly below both the dominant
// coverage of their component and the flow through their end vertices. Returns the number of
// edges removed.
func (g *Graph) RemoveStableSets(opt Options) int {
	g.MarkComponents()
	ccEdges := g.componentEdges()
	ccs := make([]uint32, 0, len(ccEdges))
	for cc := range ccEdges {
		ccs = append(ccs, cc)
	}
	sort.Slice(ccs, func(i, j int) bool { return ccs[i] < ccs[j] })
	var removed int
	for _, cc := range ccs {
		edges := ccEdges[cc]
		dominant := g.calculateThresholds(edges)
		var rm []EdgeID
		for _, id := range edges {
			e := &g.edges[id]
			local := math.Max(g.outCapacity(g.mustVertex(e.From)), g.inCapacity(g.mustVertex(e.To)))
			h0 := opt.Ratio * math.Min(dominant, local)
			l := float64(e.Cap.Length)
			if TestHypothesis(e.Capacity*l, l, h0, opt.Alpha) {
				rm = append(rm, id)
			}
		}
		for _, id := range rm {
			g.logger.Debug("[RemoveStableSets] remove edge", zap.Uint32("cc", cc), zap.Stringer("edge", &g.edges[id]))
			g.removeEdge(id)
		}
		removed += len(rm)
	}
	g.logger.Info("[RemoveStableSets] removed low coverage edges", zap.Int("removed", removed))
	return removed
}

// RemoveEmpty drops vertices without edges.
func (g *Graph) RemoveEmpty() int {
	var n int
	for _, idx := range g.VertexIndices() {
		v := g.mustVertex(idx)
		if len(v.In) == 0 && len(v.Out) == 0 {
			g.removeVertex(idx)
			n++
		}
	}
	return n
}

// ContractPaths merges every vertex with exactly one in edge and one other out edge into a
// single edge, as long as both edges run on the same strand through it.
func (g *Graph) ContractPaths() int {
	var merged int
	for {
		n := 0
		for _, idx := range g.VertexIndices() {
			pos, ok := g.graph[idx]
			if !ok {
				continue
			}
			v := &g.vertices[pos]
			if len(v.In) != 1 || len(v.Out) != 1 || v.In[0] == v.Out[0] {
				continue
			}
			a, b := g.edges[v.In[0]], g.edges[v.Out[0]]
			if !a.joins(&b) {
				continue
			}
			g.removeVertex(idx)
			starting, ending := a.Starting+b.Starting, a.Ending+b.Ending
			_, err := g.addEdge(Edge{
				From:     a.From,
				To:       b.To,
				Name:     a.Name + b.Name,
				Starting: starting,
				Ending:   ending,
				Cap:      mergeCapacity(a.Cap, b.Cap),
				FromFlip: a.FromFlip,
				ToFlip:   b.ToFlip,
			})
			if err != nil {
				g.logger.Error("[ContractPaths] merge failed", zap.Uint32("vertex", idx), zap.Error(err))
				continue
			}
			n++
		}
		if n == 0 {
			break
		}
		merged += n
	}
	return merged
}

// CleanGraph removes empty vertices and contracts paths until nothing changes.
func (g *Graph) CleanGraph() {
	for {
		r := g.RemoveEmpty()
		c := g.ContractPaths()
		g.logger.Debug("[CleanGraph] pass", zap.Int("removed", r), zap.Int("contracted", c))
		if r == 0 && c == 0 {
			return
		}
	}
}
