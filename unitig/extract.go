package unitig

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Alpha  float64 // significance level of the low coverage test
	Ratio  float64 // share of the expected coverage an edge must reach
	Prune  bool
	NumCPU int
}

func DefaultOptions() Options {
	return Options{Alpha: 0.01, Ratio: 0.25, Prune: true, NumCPU: runtime.NumCPU()}
}

type ContigStats struct {
	Length int
	AvgCov float64
	MinCov float64
	MaxCov float64
	Flow   float64
	Edges  int
}

type Contig struct {
	ID    int
	CC    uint32
	Seq   string
	Path  []EdgeID
	Stats ContigStats
}

type Result struct {
	Contigs []Contig
	Failed  []*ComponentError
	Pruned  int
}

// getSeed returns the unvisited edge with the largest residual, edges must be ordered by
// source index then ID.
func (g *Graph) getSeed(edges []EdgeID) EdgeID {
	best := NoEdge
	for _, id := range edges {
		e := &g.edges[id]
		if e.IsVisited() || e.Residual <= 0 {
			continue
		}
		if best == NoEdge || e.Residual > g.edges[best].Residual {
			best = id
		}
	}
	return best
}

// pathState tracks the edges and vertices already on the path being extended.
type pathState struct {
	path     edgeDeque
	onPath   map[EdgeID]bool
	vertices map[uint32]int
}

func (g *Graph) newPathState(seed EdgeID) *pathState {
	ps := &pathState{onPath: make(map[EdgeID]bool), vertices: make(map[uint32]int)}
	e := &g.edges[seed]
	ps.path.PushBack(seed)
	ps.onPath[seed] = true
	ps.vertices[e.From]++
	ps.vertices[e.To]++
	return ps
}

func (ps *pathState) pushBack(g *Graph, id EdgeID) {
	ps.path.PushBack(id)
	ps.onPath[id] = true
	ps.vertices[g.edges[id].To]++
}

func (ps *pathState) pushFront(g *Graph, id EdgeID) {
	ps.path.PushFront(id)
	ps.onPath[id] = true
	ps.vertices[g.edges[id].From]++
}

// fattest returns the usable candidate with the largest residual, ties to the lowest ID.
func (g *Graph) fattest(cands []EdgeID, ps *pathState, ok func(e *Edge) bool) EdgeID {
	best := NoEdge
	for _, id := range cands {
		e := &g.edges[id]
		if e.IsVisited() || ps.onPath[id] || e.Residual <= 0 || !ok(e) {
			continue
		}
		if better(g, id, best) {
			best = id
		}
	}
	return best
}

// closedCycle returns the cycle that edge id closes when appended (forward) or prepended
// (backward) to the path, nil when it does not close one on the same strand.
func (g *Graph) closedCycle(ps *pathState, id EdgeID, forward bool) *edgeDeque {
	e := &g.edges[id]
	cycle := &edgeDeque{}
	n := ps.path.Len()
	if forward {
		if e.IsSelfLoop() {
			cycle.PushBack(id)
			return cycle
		}
		for i := n - 1; i >= 0; i-- {
			p := &g.edges[ps.path.At(i)]
			if p.From == e.To {
				if !e.joins(p) {
					return nil
				}
				for j := i; j < n; j++ {
					cycle.PushBack(ps.path.At(j))
				}
				cycle.PushBack(id)
				return cycle
			}
		}
		return nil
	}
	if e.IsSelfLoop() {
		cycle.PushBack(id)
		return cycle
	}
	for i := 0; i < n; i++ {
		p := &g.edges[ps.path.At(i)]
		if p.To == e.From {
			if !p.joins(e) {
				return nil
			}
			cycle.PushBack(id)
			for j := 0; j <= i; j++ {
				cycle.PushBack(ps.path.At(j))
			}
			return cycle
		}
	}
	return nil
}

// findFattestPath extends seed greedily forward then backward along the fattest unvisited
// edges. A cycle met on the way is unrolled once and left through its fattest exit.
func (g *Graph) findFattestPath(seed EdgeID) []EdgeID {
	ps := g.newPathState(seed)
	for {
		last := &g.edges[ps.path.Back()]
		id := g.fattest(g.mustVertex(last.To).Out, ps, func(e *Edge) bool { return last.joins(e) })
		if id == NoEdge {
			break
		}
		var cycle *edgeDeque
		if g.edges[id].InCycle() && ps.vertices[g.edges[id].To] > 0 {
			cycle = g.closedCycle(ps, id, true)
		}
		if cycle == nil {
			ps.pushBack(g, id)
			continue
		}
		ps.onPath[id] = true
		unrolled, exit := g.continueCycle(cycle, ps.onPath, true)
		for _, c := range unrolled {
			ps.pushBack(g, c)
		}
		if exit == NoEdge {
			break
		}
		ps.pushBack(g, exit)
	}
	for {
		first := &g.edges[ps.path.Front()]
		id := g.fattest(g.mustVertex(first.From).In, ps, func(e *Edge) bool { return e.joins(first) })
		if id == NoEdge {
			break
		}
		var cycle *edgeDeque
		if g.edges[id].InCycle() && ps.vertices[g.edges[id].From] > 0 {
			cycle = g.closedCycle(ps, id, false)
		}
		if cycle == nil {
			ps.pushFront(g, id)
			continue
		}
		ps.onPath[id] = true
		unrolled, entry := g.continueCycle(cycle, ps.onPath, false)
		for _, c := range unrolled {
			ps.pushFront(g, c)
		}
		if entry == NoEdge {
			break
		}
		ps.pushFront(g, entry)
	}
	return ps.path.Slice()
}

func distinct(path []EdgeID) []EdgeID {
	seen := make(map[EdgeID]bool, len(path))
	arr := make([]EdgeID, 0, len(path))
	for _, id := range path {
		if !seen[id] {
			seen[id] = true
			arr = append(arr, id)
		}
	}
	return arr
}

// calculateFlow returns the bottleneck of path, the smallest residual of its edges.
func (g *Graph) calculateFlow(path []EdgeID) float64 {
	flow := math.Inf(1)
	for _, id := range path {
		flow = math.Min(flow, g.edges[id].Residual)
	}
	if math.IsInf(flow, 1) {
		return 0
	}
	return flow
}

// calculateContigs spells path and summarises its coverage.
func (g *Graph) calculateContigs(path []EdgeID) (string, ContigStats) {
	var st ContigStats
	if len(path) == 0 {
		return "", st
	}
	first := &g.edges[path[0]]
	var sb strings.Builder
	sb.WriteString(g.mustVertex(first.From).Literal(first.FromFlip))
	var covSum float64
	var covLen int
	st.MinCov = math.Inf(1)
	for _, id := range path {
		e := &g.edges[id]
		sb.WriteString(e.Name)
		covSum += e.Cap.Avg * float64(e.Cap.Length)
		covLen += e.Cap.Length
		st.MinCov = math.Min(st.MinCov, e.Cap.Min)
		st.MaxCov = math.Max(st.MaxCov, e.Cap.Max)
	}
	if covLen > 0 {
		st.AvgCov = covSum / float64(covLen)
	}
	st.Length = sb.Len()
	st.Edges = len(path)
	return sb.String(), st
}

// extractComponent pulls contigs out of one component until no seed is left.
func (g *Graph) extractComponent(ctx context.Context, cc uint32, edges []EdgeID) ([]Contig, error) {
	var contigs []Contig
	for {
		if err := ctx.Err(); err != nil {
			return contigs, err
		}
		seed := g.getSeed(edges)
		if seed == NoEdge {
			return contigs, nil
		}
		path := g.findFattestPath(seed)
		uniq := distinct(path)
		flow := g.calculateFlow(uniq)
		seq, st := g.calculateContigs(path)
		st.Flow = flow
		for _, id := range uniq {
			e := &g.edges[id]
			e.SetVisited()
			e.Residual -= flow
			if e.Residual < 0 {
				return contigs, fmt.Errorf("[extractComponent] edge %d residual %f below zero: %w", id, e.Residual, ErrInvariant)
			}
		}
		contigs = append(contigs, Contig{CC: cc, Seq: seq, Path: path, Stats: st})
	}
}

// Assemble prunes low coverage edges, cleans the graph and extracts contigs from every
// component concurrently. Components that failed during Build are reported, not extracted.
func (g *Graph) Assemble(ctx context.Context, opt Options) (*Result, error) {
	res := &Result{}
	g.Unvisit()
	if opt.Prune {
		res.Pruned = g.RemoveStableSets(opt)
	}
	g.CleanGraph()
	numCC := g.MarkComponents()
	numSCC := g.MarkCycles()
	for _, ce := range g.Failed() {
		if v, ok := g.Vertex(ce.Vertex); ok {
			ce.CC = v.CC
		}
		res.Failed = append(res.Failed, ce)
	}
	failedCC := make(map[uint32]bool)
	for _, pos := range g.graph {
		if v := &g.vertices[pos]; v.GetFailedFlag() > 0 {
			failedCC[v.CC] = true
		}
	}
	ccEdges := g.componentEdges()
	ccs := make([]uint32, 0, len(ccEdges))
	for cc := range ccEdges {
		if !failedCC[cc] {
			ccs = append(ccs, cc)
		}
	}
	sort.Slice(ccs, func(i, j int) bool { return ccs[i] < ccs[j] })
	g.logger.Info("[Assemble] extract contigs", zap.Int("components", numCC), zap.Int("scc", numSCC),
		zap.Int("failedComponents", len(failedCC)), zap.Int("vertices", g.NumVertices()), zap.Int("edges", g.NumEdges()))

	numCPU := opt.NumCPU
	if numCPU < 1 {
		numCPU = 1
	}
	results := make([][]Contig, len(ccs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(numCPU)
	for i, cc := range ccs {
		i, cc := i, cc
		eg.Go(func() error {
			contigs, err := g.extractComponent(ctx, cc, ccEdges[cc])
			results[i] = contigs
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, arr := range results {
		for _, c := range arr {
			c.ID = len(res.Contigs) + 1
			res.Contigs = append(res.Contigs, c)
		}
	}
	g.logger.Info("[Assemble] contigs", zap.Int("contigs", len(res.Contigs)), zap.Int("failed", len(res.Failed)))
	return res, nil
}
