package unitig

import (
	"fmt"
	"sort"

	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/utils"
	"go.uber.org/zap"
)

// VertexID and EdgeID are arena positions, Vertex.Index is the stable public id.
type VertexID int
type EdgeID int

const NoEdge EdgeID = -1

type Vertex struct {
	Index  uint32
	Name   string     // kmer literal the vertex was claimed with
	Strand bnt.Strand // strand of Name relative to the canonical kmer
	SCC    uint32
	CC     uint32
	In     []EdgeID
	Out    []EdgeID
	Flag   uint8 // from low~high, 1:Delete, 2:Process, 4:Failed

	// valid only during MarkCycles
	tarjanIndex  int
	visitingTime int
	onStack      bool
}

func (v *Vertex) GetDeleteFlag() uint8  { return v.Flag & 0x1 }
func (v *Vertex) SetDeleteFlag()        { v.Flag = v.Flag | 0x1 }
func (v *Vertex) GetProcessFlag() uint8 { return v.Flag & 0x2 }
func (v *Vertex) SetProcessFlag()       { v.Flag = v.Flag | 0x2 }
func (v *Vertex) GetFailedFlag() uint8  { return v.Flag & 0x4 }
func (v *Vertex) SetFailedFlag()        { v.Flag = v.Flag | 0x4 }

// Literal returns Name, or its reverse complement when flip is set.
func (v *Vertex) Literal(flip bool) string {
	if flip {
		return bnt.ReverseComplement(v.Name)
	}
	return v.Name
}

func (v *Vertex) String() string {
	return fmt.Sprintf("idx:%d name:%s scc:%d cc:%d in:%v out:%v", v.Index, v.Name, v.SCC, v.CC, v.In, v.Out)
}

// Edge is one maximal unbranched path. Name holds the symbols appended after the source kmer,
// so Literal(From)+Name spells the path. FromFlip/ToFlip note that the path starts or ends on
// the reverse complement of the vertex Name.
type Edge struct {
	ID       EdgeID
	From, To uint32
	Name     string
	Starting uint32
	Ending   uint32
	Cap      Capacity
	Capacity float64
	Residual float64
	FromFlip bool
	ToFlip   bool
	Flag     uint8 // from low~high, 1:Visited, 2:Delete, 4:InCycle
}

func (e *Edge) IsVisited() bool       { return e.Flag&0x1 > 0 }
func (e *Edge) SetVisited()           { e.Flag = e.Flag | 0x1 }
func (e *Edge) ResetVisited()         { e.Flag = e.Flag & (0xFF - 0x1) }
func (e *Edge) GetDeleteFlag() uint8  { return e.Flag & 0x2 }
func (e *Edge) SetDeleteFlag()        { e.Flag = e.Flag | 0x2 }
func (e *Edge) InCycle() bool         { return e.Flag&0x4 > 0 }
func (e *Edge) SetInCycleFlag()       { e.Flag = e.Flag | 0x4 }
func (e *Edge) ResetInCycleFlag()     { e.Flag = e.Flag & (0xFF - 0x4) }
func (e *Edge) GetSeqLen() int        { return len(e.Name) }
func (e *Edge) IsSelfLoop() bool      { return e.From == e.To }
func (e *Edge) joins(next *Edge) bool { return e.ToFlip == next.FromFlip }

func (e *Edge) String() string {
	return fmt.Sprintf("eID:%d %d->%d len:%d cap:%.2f residual:%.2f %v", e.ID, e.From, e.To, len(e.Name), e.Capacity, e.Residual, e.Cap)
}

// Graph is the unitig graph, vertices and edges live in arenas and are never moved.
type Graph struct {
	Kmerlen   int
	vertices  []Vertex
	edges     []Edge
	graph     map[uint32]VertexID // stable index -> arena handle
	nextIndex uint32
	numCC     uint32
	numSCC    uint32
	failed    map[uint32]*ComponentError // by source vertex index
	logger    *zap.Logger
}

func NewGraph(kmerlen int, logger *zap.Logger) *Graph {
	return &Graph{
		Kmerlen: kmerlen,
		graph:   make(map[uint32]VertexID),
		failed:  make(map[uint32]*ComponentError),
		logger:  utils.OrNop(logger),
	}
}

func (g *Graph) addVertex(name string, strand bnt.Strand) uint32 {
	g.nextIndex++
	g.vertices = append(g.vertices, Vertex{Index: g.nextIndex, Name: name, Strand: strand})
	g.graph[g.nextIndex] = VertexID(len(g.vertices) - 1)
	return g.nextIndex
}

// vertex returns the live vertex with stable index idx. The pointer is only valid until the
// next addVertex.
func (g *Graph) vertex(idx uint32) (*Vertex, error) {
	pos, ok := g.graph[idx]
	if !ok {
		return nil, fmt.Errorf("[vertex] vertex index %d not in index map: %w", idx, ErrInvariant)
	}
	return &g.vertices[pos], nil
}

func (g *Graph) mustVertex(idx uint32) *Vertex {
	return &g.vertices[g.graph[idx]]
}

// Vertex returns a copy of the vertex with stable index idx.
func (g *Graph) Vertex(idx uint32) (Vertex, bool) {
	pos, ok := g.graph[idx]
	if !ok {
		return Vertex{}, false
	}
	return g.vertices[pos], true
}

// Edge returns a copy of edge id.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	if id < 0 || int(id) >= len(g.edges) || g.edges[id].GetDeleteFlag() > 0 {
		return Edge{}, false
	}
	return g.edges[id], true
}

func (g *Graph) addEdge(e Edge) (EdgeID, error) {
	from, err := g.vertex(e.From)
	if err != nil {
		return NoEdge, err
	}
	if _, err := g.vertex(e.To); err != nil {
		return NoEdge, err
	}
	e.ID = EdgeID(len(g.edges))
	e.Capacity = e.Cap.Avg
	e.Residual = e.Capacity
	e.Flag = 0
	from.Out = append(from.Out, e.ID)
	to := g.mustVertex(e.To)
	to.In = append(to.In, e.ID)
	g.edges = append(g.edges, e)
	return e.ID, nil
}

func removeID(arr []EdgeID, id EdgeID) []EdgeID {
	for i, x := range arr {
		if x == id {
			return append(arr[:i], arr[i+1:]...)
		}
	}
	return arr
}

func (g *Graph) removeEdge(id EdgeID) {
	e := &g.edges[id]
	if e.GetDeleteFlag() > 0 {
		return
	}
	e.SetDeleteFlag()
	from := g.mustVertex(e.From)
	from.Out = removeID(from.Out, id)
	to := g.mustVertex(e.To)
	to.In = removeID(to.In, id)
}

// removeVertex drops the vertex and every incident edge.
func (g *Graph) removeVertex(idx uint32) {
	pos, ok := g.graph[idx]
	if !ok {
		return
	}
	v := &g.vertices[pos]
	for len(v.In) > 0 {
		g.removeEdge(v.In[0])
	}
	for len(v.Out) > 0 {
		g.removeEdge(v.Out[0])
	}
	v.SetDeleteFlag()
	delete(g.graph, idx)
}

func (g *Graph) NumVertices() int { return len(g.graph) }

func (g *Graph) NumEdges() int {
	n := 0
	for i := range g.edges {
		if g.edges[i].GetDeleteFlag() == 0 {
			n++
		}
	}
	return n
}

// VertexIndices lists live vertex indexes in ascending order.
func (g *Graph) VertexIndices() []uint32 {
	arr := make([]uint32, 0, len(g.graph))
	for idx := range g.graph {
		arr = append(arr, idx)
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i] < arr[j] })
	return arr
}

// EdgeIDs lists live edges in insertion order.
func (g *Graph) EdgeIDs() []EdgeID {
	arr := make([]EdgeID, 0, len(g.edges))
	for i := range g.edges {
		if g.edges[i].GetDeleteFlag() == 0 {
			arr = append(arr, EdgeID(i))
		}
	}
	return arr
}

// FindVertex returns the index of the vertex whose Name is kmer or its reverse complement.
func (g *Graph) FindVertex(kmer string) (uint32, bool) {
	rc := bnt.ReverseComplement(kmer)
	for _, idx := range g.VertexIndices() {
		v := g.mustVertex(idx)
		if v.Name == kmer || v.Name == rc {
			return idx, true
		}
	}
	return 0, false
}

// Failed returns the build failures, one per source vertex, ordered by vertex index.
func (g *Graph) Failed() []*ComponentError {
	arr := make([]*ComponentError, 0, len(g.failed))
	for _, ce := range g.failed {
		arr = append(arr, ce)
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].Vertex < arr[j].Vertex })
	return arr
}

// Unvisit clears extraction state so extraction can run again.
func (g *Graph) Unvisit() {
	for i := range g.edges {
		e := &g.edges[i]
		e.ResetVisited()
		e.Residual = e.Capacity
	}
}
