package constructdbg

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/mudesheng/utgasm/bnt"
)

var (
	ErrNotFound  = errors.New("kmer not found")
	ErrMalformed = errors.New("malformed kmer")
)

const NumShards = 64

// Sequence is the canonical key of a kmer, a kmer and its reverse complement share one key.
type Sequence struct {
	kmer string
}

func NewSequence(kmer string) Sequence {
	return Sequence{kmer: bnt.Canonical(kmer)}
}

func (s Sequence) Kmer() string { return s.kmer }

func (s Sequence) Equal(o Sequence) bool { return s.kmer == o.kmer }

func (s Sequence) String() string { return s.kmer }

// KmerNode successor and predecessor sets are relative to the canonical orientation.
type KmerNode struct {
	succ, pred bnt.SymbolSet
	Flag       uint8 // from low~high, 1:Visited
	index      uint32
	coverage   uint32
	starting   uint32
	ending     uint32
}

func (n *KmerNode) Successors() bnt.SymbolSet   { return n.succ }
func (n *KmerNode) Predecessors() bnt.SymbolSet { return n.pred }
func (n *KmerNode) Index() uint32               { return n.index }
func (n *KmerNode) SetIndex(idx uint32)         { n.index = idx }
func (n *KmerNode) Coverage() uint32            { return n.coverage }
func (n *KmerNode) Starting() uint32            { return n.starting }
func (n *KmerNode) Ending() uint32              { return n.ending }

func (n *KmerNode) IsVisited() bool {
	return n.Flag&0x1 > 0
}

func (n *KmerNode) Visit() {
	n.Flag = n.Flag | 0x1
}

func (n *KmerNode) ResetVisited() {
	n.Flag = n.Flag & (0xFF - 0x1)
}

func (n *KmerNode) String() string {
	return fmt.Sprintf("succ:%v pred:%v cov:%d idx:%d", n.succ, n.pred, n.coverage, n.index)
}

type shard struct {
	sync.Mutex
	nodes map[Sequence]*KmerNode
}

// KmerGraph maps canonical kmers to nodes. Inserts are safe for concurrent use,
// queries are meant for the single threaded compaction that follows.
type KmerGraph struct {
	Kmerlen int
	shards  [NumShards]shard
}

func NewKmerGraph(kmerlen int) *KmerGraph {
	g := &KmerGraph{Kmerlen: kmerlen}
	for i := range g.shards {
		g.shards[i].nodes = make(map[Sequence]*KmerNode)
	}
	return g
}

func (g *KmerGraph) shardOf(key Sequence) *shard {
	return &g.shards[xxhash.Sum64([]byte(key.kmer))%NumShards]
}

func (g *KmerGraph) checkKmer(kmer string) error {
	if len(kmer) != g.Kmerlen {
		return fmt.Errorf("[checkKmer] kmer: %s len: %d, expect %d: %w", kmer, len(kmer), g.Kmerlen, ErrMalformed)
	}
	if !bnt.ValidSeq(kmer) {
		return fmt.Errorf("[checkKmer] kmer: %s contains non ACGT symbol: %w", kmer, ErrMalformed)
	}
	return nil
}

// AddKmer records one occurrence of the literal kmer with its neighbour symbols on the read
// strand, prev and next are 0 when the kmer starts or ends the read.
func (g *KmerGraph) AddKmer(kmer string, prev, next byte) error {
	if err := g.checkKmer(kmer); err != nil {
		return err
	}
	key := NewSequence(kmer)
	s := g.shardOf(key)
	s.Lock()
	defer s.Unlock()
	nd, ok := s.nodes[key]
	if !ok {
		nd = &KmerNode{}
		s.nodes[key] = nd
	}
	nd.coverage++
	if prev == 0 {
		nd.starting++
	}
	if next == 0 {
		nd.ending++
	}
	if key.kmer == kmer {
		if next != 0 {
			nd.succ = nd.succ.Add(next)
		}
		if prev != 0 {
			nd.pred = nd.pred.Add(prev)
		}
	} else {
		// the read runs along the reverse complement of the stored key
		if prev != 0 {
			nd.succ = nd.succ.Add(bnt.Complement(prev))
		}
		if next != 0 {
			nd.pred = nd.pred.Add(bnt.Complement(next))
		}
	}
	return nil
}

// AddRead splits seq at non ACGT symbols and adds every kmer of the pieces.
func (g *KmerGraph) AddRead(seq []byte) (int, error) {
	var added int
	for _, run := range bnt.SplitACGT(seq, g.Kmerlen) {
		n, err := g.addRun(run)
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

// addRun adds the kmers of a pure ACGT run, adjacency is only recorded inside the run.
func (g *KmerGraph) addRun(run []byte) (int, error) {
	k := g.Kmerlen
	n := len(run) - k + 1
	for i := 0; i < n; i++ {
		var prev, next byte
		if i > 0 {
			prev = run[i-1]
		}
		if i+k < len(run) {
			next = run[i+k]
		}
		if err := g.AddKmer(string(run[i:i+k]), prev, next); err != nil {
			return i, err
		}
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// GetVertex returns nil, false if kmer length != Kmerlen or kmer not present.
func (g *KmerGraph) GetVertex(kmer string) (*KmerNode, bool) {
	if len(kmer) != g.Kmerlen {
		return nil, false
	}
	key := NewSequence(kmer)
	s := g.shardOf(key)
	s.Lock()
	nd, ok := s.nodes[key]
	s.Unlock()
	return nd, ok
}

// GetSequence returns the stored canonical key of kmer.
func (g *KmerGraph) GetSequence(kmer string) (string, error) {
	if err := g.checkKmer(kmer); err != nil {
		return "", err
	}
	key := NewSequence(kmer)
	s := g.shardOf(key)
	s.Lock()
	_, ok := s.nodes[key]
	s.Unlock()
	if !ok {
		return "", fmt.Errorf("[GetSequence] kmer: %s: %w", kmer, ErrNotFound)
	}
	return key.kmer, nil
}

func (g *KmerGraph) NumNodes() int {
	var n int
	for i := range g.shards {
		g.shards[i].Lock()
		n += len(g.shards[i].nodes)
		g.shards[i].Unlock()
	}
	return n
}

func (g *KmerGraph) walkNodes(f func(key Sequence, nd *KmerNode)) {
	for i := range g.shards {
		s := &g.shards[i]
		s.Lock()
		for key, nd := range s.nodes {
			f(key, nd)
		}
		s.Unlock()
	}
}

func (g *KmerGraph) collect(pick func(nd *KmerNode) bool) []string {
	var arr []string
	g.walkNodes(func(key Sequence, nd *KmerNode) {
		if pick(nd) {
			arr = append(arr, key.kmer)
		}
	})
	sort.Strings(arr)
	return arr
}

// Kmers returns every canonical kmer, sorted.
func (g *KmerGraph) Kmers() []string {
	return g.collect(func(*KmerNode) bool { return true })
}

// GetJunctions splits unbalanced kmers into out-unbalanced (more successors than
// predecessors) and in-unbalanced, both sorted.
func (g *KmerGraph) GetJunctions() (out, in []string) {
	out = g.collect(func(nd *KmerNode) bool { return nd.succ.Len() > nd.pred.Len() })
	in = g.collect(func(nd *KmerNode) bool { return nd.pred.Len() > nd.succ.Len() })
	return out, in
}

func (g *KmerGraph) GetSources() []string {
	return g.collect(func(nd *KmerNode) bool { return nd.pred.Len() == 0 })
}

func (g *KmerGraph) GetSinks() []string {
	return g.collect(func(nd *KmerNode) bool { return nd.succ.Len() == 0 })
}

// ResetVisited clears visited flags and vertex indexes so the graph can be compacted again.
func (g *KmerGraph) ResetVisited() {
	g.walkNodes(func(_ Sequence, nd *KmerNode) {
		nd.ResetVisited()
		nd.index = 0
	})
}
