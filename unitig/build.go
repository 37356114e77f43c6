package unitig

import (
	"fmt"

	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/utils"
	"go.uber.org/zap"
)

type builder struct {
	g       *Graph
	kg      KmerGraph
	pending []uint32 // claimed vertices waiting for expansion
	missing int
	logger  *zap.Logger
}

// Build compacts kg into a unitig graph: every maximal unbranched kmer path becomes one edge
// between the branch kmers at its ends. Nodes of kg are marked visited as they are consumed.
// A kmer that disappears in the middle of a walk fails the component of the walk's source
// vertex, it is reported by Failed and skipped by Assemble.
func Build(kg KmerGraph, logger *zap.Logger) (*Graph, error) {
	logger = utils.OrNop(logger)
	b := &builder{g: NewGraph(kg.Kmerlen(), logger), kg: kg, logger: logger}
	out, in := kg.GetJunctions()
	for _, key := range out {
		if err := b.seed(key, bnt.Forward); err != nil {
			return nil, err
		}
	}
	for _, key := range in {
		if err := b.seed(key, bnt.Reverse); err != nil {
			return nil, err
		}
	}
	if err := b.recoverUnvisited(); err != nil {
		return nil, err
	}
	b.g.MarkComponents()
	b.g.markFailed()
	logger.Info("[Build] unitig graph", zap.Int("vertices", b.g.NumVertices()), zap.Int("edges", b.g.NumEdges()),
		zap.Int("outUnbalanced", len(out)), zap.Int("inUnbalanced", len(in)),
		zap.Int("missingBranch", b.missing), zap.Int("failed", len(b.g.failed)))
	return b.g, nil
}

func (b *builder) strandOf(lit string) (bnt.Strand, error) {
	key, err := b.kg.GetSequence(lit)
	if err != nil {
		return bnt.Forward, err
	}
	return bnt.StrandOf(lit, key), nil
}

func (b *builder) claim(nd Node, lit string, strand bnt.Strand) uint32 {
	nd.Visit()
	idx := b.g.addVertex(lit, strand)
	nd.SetIndex(idx)
	return idx
}

func (b *builder) seed(key string, strand bnt.Strand) error {
	nd, ok := b.kg.GetVertex(key)
	if !ok {
		b.logger.Warn("[seed] junction kmer absent", zap.String("kmer", key))
		return nil
	}
	if nd.IsVisited() {
		return nil
	}
	lit := key
	if strand == bnt.Reverse {
		lit = bnt.ReverseComplement(key)
	}
	b.pending = append(b.pending, b.claim(nd, lit, strand))
	return b.drain()
}

func (b *builder) drain() error {
	for len(b.pending) > 0 {
		idx := b.pending[len(b.pending)-1]
		b.pending = b.pending[:len(b.pending)-1]
		if err := b.expand(idx); err != nil {
			return err
		}
	}
	return nil
}

// expand walks every outgoing path of vertex idx on the strand it was claimed in. A vertex
// claimed Forward whose successor is absent is walked on the Reverse strand instead.
func (b *builder) expand(idx uint32) error {
	v, err := b.g.vertex(idx)
	if err != nil {
		return err
	}
	if v.GetProcessFlag() > 0 {
		return nil
	}
	v.SetProcessFlag()
	name, strand := v.Name, v.Strand
	nd, ok := b.kg.GetVertex(name)
	if !ok {
		return fmt.Errorf("[expand] vertex %d kmer %s: %w", idx, name, ErrInvariant)
	}
	lit, flip := name, false
	for {
		fallback := false
		for _, c := range outgoing(nd, strand).Symbols() {
			next := lit[1:] + string(c)
			nnd, ok := b.kg.GetVertex(next)
			if !ok {
				if strand == bnt.Forward && !flip {
					fallback = true
					break
				}
				b.missing++
				b.logger.Debug("[expand] missing branch target", zap.Uint32("vertex", idx), zap.String("kmer", next))
				continue
			}
			if err := b.walk(idx, flip, next, nnd, c); err != nil {
				return err
			}
		}
		if !fallback {
			return nil
		}
		lit, flip, strand = bnt.ReverseComplement(name), true, bnt.Reverse
	}
}

func (b *builder) fail(src uint32, kmer string, err error) {
	if _, ok := b.g.failed[src]; !ok {
		b.g.failed[src] = &ComponentError{Vertex: src, Kmer: kmer, Err: err}
	}
	b.logger.Warn("[walk] component failed", zap.Uint32("vertex", src), zap.String("kmer", kmer), zap.Error(err))
}

// walk follows the unbranched path that starts with literal lit (reached from vertex src by
// symbol c) and adds the edge for it. srcFlip is set when src was left through the reverse
// complement of its Name.
func (b *builder) walk(src uint32, srcFlip bool, lit string, nd Node, c byte) error {
	path := []byte{c}
	var covs []uint32
	var starting, ending uint32
	var prev Node
	for !nd.IsVisited() && isChain(nd) {
		nd.Visit()
		covs = append(covs, nd.Coverage())
		starting += nd.Starting()
		ending += nd.Ending()
		strand, err := b.strandOf(lit)
		if err != nil {
			b.fail(src, lit, err)
			return nil
		}
		sym := outgoing(nd, strand).Symbols()[0]
		next := lit[1:] + string(sym)
		nnd, ok := b.kg.GetVertex(next)
		if !ok {
			b.fail(src, next, fmt.Errorf("[walk] kmer %s: %w", next, ErrNotFound))
			return nil
		}
		path = append(path, sym)
		prev, lit, nd = nd, next, nnd
	}
	covs = append(covs, nd.Coverage())
	starting += nd.Starting()
	ending += nd.Ending()

	dst := nd.Index()
	switch {
	case !nd.IsVisited():
		strand, err := b.strandOf(lit)
		if err != nil {
			b.fail(src, lit, err)
			return nil
		}
		dst = b.claim(nd, lit, strand)
		b.pending = append(b.pending, dst)
	case dst == 0 && prev != nil && nd == prev:
		// the kmer is adjacent to its own reverse complement, the path folds back here
		strand, err := b.strandOf(lit)
		if err != nil {
			b.fail(src, lit, err)
			return nil
		}
		dst = b.g.addVertex(lit, strand)
		nd.SetIndex(dst)
		b.pending = append(b.pending, dst)
	case dst == 0:
		// already walked from its other end
		return nil
	}
	to, err := b.g.vertex(dst)
	if err != nil {
		return err
	}
	_, err = b.g.addEdge(Edge{
		From:     src,
		To:       dst,
		Name:     string(path),
		Starting: starting,
		Ending:   ending,
		Cap:      newCapacity(covs, starting, ending),
		FromFlip: srcFlip,
		ToFlip:   to.Name != lit,
	})
	return err
}

// recoverUnvisited anchors what the junction seeds can not reach: paths hanging off balanced
// branch kmers and isolated cycles.
func (b *builder) recoverUnvisited() error {
	kmers := b.kg.Kmers()
	for _, key := range kmers {
		nd, ok := b.kg.GetVertex(key)
		if !ok || nd.IsVisited() {
			continue
		}
		if err := b.anchor(key, nd, len(kmers)); err != nil {
			return err
		}
		if err := b.drain(); err != nil {
			return err
		}
	}
	return nil
}

// anchor probes upstream of the unvisited kmer key by walking downstream from its reverse
// complement, then walks the path from the upstream end it finds.
func (b *builder) anchor(key string, nd Node, limit int) error {
	if !isChain(nd) {
		b.pending = append(b.pending, b.claim(nd, key, bnt.Forward))
		return nil
	}
	lits := []string{bnt.ReverseComplement(key)}
	cur, curNode := lits[0], nd
	for steps := 0; steps < limit; steps++ {
		strand, err := b.strandOf(cur)
		if err != nil {
			break
		}
		next := cur[1:] + string(outgoing(curNode, strand).Symbols()[0])
		nnd, ok := b.kg.GetVertex(next)
		if !ok || nnd == nd {
			// broken upstream, or an isolated cycle
			break
		}
		if nnd == curNode && len(lits) > 1 {
			// upstream hairpin fold, it becomes the anchor
			anchorLit := bnt.ReverseComplement(cur)
			s, err := b.strandOf(anchorLit)
			if err != nil {
				break
			}
			idx := b.claim(curNode, anchorLit, s)
			b.pending = append(b.pending, idx)
			first := bnt.ReverseComplement(lits[len(lits)-2])
			firstNode, ok := b.kg.GetVertex(first)
			if !ok {
				return fmt.Errorf("[anchor] kmer %s vanished: %w", first, ErrInvariant)
			}
			return b.walk(idx, false, first, firstNode, first[len(first)-1])
		}
		if nnd.IsVisited() || !isChain(nnd) {
			anchorLit := bnt.ReverseComplement(next)
			idx, flip := nnd.Index(), false
			if nnd.IsVisited() {
				if idx == 0 {
					break
				}
				v, err := b.g.vertex(idx)
				if err != nil {
					return err
				}
				flip = v.Name != anchorLit
			} else {
				s, err := b.strandOf(anchorLit)
				if err != nil {
					break
				}
				idx = b.claim(nnd, anchorLit, s)
				b.pending = append(b.pending, idx)
			}
			first := bnt.ReverseComplement(cur)
			return b.walk(idx, flip, first, curNode, first[len(first)-1])
		}
		lits = append(lits, next)
		cur, curNode = next, nnd
	}
	b.pending = append(b.pending, b.claim(nd, key, bnt.Forward))
	return nil
}

// markFailed spreads build failures to every vertex of the failed components.
func (g *Graph) markFailed() {
	ccs := make(map[uint32]bool)
	for idx, ce := range g.failed {
		if v, ok := g.Vertex(idx); ok {
			ce.CC = v.CC
			ccs[v.CC] = true
		}
	}
	for _, pos := range g.graph {
		if v := &g.vertices[pos]; ccs[v.CC] {
			v.SetFailedFlag()
		}
	}
}
