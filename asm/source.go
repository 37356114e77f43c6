package asm

import (
	"github.com/mudesheng/utgasm/constructdbg"
	"github.com/mudesheng/utgasm/unitig"
)

// dbgSource lets the unitig builder read a constructdbg.KmerGraph.
type dbgSource struct {
	g *constructdbg.KmerGraph
}

func (s dbgSource) Kmerlen() int { return s.g.Kmerlen }

func (s dbgSource) GetJunctions() (out, in []string) { return s.g.GetJunctions() }

func (s dbgSource) GetVertex(kmer string) (unitig.Node, bool) {
	nd, ok := s.g.GetVertex(kmer)
	if !ok {
		return nil, false
	}
	return nd, true
}

func (s dbgSource) GetSequence(kmer string) (string, error) { return s.g.GetSequence(kmer) }

func (s dbgSource) Kmers() []string { return s.g.Kmers() }
