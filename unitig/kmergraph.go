package unitig

import "github.com/mudesheng/utgasm/bnt"

// Node is the per kmer state the builder reads and marks.
type Node interface {
	Successors() bnt.SymbolSet
	Predecessors() bnt.SymbolSet
	IsVisited() bool
	Visit()
	Index() uint32
	SetIndex(idx uint32)
	Coverage() uint32
	Starting() uint32
	Ending() uint32
}

// KmerGraph is the kmer level de Bruijn graph the unitig graph is compacted from.
type KmerGraph interface {
	Kmerlen() int
	GetJunctions() (out, in []string)
	// GetVertex reports false when kmer has the wrong length or is absent.
	GetVertex(kmer string) (Node, bool)
	// GetSequence returns the canonical key of kmer.
	GetSequence(kmer string) (string, error)
	Kmers() []string
}

// outgoing returns the symbols leaving a literal on strand.
func outgoing(nd Node, strand bnt.Strand) bnt.SymbolSet {
	if strand == bnt.Forward {
		return nd.Successors()
	}
	return nd.Predecessors().Complement()
}

func isChain(nd Node) bool {
	return nd.Successors().Len() == 1 && nd.Predecessors().Len() == 1
}
