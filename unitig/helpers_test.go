package unitig

import (
	"fmt"
	"testing"

	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/constructdbg"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// kmerSource serves a constructdbg.KmerGraph, hide makes one canonical kmer vanish.
type kmerSource struct {
	g    *constructdbg.KmerGraph
	hide string
}

func newSource(t *testing.T, k int, reads ...string) *kmerSource {
	t.Helper()
	g := constructdbg.NewKmerGraph(k)
	for _, r := range reads {
		_, err := g.AddRead([]byte(r))
		require.NoError(t, err)
	}
	return &kmerSource{g: g}
}

func (s *kmerSource) hidden(kmer string) bool {
	return s.hide != "" && bnt.Canonical(kmer) == s.hide
}

func (s *kmerSource) Kmerlen() int { return s.g.Kmerlen }

func (s *kmerSource) GetJunctions() (out, in []string) { return s.g.GetJunctions() }

func (s *kmerSource) GetVertex(kmer string) (Node, bool) {
	if s.hidden(kmer) {
		return nil, false
	}
	nd, ok := s.g.GetVertex(kmer)
	if !ok {
		return nil, false
	}
	return nd, true
}

func (s *kmerSource) GetSequence(kmer string) (string, error) {
	if s.hidden(kmer) {
		return "", fmt.Errorf("kmer %s: %w", kmer, ErrNotFound)
	}
	return s.g.GetSequence(kmer)
}

func (s *kmerSource) Kmers() []string {
	var arr []string
	for _, k := range s.g.Kmers() {
		if !s.hidden(k) {
			arr = append(arr, k)
		}
	}
	return arr
}

func testEdge(from, to uint32, name string, cov float64) Edge {
	return Edge{From: from, To: to, Name: name,
		Cap: Capacity{Avg: cov, Min: cov, Max: cov, First: cov, Last: cov, Length: len(name)}}
}

// handGraph adds n vertices named V1..Vn and the given edges.
func handGraph(t *testing.T, n int, edges ...Edge) *Graph {
	t.Helper()
	g := NewGraph(5, nil)
	for i := 1; i <= n; i++ {
		g.addVertex(fmt.Sprintf("V%04d", i), bnt.Forward)
	}
	for _, e := range edges {
		_, err := g.addEdge(e)
		require.NoError(t, err)
	}
	return g
}

// checkContigWalk fails when two consecutive kmers of seq are not adjacent in src.
func checkContigWalk(t *testing.T, src *kmerSource, seq string) {
	t.Helper()
	k := src.g.Kmerlen
	for i := 0; i+k < len(seq); i++ {
		lit := seq[i : i+k]
		nd, ok := src.g.GetVertex(lit)
		require.True(t, ok, "kmer %s of contig %s absent", lit, seq)
		key, err := src.g.GetSequence(lit)
		require.NoError(t, err)
		require.True(t, outgoing(nd, bnt.StrandOf(lit, key)).Has(seq[i+k]),
			"contig %s: %s is not followed by %c", seq, lit, seq[i+k])
	}
}
