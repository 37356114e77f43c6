package constructdbg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/constructcf"
	"github.com/mudesheng/utgasm/cuckoofilter"
	"github.com/mudesheng/utgasm/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countedFilter(t *testing.T, k int, counts map[string]int) *cuckoofilter.CuckooFilter {
	t.Helper()
	cf := cuckoofilter.MakeCuckooFilter(1<<10, k)
	for kmer, n := range counts {
		for i := 0; i < n; i++ {
			_, err := cf.Insert([]byte(bnt.Canonical(kmer)))
			require.NoError(t, err)
		}
	}
	return cf
}

func TestSolidRuns(t *testing.T) {
	run := []byte("ACGTTGCA")
	cf := countedFilter(t, 5, map[string]int{"ACGTT": 2, "CGTTG": 3, "GTTGC": 1, "TTGCA": 2})
	pieces := SolidRuns(run, 5, cf, 2)
	require.Len(t, pieces, 2)
	assert.Equal(t, "ACGTTG", string(pieces[0]))
	assert.Equal(t, "TTGCA", string(pieces[1]))

	assert.Empty(t, SolidRuns(run, 5, cf, 4))
	assert.Equal(t, [][]byte{run}, SolidRuns(run, 5, nil, 2))
	assert.Equal(t, [][]byte{run}, SolidRuns(run, 5, cf, 1))
}

func TestAddSolidRead(t *testing.T) {
	cf := countedFilter(t, 5, map[string]int{"ACGTT": 2, "CGTTG": 2, "GTTGC": 1, "TTGCA": 2})
	g := NewKmerGraph(5)
	n, err := g.AddSolidRead([]byte("ACGTTGCA"), cf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, ok := g.GetVertex("GTTGC")
	assert.False(t, ok)
	nd, ok := g.GetVertex("CGTTG")
	require.True(t, ok)
	assert.Equal(t, 1, nd.Successors().Len()+nd.Predecessors().Len(), "only the solid neighbour is linked")
}

func writeLib(t *testing.T, reads ...string) string {
	t.Helper()
	dir := t.TempDir()
	var fa strings.Builder
	for i, r := range reads {
		fmt.Fprintf(&fa, ">r%d\n%s\n", i+1, r)
	}
	fafn := filepath.Join(dir, "reads.fa")
	require.NoError(t, os.WriteFile(fafn, []byte(fa.String()), 0o644))
	cfgfn := filepath.Join(dir, "lib.cfg")
	require.NoError(t, os.WriteFile(cfgfn, []byte("[LIB]\nname = lib1\nf = "+fafn+"\n"), 0o644))
	return cfgfn
}

func TestBuildKmerGraph(t *testing.T) {
	cfgfn := writeLib(t, "TCTTTCCAC", "GATTTCCTG", "ACG")
	info, err := constructcf.ParseCfg(cfgfn)
	require.NoError(t, err)
	g, err := BuildKmerGraph(context.Background(), info, 5, nil, 1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, g.NumNodes())
	out, in := g.GetJunctions()
	assert.Len(t, out, 2)
	assert.Len(t, in, 2)
}

func TestPrepareKmerGraphCountsFilter(t *testing.T) {
	cfgfn := writeLib(t, "TCTTTCCAC", "TCTTTCCAC", "GATTTCCTG")
	opt := Options{
		ArgsOpt:     utils.ArgsOpt{Prefix: filepath.Join(filepath.Dir(cfgfn), "out"), Kmer: 5, NumCPU: 2, CfgFn: cfgfn},
		MinKmerFreq: 2,
		CFSize:      1 << 10,
	}
	g, err := PrepareKmerGraph(context.Background(), opt, nil)
	require.NoError(t, err)
	// TTTCC is shared by both reads, the rest of the second read is seen once
	for _, k := range []string{"TCTTT", "CTTTC", "TTTCC", "TTCCA", "TCCAC"} {
		nd, ok := g.GetVertex(k)
		require.True(t, ok, k)
		assert.GreaterOrEqual(t, nd.Coverage(), uint32(2), k)
	}
	for _, k := range []string{"GATTT", "ATTTC", "TTCCT", "TCCTG"} {
		_, ok := g.GetVertex(k)
		assert.False(t, ok, k)
	}
}

func TestLoadCuckooFilter(t *testing.T) {
	cf := countedFilter(t, 5, map[string]int{"ACGTT": 3})
	fn := filepath.Join(t.TempDir(), "x"+constructcf.CFFileSufix)
	fp, err := os.Create(fn)
	require.NoError(t, err)
	require.NoError(t, cf.HashWriter(fp))
	require.NoError(t, fp.Close())

	got, err := LoadCuckooFilter(fn)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.Lookup([]byte(bnt.Canonical("ACGTT"))))
	_, err = LoadCuckooFilter(fn + ".none")
	assert.Error(t, err)
}
