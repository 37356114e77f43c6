package asm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/zstd"
	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/constructdbg"
	"github.com/mudesheng/utgasm/unitig"
	"github.com/mudesheng/utgasm/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const cycleRead = "TTAGTTGTGCCGCTTGTGCCAGCG"

type record struct {
	id, desc, seq string
}

func readFasta(t *testing.T, data []byte) []record {
	t.Helper()
	sc := seqio.NewScanner(fasta.NewReader(bytes.NewReader(data), linear.NewSeq("", nil, alphabet.DNA)))
	var recs []record
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		b := make([]byte, len(s.Seq))
		for i, c := range s.Seq {
			b[i] = byte(c)
		}
		recs = append(recs, record{id: s.ID, desc: s.Desc, seq: string(b)})
	}
	require.NoError(t, sc.Error())
	return recs
}

func testContigs() []unitig.Contig {
	long := strings.Repeat("ACGTTGCA", 12)
	return []unitig.Contig{
		{ID: 1, CC: 1, Seq: long, Stats: unitig.ContigStats{Length: len(long), AvgCov: 12.5, MinCov: 10, MaxCov: 15, Flow: 10}},
		{ID: 2, CC: 2, Seq: "ACGTA", Stats: unitig.ContigStats{Length: 5, AvgCov: 1, MinCov: 1, MaxCov: 1, Flow: 1}},
	}
}

func TestWriteContigs(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteContigs(&buf, testContigs(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	recs := readFasta(t, buf.Bytes())
	require.Len(t, recs, 2)
	assert.Equal(t, "ctg1", recs[0].id)
	assert.Equal(t, "len=96 cov=12.50 min=10 max=15 flow=10.00 cc=1", recs[0].desc)
	assert.Equal(t, testContigs()[0].Seq, recs[0].seq)
	assert.Equal(t, "ACGTA", recs[1].seq)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len(line), FastaWidth+len(">ctg1 len=96 cov=12.50 min=10 max=15 flow=10.00 cc=1"))
	}
}

func TestWriteContigsMinLenCompressed(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteContigs(&buf, testContigs(), 10, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	zr, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer zr.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	recs := readFasta(t, out.Bytes())
	require.Len(t, recs, 1)
	assert.Equal(t, "ctg1", recs[0].id)
}

// writeLib writes reads to a fasta file and a cfg naming it.
func writeLib(t *testing.T, reads ...string) string {
	t.Helper()
	dir := t.TempDir()
	var fa strings.Builder
	for i, r := range reads {
		fmt.Fprintf(&fa, ">r%d\n%s\n", i+1, r)
	}
	fafn := filepath.Join(dir, "reads.fa")
	require.NoError(t, os.WriteFile(fafn, []byte(fa.String()), 0o644))
	cfg := fmt.Sprintf("[global_setting]\nmax_rd_len = 100\nmin_rd_len = 5\n[LIB]\nname = lib1\nasm_flag = 1\nf = %s\n", fafn)
	cfgfn := filepath.Join(dir, "asm.cfg")
	require.NoError(t, os.WriteFile(cfgfn, []byte(cfg), 0o644))
	return cfgfn
}

func testOptions(cfgfn string, minFreq int) Options {
	return Options{
		Options: constructdbg.Options{
			ArgsOpt:     utils.ArgsOpt{Prefix: filepath.Join(filepath.Dir(cfgfn), "out"), Kmer: 5, NumCPU: 2, CfgFn: cfgfn},
			MinKmerFreq: minFreq,
			CFSize:      1 << 12,
		},
		Alpha:    0.01,
		CovRatio: 0.25,
	}
}

func TestRunCycleRead(t *testing.T) {
	opt := testOptions(writeLib(t, cycleRead), 1)
	g, res, err := Run(context.Background(), opt, nil)
	require.NoError(t, err)
	require.Len(t, res.Contigs, 1)
	assert.Equal(t, bnt.ReverseComplement(cycleRead), res.Contigs[0].Seq)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 4, g.NumVertices())
}

func TestRunFiltersRareKmers(t *testing.T) {
	opt := testOptions(writeLib(t, cycleRead, cycleRead, "CCTAACAGAG"), 2)
	_, res, err := Run(context.Background(), opt, nil)
	require.NoError(t, err)
	require.Len(t, res.Contigs, 1)
	assert.Equal(t, bnt.ReverseComplement(cycleRead), res.Contigs[0].Seq)
	assert.GreaterOrEqual(t, res.Contigs[0].Stats.MinCov, 2.0)
}

func TestRunMissingCfg(t *testing.T) {
	opt := testOptions(filepath.Join(t.TempDir(), "none.cfg"), 1)
	_, _, err := Run(context.Background(), opt, nil)
	require.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	opt := testOptions(writeLib(t, cycleRead, "CCTAACAGAG"), 1)
	opt.Graph = true
	g, res, err := Run(context.Background(), opt, nil)
	require.NoError(t, err)
	require.NoError(t, WriteOutput(opt, g, res, nil))

	data, err := os.ReadFile(opt.Prefix + ContigFileSufix)
	require.NoError(t, err)
	recs := readFasta(t, data)
	require.Len(t, recs, 2)
	var seqs []string
	for _, r := range recs {
		seqs = append(seqs, bnt.Canonical(r.seq))
	}
	assert.ElementsMatch(t, []string{bnt.Canonical(cycleRead), bnt.Canonical("CCTAACAGAG")}, seqs)

	dot, err := os.ReadFile(opt.Prefix + GraphFileSufix)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")
}
