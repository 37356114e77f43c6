package asm

import (
	"fmt"
	"io"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/zstd"
	"github.com/mudesheng/utgasm/unitig"
)

const FastaWidth = 80

// WriteContigs writes the contigs not shorter than minLen as FASTA, zstd compressed when
// compress is set. Returns the number written.
func WriteContigs(w io.Writer, contigs []unitig.Contig, minLen int, compress bool) (int, error) {
	var zw *zstd.Encoder
	if compress {
		var err error
		zw, err = zstd.NewWriter(w, zstd.WithEncoderCRC(false), zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(1))
		if err != nil {
			return 0, err
		}
		w = zw
	}
	fw := fasta.NewWriter(w, FastaWidth)
	var n int
	for _, c := range contigs {
		if len(c.Seq) < minLen {
			continue
		}
		s := linear.NewSeq(fmt.Sprintf("ctg%d", c.ID), alphabet.BytesToLetters([]byte(c.Seq)), alphabet.DNA)
		s.Desc = fmt.Sprintf("len=%d cov=%.2f min=%.0f max=%.0f flow=%.2f cc=%d",
			c.Stats.Length, c.Stats.AvgCov, c.Stats.MinCov, c.Stats.MaxCov, c.Stats.Flow, c.CC)
		if _, err := fw.Write(s); err != nil {
			return n, err
		}
		n++
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return n, err
		}
	}
	return n, nil
}
