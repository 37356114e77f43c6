package constructcf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	ReadSeqSize = 1000
)

type ReadInfo struct {
	ID   int64
	Name string
	Seq  []byte
}

type ReadSeqBucket struct {
	ReadBuf []ReadInfo
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var err error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if e := rc.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// compressSuffix returns the compression suffix of fn, "" for plain files.
func compressSuffix(fn string) string {
	for _, s := range []string{".gz", ".zst", ".br"} {
		if strings.HasSuffix(fn, s) {
			return s
		}
	}
	return ""
}

// GetReadsFileFormat returns one of fa, fq, sam, bam.
func GetReadsFileFormat(fn string) (format string, err error) {
	base := strings.TrimSuffix(fn, compressSuffix(fn))
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return "", fmt.Errorf("[GetReadsFileFormat] reads file: %v need suffix '*.fa | *.fasta | *.fq | *.fastq | *.sam | *.bam' with optional '.gz | .zst | .br'", fn)
	}
	switch base[idx+1:] {
	case "fa", "fasta", "fna":
		format = "fa"
	case "fq", "fastq":
		format = "fq"
	case "sam":
		format = "sam"
	case "bam":
		format = "bam"
	default:
		return "", fmt.Errorf("[GetReadsFileFormat] reads file: %v unknown format suffix: %v", fn, base[idx+1:])
	}
	return format, nil
}

// OpenReadFile opens fn and stacks the decompressor its suffix asks for.
func OpenReadFile(fn string) (io.ReadCloser, error) {
	fp, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	rc := &readCloser{Reader: fp, closers: []func() error{fp.Close}}
	switch compressSuffix(fn) {
	case ".gz":
		gzfp, err := gzip.NewReader(bufio.NewReaderSize(fp, 1<<20))
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("[OpenReadFile] file: %v: %w", fn, err)
		}
		rc.Reader = gzfp
		rc.closers = append(rc.closers, gzfp.Close)
	case ".zst":
		zfp, err := zstd.NewReader(bufio.NewReaderSize(fp, 1<<20))
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("[OpenReadFile] file: %v: %w", fn, err)
		}
		rc.Reader = zfp
		rc.closers = append(rc.closers, func() error { zfp.Close(); return nil })
	case ".br":
		brfp, closeFn, err := newBrotliReader(fp)
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("[OpenReadFile] file: %v: %w", fn, err)
		}
		rc.Reader = brfp
		rc.closers = append(rc.closers, closeFn)
	}
	return rc, nil
}

// ReadFile parses every record of fn and calls f with it, stops at the first error f returns.
func ReadFile(ctx context.Context, fn string, f func(ri ReadInfo) error) error {
	format, err := GetReadsFileFormat(fn)
	if err != nil {
		return err
	}
	// bam carries its own bgzf compression
	var fp io.ReadCloser
	if format == "bam" {
		fp, err = os.Open(fn)
	} else {
		fp, err = OpenReadFile(fn)
	}
	if err != nil {
		return err
	}
	defer fp.Close()

	var id int64
	emit := func(name string, s []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		id++
		return f(ReadInfo{ID: id, Name: name, Seq: s})
	}
	switch format {
	case "fa", "fq":
		var r seqio.Reader
		if format == "fa" {
			r = fasta.NewReader(fp, linear.NewSeq("", nil, alphabet.DNA))
		} else {
			r = fastq.NewReader(fp, linear.NewQSeq("", nil, alphabet.DNA, alphabet.Sanger))
		}
		sc := seqio.NewScanner(r)
		for sc.Next() {
			var name string
			var s []byte
			switch l := sc.Seq().(type) {
			case *linear.Seq:
				name = l.ID
				s = make([]byte, len(l.Seq))
				for i, c := range l.Seq {
					s[i] = byte(c)
				}
			case *linear.QSeq:
				name = l.ID
				s = make([]byte, len(l.Seq))
				for i, ql := range l.Seq {
					s[i] = byte(ql.L)
				}
			default:
				return fmt.Errorf("[ReadFile] file: %v unexpected record type %T", fn, l)
			}
			if err := emit(name, s); err != nil {
				return err
			}
		}
		if err := sc.Error(); err != nil {
			return fmt.Errorf("[ReadFile] file: %v: %w", fn, err)
		}
	case "sam", "bam":
		var next func() (*sam.Record, error)
		if format == "sam" {
			sr, err := sam.NewReader(fp)
			if err != nil {
				return fmt.Errorf("[ReadFile] file: %v: %w", fn, err)
			}
			next = sr.Read
		} else {
			br, err := bam.NewReader(fp, 1)
			if err != nil {
				return fmt.Errorf("[ReadFile] file: %v: %w", fn, err)
			}
			defer br.Close()
			next = br.Read
		}
		for {
			r, err := next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("[ReadFile] file: %v: %w", fn, err)
			}
			if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
				continue
			}
			if err := emit(r.Name, r.Seq.Expand()); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetReadSeqBucket sends the reads of every library used by the assembly in buckets of
// ReadSeqSize, reads shorter than kmerlen are dropped. cs is closed on return.
func GetReadSeqBucket(ctx context.Context, libs []LibInfo, cs chan<- ReadSeqBucket, kmerlen int) (processNumReads int, err error) {
	defer close(cs)
	rsb := ReadSeqBucket{ReadBuf: make([]ReadInfo, 0, ReadSeqSize)}
	send := func() error {
		select {
		case cs <- rsb:
		case <-ctx.Done():
			return ctx.Err()
		}
		rsb = ReadSeqBucket{ReadBuf: make([]ReadInfo, 0, ReadSeqSize)}
		return nil
	}
	for _, lib := range libs {
		if lib.AsmFlag != AllState {
			continue
		}
		for _, fn := range lib.FnName {
			err = ReadFile(ctx, fn, func(ri ReadInfo) error {
				if len(ri.Seq) < kmerlen {
					return nil
				}
				rsb.ReadBuf = append(rsb.ReadBuf, ri)
				processNumReads++
				if len(rsb.ReadBuf) >= ReadSeqSize {
					return send()
				}
				return nil
			})
			if err != nil {
				return processNumReads, err
			}
		}
	}
	if len(rsb.ReadBuf) > 0 {
		if err = send(); err != nil {
			return processNumReads, err
		}
	}
	return processNumReads, nil
}
