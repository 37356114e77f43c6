package constructdbg

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/constructcf"
	"github.com/mudesheng/utgasm/cuckoofilter"
	"github.com/mudesheng/utgasm/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SolidRuns cuts run into the maximal pieces whose every kmer is seen at least minFreq times
// in cf. A nil cf keeps the whole run.
func SolidRuns(run []byte, kmerlen int, cf *cuckoofilter.CuckooFilter, minFreq uint32) [][]byte {
	if cf == nil || minFreq <= 1 {
		return [][]byte{run}
	}
	var pieces [][]byte
	start := -1
	n := len(run) - kmerlen + 1
	for i := 0; i <= n; i++ {
		solid := false
		if i < n {
			ks := bnt.Canonical(string(run[i : i+kmerlen]))
			solid = cf.Lookup([]byte(ks)) >= minFreq
		}
		if solid {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			pieces = append(pieces, run[start:i-1+kmerlen])
			start = -1
		}
	}
	return pieces
}

// AddSolidRead adds the solid kmers of seq, adjacency is only recorded between consecutive
// solid kmers.
func (g *KmerGraph) AddSolidRead(seq []byte, cf *cuckoofilter.CuckooFilter, minFreq uint32) (int, error) {
	var added int
	for _, run := range bnt.SplitACGT(seq, g.Kmerlen) {
		for _, piece := range SolidRuns(run, g.Kmerlen, cf, minFreq) {
			n, err := g.addRun(piece)
			added += n
			if err != nil {
				return added, err
			}
		}
	}
	return added, nil
}

// ParaAddReads fills g from the read buckets of cs with numCPU workers.
func ParaAddReads(ctx context.Context, g *KmerGraph, cs <-chan constructcf.ReadSeqBucket, cf *cuckoofilter.CuckooFilter, minFreq uint32, numCPU int) (int64, error) {
	eg, ctx := errgroup.WithContext(ctx)
	counts := make([]int64, numCPU)
	for i := 0; i < numCPU; i++ {
		i := i
		eg.Go(func() error {
			for {
				var rsb constructcf.ReadSeqBucket
				var ok bool
				select {
				case rsb, ok = <-cs:
				case <-ctx.Done():
					return ctx.Err()
				}
				if !ok {
					return nil
				}
				for _, ri := range rsb.ReadBuf {
					n, err := g.AddSolidRead(ri.Seq, cf, minFreq)
					counts[i] += int64(n)
					if err != nil {
						return err
					}
				}
			}
		})
	}
	err := eg.Wait()
	var total int64
	for _, c := range counts {
		total += c
	}
	return total, err
}

// BuildKmerGraph streams the libraries of cfgInfo into a new KmerGraph.
func BuildKmerGraph(ctx context.Context, cfgInfo constructcf.CfgInfo, kmerlen int, cf *cuckoofilter.CuckooFilter, minFreq uint32, numCPU int, logger *zap.Logger) (*KmerGraph, error) {
	logger = utils.OrNop(logger)
	g := NewKmerGraph(kmerlen)
	cs := make(chan constructcf.ReadSeqBucket, numCPU*2)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := constructcf.GetReadSeqBucket(ctx, cfgInfo.Libs, cs, kmerlen)
		logger.Info("[BuildKmerGraph] processed reads", zap.Int("reads", n))
		return err
	})
	eg.Go(func() error {
		n, err := ParaAddReads(ctx, g, cs, cf, minFreq, numCPU)
		logger.Info("[BuildKmerGraph] added kmers", zap.Int64("kmers", n))
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadCuckooFilter reads the counting filter written by the ccf step.
func LoadCuckooFilter(fn string) (*cuckoofilter.CuckooFilter, error) {
	fp, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return cuckoofilter.HashReader(fp)
}

type Options struct {
	utils.ArgsOpt
	MinKmerFreq int
	CFSize      int64
	LoadCF      bool
}

func checkArgs(c cli.Command) (opt Options, suc bool) {
	var ok bool
	opt.MinKmerFreq, ok = c.Flag("MinKmerFreq").Get().(int)
	if !ok || opt.MinKmerFreq < 1 {
		log.Fatalf("[checkArgs] argument 'MinKmerFreq': %v set error\n", c.Flag("MinKmerFreq").String())
	}
	tmp, err := strconv.Atoi(c.Flag("S").String())
	if err != nil || tmp < 1024 {
		log.Fatalf("[checkArgs] argument 'S': %v must be an integer bigger than 1024\n", c.Flag("S"))
	}
	opt.CFSize = int64(tmp)
	opt.LoadCF, ok = c.Flag("LoadCF").Get().(bool)
	if !ok {
		log.Fatalf("[checkArgs] argument 'LoadCF': %v set error\n", c.Flag("LoadCF").String())
	}
	return opt, true
}

// PrepareKmerGraph loads or counts the kmer filter when a frequency cutoff is asked for and
// builds the kmer graph of the configured libraries.
func PrepareKmerGraph(ctx context.Context, opt Options, logger *zap.Logger) (*KmerGraph, error) {
	cfgInfo, err := constructcf.ParseCfg(opt.CfgFn)
	if err != nil {
		return nil, err
	}
	var cf *cuckoofilter.CuckooFilter
	if opt.MinKmerFreq > 1 {
		if opt.LoadCF {
			cf, err = LoadCuckooFilter(opt.Prefix + constructcf.CFFileSufix)
		} else {
			cf, err = constructcf.CountKmers(ctx, cfgInfo, opt.Kmer, uint64(opt.CFSize), opt.NumCPU, logger)
		}
		if err != nil {
			return nil, err
		}
	}
	return BuildKmerGraph(ctx, cfgInfo, opt.Kmer, cf, uint32(opt.MinKmerFreq), opt.NumCPU, logger)
}

// CheckArgs parses the kmer graph flags shared by cdbg and asm.
func CheckArgs(c cli.Command) Options {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		log.Fatalf("[CheckArgs] check global Arguments error, opt: %v\n", gOpt)
	}
	opt, suc := checkArgs(c)
	if !suc {
		log.Fatalf("[CheckArgs] check Arguments error, opt: %v\n", opt)
	}
	opt.ArgsOpt = gOpt
	return opt
}

func CDBG(c cli.Command) {
	opt := CheckArgs(c)
	logger, err := utils.NewLogger(opt.Debug)
	if err != nil {
		log.Fatalf("[CDBG] create logger err: %v\n", err)
	}
	defer logger.Sync()
	logger.Info("[CDBG] opt", zap.Any("opt", opt))

	t0 := time.Now()
	g, err := PrepareKmerGraph(context.Background(), opt, logger)
	if err != nil {
		logger.Fatal("[CDBG] build kmer graph failed", zap.Error(err))
	}
	out, in := g.GetJunctions()
	logger.Info("[CDBG] kmer graph", zap.Int("nodes", g.NumNodes()),
		zap.Int("outUnbalanced", len(out)), zap.Int("inUnbalanced", len(in)),
		zap.Int("sources", len(g.GetSources())), zap.Int("sinks", len(g.GetSinks())),
		zap.Duration("took", time.Since(t0)))
}
