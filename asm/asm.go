package asm

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/utgasm/constructdbg"
	"github.com/mudesheng/utgasm/unitig"
	"github.com/mudesheng/utgasm/utils"
	"go.uber.org/zap"
)

const (
	ContigFileSufix = ".contigs.fa"
	GraphFileSufix  = ".utg.dot"
)

type Options struct {
	constructdbg.Options
	Alpha        float64
	CovRatio     float64
	NoPrune      bool
	Graph        bool
	Compress     bool
	MinContigLen int
}

func (opt Options) unitigOptions() unitig.Options {
	return unitig.Options{Alpha: opt.Alpha, Ratio: opt.CovRatio, Prune: !opt.NoPrune, NumCPU: opt.NumCPU}
}

func checkArgs(c cli.Command) (opt Options, suc bool) {
	var ok bool
	opt.Alpha, ok = c.Flag("Alpha").Get().(float64)
	if !ok || opt.Alpha <= 0 || opt.Alpha >= 1 {
		log.Fatalf("[checkArgs] argument 'Alpha': %v must be in (0,1)\n", c.Flag("Alpha").String())
	}
	opt.CovRatio, ok = c.Flag("CovRatio").Get().(float64)
	if !ok || opt.CovRatio <= 0 || opt.CovRatio > 1 {
		log.Fatalf("[checkArgs] argument 'CovRatio': %v must be in (0,1]\n", c.Flag("CovRatio").String())
	}
	opt.NoPrune, ok = c.Flag("NoPrune").Get().(bool)
	if !ok {
		log.Fatalf("[checkArgs] argument 'NoPrune': %v set error\n", c.Flag("NoPrune").String())
	}
	opt.Graph, ok = c.Flag("Graph").Get().(bool)
	if !ok {
		log.Fatalf("[checkArgs] argument 'Graph': %v set error\n", c.Flag("Graph").String())
	}
	opt.Compress, ok = c.Flag("Compress").Get().(bool)
	if !ok {
		log.Fatalf("[checkArgs] argument 'Compress': %v set error\n", c.Flag("Compress").String())
	}
	opt.MinContigLen, ok = c.Flag("MinContigLen").Get().(int)
	if !ok || opt.MinContigLen < 0 {
		log.Fatalf("[checkArgs] argument 'MinContigLen': %v set error\n", c.Flag("MinContigLen").String())
	}
	return opt, true
}

// Run builds the kmer graph of the configured libraries, compacts it into a unitig graph and
// extracts the contigs. The graph is returned in its final cleaned state.
func Run(ctx context.Context, opt Options, logger *zap.Logger) (*unitig.Graph, *unitig.Result, error) {
	logger = utils.OrNop(logger)
	t0 := time.Now()
	kg, err := constructdbg.PrepareKmerGraph(ctx, opt.Options, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("[Run] kmer graph: %w", err)
	}
	logger.Info("[Run] kmer graph", zap.Int("nodes", kg.NumNodes()), zap.Duration("took", time.Since(t0)))
	t0 = time.Now()
	g, err := unitig.Build(dbgSource{g: kg}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("[Run] unitig graph: %w", err)
	}
	logger.Info("[Run] unitig graph", zap.Duration("took", time.Since(t0)))
	t0 = time.Now()
	res, err := g.Assemble(ctx, opt.unitigOptions())
	if err != nil {
		return g, nil, fmt.Errorf("[Run] assemble: %w", err)
	}
	logger.Info("[Run] assemble", zap.Int("contigs", len(res.Contigs)), zap.Int("pruned", res.Pruned),
		zap.Duration("took", time.Since(t0)))
	return g, res, nil
}

// WriteOutput writes the contig FASTA of res and, when asked for, the dot file of g.
func WriteOutput(opt Options, g *unitig.Graph, res *unitig.Result, logger *zap.Logger) error {
	logger = utils.OrNop(logger)
	fn := opt.Prefix + ContigFileSufix
	if opt.Compress {
		fn += ".zst"
	}
	fp, err := os.Create(fn)
	if err != nil {
		return err
	}
	n, err := WriteContigs(fp, res.Contigs, opt.MinContigLen, opt.Compress)
	if err != nil {
		fp.Close()
		return fmt.Errorf("[WriteOutput] write %s: %w", fn, err)
	}
	if err := fp.Close(); err != nil {
		return err
	}
	logger.Info("[WriteOutput] contigs", zap.String("file", fn), zap.Int("written", n))
	for _, ce := range res.Failed {
		logger.Warn("[WriteOutput] component skipped", zap.Uint32("cc", ce.CC), zap.Error(ce))
	}
	if !opt.Graph {
		return nil
	}
	gfn := opt.Prefix + GraphFileSufix
	gfp, err := os.Create(gfn)
	if err != nil {
		return err
	}
	if err := g.WriteGraphviz(gfp); err != nil {
		gfp.Close()
		return fmt.Errorf("[WriteOutput] write %s: %w", gfn, err)
	}
	return gfp.Close()
}

func Asm(c cli.Command) {
	dOpt := constructdbg.CheckArgs(c)
	opt, suc := checkArgs(c)
	if !suc {
		log.Fatalf("[Asm] check Arguments error, opt: %v\n", opt)
	}
	opt.Options = dOpt
	logger, err := utils.NewLogger(opt.Debug)
	if err != nil {
		log.Fatalf("[Asm] create logger err: %v\n", err)
	}
	defer logger.Sync()
	logger.Info("[Asm] opt", zap.Any("opt", opt))
	cpuprofilefp, err := os.Create(opt.Prefix + ".Asm.prof")
	if err != nil {
		logger.Fatal("[Asm] open cpuprofile file failed", zap.Error(err))
	}
	defer cpuprofilefp.Close()
	pprof.StartCPUProfile(cpuprofilefp)
	defer pprof.StopCPUProfile()

	g, res, err := Run(context.Background(), opt, logger)
	if err != nil {
		logger.Fatal("[Asm] assembly failed", zap.Error(err))
	}
	if err := WriteOutput(opt, g, res, logger); err != nil {
		logger.Fatal("[Asm] write output failed", zap.Error(err))
	}
}
