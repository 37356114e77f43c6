package constructcf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/utgasm/bnt"
	"github.com/mudesheng/utgasm/cuckoofilter"
	"github.com/mudesheng/utgasm/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	AllState    = 1
	ScaffState  = 2
	GapState    = 3
	CFFileSufix = ".cf.zst"
)

type LibInfo struct {
	Name       string // name of library
	AsmFlag    uint8  // denote which assembly phase used, note 1 used for all step of assembly pipeline, note 2 used for scaffold phase only, 3 used for filling gap only
	SeqProfile uint8  // denote the data origin
	FnName     []string
}

type CfgInfo struct {
	MaxRdLen int // maximum read length
	MinRdLen int // minimum read length
	Libs     []LibInfo
}

func ParseCfg(fn string) (cfgInfo CfgInfo, e error) {
	inFile, err := os.Open(fn)
	if err != nil {
		return cfgInfo, err
	}
	defer inFile.Close()
	return parseCfg(inFile)
}

func parseCfg(r io.Reader) (cfgInfo CfgInfo, e error) {
	var libInfo LibInfo
	inLib := false
	reader := bufio.NewReader(r)
	eof := false
	for lineNum := 1; !eof; lineNum++ {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			eof = true
		} else if err != nil {
			return cfgInfo, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0][0] == '#' || fields[0][0] == ';' {
			continue
		}
		if fields[0] == "[global_setting]" {
			continue
		}
		if fields[0] == "[LIB]" {
			if inLib {
				cfgInfo.Libs = append(cfgInfo.Libs, libInfo)
			}
			libInfo = LibInfo{AsmFlag: AllState, SeqProfile: 1}
			inLib = true
			continue
		}
		if len(fields) != 3 || fields[1] != "=" {
			return cfgInfo, fmt.Errorf("[ParseCfg] line %d: %q must be 'key = value'", lineNum, strings.TrimSpace(line))
		}
		var v int
		switch fields[0] {
		case "max_rd_len":
			v, err = strconv.Atoi(fields[2])
			cfgInfo.MaxRdLen = v
		case "min_rd_len":
			v, err = strconv.Atoi(fields[2])
			cfgInfo.MinRdLen = v
		case "name":
			libInfo.Name = fields[2]
		case "asm_flag":
			v, err = strconv.Atoi(fields[2])
			libInfo.AsmFlag = uint8(v)
		case "seq_profile":
			v, err = strconv.Atoi(fields[2])
			libInfo.SeqProfile = uint8(v)
		case "f", "f1", "f2", "q1", "q2":
			if !inLib {
				return cfgInfo, fmt.Errorf("[ParseCfg] line %d: file %s outside [LIB] section", lineNum, fields[2])
			}
			if _, err = GetReadsFileFormat(fields[2]); err == nil {
				libInfo.FnName = append(libInfo.FnName, fields[2])
			}
		default:
			return cfgInfo, fmt.Errorf("[ParseCfg] line %d: unknown key: %s", lineNum, fields[0])
		}
		if err != nil {
			return cfgInfo, fmt.Errorf("[ParseCfg] line %d: %w", lineNum, err)
		}
	}
	if inLib {
		cfgInfo.Libs = append(cfgInfo.Libs, libInfo)
	}
	return cfgInfo, nil
}

// ParaConstructCF inserts the canonical kmers of every read bucket into cf.
func ParaConstructCF(ctx context.Context, cf *cuckoofilter.CuckooFilter, cs <-chan ReadSeqBucket, numCPU int) (kmerNum int64, err error) {
	eg, ctx := errgroup.WithContext(ctx)
	counts := make([]int64, numCPU)
	for i := 0; i < numCPU; i++ {
		i := i
		eg.Go(func() error {
			for {
				var rsb ReadSeqBucket
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
					for _, run := range bnt.SplitACGT(ri.Seq, cf.Kmerlen) {
						for j := 0; j+cf.Kmerlen <= len(run); j++ {
							ks := bnt.Canonical(string(run[j : j+cf.Kmerlen]))
							if _, err := cf.Insert([]byte(ks)); err != nil {
								return err
							}
							counts[i]++
						}
					}
				}
			}
		})
	}
	err = eg.Wait()
	for _, c := range counts {
		kmerNum += c
	}
	return kmerNum, err
}

// CountKmers streams the libraries of cfgInfo into a new cuckoofilter.
func CountKmers(ctx context.Context, cfgInfo CfgInfo, kmerlen int, cfSize uint64, numCPU int, logger *zap.Logger) (*cuckoofilter.CuckooFilter, error) {
	logger = utils.OrNop(logger)
	cf := cuckoofilter.MakeCuckooFilter(cfSize, kmerlen)
	logger.Info("[CountKmers] make cuckoofilter", zap.Int("buckets", len(cf.Hash)))
	cs := make(chan ReadSeqBucket, numCPU*2)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := GetReadSeqBucket(ctx, cfgInfo.Libs, cs, kmerlen)
		logger.Info("[GetReadSeqBucket] processed reads", zap.Int("reads", n))
		return err
	})
	eg.Go(func() error {
		n, err := ParaConstructCF(ctx, cf, cs, numCPU)
		logger.Info("[ParaConstructCF] inserted kmers", zap.Int64("kmers", n))
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return cf, nil
}

type Options struct {
	utils.ArgsOpt
	CFSize int64
}

func checkArgs(c cli.Command) (opt Options, suc bool) {
	tmp, err := strconv.Atoi(c.Flag("S").String())
	if err != nil {
		log.Fatalf("[checkArgs] argument 'S': %v set error: %v\n", c.Flag("S"), err)
	}
	if tmp < 1024 {
		log.Fatalf("[checkArgs]the argument 'S': %v must bigger than 1024\n", c.Flag("S"))
	}
	opt.CFSize = int64(tmp)
	suc = true
	return opt, suc
}

func CCF(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if suc == false {
		log.Fatalf("[CCF] check global Arguments error, opt: %v\n", gOpt)
	}
	opt, suc := checkArgs(c)
	if suc == false {
		log.Fatalf("[CCF] check Arguments error, opt: %v\n", opt)
	}
	opt.ArgsOpt = gOpt
	logger, err := utils.NewLogger(opt.Debug)
	if err != nil {
		log.Fatalf("[CCF] create logger err: %v\n", err)
	}
	defer logger.Sync()
	logger.Info("[CCF] opt", zap.Any("opt", opt))
	cpuprofilefp, err := os.Create(opt.Prefix + ".CCF.prof")
	if err != nil {
		logger.Fatal("[CCF] open cpuprofile file failed", zap.Error(err))
	}
	defer cpuprofilefp.Close()
	pprof.StartCPUProfile(cpuprofilefp)
	defer pprof.StopCPUProfile()
	cfgInfo, err := ParseCfg(opt.CfgFn)
	if err != nil {
		logger.Fatal("[CCF] ParseCfg failed", zap.String("C", opt.CfgFn), zap.Error(err))
	}

	t0 := time.Now()
	cf, err := CountKmers(context.Background(), cfgInfo, opt.Kmer, uint64(opt.CFSize), opt.NumCPU, logger)
	if err != nil {
		logger.Fatal("[CCF] count kmers failed", zap.Error(err))
	}
	cffn := opt.Prefix + CFFileSufix
	cffp, err := os.Create(cffn)
	if err != nil {
		logger.Fatal("[CCF] create file failed", zap.String("file", cffn), zap.Error(err))
	}
	defer cffp.Close()
	if err := cf.HashWriter(cffp); err != nil {
		logger.Fatal("[CCF] write cuckoofilter failed", zap.String("file", cffn), zap.Error(err))
	}
	st := cf.GetStat()
	logger.Info("[CCF] cuckoofilter stat", zap.Uint64("items", st.Items), zap.Float64("load", st.Load),
		zap.Uint64s("countHist", st.Hist[:16]))
	logger.Info("[CCF] construct CuckooFilter finished", zap.Duration("took", time.Since(t0)))
}
