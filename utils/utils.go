package utils

import (
	"log"
	"unsafe"

	"github.com/jwaldrip/odin/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ArgsOpt struct {
	Prefix     string
	Kmer       int
	NumCPU     int
	CfgFn      string
	Cpuprofile string
	Debug      bool
}

// return global arguments and check if successed
func CheckGlobalArgs(c cli.Command) (opt ArgsOpt, succ bool) {
	opt.Prefix = c.Flag("p").String()
	if opt.Prefix == "" {
		log.Fatalf("[CheckGlobalArgs] args 'p' not set\n")
	}
	opt.CfgFn = c.Flag("C").String()
	if opt.CfgFn == "" {
		log.Fatalf("[CheckGlobalArgs] args 'C' not set\n")
	}
	opt.Cpuprofile = c.Flag("cpuprofile").String()

	var ok bool
	opt.Kmer, ok = c.Flag("K").Get().(int)
	if !ok {
		log.Fatalf("[CheckGlobalArgs] args 'K' : %v set error\n", c.Flag("K").String())
	}
	if err := CheckKmerLen(opt.Kmer); err != "" {
		log.Fatalf("[CheckGlobalArgs] args 'K' : %v %s\n", opt.Kmer, err)
	}
	opt.NumCPU, ok = c.Flag("t").Get().(int)
	if !ok || opt.NumCPU < 1 {
		log.Fatalf("[CheckGlobalArgs] args 't': %v set error\n", c.Flag("t").String())
	}
	opt.Debug, ok = c.Flag("Debug").Get().(bool)
	if !ok {
		log.Fatalf("[CheckGlobalArgs] args 'Debug': %v set error\n", c.Flag("Debug").String())
	}
	return opt, true
}

// CheckKmerLen returns a reason when k can not be used, odd k keeps every kmer distinct from
// its reverse complement.
func CheckKmerLen(k int) string {
	if k < 3 {
		return "must be >= 3"
	}
	if k%2 == 0 {
		return "must be odd"
	}
	return ""
}

// NewLogger returns a production json logger, debug enables the debug level.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	cfg.Sampling = nil
	return cfg.Build()
}

// OrNop never returns a nil logger.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	} else {
		return a
	}
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	} else {
		return b
	}
}

func MinInt(a, b int) int {
	if a > b {
		return b
	} else {
		return a
	}
}

func MinFloat64(a, b float64) float64 {
	if a > b {
		return b
	}
	return a
}

func MaxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func Bytes2String(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}
