package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/jwaldrip/odin/cli"
	"github.com/mudesheng/utgasm/asm"
	"github.com/mudesheng/utgasm/constructcf"
	"github.com/mudesheng/utgasm/constructdbg"
)

const Kmerdef = 31

var app = cli.New("1.0.0", "unitig graph assembler for short reads", func(c cli.Command) {})

func init() {
	go func() {
		log.Println(http.ListenAndServe("localhost:6090", nil))
	}()
	app.DefineStringFlag("C", "utgasm.cfg", "configure file")
	app.DefineStringFlag("cpuprofile", "cpu.prof", "write cpu profile to file")
	app.DefineIntFlag("K", Kmerdef, "kmer length, odd and >= 3")
	app.DefineStringFlag("p", "K31", "prefix of the output file")
	app.DefineIntFlag("t", 1, "number of CPU used")
	app.DefineBoolFlag("Debug", false, "Enable Debug log")
	ccf := app.DefineSubCommand("ccf", "count kmers into a cuckoofilter", constructcf.CCF)
	{
		ccf.DefineInt64Flag("S", 1<<20, "the Size number of items cuckoofilter set")
	}
	cdbg := app.DefineSubCommand("cdbg", "construct kmer De bruijn Graph", constructdbg.CDBG)
	{
		cdbg.DefineIntFlag("MinKmerFreq", 2, "Min Kmer Freq allown store")
		cdbg.DefineInt64Flag("S", 1<<20, "the Size number of items cuckoofilter set")
		cdbg.DefineBoolFlag("LoadCF", false, "load the cuckoofilter written by ccf")
	}
	asmCmd := app.DefineSubCommand("asm", "build the unitig graph and extract contigs", asm.Asm)
	{
		asmCmd.DefineIntFlag("MinKmerFreq", 2, "Min Kmer Freq allown store")
		asmCmd.DefineInt64Flag("S", 1<<20, "the Size number of items cuckoofilter set")
		asmCmd.DefineBoolFlag("LoadCF", false, "load the cuckoofilter written by ccf")
		asmCmd.DefineFloat64Flag("Alpha", 0.01, "significance level of the low coverage edge test")
		asmCmd.DefineFloat64Flag("CovRatio", 0.25, "share of the expected coverage a kept edge reaches")
		asmCmd.DefineBoolFlag("NoPrune", false, "keep low coverage edges")
		asmCmd.DefineIntFlag("MinContigLen", 0, "Min contig length written")
		asmCmd.DefineBoolFlag("Graph", false, "output dot graph file")
		asmCmd.DefineBoolFlag("Compress", false, "zstd compress the contig file")
	}
}

func main() {
	app.Start()
}
