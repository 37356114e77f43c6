package bnt

import "strings"

const (
	BaseTypeNum   = 4 // A, C, G, T
	NumBitsInBase = 2
	BaseMask      = (1 << NumBitsInBase) - 1
)

// BitNtCharUp maps a 2bit base code to the upper case nucleotide.
var BitNtCharUp = [BaseTypeNum]byte{'A', 'C', 'G', 'T'}

// BntRev maps a 2bit base code to the code of its complement.
var BntRev = [BaseTypeNum]uint8{3, 2, 1, 0}

var base2Bnt [256]int8
var compTable [256]byte

func init() {
	for i := range base2Bnt {
		base2Bnt[i] = -1
		compTable[i] = 'N'
	}
	for i, c := range BitNtCharUp {
		base2Bnt[c] = int8(i)
		base2Bnt[c+'a'-'A'] = int8(i)
	}
	compTable['A'], compTable['C'], compTable['G'], compTable['T'] = 'T', 'G', 'C', 'A'
	compTable['a'], compTable['c'], compTable['g'], compTable['t'] = 'T', 'G', 'C', 'A'
}

// Base2Bnt returns the 2bit code of b, ok is false for ambiguous symbols.
func Base2Bnt(b byte) (code uint8, ok bool) {
	c := base2Bnt[b]
	if c < 0 {
		return 0, false
	}
	return uint8(c), true
}

func IsBase(b byte) bool {
	return base2Bnt[b] >= 0
}

// Complement is total: every non ACGT symbol maps to 'N'.
func Complement(b byte) byte {
	return compTable[b]
}

func ReverseComplement(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := len(s) - 1; i >= 0; i-- {
		sb.WriteByte(compTable[s[i]])
	}
	return sb.String()
}

func ReverseComplementBytes(s []byte) []byte {
	rs := make([]byte, len(s))
	for i, j := 0, len(s)-1; j >= 0; i, j = i+1, j-1 {
		rs[i] = compTable[s[j]]
	}
	return rs
}

// Canonical returns the lexicographically smaller of kmer and its reverse complement.
func Canonical(kmer string) string {
	rc := ReverseComplement(kmer)
	if rc < kmer {
		return rc
	}
	return kmer
}

// ValidSeq reports whether every symbol of s is one of ACGT (either case).
func ValidSeq(s string) bool {
	for i := 0; i < len(s); i++ {
		if base2Bnt[s[i]] < 0 {
			return false
		}
	}
	return true
}

// SplitACGT returns the upper cased maximal ACGT runs of seq no shorter than minLen.
func SplitACGT(seq []byte, minLen int) [][]byte {
	var runs [][]byte
	start := -1
	for i := 0; i <= len(seq); i++ {
		if i < len(seq) && base2Bnt[seq[i]] >= 0 {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minLen {
			run := make([]byte, i-start)
			for j := start; j < i; j++ {
				run[j-start] = BitNtCharUp[base2Bnt[seq[j]]]
			}
			runs = append(runs, run)
		}
		start = -1
	}
	return runs
}

// SymbolSet is a set over the 4 bases, bit i set for BitNtCharUp[i].
type SymbolSet uint8

func (s SymbolSet) Add(b byte) SymbolSet {
	c, ok := Base2Bnt(b)
	if !ok {
		return s
	}
	return s | 1<<c
}

func (s SymbolSet) Has(b byte) bool {
	c, ok := Base2Bnt(b)
	return ok && s&(1<<c) != 0
}

func (s SymbolSet) Len() int {
	n := 0
	for x := s & 0xF; x > 0; x &= x - 1 {
		n++
	}
	return n
}

// Symbols lists members in A, C, G, T order.
func (s SymbolSet) Symbols() []byte {
	syms := make([]byte, 0, BaseTypeNum)
	for i := 0; i < BaseTypeNum; i++ {
		if s&(1<<i) != 0 {
			syms = append(syms, BitNtCharUp[i])
		}
	}
	return syms
}

// Complement returns the set of complemented symbols.
func (s SymbolSet) Complement() SymbolSet {
	var cs SymbolSet
	for i := 0; i < BaseTypeNum; i++ {
		if s&(1<<i) != 0 {
			cs |= 1 << BntRev[i]
		}
	}
	return cs
}

func (s SymbolSet) String() string {
	return string(s.Symbols())
}

// Strand is the orientation a k-mer literal has relative to its canonical key.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Forward {
		return "+"
	}
	return "-"
}

func (s Strand) Flip() Strand {
	if s == Forward {
		return Reverse
	}
	return Forward
}

// StrandOf reports the strand of literal relative to the canonical key.
func StrandOf(literal, canonical string) Strand {
	if literal == canonical {
		return Forward
	}
	return Reverse
}
