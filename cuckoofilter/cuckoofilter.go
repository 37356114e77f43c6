package cuckoofilter

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
)

const (
	//NumFpBits number bits for Fingerprint
	NumFpBits = 24
	//NumCBits number bits for freq Count
	NumCBits = 8
	MaxC     = (1 << NumCBits) - 1
	CMask    = MaxC
	FpMask   = (1 << NumFpBits) - 1
)

const BucketSize = 4
const KMaxCount = 500

var magic = [4]byte{'U', 'C', 'F', '1'}

var ErrFull = errors.New("cuckoofilter: too many kick out")

var masks [65]uint64

func init() {
	for i := uint64(0); i <= 64; i++ {
		masks[i] = (1 << i) - 1
	}
}

/*
item layout

	fingerprint uint32:NumFpBits
	count uint32:NumCBits
*/
type Bucket [BucketSize]uint32

// CuckooFilter counts k-mer occurrences in a fixed memory footprint. Counts saturate at MaxC.
type CuckooFilter struct {
	Hash      []Bucket
	Count     uint64 // distinct fingerprints stored
	BucketPow uint
	Kmerlen   int
	mu        sync.Mutex
	rnd       *rand.Rand
}

func upperpower2(x uint64) uint64 {
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++

	return x
}

// MakeCuckooFilter is for construct Cuckoo Filter able to hold maxNumKeys distinct kmers
func MakeCuckooFilter(maxNumKeys uint64, kmerLen int) *CuckooFilter {
	numBuckets := upperpower2(maxNumKeys) / BucketSize
	if numBuckets < 1 {
		numBuckets = 1
	}
	var pow uint
	for (uint64(1) << pow) < numBuckets {
		pow++
	}
	cf := &CuckooFilter{Kmerlen: kmerLen, BucketPow: pow}
	cf.Hash = make([]Bucket, uint64(1)<<pow)
	cf.rnd = rand.New(rand.NewSource(int64(len(cf.Hash))))
	return cf
}

func getFingerprint(hash uint64) uint32 {
	// 0 marks an empty slot
	fp := uint32(hash & FpMask)
	if fp == 0 {
		fp = 1
	}
	return fp
}

func getIndexAndFingerprint(hash uint64, bucketPow uint) (uint64, uint32) {
	fp := getFingerprint(hash)
	// Use most significant bits for deriving index.
	i1 := (hash >> NumFpBits) & masks[bucketPow]
	return i1, fp
}

func getAltIndex(fp uint32, i uint64, bucketPow uint) uint64 {
	h := xxhash.Sum64([]byte{byte(fp), byte(fp >> 8), byte(fp >> 16)})
	return (i ^ h) & masks[bucketPow]
}

func (b *Bucket) getFingerprintIndex(fp uint32) (int, uint32) {
	for i, item := range b {
		if item != 0 && (item>>NumCBits) == fp {
			return i, item & CMask
		}
	}
	return -1, 0
}

func (b *Bucket) getEmptyIndex() int {
	for i, item := range b {
		if item == 0 {
			return i
		}
	}
	return -1
}

func combineItem(fp uint32, count uint32) uint32 {
	return fp<<NumCBits | (count & CMask)
}

// Insert adds one occurrence of kb, returns the count before the insert.
func (cf *CuckooFilter) Insert(kb []byte) (uint32, error) {
	hash := xxhash.Sum64(kb)
	i1, fp := getIndexAndFingerprint(hash, cf.BucketPow)
	i2 := getAltIndex(fp, i1, cf.BucketPow)
	cf.mu.Lock()
	defer cf.mu.Unlock()
	for _, i := range [2]uint64{i1, i2} {
		if j, c := cf.Hash[i].getFingerprintIndex(fp); j >= 0 {
			if c < MaxC {
				cf.Hash[i][j] = combineItem(fp, c+1)
			}
			return c, nil
		}
	}
	for _, i := range [2]uint64{i1, i2} {
		if j := cf.Hash[i].getEmptyIndex(); j >= 0 {
			cf.Hash[i][j] = combineItem(fp, 1)
			cf.Count++
			return 0, nil
		}
	}

	// need kickout
	item := combineItem(fp, 1)
	i := i1
	if cf.rnd.Intn(2) == 1 {
		i = i2
	}
	for n := 0; n < KMaxCount; n++ {
		j := cf.rnd.Intn(BucketSize)
		item, cf.Hash[i][j] = cf.Hash[i][j], item
		i = getAltIndex(item>>NumCBits, i, cf.BucketPow)
		if j := cf.Hash[i].getEmptyIndex(); j >= 0 {
			cf.Hash[i][j] = item
			cf.Count++
			return 0, nil
		}
	}
	return 0, fmt.Errorf("[Insert] kmer: %s: %w", kb, ErrFull)
}

// Lookup returns the stored count of kb, 0 when absent.
func (cf *CuckooFilter) Lookup(kb []byte) uint32 {
	hash := xxhash.Sum64(kb)
	i1, fp := getIndexAndFingerprint(hash, cf.BucketPow)
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if j, c := cf.Hash[i1].getFingerprintIndex(fp); j >= 0 {
		return c
	}
	i2 := getAltIndex(fp, i1, cf.BucketPow)
	if j, c := cf.Hash[i2].getFingerprintIndex(fp); j >= 0 {
		return c
	}
	return 0
}

type Stat struct {
	Hist     [MaxC + 1]uint64 // Hist[c] number of items with count c
	NumSlots uint64
	Items    uint64
	Load     float64
}

func (cf *CuckooFilter) GetStat() (st Stat) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	for _, b := range cf.Hash {
		for _, e := range b {
			st.Hist[e&CMask]++
		}
	}
	st.NumSlots = uint64(len(cf.Hash)) * BucketSize
	st.Items = st.NumSlots - st.Hist[0]
	st.Load = float64(st.Items) / float64(st.NumSlots)
	return st
}

// HashWriter stores the filter as a zstd compressed little endian dump.
func (cf *CuckooFilter) HashWriter(w io.Writer) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderCRC(false), zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(1))
	if err != nil {
		return err
	}
	buffp := bufio.NewWriterSize(zw, 1<<20)
	cf.mu.Lock()
	header := []uint64{uint64(cf.Kmerlen), uint64(cf.BucketPow), cf.Count}
	if err = binary.Write(buffp, binary.LittleEndian, magic); err == nil {
		if err = binary.Write(buffp, binary.LittleEndian, header); err == nil {
			err = binary.Write(buffp, binary.LittleEndian, cf.Hash)
		}
	}
	cf.mu.Unlock()
	if err != nil {
		zw.Close()
		return err
	}
	if err := buffp.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func HashReader(r io.Reader) (*CuckooFilter, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	buffp := bufio.NewReaderSize(zr, 1<<20)
	var m [4]byte
	if err := binary.Read(buffp, binary.LittleEndian, &m); err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("[HashReader] bad magic: %q", m[:])
	}
	header := make([]uint64, 3)
	if err := binary.Read(buffp, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if header[1] > 40 {
		return nil, fmt.Errorf("[HashReader] bucket pow %d out of range", header[1])
	}
	cf := &CuckooFilter{Kmerlen: int(header[0]), BucketPow: uint(header[1]), Count: header[2]}
	cf.Hash = make([]Bucket, uint64(1)<<cf.BucketPow)
	if err := binary.Read(buffp, binary.LittleEndian, cf.Hash); err != nil {
		return nil, err
	}
	cf.rnd = rand.New(rand.NewSource(int64(len(cf.Hash))))
	return cf, nil
}
