package cuckoofilter

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestInsertLookupCount(t *testing.T) {
	cf := MakeCuckooFilter(1<<10, 5)
	for i := 0; i < 3; i++ {
		old, err := cf.Insert([]byte("ACGTA"))
		require.NoError(t, err)
		assert.Equal(t, uint32(i), old)
	}
	assert.Equal(t, uint32(3), cf.Lookup([]byte("ACGTA")))
	assert.Equal(t, uint32(0), cf.Lookup([]byte("TTTTT")))
	assert.Equal(t, uint64(1), cf.Count)
}

func TestCountSaturates(t *testing.T) {
	cf := MakeCuckooFilter(64, 3)
	for i := 0; i < MaxC+10; i++ {
		_, err := cf.Insert([]byte("AAC"))
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(MaxC), cf.Lookup([]byte("AAC")))
}

func TestConcurrentInsert(t *testing.T) {
	defer goleak.VerifyNone(t)
	cf := MakeCuckooFilter(1<<14, 8)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if _, err := cf.Insert([]byte(fmt.Sprintf("k%07d", i))); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 500; i++ {
		require.Equal(t, uint32(4), cf.Lookup([]byte(fmt.Sprintf("k%07d", i))))
	}
	st := cf.GetStat()
	assert.Equal(t, uint64(500), st.Hist[4]+st.Hist[8]+st.Hist[12]+st.Hist[16])
	assert.Greater(t, st.Load, 0.0)
}

func TestHashWriterReader(t *testing.T) {
	cf := MakeCuckooFilter(1<<8, 4)
	for _, k := range []string{"ACGT", "ACGT", "CCCC"} {
		_, err := cf.Insert([]byte(k))
		require.NoError(t, err)
	}
	var buf bytes.Buffer
	require.NoError(t, cf.HashWriter(&buf))
	ncf, err := HashReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, cf.Kmerlen, ncf.Kmerlen)
	assert.Equal(t, cf.BucketPow, ncf.BucketPow)
	assert.Equal(t, uint32(2), ncf.Lookup([]byte("ACGT")))
	assert.Equal(t, uint32(1), ncf.Lookup([]byte("CCCC")))
	assert.Equal(t, cf.Hash, ncf.Hash)
}

func TestHashReaderBadMagic(t *testing.T) {
	_, err := HashReader(bytes.NewReader([]byte("not a filter")))
	assert.Error(t, err)
}

func BenchmarkInsert(b *testing.B) {
	cf := MakeCuckooFilter(uint64(b.N)+1024, 31)
	kb := []byte("ACGTACGTACGTACGTACGTACGTACGTACG")
	for i := 0; i < b.N; i++ {
		kb[i%len(kb)] = "ACGT"[i%4]
		cf.Insert(kb)
	}
}
