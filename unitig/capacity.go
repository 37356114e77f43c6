package unitig

import (
	"fmt"

	"github.com/mudesheng/utgasm/utils"
)

// Capacity summarises the kmer coverage along one edge.
type Capacity struct {
	Avg      float64
	Min      float64
	Max      float64
	First    float64
	Last     float64
	Length   int
	Starting float64 // read starts per kmer
	Ending   float64 // read ends per kmer
}

func newCapacity(covs []uint32, starting, ending uint32) Capacity {
	var c Capacity
	if len(covs) == 0 {
		return c
	}
	c.Length = len(covs)
	c.First = float64(covs[0])
	c.Last = float64(covs[len(covs)-1])
	c.Min, c.Max = c.First, c.First
	var sum float64
	for _, x := range covs {
		f := float64(x)
		sum += f
		c.Min = utils.MinFloat64(c.Min, f)
		c.Max = utils.MaxFloat64(c.Max, f)
	}
	c.Avg = sum / float64(c.Length)
	c.Starting = float64(starting) / float64(c.Length)
	c.Ending = float64(ending) / float64(c.Length)
	return c
}

// mergeCapacity combines the capacity of a path a followed by b, weighted by length.
func mergeCapacity(a, b Capacity) Capacity {
	l := a.Length + b.Length
	if l == 0 {
		return Capacity{}
	}
	if a.Length == 0 {
		return b
	}
	if b.Length == 0 {
		return a
	}
	la, lb, fl := float64(a.Length), float64(b.Length), float64(l)
	return Capacity{
		Avg:      (a.Avg*la + b.Avg*lb) / fl,
		Min:      utils.MinFloat64(a.Min, b.Min),
		Max:      utils.MaxFloat64(a.Max, b.Max),
		First:    a.First,
		Last:     b.Last,
		Length:   l,
		Starting: (a.Starting*la + b.Starting*lb) / fl,
		Ending:   (a.Ending*la + b.Ending*lb) / fl,
	}
}

func (c Capacity) String() string {
	return fmt.Sprintf("(%.2f, %.0f/%.0f, (length: %d), (min: %.0f, max: %.0f), starting: %.3f ending: %.3f)",
		c.Avg, c.First, c.Last, c.Length, c.Min, c.Max, c.Starting, c.Ending)
}
