//go:build cgo

package constructcf

import (
	"io"

	"github.com/google/brotli/go/cbrotli"
)

func newBrotliReader(r io.Reader) (io.Reader, func() error, error) {
	brfp := cbrotli.NewReader(r)
	return brfp, brfp.Close, nil
}
