//go:build !cgo

package constructcf

import (
	"errors"
	"io"
)

func newBrotliReader(r io.Reader) (io.Reader, func() error, error) {
	return nil, nil, errors.New("brotli input needs a cgo enabled build")
}
