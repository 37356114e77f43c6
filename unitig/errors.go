package unitig

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a walked kmer is absent from the kmer graph.
	ErrNotFound = errors.New("kmer not found")
	// ErrInvariant aborts the run, the unitig graph is no longer consistent.
	ErrInvariant = errors.New("unitig graph invariant violated")
)

// ComponentError scopes a build failure to the component of its source vertex.
type ComponentError struct {
	CC     uint32
	Vertex uint32
	Kmer   string
	Err    error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %d (vertex %d) kmer %s: %v", e.CC, e.Vertex, e.Kmer, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }
