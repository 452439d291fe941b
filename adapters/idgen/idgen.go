// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/google/uuid"
)

// UUID generates random v4 UUIDs, optionally prefixed by entity kind.
type UUID struct {
	Prefix string
}

// New generates a new identifier.
func (g UUID) New() string {
	return g.Prefix + uuid.NewString()
}

// Sequential generates predictable IDs for tests.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
