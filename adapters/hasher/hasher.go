// Package hasher provides password hashing implementations.
package hasher

import (
	"github.com/DromeProduto/DromeBoard/ports"
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes user passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. Out-of-range costs fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost returns the work factor in use.
func (h *Bcrypt) Cost() int {
	return h.cost
}

// Hash generates a bcrypt hash from plaintext.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Compare checks if plaintext matches hash.
func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Plain stores passwords verbatim. Tests only.
type Plain struct{}

// Hash returns the plaintext as bytes.
func (Plain) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

// Compare does a simple equality check.
func (Plain) Compare(hash []byte, plaintext string) bool {
	return len(hash) > 0 && string(hash) == plaintext
}

var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Plain{}
)
