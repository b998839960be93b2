package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID string used as the stable identity of graph nodes.
type ID string

// idNamespace seeds deterministic ID derivation. Changing it invalidates
// every stored graph identity, so it is fixed for the life of the project.
var idNamespace = uuid.MustParse("7b9c1c2e-4f53-4a38-9d41-0f6a8c3e5d17")

// NewID returns a random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// NewDeterministicID derives a stable ID from an identity key. The same key
// always yields the same ID, which makes graph writes idempotent across runs.
func NewDeterministicID(identityKey string) ID {
	return ID(uuid.NewSHA1(idNamespace, []byte(identityKey)).String())
}

// ParseID validates s as a UUID and returns it in canonical form.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return ID(parsed.String()), nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }
