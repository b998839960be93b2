package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Entity is one parsed source element destined for the graph: a
// directory, file or scope.
type Entity struct {
	// Label is the node label, e.g. "Function" or "File".
	Label string

	// Path is the repository-relative path of the containing file or
	// directory.
	Path string

	// Name is the declared name. Empty for directories and files, whose
	// path is their name.
	Name string

	// Kind refines the label, e.g. "function", "method", "struct".
	Kind string

	// StartLine and EndLine bound the declaration in the source file,
	// 1-based inclusive. Zero for directories.
	StartLine int
	EndLine   int

	// Content is the full source slice of the declaration. The content
	// hash is computed over it, so any edit inside the declaration body
	// marks the entity as updated.
	Content string

	// Properties holds additional scalar node properties.
	Properties map[string]any
}

// IdentityKey is the stable identity of the entity. Two parses of the
// same unchanged source produce the same key, and therefore the same
// uuid, regardless of parse order.
func (e Entity) IdentityKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", e.Label, e.Path, e.Name, e.Kind, e.StartLine)
}

// UUID returns the deterministic node uuid derived from the identity key.
func (e Entity) UUID() string {
	return string(types.NewDeterministicID(e.IdentityKey()))
}

// ContentHash returns the sha256 hex digest of the entity content.
func (e Entity) ContentHash() string {
	sum := sha256.Sum256([]byte(e.Content))
	return hex.EncodeToString(sum[:])
}

// Relationship is a typed directed edge between two entities, addressed
// by their uuids.
type Relationship struct {
	Type       string
	FromUUID   string
	ToUUID     string
	Properties map[string]any
}

// ParseResult is what a SourceParser produces for one source tree.
type ParseResult struct {
	Entities      []Entity
	Relationships []Relationship
}
