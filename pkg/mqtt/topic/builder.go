package topic

import (
	"fmt"
	"strings"
)

// MQTT filter wildcards.
const (
	// Wildcard matches exactly one level.
	Wildcard = "+"
	// MultiWildcard matches the remaining levels; it must come last.
	MultiWildcard = "#"
)

// Builder constructs MQTT topic strings under a common root namespace.
//
// Pattern: {root}/{segment}/{identifier}
type Builder struct {
	// root is the base namespace for all topics (e.g., "ivi/v1").
	root string
}

// NewBuilder creates a Builder for the given root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Root returns the namespace the builder was created with.
func (b *Builder) Root() string {
	return b.root
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard returns {root}/{segment}/+, matching every identifier.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Identifier extracts the trailing {id} from a concrete topic built for segment.
// It returns false when the topic does not belong to segment.
func (b *Builder) Identifier(segment, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", b.root, segment)
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
