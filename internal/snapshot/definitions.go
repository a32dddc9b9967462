// Package snapshot turns raw definitions fetched from a source into the
// immutable, indexed view the rule engine evaluates against.
package snapshot

import (
	"context"
	"encoding/json"
)

// Definitions is the raw material of a snapshot, exactly as a source delivers it.
// Bodies stay unparsed until the first evaluation that needs them.
type Definitions struct {
	// Source names where the definitions came from (e.g. "redis").
	Source string

	// Flags maps flag names to their JSON bodies.
	Flags map[string]json.RawMessage

	// RuleBasedSegments maps rule-based segment names to their JSON bodies.
	RuleBasedSegments map[string]json.RawMessage

	// Segments maps standard segment names to their member keys.
	Segments map[string][]string

	// LargeSegments maps large segment names to their member keys.
	LargeSegments map[string][]string
}

// NewDefinitions returns empty, ready to fill Definitions.
func NewDefinitions(source string) *Definitions {
	return &Definitions{
		Source:            source,
		Flags:             make(map[string]json.RawMessage),
		RuleBasedSegments: make(map[string]json.RawMessage),
		Segments:          make(map[string][]string),
		LargeSegments:     make(map[string][]string),
	}
}

// Source loads a complete set of definitions.
// Implementations must return either everything or an error; a partial
// result would silently drop flags from the live snapshot.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Fetch reads all definitions. The context bounds the whole read.
	Fetch(ctx context.Context) (*Definitions, error)
}
