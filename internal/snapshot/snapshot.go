package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
)

// Snapshot is an immutable, fully indexed copy of the definitions.
// It implements ruleengine.Storage and is safe for concurrent use.
type Snapshot struct {
	source  string
	version uint64
	builtAt time.Time

	flags     map[string]*lazy[ruleengine.Flag]
	ruleBased map[string]*lazy[ruleengine.RuleBasedSegment]
	flagNames []string

	// Inverted membership indexes: member key -> segment names.
	segmentsByKey      map[string]ruleengine.Set
	largeSegmentsByKey map[string]ruleengine.Set

	segmentCount      int
	largeSegmentCount int

	setsOnce sync.Once
	flagSets map[string][]string
}

var _ ruleengine.Storage = (*Snapshot)(nil)

// Build indexes defs into a Snapshot. Flag and rule-based segment bodies are
// compiled lazily; a body that fails to compile is logged once and treated as absent.
func Build(defs *Definitions, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if defs == nil {
		defs = NewDefinitions("")
	}

	s := &Snapshot{
		source:             defs.Source,
		builtAt:            time.Now(),
		flags:              make(map[string]*lazy[ruleengine.Flag], len(defs.Flags)),
		ruleBased:          make(map[string]*lazy[ruleengine.RuleBasedSegment], len(defs.RuleBasedSegments)),
		flagNames:          make([]string, 0, len(defs.Flags)),
		segmentsByKey:      invert(defs.Segments),
		largeSegmentsByKey: invert(defs.LargeSegments),
		segmentCount:       len(defs.Segments),
		largeSegmentCount:  len(defs.LargeSegments),
	}

	for name, body := range defs.Flags {
		s.flags[name] = newLazy(body, func(b []byte) (*ruleengine.Flag, error) {
			f, err := ruleengine.CompileFlag(b)
			if err != nil {
				logger.Warn("discarding flag definition",
					slog.String("flag", name),
					slog.String("source", defs.Source),
					slog.String("error", err.Error()),
				)
				observability.SnapshotParseFailures.WithLabelValues("flag").Inc()
			}
			return f, err
		})
		s.flagNames = append(s.flagNames, name)
	}
	slices.Sort(s.flagNames)

	for name, body := range defs.RuleBasedSegments {
		s.ruleBased[name] = newLazy(body, func(b []byte) (*ruleengine.RuleBasedSegment, error) {
			seg, err := ruleengine.CompileRuleBasedSegment(b)
			if err != nil {
				logger.Warn("discarding rule-based segment definition",
					slog.String("segment", name),
					slog.String("source", defs.Source),
					slog.String("error", err.Error()),
				)
				observability.SnapshotParseFailures.WithLabelValues("rule_based_segment").Inc()
			}
			return seg, err
		})
	}

	s.version = fingerprint(defs)
	return s
}

// Flag returns the compiled flag, or nil when it is absent or its body is invalid.
func (s *Snapshot) Flag(name string) *ruleengine.Flag {
	l, ok := s.flags[name]
	if !ok {
		return nil
	}
	f, err := l.get()
	if err != nil {
		return nil
	}
	return f
}

// RuleBasedSegment returns the compiled segment, or nil when it is absent or
// its body is invalid.
func (s *Snapshot) RuleBasedSegment(name string) *ruleengine.RuleBasedSegment {
	l, ok := s.ruleBased[name]
	if !ok {
		return nil
	}
	seg, err := l.get()
	if err != nil {
		return nil
	}
	return seg
}

// SegmentMemberships returns the standard segments matchingKey belongs to.
func (s *Snapshot) SegmentMemberships(matchingKey string) ruleengine.Set {
	return s.segmentsByKey[matchingKey]
}

// LargeSegmentMemberships returns the large segments matchingKey belongs to.
func (s *Snapshot) LargeSegmentMemberships(matchingKey string) ruleengine.Set {
	return s.largeSegmentsByKey[matchingKey]
}

// FlagNames returns every flag name in the snapshot, sorted.
// The slice is shared and must not be modified.
func (s *Snapshot) FlagNames() []string {
	return s.flagNames
}

// FlagNamesBySet returns the sorted names of the usable flags tagged with set.
// The first call compiles every flag to build the index.
func (s *Snapshot) FlagNamesBySet(set string) []string {
	s.setsOnce.Do(func() {
		s.flagSets = make(map[string][]string)
		for _, name := range s.flagNames {
			f := s.Flag(name)
			if f == nil {
				continue
			}
			for _, tag := range f.Sets {
				s.flagSets[tag] = append(s.flagSets[tag], name)
			}
		}
	})
	return s.flagSets[set]
}

// Version is a content fingerprint: two snapshots built from identical
// definitions share it.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// VersionString renders Version as a fixed-width hex string, suitable for ETags.
func (s *Snapshot) VersionString() string {
	return fmt.Sprintf("%016x", s.version)
}

// Source names where the snapshot's definitions came from.
func (s *Snapshot) Source() string { return s.source }

// BuiltAt is the time the snapshot was indexed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Stats summarizes the snapshot for logging and gauges.
type Stats struct {
	Flags             int
	RuleBasedSegments int
	Segments          int
	LargeSegments     int
}

// Stats returns the number of definitions of each kind.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Flags:             len(s.flags),
		RuleBasedSegments: len(s.ruleBased),
		Segments:          s.segmentCount,
		LargeSegments:     s.largeSegmentCount,
	}
}

func invert(members map[string][]string) map[string]ruleengine.Set {
	index := make(map[string]ruleengine.Set)
	for segment, keys := range members {
		for _, key := range keys {
			set, ok := index[key]
			if !ok {
				set = make(ruleengine.Set)
				index[key] = set
			}
			set[segment] = struct{}{}
		}
	}
	return index
}

// fingerprint hashes the definitions in a map-order independent way.
func fingerprint(defs *Definitions) uint64 {
	d := xxhash.New()
	writeBodies := func(tag string, bodies map[string]json.RawMessage) {
		_, _ = d.WriteString(tag)
		for _, name := range slices.Sorted(maps.Keys(bodies)) {
			_, _ = d.WriteString(name)
			_, _ = d.Write([]byte{0})
			_, _ = d.Write(bodies[name])
			_, _ = d.Write([]byte{0})
		}
	}
	writeMembers := func(tag string, members map[string][]string) {
		_, _ = d.WriteString(tag)
		for _, name := range slices.Sorted(maps.Keys(members)) {
			_, _ = d.WriteString(name)
			_, _ = d.Write([]byte{0})
			keys := slices.Clone(members[name])
			slices.Sort(keys)
			for _, key := range keys {
				_, _ = d.WriteString(key)
				_, _ = d.Write([]byte{0x1f})
			}
			_, _ = d.Write([]byte{0})
		}
	}

	writeBodies("flags", defs.Flags)
	writeBodies("rbsegments", defs.RuleBasedSegments)
	writeMembers("segments", defs.Segments)
	writeMembers("largesegments", defs.LargeSegments)
	return d.Sum64()
}
