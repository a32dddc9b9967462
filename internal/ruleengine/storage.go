package ruleengine

// Storage is the read-only view of a synchronized snapshot consumed by the engine.
// Implementations must be safe for concurrent use; the engine never mutates
// anything it receives.
type Storage interface {
	// Flag returns the named flag, or nil if it is absent or unusable.
	Flag(name string) *Flag

	// SegmentMemberships returns the names of the standard segments the key belongs to.
	SegmentMemberships(matchingKey string) Set

	// LargeSegmentMemberships returns the names of the large segments the key belongs to.
	LargeSegmentMemberships(matchingKey string) Set

	// RuleBasedSegment returns the named rule-based segment, or nil if it is
	// absent or unusable.
	RuleBasedSegment(name string) *RuleBasedSegment
}
