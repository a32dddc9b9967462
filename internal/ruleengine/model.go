package ruleengine

// Set is an immutable set of strings.
type Set map[string]struct{}

// NewSet builds a Set from the given items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Has reports whether item is in the set. A nil Set is empty.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Algorithm selects the hash function used for bucketing.
type Algorithm int

const (
	// AlgorithmLegacy is the original 31-multiplier string hash.
	AlgorithmLegacy Algorithm = 1
	// AlgorithmMurmur is Murmur3 x86 32-bit.
	AlgorithmMurmur Algorithm = 2
)

// ConditionType is informational: whitelist conditions are authored from
// individual targets, rollout conditions from targeting rules.
type ConditionType string

const (
	ConditionTypeRollout   ConditionType = "ROLLOUT"
	ConditionTypeWhitelist ConditionType = "WHITELIST"
)

// Flag is a compiled, immutable flag definition.
type Flag struct {
	Name                  string
	TrafficType           string
	Killed                bool
	DefaultTreatment      string
	Conditions            []Condition
	Prerequisites         []Prerequisite
	Algorithm             Algorithm
	TrafficAllocation     int
	TrafficAllocationSeed int32
	Seed                  int32
	Configurations        map[string]string
	Sets                  []string
	ChangeNumber          int64

	// unsupported is set by the compiler when a matcher kind or combiner is not
	// understood by this engine.
	unsupported bool
}

// Unsupported reports whether the flag references a matcher kind this engine
// does not know.
func (f *Flag) Unsupported() bool { return f.unsupported }

// Condition pairs a matcher group with the partitions it rolls out.
type Condition struct {
	Type       ConditionType
	Matchers   []Matcher
	Partitions []Partition
	Label      string
}

// Partition assigns a share of the bucket range to a treatment.
type Partition struct {
	Treatment string
	Size      int
}

// Prerequisite requires another flag to resolve to one of the allowed treatments.
type Prerequisite struct {
	Flag       string
	Treatments Set
}

// SegmentType identifies which membership source an exclusion refers to.
type SegmentType string

const (
	SegmentTypeStandard  SegmentType = "standard"
	SegmentTypeLarge     SegmentType = "large"
	SegmentTypeRuleBased SegmentType = "rule-based"
)

// SegmentRef names a segment together with its kind.
type SegmentRef struct {
	Name string
	Type SegmentType
}

// Excluded lists keys and segments that are never members of a rule-based segment.
type Excluded struct {
	Keys     Set
	Segments []SegmentRef
}

// RuleBasedSegment is a server-defined segment computed from its own conditions.
type RuleBasedSegment struct {
	Name         string
	TrafficType  string
	ChangeNumber int64
	Conditions   []Condition
	Excluded     Excluded

	unsupported bool
}
