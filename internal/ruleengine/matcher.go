package ruleengine

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// Matcher is a single predicate of a condition.
type Matcher struct {
	// Negate inverts the raw predicate result.
	Negate bool

	// Attribute selects the tested value. Empty means the matching key.
	Attribute string

	// Predicate holds the kind-specific payload.
	Predicate Predicate
}

// Predicate is the sealed set of matcher kinds. Only types in this package
// implement it, so evaluateMatcher can switch over every variant.
type Predicate interface {
	predicate()
}

// DataType selects the numeric or the date branch of numeric comparators.
type DataType string

const (
	DataTypeNumber   DataType = "NUMBER"
	DataTypeDatetime DataType = "DATETIME"
)

type (
	// AllKeys matches every key.
	AllKeys struct{}

	// Whitelist matches a value exactly equal to one of the entries.
	Whitelist struct{ Values Set }

	// StartsWith matches a value with any of the prefixes.
	StartsWith struct{ Prefixes []string }

	// EndsWith matches a value with any of the suffixes.
	EndsWith struct{ Suffixes []string }

	// ContainsString matches a value containing any of the substrings.
	ContainsString struct{ Substrings []string }

	// MatchesString matches a value fully matched by Pattern.
	// A nil compiled expression means the pattern did not compile.
	MatchesString struct {
		Pattern string
		re      *regexp.Regexp
	}

	// EqualTo compares a numeric or date value for equality.
	EqualTo struct {
		Type  DataType
		Value int64
	}

	// GreaterThanOrEqualTo compares a numeric or date value.
	GreaterThanOrEqualTo struct {
		Type  DataType
		Value int64
	}

	// LessThanOrEqualTo compares a numeric or date value.
	LessThanOrEqualTo struct {
		Type  DataType
		Value int64
	}

	// Between is an inclusive numeric or date range.
	Between struct {
		Type  DataType
		Start int64
		End   int64
	}

	// EqualToBoolean matches a boolean (or boolean-like string) value.
	EqualToBoolean struct{ Value bool }

	// EqualToSet matches a list equal to Values as a set.
	EqualToSet struct{ Values Set }

	// ContainsAllOfSet matches a list that is a superset of Values.
	ContainsAllOfSet struct{ Values Set }

	// ContainsAnyOfSet matches a list intersecting Values.
	ContainsAnyOfSet struct{ Values Set }

	// PartOfSet matches a non-empty list that is a subset of Values.
	PartOfSet struct{ Values Set }

	// InSegment matches keys in a standard segment.
	InSegment struct{ Segment string }

	// InLargeSegment matches keys in a large segment.
	InLargeSegment struct{ Segment string }

	// InRuleBasedSegment matches keys in a rule-based segment.
	InRuleBasedSegment struct{ Segment string }

	// Dependency matches when another flag resolves to one of Treatments.
	Dependency struct {
		Flag       string
		Treatments Set
	}

	// EqualToSemver matches a version equal to Version.
	// A nil Version means the configured string did not parse.
	EqualToSemver struct{ Version *semver.Version }

	// GreaterThanOrEqualToSemver matches a version >= Version.
	GreaterThanOrEqualToSemver struct{ Version *semver.Version }

	// LessThanOrEqualToSemver matches a version <= Version.
	LessThanOrEqualToSemver struct{ Version *semver.Version }

	// BetweenSemver matches a version in the inclusive range.
	BetweenSemver struct {
		Start *semver.Version
		End   *semver.Version
	}

	// InListSemver matches a version equal to any of Versions.
	InListSemver struct{ Versions []*semver.Version }
)

func (AllKeys) predicate()                    {}
func (Whitelist) predicate()                  {}
func (StartsWith) predicate()                 {}
func (EndsWith) predicate()                   {}
func (ContainsString) predicate()             {}
func (MatchesString) predicate()              {}
func (EqualTo) predicate()                    {}
func (GreaterThanOrEqualTo) predicate()       {}
func (LessThanOrEqualTo) predicate()          {}
func (Between) predicate()                    {}
func (EqualToBoolean) predicate()             {}
func (EqualToSet) predicate()                 {}
func (ContainsAllOfSet) predicate()           {}
func (ContainsAnyOfSet) predicate()           {}
func (PartOfSet) predicate()                  {}
func (InSegment) predicate()                  {}
func (InLargeSegment) predicate()             {}
func (InRuleBasedSegment) predicate()         {}
func (Dependency) predicate()                 {}
func (EqualToSemver) predicate()              {}
func (GreaterThanOrEqualToSemver) predicate() {}
func (LessThanOrEqualToSemver) predicate()    {}
func (BetweenSemver) predicate()              {}
func (InListSemver) predicate()               {}

// NewMatchesString compiles pattern for full-span matching. A pattern that does
// not compile yields a predicate that never matches.
func NewMatchesString(pattern string) MatchesString {
	// The bare pattern is compiled first so that unbalanced groups cannot be
	// closed by the anchoring wrapper.
	if _, err := regexp.Compile(pattern); err != nil {
		return MatchesString{Pattern: pattern}
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return MatchesString{Pattern: pattern}
	}
	return MatchesString{Pattern: pattern, re: re}
}

// usesKeyOnly reports whether the predicate ignores the configured attribute.
func usesKeyOnly(p Predicate) bool {
	switch p.(type) {
	case InSegment, InLargeSegment, InRuleBasedSegment, Dependency:
		return true
	default:
		return false
	}
}
