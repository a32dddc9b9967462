package ruleengine

import "strings"

// evaluateMatcher returns the predicate result XOR the negate flag.
func evaluateMatcher(ec *evalContext, m Matcher) bool {
	return evaluatePredicate(ec, m) != m.Negate
}

func evaluatePredicate(ec *evalContext, m Matcher) bool {
	if usesKeyOnly(m.Predicate) {
		return evaluateMembership(ec, m.Predicate)
	}

	value, ok := ec.testedValue(m.Attribute)
	if !ok {
		return false
	}

	switch p := m.Predicate.(type) {
	case AllKeys:
		return true
	case Whitelist:
		s, ok := value.asString()
		return ok && p.Values.Has(s)
	case StartsWith:
		return matchAnyString(value, p.Prefixes, strings.HasPrefix)
	case EndsWith:
		return matchAnyString(value, p.Suffixes, strings.HasSuffix)
	case ContainsString:
		return matchAnyString(value, p.Substrings, strings.Contains)
	case MatchesString:
		s, ok := value.asString()
		return ok && p.re != nil && p.re.MatchString(s)
	case EqualTo:
		n, ok := value.asInt64()
		return ok && compareEqual(p.Type, n, p.Value)
	case GreaterThanOrEqualTo:
		n, ok := value.asInt64()
		return ok && compareGreaterOrEqual(p.Type, n, p.Value)
	case LessThanOrEqualTo:
		n, ok := value.asInt64()
		return ok && compareLessOrEqual(p.Type, n, p.Value)
	case Between:
		n, ok := value.asInt64()
		return ok && compareBetween(p.Type, n, p.Start, p.End)
	case EqualToBoolean:
		b, ok := value.asBool()
		return ok && b == p.Value
	case EqualToSet:
		list, ok := value.asStringList()
		return ok && setEqual(list, p.Values)
	case ContainsAllOfSet:
		list, ok := value.asStringList()
		return ok && containsAll(list, p.Values)
	case ContainsAnyOfSet:
		list, ok := value.asStringList()
		return ok && containsAny(list, p.Values)
	case PartOfSet:
		list, ok := value.asStringList()
		return ok && partOf(list, p.Values)
	case EqualToSemver:
		s, ok := value.asString()
		return ok && semverEqual(s, p.Version)
	case GreaterThanOrEqualToSemver:
		s, ok := value.asString()
		return ok && semverGreaterOrEqual(s, p.Version)
	case LessThanOrEqualToSemver:
		s, ok := value.asString()
		return ok && semverLessOrEqual(s, p.Version)
	case BetweenSemver:
		s, ok := value.asString()
		return ok && semverBetween(s, p.Start, p.End)
	case InListSemver:
		s, ok := value.asString()
		return ok && semverInList(s, p.Versions)
	default:
		return false
	}
}

// evaluateMembership handles the predicates that always test the matching key.
func evaluateMembership(ec *evalContext, p Predicate) bool {
	switch p := p.(type) {
	case InSegment:
		return ec.storage.SegmentMemberships(ec.key.Matching).Has(p.Segment)
	case InLargeSegment:
		return ec.storage.LargeSegmentMemberships(ec.key.Matching).Has(p.Segment)
	case InRuleBasedSegment:
		return isRuleBasedMember(ec, p.Segment)
	case Dependency:
		return dependencySatisfied(ec, p.Flag, p.Treatments)
	default:
		return false
	}
}

func matchAnyString(value Value, candidates []string, fn func(s, part string) bool) bool {
	s, ok := value.asString()
	if !ok {
		return false
	}
	for _, c := range candidates {
		if fn(s, c) {
			return true
		}
	}
	return false
}

func setEqual(list []string, values Set) bool {
	got := NewSet(list...)
	if len(got) != len(values) {
		return false
	}
	for item := range got {
		if !values.Has(item) {
			return false
		}
	}
	return true
}

func containsAll(list []string, values Set) bool {
	if len(values) == 0 {
		return false
	}
	got := NewSet(list...)
	for item := range values {
		if !got.Has(item) {
			return false
		}
	}
	return true
}

func containsAny(list []string, values Set) bool {
	for _, item := range list {
		if values.Has(item) {
			return true
		}
	}
	return false
}

func partOf(list []string, values Set) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if !values.Has(item) {
			return false
		}
	}
	return true
}
