package ruleengine

// isRuleBasedMember resolves membership of the matching key in a rule-based
// segment. Exclusions are checked first; membership is the OR of the
// segment's conditions. Absent or unusable segments, and segments already on
// the current resolution path, are never matched.
func isRuleBasedMember(ec *evalContext, name string) bool {
	child, ok := ec.enterSegment(name)
	if !ok {
		return false
	}

	seg := ec.storage.RuleBasedSegment(name)
	if seg == nil || seg.unsupported {
		return false
	}

	if seg.Excluded.Keys.Has(ec.key.Matching) {
		return false
	}
	for _, ref := range seg.Excluded.Segments {
		if inSegmentRef(child, ref) {
			return false
		}
	}

	for i := range seg.Conditions {
		if conditionMatches(child, &seg.Conditions[i]) {
			return true
		}
	}
	return false
}

func inSegmentRef(ec *evalContext, ref SegmentRef) bool {
	switch ref.Type {
	case SegmentTypeStandard:
		return ec.storage.SegmentMemberships(ec.key.Matching).Has(ref.Name)
	case SegmentTypeLarge:
		return ec.storage.LargeSegmentMemberships(ec.key.Matching).Has(ref.Name)
	case SegmentTypeRuleBased:
		return isRuleBasedMember(ec, ref.Name)
	default:
		return false
	}
}
