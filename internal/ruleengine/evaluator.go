package ruleengine

import "slices"

// treatmentResolver evaluates another flag on behalf of a dependency matcher or
// a prerequisite. The engine passes itself in through evalContext.
type treatmentResolver interface {
	resolveTreatment(ec *evalContext, flagName string) string
}

// evalContext carries everything a single evaluation needs. It is created per
// call and never shared between goroutines.
type evalContext struct {
	storage  Storage
	key      Key
	attrs    Attributes
	resolver treatmentResolver

	// Recursion guard: depth counts nested flag and rule-based segment
	// resolutions; flags and segments hold the names on the current path.
	maxDepth int
	depth    int
	flags    []string
	segments []string
}

// enterFlag returns a child context for evaluating flag name, or false when
// doing so would revisit a flag on the current path or exceed the depth limit.
func (ec *evalContext) enterFlag(name string) (*evalContext, bool) {
	if ec.depth >= ec.maxDepth || slices.Contains(ec.flags, name) {
		return nil, false
	}
	child := *ec
	child.depth++
	child.flags = append(slices.Clip(ec.flags), name)
	return &child, true
}

// enterSegment is enterFlag for rule-based segments.
func (ec *evalContext) enterSegment(name string) (*evalContext, bool) {
	if ec.depth >= ec.maxDepth || slices.Contains(ec.segments, name) {
		return nil, false
	}
	child := *ec
	child.depth++
	child.segments = append(slices.Clip(ec.segments), name)
	return &child, true
}

// testedValue resolves the value a matcher inspects.
func (ec *evalContext) testedValue(attribute string) (Value, bool) {
	if attribute == "" {
		return String(ec.key.Matching), true
	}
	return ec.attrs.lookup(attribute)
}
