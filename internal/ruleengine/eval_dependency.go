package ruleengine

// dependencySatisfied evaluates flagName with the same key and attributes and
// reports whether the resulting treatment is one of allowed.
func dependencySatisfied(ec *evalContext, flagName string, allowed Set) bool {
	return allowed.Has(ec.resolver.resolveTreatment(ec, flagName))
}

// prerequisitesMet requires every prerequisite to be satisfied.
func prerequisitesMet(ec *evalContext, prereqs []Prerequisite) bool {
	for _, p := range prereqs {
		if !dependencySatisfied(ec, p.Flag, p.Treatments) {
			return false
		}
	}
	return true
}
