package ruleengine

// conditionMatches combines the condition's matchers with AND.
func conditionMatches(ec *evalContext, c *Condition) bool {
	for _, m := range c.Matchers {
		if !evaluateMatcher(ec, m) {
			return false
		}
	}
	return true
}

// selectPartition walks the partitions in declared order and returns the
// treatment whose cumulative range contains bucket. Partitions of a valid
// condition tile [1, 100], so Control is only returned for malformed data.
func selectPartition(partitions []Partition, bucket int) string {
	covered := 0
	for _, p := range partitions {
		covered += p.Size
		if bucket <= covered {
			return p.Treatment
		}
	}
	return Control
}
