package ruleengine

// memStorage is a map-backed Storage for tests.
type memStorage struct {
	flags    map[string]*Flag
	segments map[string]Set // matching key -> standard segment names
	large    map[string]Set // matching key -> large segment names
	rbs      map[string]*RuleBasedSegment
}

func newMemStorage() *memStorage {
	return &memStorage{
		flags:    map[string]*Flag{},
		segments: map[string]Set{},
		large:    map[string]Set{},
		rbs:      map[string]*RuleBasedSegment{},
	}
}

func (s *memStorage) withFlag(f *Flag) *memStorage {
	s.flags[f.Name] = f
	return s
}

func (s *memStorage) withRuleBased(seg *RuleBasedSegment) *memStorage {
	s.rbs[seg.Name] = seg
	return s
}

func (s *memStorage) withMember(key string, segments ...string) *memStorage {
	s.segments[key] = NewSet(segments...)
	return s
}

func (s *memStorage) withLargeMember(key string, segments ...string) *memStorage {
	s.large[key] = NewSet(segments...)
	return s
}

func (s *memStorage) Flag(name string) *Flag { return s.flags[name] }
func (s *memStorage) SegmentMemberships(key string) Set { return s.segments[key] }
func (s *memStorage) LargeSegmentMemberships(key string) Set { return s.large[key] }
func (s *memStorage) RuleBasedSegment(name string) *RuleBasedSegment { return s.rbs[name] }

// rollout builds a condition over matchers with the given treatment:size pairs.
func rollout(label string, partitions []Partition, matchers ...Matcher) Condition {
	return Condition{
		Type:       ConditionTypeRollout,
		Matchers:   matchers,
		Partitions: partitions,
		Label:      label,
	}
}

func all(treatment string) []Partition {
	return []Partition{{Treatment: treatment, Size: 100}}
}

func keyMatcher(p Predicate) Matcher {
	return Matcher{Predicate: p}
}

func attrMatcher(attr string, p Predicate) Matcher {
	return Matcher{Attribute: attr, Predicate: p}
}

// testContext builds a root evaluation context backed by a default Engine.
func testContext(storage Storage, key string, attrs Attributes) *evalContext {
	return &evalContext{
		storage:  storage,
		key:      NewKey(key),
		attrs:    attrs,
		resolver: New(nil),
		maxDepth: DefaultMaxDepth,
	}
}
