package ruleengine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrInvalidDefinition is returned when a definition cannot be decoded or
	// violates a structural invariant (e.g. partitions not summing to 100).
	ErrInvalidDefinition = errors.New("invalid definition")

	// errUnsupported marks a matcher kind or combiner this engine does not know.
	// It never escapes the compiler: the owning definition is flagged instead.
	errUnsupported = errors.New("unsupported matcher")
)

// Matcher kinds as they appear on the wire.
const (
	MatcherAllKeys                    = "ALL_KEYS"
	MatcherWhitelist                  = "WHITELIST"
	MatcherStartsWith                 = "STARTS_WITH"
	MatcherEndsWith                   = "ENDS_WITH"
	MatcherContainsString             = "CONTAINS_STRING"
	MatcherMatchesString              = "MATCHES_STRING"
	MatcherEqualTo                    = "EQUAL_TO"
	MatcherGreaterThanOrEqualTo       = "GREATER_THAN_OR_EQUAL_TO"
	MatcherLessThanOrEqualTo          = "LESS_THAN_OR_EQUAL_TO"
	MatcherBetween                    = "BETWEEN"
	MatcherEqualToBoolean             = "EQUAL_TO_BOOLEAN"
	MatcherEqualToSet                 = "EQUAL_TO_SET"
	MatcherContainsAllOfSet           = "CONTAINS_ALL_OF_SET"
	MatcherContainsAnyOfSet           = "CONTAINS_ANY_OF_SET"
	MatcherPartOfSet                  = "PART_OF_SET"
	MatcherInSegment                  = "IN_SEGMENT"
	MatcherInLargeSegment             = "IN_LARGE_SEGMENT"
	MatcherInRuleBasedSegment         = "IN_RULE_BASED_SEGMENT"
	MatcherInSplitTreatment           = "IN_SPLIT_TREATMENT"
	MatcherEqualToSemver              = "EQUAL_TO_SEMVER"
	MatcherGreaterThanOrEqualToSemver = "GREATER_THAN_OR_EQUAL_TO_SEMVER"
	MatcherLessThanOrEqualToSemver    = "LESS_THAN_OR_EQUAL_TO_SEMVER"
	MatcherBetweenSemver              = "BETWEEN_SEMVER"
	MatcherInListSemver               = "IN_LIST_SEMVER"
)

const combinerAnd = "AND"

// Wire schema. Field names follow the synchronization payload.
type (
	flagJSON struct {
		Name                  string             `json:"name"`
		TrafficTypeName       string             `json:"trafficTypeName"`
		Killed                bool               `json:"killed"`
		DefaultTreatment      string             `json:"defaultTreatment"`
		ChangeNumber          int64              `json:"changeNumber"`
		Algo                  int                `json:"algo"`
		TrafficAllocation     *int               `json:"trafficAllocation"`
		TrafficAllocationSeed int32              `json:"trafficAllocationSeed"`
		Seed                  int32              `json:"seed"`
		Configurations        map[string]string  `json:"configurations"`
		Sets                  []string           `json:"sets"`
		Prerequisites         []prerequisiteJSON `json:"prerequisites"`
		Conditions            []conditionJSON    `json:"conditions"`
	}

	prerequisiteJSON struct {
		Flag       string   `json:"n"`
		Treatments []string `json:"ts"`
	}

	conditionJSON struct {
		ConditionType string           `json:"conditionType"`
		Label         string           `json:"label"`
		Partitions    []partitionJSON  `json:"partitions"`
		MatcherGroup  matcherGroupJSON `json:"matcherGroup"`
	}

	partitionJSON struct {
		Treatment string `json:"treatment"`
		Size      int    `json:"size"`
	}

	matcherGroupJSON struct {
		Combiner string        `json:"combiner"`
		Matchers []matcherJSON `json:"matchers"`
	}

	matcherJSON struct {
		MatcherType string `json:"matcherType"`
		Negate      bool   `json:"negate"`
		KeySelector *struct {
			Attribute *string `json:"attribute"`
		} `json:"keySelector"`

		Whitelist *struct {
			Whitelist []string `json:"whitelist"`
		} `json:"whitelistMatcherData"`
		UnaryNumeric *struct {
			DataType DataType `json:"dataType"`
			Value    int64    `json:"value"`
		} `json:"unaryNumericMatcherData"`
		Between *struct {
			DataType DataType `json:"dataType"`
			Start    int64    `json:"start"`
			End      int64    `json:"end"`
		} `json:"betweenMatcherData"`
		Boolean       *bool   `json:"booleanMatcherData"`
		String        *string `json:"stringMatcherData"`
		BetweenString *struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"betweenStringMatcherData"`
		Dependency *struct {
			Split      string   `json:"split"`
			Treatments []string `json:"treatments"`
		} `json:"dependencyMatcherData"`
		Segment *struct {
			SegmentName string `json:"segmentName"`
		} `json:"userDefinedSegmentMatcherData"`
		LargeSegment *struct {
			LargeSegmentName string `json:"largeSegmentName"`
		} `json:"userDefinedLargeSegmentMatcherData"`
	}

	ruleBasedSegmentJSON struct {
		Name            string          `json:"name"`
		TrafficTypeName string          `json:"trafficTypeName"`
		ChangeNumber    int64           `json:"changeNumber"`
		Conditions      []conditionJSON `json:"conditions"`
		Excluded        struct {
			Keys     []string `json:"keys"`
			Segments []struct {
				Name string      `json:"name"`
				Type SegmentType `json:"type"`
			} `json:"segments"`
		} `json:"excluded"`
	}
)

// CompileFlag decodes a flag definition into its evaluable form.
// Unknown matcher kinds do not fail compilation; the flag is marked
// Unsupported and evaluates to Control with LabelMatcherNotFound.
func CompileFlag(raw []byte) (*Flag, error) {
	var in flagJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: flag: %v", ErrInvalidDefinition, err)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: flag name is required", ErrInvalidDefinition)
	}

	flag := &Flag{
		Name:                  in.Name,
		TrafficType:           in.TrafficTypeName,
		Killed:                in.Killed,
		DefaultTreatment:      in.DefaultTreatment,
		Algorithm:             Algorithm(in.Algo),
		TrafficAllocation:     100,
		TrafficAllocationSeed: in.TrafficAllocationSeed,
		Seed:                  in.Seed,
		Configurations:        in.Configurations,
		Sets:                  in.Sets,
		ChangeNumber:          in.ChangeNumber,
	}
	if flag.DefaultTreatment == "" {
		flag.DefaultTreatment = Control
	}
	if in.TrafficAllocation != nil {
		if *in.TrafficAllocation < 0 || *in.TrafficAllocation > 100 {
			return nil, fmt.Errorf("%w: flag %s: traffic allocation %d out of range",
				ErrInvalidDefinition, in.Name, *in.TrafficAllocation)
		}
		flag.TrafficAllocation = *in.TrafficAllocation
	}

	for _, p := range in.Prerequisites {
		if p.Flag == "" {
			return nil, fmt.Errorf("%w: flag %s: prerequisite without flag name", ErrInvalidDefinition, in.Name)
		}
		flag.Prerequisites = append(flag.Prerequisites, Prerequisite{
			Flag:       p.Flag,
			Treatments: NewSet(p.Treatments...),
		})
	}

	conds, err := compileConditions(in.Conditions, true)
	switch {
	case errors.Is(err, errUnsupported):
		flag.unsupported = true
	case err != nil:
		return nil, fmt.Errorf("flag %s: %w", in.Name, err)
	default:
		flag.Conditions = conds
	}

	return flag, nil
}

// CompileRuleBasedSegment decodes a rule-based segment definition.
// A segment with unknown matcher kinds or exclusion types is marked unusable
// and never matches.
func CompileRuleBasedSegment(raw []byte) (*RuleBasedSegment, error) {
	var in ruleBasedSegmentJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: rule-based segment: %v", ErrInvalidDefinition, err)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: rule-based segment name is required", ErrInvalidDefinition)
	}

	seg := &RuleBasedSegment{
		Name:         in.Name,
		TrafficType:  in.TrafficTypeName,
		ChangeNumber: in.ChangeNumber,
		Excluded:     Excluded{Keys: NewSet(in.Excluded.Keys...)},
	}

	for _, ref := range in.Excluded.Segments {
		switch ref.Type {
		case SegmentTypeStandard, SegmentTypeLarge, SegmentTypeRuleBased:
			seg.Excluded.Segments = append(seg.Excluded.Segments, SegmentRef{Name: ref.Name, Type: ref.Type})
		default:
			seg.unsupported = true
		}
	}

	conds, err := compileConditions(in.Conditions, false)
	switch {
	case errors.Is(err, errUnsupported):
		seg.unsupported = true
	case err != nil:
		return nil, fmt.Errorf("rule-based segment %s: %w", in.Name, err)
	default:
		seg.Conditions = conds
	}

	return seg, nil
}

// Unsupported reports whether the segment references a matcher kind or
// exclusion type this engine does not know.
func (s *RuleBasedSegment) Unsupported() bool { return s.unsupported }

func compileConditions(in []conditionJSON, withPartitions bool) ([]Condition, error) {
	out := make([]Condition, 0, len(in))
	for i, c := range in {
		combiner := c.MatcherGroup.Combiner
		if combiner != "" && combiner != combinerAnd {
			return nil, fmt.Errorf("condition %d: combiner %q: %w", i, combiner, errUnsupported)
		}

		cond := Condition{
			Type:  ConditionType(c.ConditionType),
			Label: c.Label,
		}
		if cond.Type == "" {
			cond.Type = ConditionTypeRollout
		}

		for j, m := range c.MatcherGroup.Matchers {
			matcher, err := compileMatcher(m)
			if err != nil {
				return nil, fmt.Errorf("condition %d matcher %d: %w", i, j, err)
			}
			cond.Matchers = append(cond.Matchers, matcher)
		}

		if withPartitions {
			total := 0
			for _, p := range c.Partitions {
				if p.Size < 0 || p.Size > 100 {
					return nil, fmt.Errorf("%w: condition %d: partition size %d out of range", ErrInvalidDefinition, i, p.Size)
				}
				total += p.Size
				cond.Partitions = append(cond.Partitions, Partition{Treatment: p.Treatment, Size: p.Size})
			}
			if total != 100 {
				return nil, fmt.Errorf("%w: condition %d: partitions sum to %d", ErrInvalidDefinition, i, total)
			}
		}

		out = append(out, cond)
	}
	return out, nil
}

func compileMatcher(in matcherJSON) (Matcher, error) {
	m := Matcher{Negate: in.Negate}
	if in.KeySelector != nil && in.KeySelector.Attribute != nil {
		m.Attribute = *in.KeySelector.Attribute
	}

	missing := func() (Matcher, error) {
		return Matcher{}, fmt.Errorf("%w: %s without payload", ErrInvalidDefinition, in.MatcherType)
	}

	switch in.MatcherType {
	case MatcherAllKeys:
		m.Predicate = AllKeys{}

	case MatcherWhitelist, MatcherStartsWith, MatcherEndsWith, MatcherContainsString,
		MatcherEqualToSet, MatcherContainsAllOfSet, MatcherContainsAnyOfSet, MatcherPartOfSet,
		MatcherInListSemver:
		if in.Whitelist == nil {
			return missing()
		}
		m.Predicate = listPredicate(in.MatcherType, in.Whitelist.Whitelist)

	case MatcherMatchesString:
		if in.String == nil {
			return missing()
		}
		m.Predicate = NewMatchesString(*in.String)

	case MatcherEqualTo, MatcherGreaterThanOrEqualTo, MatcherLessThanOrEqualTo:
		if in.UnaryNumeric == nil {
			return missing()
		}
		dt, v := in.UnaryNumeric.DataType, in.UnaryNumeric.Value
		switch in.MatcherType {
		case MatcherEqualTo:
			m.Predicate = EqualTo{Type: dt, Value: v}
		case MatcherGreaterThanOrEqualTo:
			m.Predicate = GreaterThanOrEqualTo{Type: dt, Value: v}
		default:
			m.Predicate = LessThanOrEqualTo{Type: dt, Value: v}
		}

	case MatcherBetween:
		if in.Between == nil {
			return missing()
		}
		m.Predicate = Between{Type: in.Between.DataType, Start: in.Between.Start, End: in.Between.End}

	case MatcherEqualToBoolean:
		if in.Boolean == nil {
			return missing()
		}
		m.Predicate = EqualToBoolean{Value: *in.Boolean}

	case MatcherInSegment:
		if in.Segment == nil {
			return missing()
		}
		m.Predicate = InSegment{Segment: in.Segment.SegmentName}

	case MatcherInRuleBasedSegment:
		if in.Segment == nil {
			return missing()
		}
		m.Predicate = InRuleBasedSegment{Segment: in.Segment.SegmentName}

	case MatcherInLargeSegment:
		if in.LargeSegment == nil {
			return missing()
		}
		m.Predicate = InLargeSegment{Segment: in.LargeSegment.LargeSegmentName}

	case MatcherInSplitTreatment:
		if in.Dependency == nil {
			return missing()
		}
		m.Predicate = Dependency{
			Flag:       in.Dependency.Split,
			Treatments: NewSet(in.Dependency.Treatments...),
		}

	case MatcherEqualToSemver, MatcherGreaterThanOrEqualToSemver, MatcherLessThanOrEqualToSemver:
		if in.String == nil {
			return missing()
		}
		v := parseSemver(*in.String)
		switch in.MatcherType {
		case MatcherEqualToSemver:
			m.Predicate = EqualToSemver{Version: v}
		case MatcherGreaterThanOrEqualToSemver:
			m.Predicate = GreaterThanOrEqualToSemver{Version: v}
		default:
			m.Predicate = LessThanOrEqualToSemver{Version: v}
		}

	case MatcherBetweenSemver:
		if in.BetweenString == nil {
			return missing()
		}
		m.Predicate = BetweenSemver{
			Start: parseSemver(in.BetweenString.Start),
			End:   parseSemver(in.BetweenString.End),
		}

	default:
		return Matcher{}, fmt.Errorf("%q: %w", in.MatcherType, errUnsupported)
	}

	return m, nil
}

func listPredicate(kind string, items []string) Predicate {
	switch kind {
	case MatcherWhitelist:
		return Whitelist{Values: NewSet(items...)}
	case MatcherStartsWith:
		return StartsWith{Prefixes: items}
	case MatcherEndsWith:
		return EndsWith{Suffixes: items}
	case MatcherContainsString:
		return ContainsString{Substrings: items}
	case MatcherEqualToSet:
		return EqualToSet{Values: NewSet(items...)}
	case MatcherContainsAllOfSet:
		return ContainsAllOfSet{Values: NewSet(items...)}
	case MatcherContainsAnyOfSet:
		return ContainsAnyOfSet{Values: NewSet(items...)}
	case MatcherPartOfSet:
		return PartOfSet{Values: NewSet(items...)}
	default:
		versions := make([]*semver.Version, 0, len(items))
		for _, item := range items {
			if v := parseSemver(item); v != nil {
				versions = append(versions, v)
			}
		}
		return InListSemver{Versions: versions}
	}
}
