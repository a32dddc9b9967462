package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullFlagJSON = `{
	"name": "checkout_v2",
	"trafficTypeName": "user",
	"killed": false,
	"defaultTreatment": "off",
	"changeNumber": 1700000000000,
	"algo": 2,
	"trafficAllocation": 90,
	"trafficAllocationSeed": -1329591480,
	"seed": -1222652054,
	"configurations": {"on": "{\"size\":3}"},
	"sets": ["checkout", "web"],
	"prerequisites": [{"n": "payments_ready", "ts": ["on", "partial"]}],
	"conditions": [
		{
			"conditionType": "WHITELIST",
			"label": "whitelisted",
			"matcherGroup": {"combiner": "AND", "matchers": [
				{"matcherType": "WHITELIST", "negate": false, "whitelistMatcherData": {"whitelist": ["qa-1", "qa-2"]}}
			]},
			"partitions": [{"treatment": "on", "size": 100}]
		},
		{
			"conditionType": "ROLLOUT",
			"label": "mobile beta",
			"matcherGroup": {"combiner": "AND", "matchers": [
				{"matcherType": "IN_SEGMENT", "userDefinedSegmentMatcherData": {"segmentName": "beta"}},
				{"matcherType": "EQUAL_TO_BOOLEAN", "keySelector": {"trafficType": "user", "attribute": "mobile"}, "booleanMatcherData": true},
				{"matcherType": "BETWEEN", "negate": true, "keySelector": {"attribute": "age"}, "betweenMatcherData": {"dataType": "NUMBER", "start": 0, "end": 17}},
				{"matcherType": "GREATER_THAN_OR_EQUAL_TO_SEMVER", "keySelector": {"attribute": "app"}, "stringMatcherData": "3.2.0"},
				{"matcherType": "BETWEEN_SEMVER", "keySelector": {"attribute": "app"}, "betweenStringMatcherData": {"start": "3.0.0", "end": "4.0.0"}},
				{"matcherType": "IN_LIST_SEMVER", "keySelector": {"attribute": "app"}, "whitelistMatcherData": {"whitelist": ["3.2.0", "not-a-version"]}},
				{"matcherType": "IN_SPLIT_TREATMENT", "dependencyMatcherData": {"split": "new_nav", "treatments": ["on"]}},
				{"matcherType": "IN_LARGE_SEGMENT", "userDefinedLargeSegmentMatcherData": {"largeSegmentName": "customers"}},
				{"matcherType": "IN_RULE_BASED_SEGMENT", "userDefinedSegmentMatcherData": {"segmentName": "power"}},
				{"matcherType": "MATCHES_STRING", "keySelector": {"attribute": "email"}, "stringMatcherData": ".*@acme\\.com"},
				{"matcherType": "LESS_THAN_OR_EQUAL_TO", "keySelector": {"attribute": "signup"}, "unaryNumericMatcherData": {"dataType": "DATETIME", "value": 1700000000000}}
			]},
			"partitions": [{"treatment": "on", "size": 25}, {"treatment": "off", "size": 75}]
		},
		{
			"conditionType": "ROLLOUT",
			"label": "default rule",
			"matcherGroup": {"combiner": "AND", "matchers": [{"matcherType": "ALL_KEYS"}]},
			"partitions": [{"treatment": "on", "size": 0}, {"treatment": "off", "size": 100}]
		}
	]
}`

func TestCompileFlag(t *testing.T) {
	t.Parallel()

	flag, err := CompileFlag([]byte(fullFlagJSON))
	require.NoError(t, err)

	assert.Equal(t, "checkout_v2", flag.Name)
	assert.Equal(t, "user", flag.TrafficType)
	assert.Equal(t, "off", flag.DefaultTreatment)
	assert.Equal(t, int64(1700000000000), flag.ChangeNumber)
	assert.Equal(t, AlgorithmMurmur, flag.Algorithm)
	assert.Equal(t, 90, flag.TrafficAllocation)
	assert.Equal(t, int32(-1329591480), flag.TrafficAllocationSeed)
	assert.Equal(t, int32(-1222652054), flag.Seed)
	assert.Equal(t, []string{"checkout", "web"}, flag.Sets)
	assert.Equal(t, `{"size":3}`, flag.Configurations["on"])
	assert.False(t, flag.Unsupported())

	require.Len(t, flag.Prerequisites, 1)
	assert.Equal(t, "payments_ready", flag.Prerequisites[0].Flag)
	assert.Equal(t, NewSet("on", "partial"), flag.Prerequisites[0].Treatments)

	require.Len(t, flag.Conditions, 3)
	assert.Equal(t, ConditionTypeWhitelist, flag.Conditions[0].Type)
	assert.Equal(t, Whitelist{Values: NewSet("qa-1", "qa-2")}, flag.Conditions[0].Matchers[0].Predicate)

	beta := flag.Conditions[1]
	assert.Equal(t, "mobile beta", beta.Label)
	assert.Equal(t, []Partition{{"on", 25}, {"off", 75}}, beta.Partitions)
	require.Len(t, beta.Matchers, 11)

	assert.Equal(t, InSegment{Segment: "beta"}, beta.Matchers[0].Predicate)
	assert.Equal(t, "mobile", beta.Matchers[1].Attribute)
	assert.Equal(t, EqualToBoolean{Value: true}, beta.Matchers[1].Predicate)
	assert.True(t, beta.Matchers[2].Negate)
	assert.Equal(t, Between{Type: DataTypeNumber, Start: 0, End: 17}, beta.Matchers[2].Predicate)

	gte, ok := beta.Matchers[3].Predicate.(GreaterThanOrEqualToSemver)
	require.True(t, ok)
	assert.Equal(t, "3.2.0", gte.Version.String())

	between, ok := beta.Matchers[4].Predicate.(BetweenSemver)
	require.True(t, ok)
	assert.Equal(t, "3.0.0", between.Start.String())
	assert.Equal(t, "4.0.0", between.End.String())

	inList, ok := beta.Matchers[5].Predicate.(InListSemver)
	require.True(t, ok)
	assert.Len(t, inList.Versions, 1, "unparsable versions are dropped")

	assert.Equal(t, Dependency{Flag: "new_nav", Treatments: NewSet("on")}, beta.Matchers[6].Predicate)
	assert.Equal(t, InLargeSegment{Segment: "customers"}, beta.Matchers[7].Predicate)
	assert.Equal(t, InRuleBasedSegment{Segment: "power"}, beta.Matchers[8].Predicate)

	re, ok := beta.Matchers[9].Predicate.(MatchesString)
	require.True(t, ok)
	require.NotNil(t, re.re)
	assert.True(t, re.re.MatchString("bob@acme.com"))

	assert.Equal(t, LessThanOrEqualTo{Type: DataTypeDatetime, Value: 1700000000000}, beta.Matchers[10].Predicate)
}

func TestCompileFlag_Defaults(t *testing.T) {
	t.Parallel()

	flag, err := CompileFlag([]byte(`{"name": "bare", "conditions": []}`))
	require.NoError(t, err)

	assert.Equal(t, Control, flag.DefaultTreatment)
	assert.Equal(t, 100, flag.TrafficAllocation)
	assert.Equal(t, Algorithm(0), flag.Algorithm)
	assert.Empty(t, flag.Conditions)
}

func TestCompileFlag_Unsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
	}{
		{
			name: "unknown matcher type",
			json: `{"name": "f", "conditions": [{"matcherGroup": {"combiner": "AND", "matchers": [{"matcherType": "IN_GEO_FENCE"}]}, "partitions": [{"treatment": "on", "size": 100}]}]}`,
		},
		{
			name: "non AND combiner",
			json: `{"name": "f", "conditions": [{"matcherGroup": {"combiner": "OR", "matchers": [{"matcherType": "ALL_KEYS"}]}, "partitions": [{"treatment": "on", "size": 100}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag, err := CompileFlag([]byte(tt.json))
			require.NoError(t, err)
			assert.True(t, flag.Unsupported())

			got := New(nil).Evaluate(newMemStorage().withFlag(flag), "f", NewKey("k"), nil)
			assert.Equal(t, Control, got.Treatment)
			assert.Equal(t, LabelMatcherNotFound, got.Label)
		})
	}
}

func TestCompileFlag_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
	}{
		{name: "not json", json: `{"name": `},
		{name: "missing name", json: `{"defaultTreatment": "off"}`},
		{name: "allocation out of range", json: `{"name": "f", "trafficAllocation": 101}`},
		{name: "partitions do not sum to 100", json: `{"name": "f", "conditions": [{"matcherGroup": {"matchers": [{"matcherType": "ALL_KEYS"}]}, "partitions": [{"treatment": "on", "size": 60}]}]}`},
		{name: "negative partition", json: `{"name": "f", "conditions": [{"matcherGroup": {"matchers": [{"matcherType": "ALL_KEYS"}]}, "partitions": [{"treatment": "on", "size": -10}, {"treatment": "off", "size": 110}]}]}`},
		{name: "matcher without payload", json: `{"name": "f", "conditions": [{"matcherGroup": {"matchers": [{"matcherType": "WHITELIST"}]}, "partitions": [{"treatment": "on", "size": 100}]}]}`},
		{name: "prerequisite without name", json: `{"name": "f", "prerequisites": [{"ts": ["on"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := CompileFlag([]byte(tt.json))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestCompileRuleBasedSegment(t *testing.T) {
	t.Parallel()

	raw := `{
		"name": "excluded_seg",
		"trafficTypeName": "user",
		"changeNumber": 42,
		"excluded": {
			"keys": ["dave"],
			"segments": [{"name": "employees", "type": "standard"}, {"name": "bots", "type": "rule-based"}]
		},
		"conditions": [
			{"matcherGroup": {"combiner": "AND", "matchers": [{"matcherType": "ALL_KEYS"}]}}
		]
	}`

	seg, err := CompileRuleBasedSegment([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "excluded_seg", seg.Name)
	assert.Equal(t, int64(42), seg.ChangeNumber)
	assert.False(t, seg.Unsupported())
	assert.Equal(t, NewSet("dave"), seg.Excluded.Keys)
	assert.Equal(t, []SegmentRef{
		{Name: "employees", Type: SegmentTypeStandard},
		{Name: "bots", Type: SegmentTypeRuleBased},
	}, seg.Excluded.Segments)
	require.Len(t, seg.Conditions, 1)
	assert.Empty(t, seg.Conditions[0].Partitions)

	storage := newMemStorage().withRuleBased(seg)
	engine := New(nil)
	assert.False(t, engine.IsRuleBasedSegmentMember(storage, "excluded_seg", NewKey("dave"), nil))
	assert.True(t, engine.IsRuleBasedSegmentMember(storage, "excluded_seg", NewKey("eve"), nil))
}

func TestCompileRuleBasedSegment_UnknownExclusionType(t *testing.T) {
	t.Parallel()

	seg, err := CompileRuleBasedSegment([]byte(`{
		"name": "s",
		"excluded": {"segments": [{"name": "x", "type": "quantum"}]},
		"conditions": [{"matcherGroup": {"matchers": [{"matcherType": "ALL_KEYS"}]}}]
	}`))
	require.NoError(t, err)
	assert.True(t, seg.Unsupported())
}
