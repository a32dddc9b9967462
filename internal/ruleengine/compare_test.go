package ruleengine

import (
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
)

func TestTruncateToMinute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{name: "exact minute", in: 120_000, want: 120_000},
		{name: "drops seconds", in: 179_999, want: 120_000},
		{name: "zero", in: 0, want: 0},
		{name: "pre-epoch floors", in: -1, want: -60_000},
		{name: "pre-epoch exact", in: -60_000, want: -60_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, truncateToMinute(tt.in))
		})
	}
}

func TestNumericComparators(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC).UnixMilli()
	sameMinute := base + 59_999
	nextMinute := base + 60_000

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"number equal", compareEqual(DataTypeNumber, 10, 10), true},
		{"number not equal", compareEqual(DataTypeNumber, 10, 11), false},
		{"number ignores minute truncation", compareEqual(DataTypeNumber, base, sameMinute), false},
		{"datetime equal within minute", compareEqual(DataTypeDatetime, base, sameMinute), true},
		{"datetime differs across minute", compareEqual(DataTypeDatetime, base, nextMinute), false},
		{"gte equal", compareGreaterOrEqual(DataTypeNumber, 5, 5), true},
		{"gte lower", compareGreaterOrEqual(DataTypeNumber, 4, 5), false},
		{"gte datetime truncated", compareGreaterOrEqual(DataTypeDatetime, base, sameMinute), true},
		{"lte equal", compareLessOrEqual(DataTypeNumber, 5, 5), true},
		{"lte higher", compareLessOrEqual(DataTypeNumber, 6, 5), false},
		{"lte datetime truncated", compareLessOrEqual(DataTypeDatetime, sameMinute, base), true},
		{"between inclusive start", compareBetween(DataTypeNumber, 1, 1, 10), true},
		{"between inclusive end", compareBetween(DataTypeNumber, 10, 1, 10), true},
		{"between outside", compareBetween(DataTypeNumber, 11, 1, 10), false},
		{"between datetime truncated end", compareBetween(DataTypeDatetime, sameMinute, base-60_000, base), true},
		{"negative numbers", compareBetween(DataTypeNumber, -5, -10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSemverComparators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"equal", semverEqual("1.2.3", parseSemver("1.2.3")), true},
		{"equal ignores build metadata", semverEqual("1.2.3+build.5", parseSemver("1.2.3")), true},
		{"pre-release is lower", semverGreaterOrEqual("1.2.3-alpha", parseSemver("1.2.3")), false},
		{"pre-release ordering", semverLessOrEqual("1.0.0-alpha", parseSemver("1.0.0-alpha.1")), true},
		{"numeric identifiers compare numerically", semverGreaterOrEqual("1.0.0-beta.11", parseSemver("1.0.0-beta.2")), true},
		{"major dominates", semverGreaterOrEqual("2.0.0", parseSemver("1.99.99")), true},
		{"between inclusive", semverBetween("1.5.0", parseSemver("1.5.0"), parseSemver("2.0.0")), true},
		{"between outside", semverBetween("2.0.1", parseSemver("1.5.0"), parseSemver("2.0.0")), false},
		{"in list", semverInList("3.1.0", []*semver.Version{parseSemver("1.0.0"), parseSemver("3.1.0")}), true},
		{"not in list", semverInList("3.1.1", []*semver.Version{parseSemver("3.1.0")}), false},
		{"unparsable tested value", semverEqual("1.2", parseSemver("1.2.0")), false},
		{"unparsable configured value", semverEqual("1.2.0", parseSemver("banana")), false},
		{"leading v rejected", semverEqual("v1.2.3", parseSemver("1.2.3")), false},
		{"between with nil bound", semverBetween("1.0.0", nil, parseSemver("2.0.0")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
