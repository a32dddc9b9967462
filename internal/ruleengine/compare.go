package ruleengine

import (
	"github.com/Masterminds/semver/v3"
)

const millisPerMinute = 60_000

// truncateToMinute drops the seconds and sub-second part of a millisecond
// timestamp. Flooring keeps pre-epoch timestamps on the correct minute.
func truncateToMinute(ms int64) int64 {
	r := ms % millisPerMinute
	if r < 0 {
		r += millisPerMinute
	}
	return ms - r
}

// normalize prepares a numeric operand for comparison under the data type.
func normalize(dt DataType, v int64) int64 {
	if dt == DataTypeDatetime {
		return truncateToMinute(v)
	}
	return v
}

func compareEqual(dt DataType, value, target int64) bool {
	return normalize(dt, value) == normalize(dt, target)
}

func compareGreaterOrEqual(dt DataType, value, target int64) bool {
	return normalize(dt, value) >= normalize(dt, target)
}

func compareLessOrEqual(dt DataType, value, target int64) bool {
	return normalize(dt, value) <= normalize(dt, target)
}

func compareBetween(dt DataType, value, start, end int64) bool {
	v := normalize(dt, value)
	return normalize(dt, start) <= v && v <= normalize(dt, end)
}

// parseSemver parses a strict major.minor.patch[-pre][+build] version.
// It returns nil for anything else.
func parseSemver(s string) *semver.Version {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil
	}
	return v
}

func semverEqual(value string, target *semver.Version) bool {
	v := parseSemver(value)
	if v == nil || target == nil {
		return false
	}
	return v.Compare(target) == 0
}

func semverGreaterOrEqual(value string, target *semver.Version) bool {
	v := parseSemver(value)
	if v == nil || target == nil {
		return false
	}
	return v.Compare(target) >= 0
}

func semverLessOrEqual(value string, target *semver.Version) bool {
	v := parseSemver(value)
	if v == nil || target == nil {
		return false
	}
	return v.Compare(target) <= 0
}

func semverBetween(value string, start, end *semver.Version) bool {
	v := parseSemver(value)
	if v == nil || start == nil || end == nil {
		return false
	}
	return v.Compare(start) >= 0 && v.Compare(end) <= 0
}

func semverInList(value string, targets []*semver.Version) bool {
	v := parseSemver(value)
	if v == nil {
		return false
	}
	for _, t := range targets {
		if t != nil && v.Compare(t) == 0 {
			return true
		}
	}
	return false
}
