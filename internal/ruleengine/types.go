// Package ruleengine provides the local decision engine for feature flag evaluation.
// Given an immutable snapshot of flag definitions and segment memberships, it decides
// which treatment a key receives for a flag without performing any I/O.
package ruleengine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Control is the treatment returned when the engine cannot produce a real decision.
const Control = "control"

// Audit labels. These strings are observed by downstream impression analytics
// and must not change.
const (
	LabelKilled              = "killed"
	LabelDefaultRule         = "default rule"
	LabelNotInSplit          = "not in split"
	LabelDefinitionNotFound  = "definition not found"
	LabelMatcherNotFound     = "matcher not found"
	LabelException           = "exception"
	LabelNotReady            = "not ready"
	LabelPrerequisitesNotMet = "prerequisites not met"
)

// Key identifies the entity being evaluated.
type Key struct {
	// Matching is the identity used for segment membership and whitelists.
	Matching string `json:"matching_key"`

	// Bucketing overrides the hash input for traffic allocation and partitioning.
	// Empty means "use Matching".
	Bucketing string `json:"bucketing_key,omitempty"`
}

// NewKey builds a Key with no bucketing override.
func NewKey(matching string) Key {
	return Key{Matching: matching}
}

// BucketingKey returns the hash input for this key.
func (k Key) BucketingKey() string {
	if k.Bucketing != "" {
		return k.Bucketing
	}
	return k.Matching
}

// Result is the outcome of a single flag evaluation.
type Result struct {
	Treatment    string  `json:"treatment"`
	Label        string  `json:"label"`
	Config       *string `json:"config,omitempty"`
	ChangeNumber *int64  `json:"change_number,omitempty"`
}

func controlResult(label string) Result {
	return Result{Treatment: Control, Label: label}
}

type valueKind uint8

const (
	kindInvalid valueKind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindStringList
)

// Value is a closed attribute value: string, integer, float, boolean or list of strings.
// The zero Value is invalid and behaves like an absent attribute.
type Value struct {
	kind valueKind
	str  string
	num  int64
	flt  float64
	flag bool
	list []string
}

// String returns a string Value.
func String(s string) Value { return Value{kind: kindString, str: s} }

// Int returns an integer Value.
func Int(n int64) Value { return Value{kind: kindInt, num: n} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: kindFloat, flt: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: kindBool, flag: b} }

// StringList returns a list-of-strings Value.
func StringList(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: kindStringList, list: cp}
}

// IsValid reports whether v holds one of the supported types.
func (v Value) IsValid() bool { return v.kind != kindInvalid }

// ValueOf converts a loosely typed value (typically decoded JSON) into a Value.
// Anything that is not a primitive or a list of strings is rejected: a []any
// qualifies only when every item is a string, and unsigned integers only up to
// math.MaxInt64.
func ValueOf(raw any) (Value, bool) {
	switch t := raw.(type) {
	case Value:
		return t, t.IsValid()
	case string:
		return String(t), true
	case bool:
		return Bool(t), true
	case int:
		return Int(int64(t)), true
	case int8:
		return Int(int64(t)), true
	case int16:
		return Int(int64(t)), true
	case int32:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case uint8:
		return Int(int64(t)), true
	case uint16:
		return Int(int64(t)), true
	case uint32:
		return Int(int64(t)), true
	case uint:
		return unsignedValue(uint64(t))
	case uint64:
		return unsignedValue(t)
	case uintptr:
		return unsignedValue(uint64(t))
	case float32:
		return Float(float64(t)), true
	case float64:
		return Float(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return Float(f), true
		}
		return Value{}, false
	case []string:
		return StringList(t...), true
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, false
			}
			items = append(items, s)
		}
		return Value{kind: kindStringList, list: items}, true
	default:
		return Value{}, false
	}
}

func unsignedValue(n uint64) (Value, bool) {
	if n > math.MaxInt64 {
		return Value{}, false
	}
	return Int(int64(n)), true
}

// asString returns the value as a string. Only string values qualify.
func (v Value) asString() (string, bool) {
	if v.kind == kindString {
		return v.str, true
	}
	return "", false
}

// asInt64 returns the value as a 64-bit integer. Floats are truncated; NaN,
// infinities and floats outside the int64 range do not convert.
func (v Value) asInt64() (int64, bool) {
	switch v.kind {
	case kindInt:
		return v.num, true
	case kindFloat:
		// -2^63 is exact as a float64; 2^63 is the first value past MaxInt64.
		if math.IsNaN(v.flt) || v.flt < math.MinInt64 || v.flt >= -math.MinInt64 {
			return 0, false
		}
		return int64(v.flt), true
	default:
		return 0, false
	}
}

// asBool accepts a literal boolean or a case-insensitive "true"/"false" string.
func (v Value) asBool() (bool, bool) {
	switch v.kind {
	case kindBool:
		return v.flag, true
	case kindString:
		switch {
		case strings.EqualFold(v.str, "true"):
			return true, true
		case strings.EqualFold(v.str, "false"):
			return false, true
		}
	}
	return false, false
}

func (v Value) asStringList() ([]string, bool) {
	if v.kind == kindStringList {
		return v.list, true
	}
	return nil, false
}

// Canonical returns a stable textual form of the value, used for fingerprints.
// List items are length prefixed so no two distinct lists share a form.
func (v Value) Canonical() string {
	switch v.kind {
	case kindString:
		return "s:" + v.str
	case kindInt:
		return "i:" + strconv.FormatInt(v.num, 10)
	case kindFloat:
		return "f:" + strconv.FormatFloat(v.flt, 'g', -1, 64)
	case kindBool:
		return "b:" + strconv.FormatBool(v.flag)
	case kindStringList:
		var b strings.Builder
		b.WriteString("l:")
		for _, item := range v.list {
			b.WriteString(strconv.Itoa(len(item)))
			b.WriteByte(':')
			b.WriteString(item)
		}
		return b.String()
	default:
		return ""
	}
}

// MarshalJSON renders the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		return json.Marshal(v.str)
	case kindInt:
		return json.Marshal(v.num)
	case kindFloat:
		return json.Marshal(v.flt)
	case kindBool:
		return json.Marshal(v.flag)
	case kindStringList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// Attributes maps attribute names to values.
type Attributes map[string]Value

// AttributesFrom converts a loosely typed attribute bag. Unsupported values are
// dropped, which makes them behave exactly like absent attributes.
func AttributesFrom(raw map[string]any) Attributes {
	if len(raw) == 0 {
		return nil
	}
	attrs := make(Attributes, len(raw))
	for name, item := range raw {
		if v, ok := ValueOf(item); ok {
			attrs[name] = v
		}
	}
	return attrs
}

func (a Attributes) lookup(name string) (Value, bool) {
	v, ok := a[name]
	if !ok || !v.IsValid() {
		return Value{}, false
	}
	return v, true
}
