package ruleengine

import (
	"log/slog"
)

// DefaultMaxDepth bounds nested dependency and rule-based segment resolution.
const DefaultMaxDepth = 10

// Engine is the orchestrator for feature flag evaluation.
// It holds no snapshot state; every call receives the Storage it evaluates against.
type Engine struct {
	logger   *slog.Logger // Dedicated logger instance (DI)
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxDepth = n
		}
	}
}

// New creates a new Engine.
// It requires a logger instance to ensure observability without relying on global state.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		logger:   logger,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides the treatment of flagName for key.
//
// It never panics and never returns an error: every failure is encoded as a
// Result whose Label names the cause. A nil storage means no snapshot has been
// loaded yet.
func (e *Engine) Evaluate(storage Storage, flagName string, key Key, attrs Attributes) (result Result) {
	if storage == nil {
		return controlResult(LabelNotReady)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("flag evaluation panicked",
				"flag", flagName,
				"panic", r,
			)
			result = controlResult(LabelException)
		}
	}()

	root := &evalContext{
		storage:  storage,
		key:      key,
		attrs:    attrs,
		resolver: e,
		maxDepth: e.maxDepth,
	}
	ec, _ := root.enterFlag(flagName)
	return e.evaluateFlag(ec, flagName)
}

// IsRuleBasedSegmentMember reports whether key belongs to the named rule-based
// segment under the same rules the IN_RULE_BASED_SEGMENT matcher applies.
func (e *Engine) IsRuleBasedSegmentMember(storage Storage, segment string, key Key, attrs Attributes) (member bool) {
	if storage == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("segment resolution panicked",
				"segment", segment,
				"panic", r,
			)
			member = false
		}
	}()

	ec := &evalContext{
		storage:  storage,
		key:      key,
		attrs:    attrs,
		resolver: e,
		maxDepth: e.maxDepth,
	}
	return isRuleBasedMember(ec, segment)
}

// resolveTreatment implements treatmentResolver for dependency matchers and
// prerequisites. A flag already on the resolution path yields Control.
func (e *Engine) resolveTreatment(ec *evalContext, flagName string) string {
	child, ok := ec.enterFlag(flagName)
	if !ok {
		e.logger.Warn("flag dependency not resolved",
			"flag", flagName,
			"path", ec.flags,
			"depth", ec.depth,
		)
		return Control
	}
	return e.evaluateFlag(child, flagName).Treatment
}

func (e *Engine) evaluateFlag(ec *evalContext, flagName string) Result {
	// 1. Definition lookup
	flag := ec.storage.Flag(flagName)
	if flag == nil {
		return controlResult(LabelDefinitionNotFound)
	}

	// 2. Kill switch
	if flag.Killed {
		return flag.result(flag.DefaultTreatment, LabelKilled)
	}

	// 3. Definitions this engine cannot fully evaluate
	if flag.unsupported {
		e.logger.Warn("flag uses an unsupported matcher",
			"flag", flagName,
			"change_number", flag.ChangeNumber,
		)
		cn := flag.ChangeNumber
		r := controlResult(LabelMatcherNotFound)
		r.ChangeNumber = &cn
		return r
	}

	// 4. Prerequisites
	if !prerequisitesMet(ec, flag.Prerequisites) {
		return flag.result(flag.DefaultTreatment, LabelPrerequisitesNotMet)
	}

	// 5. Traffic allocation
	bucketingKey := ec.key.BucketingKey()
	if flag.TrafficAllocation < 100 {
		bucket := Bucket(flag.Algorithm, bucketingKey, flag.TrafficAllocationSeed)
		if bucket > flag.TrafficAllocation {
			return flag.result(flag.DefaultTreatment, LabelNotInSplit)
		}
	}

	// 6. First matching condition wins
	for i := range flag.Conditions {
		cond := &flag.Conditions[i]
		if !conditionMatches(ec, cond) {
			continue
		}
		bucket := Bucket(flag.Algorithm, bucketingKey, flag.Seed)
		return flag.result(selectPartition(cond.Partitions, bucket), cond.Label)
	}

	// 7. Fallthrough
	return flag.result(flag.DefaultTreatment, LabelDefaultRule)
}

// result builds a Result carrying the flag's change number and the
// configuration attached to treatment, if any.
func (f *Flag) result(treatment, label string) Result {
	cn := f.ChangeNumber
	r := Result{
		Treatment:    treatment,
		Label:        label,
		ChangeNumber: &cn,
	}
	if cfg, ok := f.Configurations[treatment]; ok {
		r.Config = &cfg
	}
	return r
}
