// Package client is the SDK-facing facade over the live snapshot and the
// rule engine: input validation, result caching and evaluation metrics.
package client

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/rafaeljc/heimdall-evaluator/internal/cache"
	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/validation"
)

// MaxKeyLength is the longest matching or bucketing key accepted.
const MaxKeyLength = 250

var (
	// ErrInvalidKey is returned for an empty or oversized key.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidFlagName is returned for an empty flag name.
	ErrInvalidFlagName = errors.New("invalid flag name")
)

// Client evaluates flags against whatever snapshot the holder currently publishes.
// It is safe for concurrent use.
type Client struct {
	logger *slog.Logger
	engine *ruleengine.Engine
	holder *snapshot.Holder
	cache  *cache.ResultCache
}

// Option configures a Client.
type Option func(*Client)

// WithResultCache memoizes results in c. A nil cache disables caching.
func WithResultCache(c *cache.ResultCache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// New creates a Client. engine and holder are mandatory.
func New(logger *slog.Logger, engine *ruleengine.Engine, holder *snapshot.Holder, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertNotNil(engine, "rule engine")
	validation.AssertNotNil(holder, "snapshot holder")

	c := &Client{
		logger: logger,
		engine: engine,
		holder: holder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready reports whether a snapshot has been loaded.
func (c *Client) Ready() bool {
	return c.holder.Load() != nil
}

// Treatment evaluates a single flag. Invalid input yields a control result
// together with ErrInvalidKey or ErrInvalidFlagName.
func (c *Client) Treatment(ctx context.Context, key ruleengine.Key, flag string, attrs ruleengine.Attributes) (ruleengine.Result, error) {
	if err := validateKey(key); err != nil {
		return control(), err
	}
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return control(), ErrInvalidFlagName
	}
	if err := ctx.Err(); err != nil {
		return control(), err
	}

	return c.evaluate(c.holder.Load(), key, flag, attrs), nil
}

// Treatments evaluates several flags for the same key against one snapshot.
// Blank names are dropped and duplicates evaluated once.
func (c *Client) Treatments(ctx context.Context, key ruleengine.Key, flags []string, attrs ruleengine.Attributes) (map[string]ruleengine.Result, error) {
	if err := validateKey(key); err != nil {
		return map[string]ruleengine.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return map[string]ruleengine.Result{}, err
	}

	// Pin one snapshot so a concurrent swap cannot mix versions in one response.
	snap := c.holder.Load()

	results := make(map[string]ruleengine.Result, len(flags))
	for _, flag := range flags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if _, done := results[flag]; done {
			continue
		}
		results[flag] = c.evaluate(snap, key, flag, attrs)
	}
	return results, nil
}

// TreatmentsByFlagSet evaluates every usable flag tagged with set.
// Before the first snapshot is loaded the result is empty.
func (c *Client) TreatmentsByFlagSet(ctx context.Context, key ruleengine.Key, set string, attrs ruleengine.Attributes) (map[string]ruleengine.Result, error) {
	if err := validateKey(key); err != nil {
		return map[string]ruleengine.Result{}, err
	}
	set = strings.TrimSpace(set)
	if set == "" {
		return map[string]ruleengine.Result{}, fmt.Errorf("%w: empty flag set", ErrInvalidFlagName)
	}
	if err := ctx.Err(); err != nil {
		return map[string]ruleengine.Result{}, err
	}

	snap := c.holder.Load()
	if snap == nil {
		return map[string]ruleengine.Result{}, nil
	}

	names := snap.FlagNamesBySet(set)
	results := make(map[string]ruleengine.Result, len(names))
	for _, flag := range names {
		results[flag] = c.evaluate(snap, key, flag, attrs)
	}
	return results, nil
}

// FlagNames lists the flags of the live snapshot together with its version.
// ok is false until a snapshot is loaded.
func (c *Client) FlagNames() (names []string, version string, ok bool) {
	snap := c.holder.Load()
	if snap == nil {
		return nil, "", false
	}
	return snap.FlagNames(), snap.VersionString(), true
}

func (c *Client) evaluate(snap *snapshot.Snapshot, key ruleengine.Key, flag string, attrs ruleengine.Attributes) ruleengine.Result {
	start := time.Now()
	defer func() {
		observability.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	// A nil *Snapshot must reach the engine as a nil interface.
	var storage ruleengine.Storage
	if snap != nil {
		storage = snap
	}

	var fp uint64
	cacheable := c.cache != nil && snap != nil
	if cacheable {
		fp = fingerprint(snap.Version(), flag, key, attrs)
		if res, ok := c.cache.Get(fp); ok {
			observability.EvaluationsTotal.WithLabelValues(outcome(res.Label)).Inc()
			return res
		}
	}

	res := c.engine.Evaluate(storage, flag, key, attrs)
	observability.EvaluationsTotal.WithLabelValues(outcome(res.Label)).Inc()

	switch res.Label {
	case ruleengine.LabelException:
		c.logger.Warn("flag evaluation failed",
			slog.String("flag", flag),
			slog.String("key", key.Matching),
		)
		// Never cache a failure.
		return res
	case ruleengine.LabelNotReady:
		return res
	}

	c.logger.Debug("flag evaluated",
		slog.String("flag", flag),
		slog.String("key", key.Matching),
		slog.String("treatment", res.Treatment),
		slog.String("label", res.Label),
	)

	if cacheable {
		c.cache.Set(fp, res)
	}
	return res
}

func validateKey(key ruleengine.Key) error {
	if strings.TrimSpace(key.Matching) == "" {
		return fmt.Errorf("%w: matching key is empty", ErrInvalidKey)
	}
	if len(key.Matching) > MaxKeyLength {
		return fmt.Errorf("%w: matching key longer than %d characters", ErrInvalidKey, MaxKeyLength)
	}
	if len(key.Bucketing) > MaxKeyLength {
		return fmt.Errorf("%w: bucketing key longer than %d characters", ErrInvalidKey, MaxKeyLength)
	}
	return nil
}

func control() ruleengine.Result {
	return ruleengine.Result{Treatment: ruleengine.Control}
}

// fingerprint identifies an evaluation: the same inputs against the same
// snapshot version always produce the same result. Every variable length part
// is length prefixed so adjacent parts cannot run into each other.
func fingerprint(version uint64, flag string, key ruleengine.Key, attrs ruleengine.Attributes) uint64 {
	buf := make([]byte, 0, 128)
	buf = binary.LittleEndian.AppendUint64(buf, version)
	buf = appendPart(buf, flag)
	buf = appendPart(buf, key.Matching)
	buf = appendPart(buf, key.Bucketing)
	buf = binary.AppendUvarint(buf, uint64(len(attrs)))
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		buf = appendPart(buf, name)
		buf = appendPart(buf, attrs[name].Canonical())
	}
	return xxhash.Sum64(buf)
}

func appendPart(buf []byte, part string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(part)))
	return append(buf, part...)
}

// outcome maps a result label onto a bounded metric label set: condition
// labels are free text and would explode cardinality.
func outcome(label string) string {
	switch label {
	case ruleengine.LabelKilled:
		return "killed"
	case ruleengine.LabelDefaultRule:
		return "default_rule"
	case ruleengine.LabelNotInSplit:
		return "not_in_split"
	case ruleengine.LabelDefinitionNotFound:
		return "definition_not_found"
	case ruleengine.LabelMatcherNotFound:
		return "matcher_not_found"
	case ruleengine.LabelException:
		return "exception"
	case ruleengine.LabelNotReady:
		return "not_ready"
	case ruleengine.LabelPrerequisitesNotMet:
		return "prerequisites_not_met"
	default:
		return "matched"
	}
}
