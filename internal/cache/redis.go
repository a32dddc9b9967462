// Package cache holds the Redis side of the evaluator: the snapshot source that
// reads published definitions and the in-process result cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/validation"
)

// Key layout under the configured prefix:
//
//	<prefix>:flags                 hash  flag name -> JSON body
//	<prefix>:rbsegments            hash  rule-based segment name -> JSON body
//	<prefix>:segments              set   standard segment names
//	<prefix>:segment:<name>        set   member keys
//	<prefix>:largesegments         set   large segment names
//	<prefix>:largesegment:<name>   set   member keys
const (
	flagsKey         = "flags"
	ruleBasedKey     = "rbsegments"
	segmentsKey      = "segments"
	segmentKey       = "segment"
	largeSegmentsKey = "largesegments"
	largeSegmentKey  = "largesegment"
)

// RedisSource reads definitions published to Redis.
// It implements snapshot.Source.
type RedisSource struct {
	client redis.UniversalClient
	prefix string
}

var _ snapshot.Source = (*RedisSource)(nil)

// NewRedisSource creates a source reading keys under prefix.
func NewRedisSource(client redis.UniversalClient, prefix string) *RedisSource {
	validation.AssertNotNilInterface(client, "redis client")
	return &RedisSource{client: client, prefix: prefix}
}

// Name implements snapshot.Source.
func (s *RedisSource) Name() string {
	return "redis"
}

func (s *RedisSource) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Fetch reads every definition in two pipelined round trips: the indexes
// first, then the members of every segment they name.
func (s *RedisSource) Fetch(ctx context.Context) (*snapshot.Definitions, error) {
	pipe := s.client.Pipeline()
	flagsCmd := pipe.HGetAll(ctx, s.key(flagsKey))
	rbCmd := pipe.HGetAll(ctx, s.key(ruleBasedKey))
	segmentsCmd := pipe.SMembers(ctx, s.key(segmentsKey))
	largeCmd := pipe.SMembers(ctx, s.key(largeSegmentsKey))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read definition indexes: %w", err)
	}

	defs := snapshot.NewDefinitions(s.Name())
	for name, body := range flagsCmd.Val() {
		defs.Flags[name] = json.RawMessage(body)
	}
	for name, body := range rbCmd.Val() {
		defs.RuleBasedSegments[name] = json.RawMessage(body)
	}

	segments := segmentsCmd.Val()
	large := largeCmd.Val()
	if len(segments)+len(large) == 0 {
		return defs, nil
	}

	pipe = s.client.Pipeline()
	segmentCmds := make(map[string]*redis.StringSliceCmd, len(segments))
	for _, name := range segments {
		segmentCmds[name] = pipe.SMembers(ctx, s.key(segmentKey, name))
	}
	largeCmds := make(map[string]*redis.StringSliceCmd, len(large))
	for _, name := range large {
		largeCmds[name] = pipe.SMembers(ctx, s.key(largeSegmentKey, name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read segment members: %w", err)
	}

	for name, cmd := range segmentCmds {
		defs.Segments[name] = cmd.Val()
	}
	for name, cmd := range largeCmds {
		defs.LargeSegments[name] = cmd.Val()
	}
	return defs, nil
}

// Publish replaces everything under the prefix with defs in a single
// MULTI/EXEC transaction, so readers never observe a half-written set.
func (s *RedisSource) Publish(ctx context.Context, defs *snapshot.Definitions) error {
	if defs == nil {
		return fmt.Errorf("definitions cannot be nil")
	}

	// Stale segment keys must go too, so collect what is currently indexed.
	pipe := s.client.Pipeline()
	oldSegments := pipe.SMembers(ctx, s.key(segmentsKey))
	oldLarge := pipe.SMembers(ctx, s.key(largeSegmentsKey))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to read current segment indexes: %w", err)
	}

	stale := []string{
		s.key(flagsKey),
		s.key(ruleBasedKey),
		s.key(segmentsKey),
		s.key(largeSegmentsKey),
	}
	for _, name := range oldSegments.Val() {
		stale = append(stale, s.key(segmentKey, name))
	}
	for _, name := range oldLarge.Val() {
		stale = append(stale, s.key(largeSegmentKey, name))
	}

	_, err := s.client.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		tx.Del(ctx, stale...)

		if len(defs.Flags) > 0 {
			tx.HSet(ctx, s.key(flagsKey), hashFields(defs.Flags))
		}
		if len(defs.RuleBasedSegments) > 0 {
			tx.HSet(ctx, s.key(ruleBasedKey), hashFields(defs.RuleBasedSegments))
		}
		writeSegments(ctx, tx, s.key(segmentsKey), func(name string) string { return s.key(segmentKey, name) }, defs.Segments)
		writeSegments(ctx, tx, s.key(largeSegmentsKey), func(name string) string { return s.key(largeSegmentKey, name) }, defs.LargeSegments)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish definitions: %w", err)
	}
	return nil
}

func hashFields(bodies map[string]json.RawMessage) map[string]any {
	fields := make(map[string]any, len(bodies))
	for name, body := range bodies {
		fields[name] = string(body)
	}
	return fields
}

// writeSegments indexes every segment name, even empty ones: a segment with no
// members is still a known segment.
func writeSegments(ctx context.Context, tx redis.Pipeliner, indexKey string, memberKey func(string) string, segments map[string][]string) {
	for name, members := range segments {
		tx.SAdd(ctx, indexKey, name)
		if len(members) == 0 {
			continue
		}
		tx.SAdd(ctx, memberKey(name), toAny(members)...)
	}
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
