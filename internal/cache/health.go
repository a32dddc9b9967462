package cache

import (
	"context"
	"fmt"
)

// Check lets the source gate readiness. Besides reachability it verifies that
// the flags key under the prefix is a hash or absent; anything else means the
// prefix collides with foreign data and every refresh would fail.
func (s *RedisSource) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	kind, err := s.client.Type(ctx, s.key(flagsKey)).Result()
	if err != nil {
		return fmt.Errorf("redis type %s: %w", s.key(flagsKey), err)
	}
	if kind != "hash" && kind != "none" {
		return fmt.Errorf("key %s holds a %s, expected a hash", s.key(flagsKey), kind)
	}
	return nil
}
