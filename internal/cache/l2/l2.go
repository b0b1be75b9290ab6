// Package l2 implements the cluster-shared cache of spec.md §4.5: a
// content-addressed store keyed by the SHA-256 of the input document, so
// that identical bytes at different paths (or on different machines)
// converge on the same cache entry. The wire protocol spec.md describes —
// GET / SET ... EX / DEL / PING / DBSIZE with a null reply meaning miss —
// is exactly the Redis protocol, so this wraps
// github.com/redis/go-redis/v9 rather than hand-rolling a client.
package l2

import (
	"context"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ddac:"

// Store talks to a remote L2 instance. Every operation's failure mode is
// "miss" (spec.md §7): network and protocol errors are logged at debug
// level and never escape as Go errors, so a flaky or absent L2 never
// aborts a run.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // zero means unlimited, matching spec.md's default
}

// Open connects to addr. It does not block on a successful handshake;
// connection problems surface lazily as misses on the first real command.
func Open(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Store{client: client, ttl: opts.TTL}
}

func key(sha256Hex string) string { return keyPrefix + sha256Hex }

// Lookup fetches the parse result addressed by sha256Hex. Any error,
// including a genuine cache miss, is reported as (zero, false).
func (s *Store) Lookup(ctx context.Context, sha256Hex string) (model.ParseResult, bool) {
	buf, err := s.client.Get(ctx, key(sha256Hex)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("l2: get %s: %v", sha256Hex, err)
		}
		return model.ParseResult{}, false
	}
	result, err := model.UnmarshalParseResult(buf)
	if err != nil {
		logger.Debug("l2: corrupt value for %s: %v", sha256Hex, err)
		return model.ParseResult{}, false
	}
	return result, true
}

// Store writes the parse result under sha256Hex, respecting the
// configured TTL if any. A write failure is logged, never returned — the
// caller's run proceeds as if the store simply didn't happen.
func (s *Store) Store(ctx context.Context, sha256Hex string, result model.ParseResult) {
	if err := s.client.Set(ctx, key(sha256Hex), result.MarshalBinary(), s.ttl).Err(); err != nil {
		logger.Debug("l2: set %s: %v", sha256Hex, err)
	}
}

// Delete removes the entry for sha256Hex, if any.
func (s *Store) Delete(ctx context.Context, sha256Hex string) {
	if err := s.client.Del(ctx, key(sha256Hex)).Err(); err != nil {
		logger.Debug("l2: del %s: %v", sha256Hex, err)
	}
}

// Ping reports whether the remote store is currently reachable.
func (s *Store) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// DBSize reports the number of keys on the remote instance, or 0 if it's
// unreachable.
func (s *Store) DBSize(ctx context.Context) int64 {
	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		logger.Debug("l2: dbsize: %v", err)
		return 0
	}
	return n
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
