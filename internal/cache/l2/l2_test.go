package l2

import (
	"context"
	"testing"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/stretchr/testify/assert"
)

// These tests exercise the store against an address nothing listens on,
// verifying spec.md §7's failure model: unreachable L2 degrades to a
// uniform miss rather than propagating an error.
func unreachableStore() *Store {
	return Open(Options{Addr: "127.0.0.1:1", TTL: time.Minute})
}

func TestLookupMissOnUnreachable(t *testing.T) {
	s := unreachableStore()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, ok := s.Lookup(ctx, "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	assert.False(t, ok)
}

func TestStoreNeverPanicsOnUnreachable(t *testing.T) {
	s := unreachableStore()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	assert.NotPanics(t, func() {
		s.Store(ctx, "abc", model.ParseResult{SHA256Hex: "abc"})
	})
}

func TestPingFalseWhenUnreachable(t *testing.T) {
	s := unreachableStore()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	assert.False(t, s.Ping(ctx))
}

func TestDBSizeZeroWhenUnreachable(t *testing.T) {
	s := unreachableStore()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	assert.Equal(t, int64(0), s.DBSize(ctx))
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "ddac:abc123", key("abc123"))
}
