package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*MemoryLimiter, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(24 * time.Hour)
	l.now = func() time.Time { return now }
	t.Cleanup(l.Close)
	return l, &now
}

func TestMemoryLimiter_AllowThenDeny(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_AllowAfterExpiry(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.True(t, ok)

	*now = now.Add(61 * time.Second)
	ok, err := l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Отказ не продлевает окно: отсчёт идёт от разрешённого вызова.
func TestMemoryLimiter_DenyDoesNotExtendWindow(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.True(t, ok)

	*now = now.Add(50 * time.Second)
	ok, _ = l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.False(t, ok)

	*now = now.Add(11 * time.Second)
	ok, _ = l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	assert.True(t, ok)
}

// Каждая тройка (инициатор, действие, цель) считается отдельно.
func TestMemoryLimiter_KeysIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "u1", "JOIN_EVENT", "ev1", time.Minute)
	require.True(t, ok)

	ok, _ = l.Allow(ctx, "u1", "JOIN_EVENT", "ev2", time.Minute)
	assert.True(t, ok, "другая цель")

	ok, _ = l.Allow(ctx, "u2", "JOIN_EVENT", "ev1", time.Minute)
	assert.True(t, ok, "другой инициатор")

	ok, _ = l.Allow(ctx, "u1", "LIKE_EVENT", "ev1", time.Minute)
	assert.True(t, ok, "другое действие")
}

// Действие без кулдауна всегда разрешено и не ведёт учёта.
func TestMemoryLimiter_ZeroCooldownNoBookkeeping(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "u1", "JOIN_CLUB", "c1", 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Zero(t, l.size())
}
