package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAtThreshold(t *testing.T) {
	t.Parallel()
	now := time.Now()
	m := NewMemory(time.Hour, 3, 15*time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	ip := HashIP("127.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := m.Failure(ctx, "grade_creator", ip)
		require.NoError(t, err)
		require.False(t, blocked, "failure %d", i+1)
	}
	ok, _, err := m.Allow(ctx, "grade_creator", ip)
	require.NoError(t, err)
	require.True(t, ok)

	blocked, dur, err := m.Failure(ctx, "grade_creator", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 15*time.Minute, dur)

	ok, wait, err := m.Allow(ctx, "grade_creator", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 15*time.Minute, wait)

	// other keys are unaffected
	ok, _, _ = m.Allow(ctx, "grade_approver", ip)
	require.True(t, ok)

	now = now.Add(16 * time.Minute)
	ok, _, _ = m.Allow(ctx, "grade_creator", ip)
	require.True(t, ok, "block expires")
}

func TestMemory_SuccessResets(t *testing.T) {
	t.Parallel()
	m := NewMemory(time.Hour, 2, time.Minute)
	ctx := context.Background()
	ip := HashIP("127.0.0.1")

	blocked, _, _ := m.Failure(ctx, "u", ip)
	require.False(t, blocked)
	require.NoError(t, m.Success(ctx, "u", ip))
	blocked, _, _ = m.Failure(ctx, "u", ip)
	require.False(t, blocked, "counter restarted after success")
	blocked, _, _ = m.Failure(ctx, "u", ip)
	require.True(t, blocked)
}

func TestNop(t *testing.T) {
	t.Parallel()
	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), "u", nil)
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), "u", nil)
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, l.Success(context.Background(), "u", nil))
}
