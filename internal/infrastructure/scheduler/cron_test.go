package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewCronScheduler("every morning", time.UTC, nil)
	assert.Error(t, err)
}

func TestNextHonorsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	s, err := NewCronScheduler("0 6 * * *", loc, nil)
	require.NoError(t, err)

	from := time.Date(2025, time.March, 10, 12, 0, 0, 0, loc)
	next := s.Next(from)
	assert.True(t, next.Equal(time.Date(2025, time.March, 11, 6, 0, 0, 0, loc)), next)
}

func TestStartStop(t *testing.T) {
	s, err := NewCronScheduler("@every 1h", time.UTC, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
