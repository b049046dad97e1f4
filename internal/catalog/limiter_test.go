package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewLimiterSpacesRequests(t *testing.T) {
	l := newLimiter(4)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, time.Duration(0), l.ReserveN(now, 1).DelayFrom(now))
	require.Equal(t, 250*time.Millisecond, l.ReserveN(now, 1).DelayFrom(now))
	require.Equal(t, 500*time.Millisecond, l.ReserveN(now, 1).DelayFrom(now))
}

func TestNewLimiterDisabled(t *testing.T) {
	l := newLimiter(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}

func TestNewLimiterHonorsContext(t *testing.T) {
	l := newLimiter(1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx))
}
