package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimitAllowsUpToMaxCount(t *testing.T) {
	limit := &RateLimit{UnitSecs: 3600, MaxCount: 2}
	limit.Initialise()

	require.True(t, limit.Add("host-a", false))
	require.True(t, limit.Add("host-a", false))
	require.False(t, limit.Add("host-a", false))
}

func TestRateLimitTracksActorsIndependently(t *testing.T) {
	limit := &RateLimit{UnitSecs: 3600, MaxCount: 1}
	limit.Initialise()

	require.True(t, limit.Add("host-a", false))
	require.True(t, limit.Add("host-b", false))
	require.False(t, limit.Add("host-a", false))
}

func TestRateLimitPanicsOnInvalidConfig(t *testing.T) {
	require.Panics(t, func() {
		(&RateLimit{UnitSecs: 0, MaxCount: 1}).Initialise()
	})
}
