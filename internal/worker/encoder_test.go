package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTailLogBoundsLinesAndChars(t *testing.T) {
	lines := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		lines = append(lines, "line")
	}
	tail := TailLog(lines, 25, 2000)
	require.LessOrEqual(t, len(tail), 2000)
	require.Equal(t, 25*len("line")+24, len(tail)) // 25 kept lines joined by newlines

	longLine := make([]string, 1)
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	longLine[0] = string(long)
	bounded := TailLog(longLine, 25, 2000)
	require.Len(t, bounded, 2000)
}

func TestThrottleAllowsFirstCallThenRateLimits(t *testing.T) {
	th := NewThrottle(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, th.Allow(base))
	require.False(t, th.Allow(base.Add(10*time.Second)))
	require.True(t, th.Allow(base.Add(time.Minute+time.Second)))
}
