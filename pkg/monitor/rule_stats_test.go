package monitor

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleStats_Snapshot(t *testing.T) {
	s := NewRuleStats()
	s.RecordInvocation("swap", time.Millisecond, true, nil)
	s.RecordInvocation("swap", time.Millisecond, false, nil)
	s.RecordInvocation("merge", 2*time.Millisecond, false, errors.New("boom"))
	s.RecordPass(5*time.Millisecond, nil)
	s.RecordPass(time.Millisecond, errors.New("timeout"))

	snap := s.GetSnapshot()
	assert.Equal(t, int64(2), snap.Passes)
	assert.Equal(t, int64(1), snap.FailedPasses)
	assert.Equal(t, 6*time.Millisecond, snap.PassDuration)
	require.Len(t, snap.Rules, 2)
	assert.Equal(t, "merge", snap.Rules[0].Rule)

	swap, ok := snap.Rule("swap")
	require.True(t, ok)
	assert.Equal(t, RuleMetrics{Rule: "swap", Invocations: 2, Fires: 1, Duration: 2 * time.Millisecond}, swap)
	merge, _ := snap.Rule("merge")
	assert.Equal(t, int64(1), merge.Failures)

	_, ok = snap.Rule("missing")
	assert.False(t, ok)

	s.Reset()
	assert.Empty(t, s.GetSnapshot().Rules)
	assert.Zero(t, s.GetSnapshot().Passes)
}

func TestRuleStats_Nil(t *testing.T) {
	var s *RuleStats
	assert.NotPanics(t, func() {
		s.RecordInvocation("swap", time.Millisecond, true, nil)
		s.RecordPass(time.Millisecond, nil)
		s.Reset()
	})
	assert.Equal(t, &RuleStatsSnapshot{}, s.GetSnapshot())
}
