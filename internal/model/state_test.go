package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalTransitions_NoOpHappyPath(t *testing.T) {
	h := NewHistory(time.Unix(0, 0))
	seq := []StateTag{Active, EvaluatingCondition, Building, Starting, SuccessfullyDidNothing, VerifiedSuccess, Finished}
	var err error
	for _, tag := range seq {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err, "transition to %s should be legal", tag)
	}
	assert.Equal(t, Finished, h.Tag)
	assert.Equal(t, StatusSuccessful, Simplify(h))
}

func TestLegalTransitions_RejectsIllegalJump(t *testing.T) {
	h := NewHistory(time.Unix(0, 0))
	_, err := h.Extend(time.Unix(0, 0), StartedRunning, "", nil)
	require.Error(t, err)
}

func TestLegalTransitions_DependencyFailure(t *testing.T) {
	// S2: A depends on B; A -> building -> dependencies-failed -> finished.
	h := NewHistory(time.Unix(0, 0))
	var err error
	for _, tag := range []StateTag{Active, EvaluatingCondition, Building, DependenciesFailed, Finished} {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusFailed, Simplify(h))
}

func TestLegalTransitions_RetryThenSucceed(t *testing.T) {
	// S3: retry-through. Three recoverable errors then success.
	h := NewHistory(time.Unix(0, 0))
	var err error
	for _, tag := range []StateTag{Active, EvaluatingCondition, Building, Starting, StartedRunning} {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		h, err = h.Extend(time.Unix(0, 0), StillRunningDespiteRecoverable, "net-timeout", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.Attempts, "third consecutive retry should be attempt index 2")
	h, err = h.Extend(time.Unix(0, 0), RanSuccessfully, "", nil)
	require.NoError(t, err)
	h, err = h.Extend(time.Unix(0, 0), VerifiedSuccess, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccessful, Simplify(h))
}

func TestLegalTransitions_ConditionShortCircuit(t *testing.T) {
	// S4: condition already satisfied short-circuits straight to already-done.
	h := NewHistory(time.Unix(0, 0))
	var err error
	for _, tag := range []StateTag{Active, EvaluatingCondition, AlreadyDone, Finished} {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusSuccessful, Simplify(h))
}

func TestLegalTransitions_KillRunning(t *testing.T) {
	// S6: kill a running node.
	h := NewHistory(time.Unix(0, 0))
	var err error
	for _, tag := range []StateTag{Active, EvaluatingCondition, Building, Starting, StartedRunning} {
		h, err = h.Extend(time.Unix(0, 0), tag, "", nil)
		require.NoError(t, err)
	}
	require.True(t, IsKillable(h.Tag))
	h, err = h.Extend(time.Unix(0, 0), Killing, "", nil)
	require.NoError(t, err)
	h, err = h.Extend(time.Unix(0, 0), Killed, "", nil)
	require.NoError(t, err)
	h, err = h.Extend(time.Unix(0, 0), Finished, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, Simplify(h))
}

func TestSimplify_PureOfBookkeepingAndLog(t *testing.T) {
	base := NewHistory(time.Unix(0, 0))
	a, err := base.Extend(time.Unix(1, 0), Active, "some log", &RunBookkeeping{PluginName: "x"})
	require.NoError(t, err)
	b, err := base.Extend(time.Unix(2, 0), Active, "different log entirely", nil)
	require.NoError(t, err)
	assert.Equal(t, Simplify(a), Simplify(b))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(VerifiedSuccess))
	assert.True(t, IsTerminal(FailedToKill))
	assert.True(t, IsTerminal(Finished))
	assert.False(t, IsTerminal(Building))
}
