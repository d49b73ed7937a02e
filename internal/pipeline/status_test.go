package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionForwardPath(t *testing.T) {
	path := []Status{
		StatusApplied,
		StatusInterviewInvited,
		StatusInterviewInProgress,
		StatusInterviewCompleted,
		StatusScored,
		StatusShortlisted,
		StatusOffered,
		StatusHired,
	}

	version := int64(1)
	current := path[0]
	for _, next := range path[1:] {
		status, nextVersion, err := Transition(current, next, version, version)
		require.NoError(t, err, "%s -> %s", current, next)
		assert.Equal(t, next, status)
		assert.Equal(t, version+1, nextVersion)
		current, version = status, nextVersion
	}
	assert.True(t, current.IsTerminal())
}

func TestTransitionRejectsSkips(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusApplied, StatusScored},
		{StatusApplied, StatusInterviewInProgress},
		{StatusInterviewInProgress, StatusScored},
		{StatusScored, StatusOffered},
		{StatusShortlisted, StatusHired},
	}
	for _, tc := range cases {
		status, version, err := Transition(tc.from, tc.to, 3, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, status)
		assert.Equal(t, int64(3), version)
	}
}

func TestTransitionRejectsRegression(t *testing.T) {
	_, _, err := Transition(StatusScored, StatusInterviewCompleted, 5, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = Transition(StatusShortlisted, StatusApplied, 5, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionStaleVersion(t *testing.T) {
	status, version, err := Transition(StatusScored, StatusShortlisted, 4, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, StatusScored, status)
	assert.Equal(t, int64(4), version)
}

func TestSideTerminalsReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range forward {
		for to := range sideTerminals {
			if from.IsTerminal() {
				assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
				continue
			}
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	for from := range sideTerminals {
		for _, to := range forward {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatusIndexNeverDecreasesAcrossAcceptedTransitions(t *testing.T) {
	all := append(append([]Status{}, forward...), StatusRejected, StatusDeclined, StatusExpired)
	for _, from := range all {
		for _, to := range all {
			if !CanTransition(from, to) {
				continue
			}
			if to.IsSideTerminal() {
				continue
			}
			assert.Greater(t, Index(to), Index(from), "%s -> %s", from, to)
		}
	}
}

func TestSameStateIsNotATransition(t *testing.T) {
	_, _, err := Transition(StatusScored, StatusScored, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Interview_Completed ")
	require.NoError(t, err)
	assert.Equal(t, StatusInterviewCompleted, s)

	_, err = ParseStatus("archived")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorCodeVersionConflict, Classify(errors.Join(ErrConflict)))
	assert.Equal(t, ErrorCodeInternal, Classify(errors.New("boom")))
	assert.Equal(t, "", Classify(nil))
}

func TestBoundedMapsDeadlineToPersistence(t *testing.T) {
	err := Bounded(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrPersistence)

	err = Bounded(context.Background(), time.Second, func(context.Context) error { return ErrNotFound })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPersistence)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = Bounded(cancelled, time.Second, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPersistence, "caller cancellation is not a store failure")
}
