package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validSequence() *Sequence {
	return &Sequence{
		Name:             "welcome",
		InitialDelayDays: 1,
		Active:           true,
		Steps: []Step{
			{StepNumber: 1, Channel: CHANNEL_EMAIL, ContentTemplate: "hi"},
			{StepNumber: 2, Channel: CHANNEL_SMS, ContentTemplate: "ping", DelayDays: 2, DelayHours: 6},
		},
	}
}

func TestSequenceValidate(t *testing.T) {
	require.NoError(t, validSequence().Validate())

	noName := validSequence()
	noName.Name = ""
	require.Error(t, noName.Validate())

	noSteps := validSequence()
	noSteps.Steps = nil
	require.Error(t, noSteps.Validate())

	gap := validSequence()
	gap.Steps[1].StepNumber = 3
	require.Error(t, gap.Validate())

	badChannel := validSequence()
	badChannel.Steps[0].Channel = "CARRIER_PIGEON"
	require.Error(t, badChannel.Validate())

	negative := validSequence()
	negative.Steps[1].DelayDays = -1
	require.Error(t, negative.Validate())
}

func TestStepAt(t *testing.T) {
	seq := validSequence()
	require.Nil(t, seq.StepAt(0))
	require.Equal(t, 1, seq.StepAt(1).StepNumber)
	require.Equal(t, 2, seq.StepAt(2).StepNumber)
	require.Nil(t, seq.StepAt(3))
}

func TestDelays(t *testing.T) {
	seq := validSequence()
	require.Equal(t, 24*time.Hour, seq.InitialDelay())
	require.Equal(t, time.Duration(0), seq.Steps[0].Delay())
	require.Equal(t, 54*time.Hour, seq.Steps[1].Delay())
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, CanTransition(ENROLLMENT_ACTIVE, ENROLLMENT_PAUSED))
	require.True(t, CanTransition(ENROLLMENT_ACTIVE, ENROLLMENT_CANCELLED))
	require.True(t, CanTransition(ENROLLMENT_ACTIVE, ENROLLMENT_COMPLETED))
	require.True(t, CanTransition(ENROLLMENT_PAUSED, ENROLLMENT_ACTIVE))
	require.True(t, CanTransition(ENROLLMENT_PAUSED, ENROLLMENT_CANCELLED))

	require.False(t, CanTransition(ENROLLMENT_PAUSED, ENROLLMENT_COMPLETED))
	require.False(t, CanTransition(ENROLLMENT_COMPLETED, ENROLLMENT_ACTIVE))
	require.False(t, CanTransition(ENROLLMENT_CANCELLED, ENROLLMENT_ACTIVE))

	require.True(t, ENROLLMENT_COMPLETED.Terminal())
	require.True(t, ENROLLMENT_CANCELLED.Terminal())
	require.False(t, ENROLLMENT_ACTIVE.Terminal())
	require.False(t, ENROLLMENT_PAUSED.Terminal())
}
