package engine

import (
	"testing"
	"time"

	"github.com/mohitkumar/flowup/model"
	"github.com/stretchr/testify/require"
)

func TestProcessSequenceToCompletion(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	result := h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)
	require.Equal(t, 1, result.StepNumber)

	after, err := h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_ACTIVE, after.Status)
	require.Equal(t, 1, after.CurrentStep)
	require.Equal(t, h.clock.Now().Add(3*24*time.Hour), *after.NextStepDue)
	require.Empty(t, after.ClaimedBy)

	// step 2 is not due yet
	require.Empty(t, h.claimDue(10))

	h.clock.advance(3 * 24 * time.Hour)
	claimed = h.claimDue(10)
	require.Len(t, claimed, 1)
	result = h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)

	after, err = h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_COMPLETED, after.Status)
	require.Nil(t, after.NextStepDue)
	require.NotNil(t, after.CompletedAt)

	interactions, err := h.storage.ListInteractionsByProspect(prospect.Id)
	require.NoError(t, err)
	require.Len(t, interactions, 2)
	require.Equal(t, "Hi Ada", interactions[0].Content)
	require.True(t, interactions[0].Successful)

	updated, err := h.storage.GetProspect(prospect.Id)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now(), *updated.LastContactDate)
	require.Equal(t, 2, h.recorder.count())
}

func TestPausedEnrollmentNotDispatched(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	// operator pauses between the claim and the dispatch
	_, err = h.lifecycle.Pause(enrollment.Id)
	require.NoError(t, err)

	result := h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)
	require.True(t, result.Skipped)
	require.Equal(t, 0, h.recorder.count())

	after, err := h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, 0, after.CurrentStep)
	require.Empty(t, after.ClaimedBy)
}

func TestCancelledEnrollmentNotDispatched(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	_, err = h.lifecycle.Cancel(enrollment.Id)
	require.NoError(t, err)

	result := h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)
	require.True(t, result.Skipped)
	require.Equal(t, 0, h.recorder.count())
}

func TestDispatchFailureSchedulesRetry(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	h.recorder.setFail(true)
	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	result := h.processor.ProcessDueStep(claimed[0])
	require.False(t, result.Ok)
	require.NotEmpty(t, result.Error)

	after, err := h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_ACTIVE, after.Status)
	require.Equal(t, 0, after.CurrentStep)
	require.Equal(t, 1, after.FailedAttempts)
	require.Equal(t, h.clock.Now().Add(300*time.Second), *after.NextStepDue)

	interactions, err := h.storage.ListInteractionsByProspect(prospect.Id)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	require.False(t, interactions[0].Successful)
	require.NotEmpty(t, interactions[0].Error)
}

func TestDispatchFailureParksAfterMaxAttempts(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	h.recorder.setFail(true)
	for i := 0; i < 3; i++ {
		claimed := h.claimDue(10)
		require.Len(t, claimed, 1)
		result := h.processor.ProcessDueStep(claimed[0])
		require.False(t, result.Ok)
		h.clock.advance(10 * time.Minute)
	}

	after, err := h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_PAUSED, after.Status)
	require.True(t, after.NeedsAttention)
	require.Equal(t, 3, after.FailedAttempts)
	require.Empty(t, h.claimDue(10))

	// operator resume clears the attention flag and retries immediately
	h.recorder.setFail(false)
	resumed, err := h.lifecycle.Resume(enrollment.Id)
	require.NoError(t, err)
	require.False(t, resumed.NeedsAttention)
	require.Equal(t, 0, resumed.FailedAttempts)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	result := h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)
	require.Equal(t, 1, h.recorder.count())
}

func TestBackoffRetryDelayGrows(t *testing.T) {
	retry := defaultRetry()
	retry.Policy = "BACKOFF"
	h := newHarness(retry)
	seq := h.mustSequence(twoStepSequence())
	prospect := h.mustProspect(testProspect())
	enrollment, err := h.lifecycle.Enroll(prospect.Id, seq.Id, true)
	require.NoError(t, err)

	h.recorder.setFail(true)
	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	h.processor.ProcessDueStep(claimed[0])
	after, err := h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(300*time.Second), *after.NextStepDue)

	h.clock.advance(301 * time.Second)
	claimed = h.claimDue(10)
	require.Len(t, claimed, 1)
	h.processor.ProcessDueStep(claimed[0])
	after, err = h.storage.GetEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(600*time.Second), *after.NextStepDue)
}

func TestPersonalizationFailsOpen(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := twoStepSequence()
	seq.Steps[0].ContentTemplate = "Hi {$.missingField}"
	saved := h.mustSequence(seq)
	prospect := h.mustProspect(testProspect())
	_, err := h.lifecycle.Enroll(prospect.Id, saved.Id, true)
	require.NoError(t, err)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	result := h.processor.ProcessDueStep(claimed[0])
	require.True(t, result.Ok)

	interactions, err := h.storage.ListInteractionsByProspect(prospect.Id)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	// the raw template goes out rather than nothing
	require.Equal(t, "Hi {$.missingField}", interactions[0].Content)
	require.True(t, interactions[0].Successful)
}

func TestMissingChannelRecipientFailsItem(t *testing.T) {
	h := newHarness(defaultRetry())
	seq := twoStepSequence()
	seq.Steps[0].Channel = model.CHANNEL_SMS
	saved := h.mustSequence(seq)
	prospect := testProspect()
	prospect.Phone = ""
	h.mustProspect(prospect)
	_, err := h.lifecycle.Enroll(prospect.Id, saved.Id, true)
	require.NoError(t, err)

	claimed := h.claimDue(10)
	require.Len(t, claimed, 1)
	result := h.processor.ProcessDueStep(claimed[0])
	require.False(t, result.Ok)
	require.Contains(t, result.Error, "no phone number")
}
