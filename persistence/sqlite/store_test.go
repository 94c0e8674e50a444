package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohitkumar/flowup/model"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SqliteStorage {
	t.Helper()
	s, err := NewSqliteStorage(filepath.Join(t.TempDir(), "flowup-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSequence(id string) *model.Sequence {
	return &model.Sequence{
		Id:           id,
		Name:         "welcome",
		Active:       true,
		TriggerEvent: "prospect-unresponsive",
		Steps: []model.Step{
			{StepNumber: 1, Channel: model.CHANNEL_EMAIL, ContentTemplate: "Hi {$.firstName}", Subject: "Hello"},
			{StepNumber: 2, Channel: model.CHANNEL_SMS, ContentTemplate: "Ping", DelayDays: 3},
		},
	}
}

func testEnrollment(id string, prospectId string, due time.Time) *model.Enrollment {
	return &model.Enrollment{
		Id:          id,
		ProspectId:  prospectId,
		SequenceId:  "seq-1",
		Status:      model.ENROLLMENT_ACTIVE,
		NextStepDue: &due,
		EnrolledAt:  due.Add(-time.Hour),
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	seq := testSequence("seq-1")
	require.NoError(t, s.SaveSequence(seq))

	loaded, err := s.GetSequence("seq-1")
	require.NoError(t, err)
	require.Equal(t, seq.Name, loaded.Name)
	require.Equal(t, seq.Steps, loaded.Steps)
	require.True(t, loaded.Active)

	seq.Name = "welcome-v2"
	require.NoError(t, s.SaveSequence(seq))
	loaded, err = s.GetSequence("seq-1")
	require.NoError(t, err)
	require.Equal(t, "welcome-v2", loaded.Name)

	byTrigger, err := s.ListSequencesByTrigger("prospect-unresponsive")
	require.NoError(t, err)
	require.Len(t, byTrigger, 1)

	require.NoError(t, s.DeleteSequence("seq-1"))
	_, err = s.GetSequence("seq-1")
	require.True(t, errors.As(err, &model.NotFoundError{}))
}

func TestEnrollmentRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now)))

	loaded, err := s.GetEnrollment("e1")
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_ACTIVE, loaded.Status)
	require.Equal(t, now.UnixMilli(), loaded.NextStepDue.UnixMilli())

	loaded.Status = model.ENROLLMENT_PAUSED
	pausedAt := now.Add(time.Minute)
	loaded.PausedAt = &pausedAt
	require.NoError(t, s.SaveEnrollment(loaded))

	loaded, err = s.GetEnrollment("e1")
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_PAUSED, loaded.Status)
	require.NotNil(t, loaded.PausedAt)

	_, err = s.GetEnrollment("missing")
	require.True(t, errors.As(err, &model.NotFoundError{}))
}

func TestOpenPairUniqueness(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now)))

	err := s.CreateEnrollment(testEnrollment("e2", "p1", now))
	require.True(t, errors.As(err, &model.DuplicateEnrollmentError{}))

	e, err := s.GetEnrollment("e1")
	require.NoError(t, err)
	e.Status = model.ENROLLMENT_COMPLETED
	e.NextStepDue = nil
	require.NoError(t, s.SaveEnrollment(e))

	// terminal rows fall out of the partial index
	require.NoError(t, s.CreateEnrollment(testEnrollment("e2", "p1", now)))
}

func TestFindActiveOrPaused(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now)))

	found, err := s.FindActiveOrPaused("p1", "seq-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "e1", found.Id)

	missing, err := s.FindActiveOrPaused("p1", "seq-other")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestClaimDueLease(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now.Add(-time.Minute))))
	require.NoError(t, s.CreateEnrollment(testEnrollment("e2", "p2", now.Add(time.Hour))))

	claimed, err := s.ClaimDue(now, 30*time.Minute, "scanner-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "e1", claimed[0].Id)
	require.Equal(t, "scanner-a", claimed[0].ClaimedBy)

	// the lease blocks a second claim
	second, err := s.ClaimDue(now, 30*time.Minute, "scanner-b", 10)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestClaimDueZeroBatchMeansNoLimit(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now.Add(-time.Minute))))
	require.NoError(t, s.CreateEnrollment(testEnrollment("e2", "p2", now.Add(-time.Minute))))

	claimed, err := s.ClaimDue(now, 30*time.Minute, "scanner", 0)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
}

func TestClaimExpiresAndReclaim(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now.Add(-time.Minute))))

	claimed, err := s.ClaimDue(now, 5*time.Minute, "scanner-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	count, err := s.ReclaimExpired(now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = s.ReclaimExpired(now.Add(6 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	reclaimed, err := s.ClaimDue(now.Add(6*time.Minute), 5*time.Minute, "scanner-b", 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	require.Equal(t, "scanner-b", reclaimed[0].ClaimedBy)
}

func TestExpiredLeaseClaimableWithoutReclaim(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now.Add(-time.Minute))))

	_, err := s.ClaimDue(now, 5*time.Minute, "scanner-a", 10)
	require.NoError(t, err)

	// a scan after lease expiry claims directly, no reclaim pass needed
	claimed, err := s.ClaimDue(now.Add(10*time.Minute), 5*time.Minute, "scanner-b", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "scanner-b", claimed[0].ClaimedBy)
}

func TestFinalizeWritesInteractionAtomically(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.CreateEnrollment(testEnrollment("e1", "p1", now.Add(-time.Minute))))

	claimed, err := s.ClaimDue(now, 30*time.Minute, "scanner", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	e := claimed[0]
	e.CurrentStep = 1
	e.ClaimedBy = ""
	e.ClaimedUntil = nil
	nextDue := now.Add(3 * 24 * time.Hour)
	e.NextStepDue = &nextDue
	require.NoError(t, s.Finalize(e, &model.Interaction{
		Id:          "i1",
		ProspectId:  "p1",
		Type:        model.CHANNEL_EMAIL,
		Content:     "Hi Ada",
		Subject:     "Hello",
		ScheduledAt: now,
		CompletedAt: &now,
		Successful:  true,
	}))

	after, err := s.GetEnrollment("e1")
	require.NoError(t, err)
	require.Equal(t, 1, after.CurrentStep)
	require.Empty(t, after.ClaimedBy)
	require.Nil(t, after.ClaimedUntil)

	interactions, err := s.ListInteractionsByProspect("p1")
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	require.Equal(t, "Hi Ada", interactions[0].Content)
	require.True(t, interactions[0].Successful)
}

func TestProspectRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now().Truncate(time.Millisecond)
	prospect := &model.Prospect{
		Id:      "p1",
		Email:   "ada@example.com",
		OwnerId: "owner-1",
		Status:  model.PROSPECT_UNRESPONSIVE,
		Attributes: map[string]any{
			"firstName": "Ada",
		},
	}
	require.NoError(t, s.SaveProspect(prospect))

	loaded, err := s.GetProspect("p1")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", loaded.Email)
	require.Equal(t, "Ada", loaded.Attributes["firstName"])

	stale, err := s.ListNotContactedSince(model.PROSPECT_UNRESPONSIVE, now.Add(-14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, s.UpdateLastContact("p1", now))
	loaded, err = s.GetProspect("p1")
	require.NoError(t, err)
	require.Equal(t, now.UnixMilli(), loaded.LastContactDate.UnixMilli())

	stale, err = s.ListNotContactedSince(model.PROSPECT_UNRESPONSIVE, now.Add(-14*24*time.Hour))
	require.NoError(t, err)
	require.Empty(t, stale)
}
