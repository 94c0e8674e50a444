package redis

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/model"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentClaims(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, storage *redisStorage,
	){
		"test claim batch budget keeps remainder due": testClaimBudgetKeepsRemainderDue,
		"test claim is exclusive":                     testClaimExclusive,
		"test reclaim returns expired claims":         testReclaimReturnsExpiredClaims,
	} {
		t.Run(scenario, func(t *testing.T) {
			conf := Config{
				Addrs:      []string{"localhost:6379"},
				Namespace:  "test-" + uuid.NewString(),
				Partitions: 1,
			}
			fn(t, NewRedisStorage(conf))
		})
	}
}

func dueEnrollment(id string, due time.Time) *model.Enrollment {
	return &model.Enrollment{
		Id:          id,
		ProspectId:  "prospect-" + id,
		SequenceId:  "seq-1",
		Status:      model.ENROLLMENT_ACTIVE,
		NextStepDue: &due,
		EnrolledAt:  due.Add(-time.Hour),
	}
}

// a batch budget smaller than one partition's due backlog must leave the
// unclaimed remainder in the due set for the next pass
func testClaimBudgetKeepsRemainderDue(t *testing.T, storage *redisStorage) {
	now := time.Now()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, storage.CreateEnrollment(dueEnrollment(id, now.Add(-time.Minute))))
	}

	first, err := storage.ClaimDue(now, 30*time.Minute, "scanner-a", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := storage.ClaimDue(now, 30*time.Minute, "scanner-a", 2)
	require.NoError(t, err)
	require.Len(t, second, 1)

	seen := make(map[string]bool)
	for _, e := range append(first, second...) {
		seen[e.Id] = true
	}
	require.Len(t, seen, 3)
}

func testClaimExclusive(t *testing.T, storage *redisStorage) {
	now := time.Now()
	require.NoError(t, storage.CreateEnrollment(dueEnrollment("e1", now.Add(-time.Minute))))

	claimed, err := storage.ClaimDue(now, 30*time.Minute, "scanner-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "scanner-a", claimed[0].ClaimedBy)

	second, err := storage.ClaimDue(now, 30*time.Minute, "scanner-b", 10)
	require.NoError(t, err)
	require.Empty(t, second)
}

func testReclaimReturnsExpiredClaims(t *testing.T, storage *redisStorage) {
	now := time.Now()
	require.NoError(t, storage.CreateEnrollment(dueEnrollment("e1", now.Add(-time.Minute))))

	claimed, err := storage.ClaimDue(now, time.Minute, "scanner-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	count, err := storage.ReclaimExpired(now.Add(30 * time.Second))
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = storage.ReclaimExpired(now.Add(2 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	reclaimed, err := storage.ClaimDue(now.Add(2*time.Minute), time.Minute, "scanner-b", 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	require.Equal(t, "scanner-b", reclaimed[0].ClaimedBy)
}
