package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"go.uber.org/zap"
)

const ENROLLMENT_KEY string = "ENROLLMENT"
const PAIR_KEY string = "PAIR"
const DUE_KEY string = "DUE"
const CLAIMED_KEY string = "CLAIMED"

func pairField(prospectId string, sequenceId string) string {
	return fmt.Sprintf("%s:%s", prospectId, sequenceId)
}

func (r *redisStorage) CreateEnrollment(enrollment *model.Enrollment) error {
	ctx := context.Background()
	pairKey := r.getNamespaceKey(PAIR_KEY)
	created, err := r.redisClient.HSetNX(ctx, pairKey, pairField(enrollment.ProspectId, enrollment.SequenceId), enrollment.Id).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !created {
		return model.DuplicateEnrollmentError{ProspectId: enrollment.ProspectId, SequenceId: enrollment.SequenceId}
	}
	data, err := r.enrollmentEncDec.Encode(*enrollment)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		err := pipe.HSet(ctx, r.getNamespaceKey(ENROLLMENT_KEY), []string{enrollment.Id, string(data)}).Err()
		if enrollment.Status == model.ENROLLMENT_ACTIVE && enrollment.NextStepDue != nil {
			member := rd.Z{
				Score:  float64(enrollment.NextStepDue.UnixMilli()),
				Member: enrollment.Id,
			}
			err = pipe.ZAdd(ctx, r.partitionKey(DUE_KEY, enrollment.Id), member).Err()
		}
		return err
	})
	if err != nil {
		// roll the pair index back so the prospect stays enrollable
		r.redisClient.HDel(ctx, pairKey, pairField(enrollment.ProspectId, enrollment.SequenceId))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetEnrollment(id string) (*model.Enrollment, error) {
	ctx := context.Background()
	val, err := r.redisClient.HGet(ctx, r.getNamespaceKey(ENROLLMENT_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "enrollment", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.enrollmentEncDec.Decode([]byte(val))
}

func (r *redisStorage) SaveEnrollment(enrollment *model.Enrollment) error {
	return r.writeEnrollment(enrollment, nil)
}

func (r *redisStorage) Finalize(enrollment *model.Enrollment, interaction *model.Interaction) error {
	enrollment.ClaimedBy = ""
	enrollment.ClaimedUntil = nil
	return r.writeEnrollment(enrollment, interaction)
}

// writeEnrollment rewrites the enrollment hash entry and keeps the due and
// claimed sorted sets plus the active-pair index consistent with the new
// state, all inside one transaction.
func (r *redisStorage) writeEnrollment(enrollment *model.Enrollment, interaction *model.Interaction) error {
	ctx := context.Background()
	data, err := r.enrollmentEncDec.Encode(*enrollment)
	if err != nil {
		return err
	}
	dueKey := r.partitionKey(DUE_KEY, enrollment.Id)
	claimedKey := r.partitionKey(CLAIMED_KEY, enrollment.Id)
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		err := pipe.HSet(ctx, r.getNamespaceKey(ENROLLMENT_KEY), []string{enrollment.Id, string(data)}).Err()
		pipe.ZRem(ctx, dueKey, enrollment.Id)
		pipe.ZRem(ctx, claimedKey, enrollment.Id)
		if enrollment.Status == model.ENROLLMENT_ACTIVE && enrollment.NextStepDue != nil {
			member := rd.Z{
				Score:  float64(enrollment.NextStepDue.UnixMilli()),
				Member: enrollment.Id,
			}
			pipe.ZAdd(ctx, dueKey, member)
		}
		if enrollment.Status.Terminal() {
			pipe.HDel(ctx, r.getNamespaceKey(PAIR_KEY), pairField(enrollment.ProspectId, enrollment.SequenceId))
		}
		if interaction != nil {
			idata, ierr := r.interactionEncDec.Encode(*interaction)
			if ierr != nil {
				return ierr
			}
			pipe.RPush(ctx, r.getNamespaceKey(INTERACTION_KEY, interaction.ProspectId), string(idata))
		}
		return err
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) FindActiveOrPaused(prospectId string, sequenceId string) (*model.Enrollment, error) {
	ctx := context.Background()
	id, err := r.redisClient.HGet(ctx, r.getNamespaceKey(PAIR_KEY), pairField(prospectId, sequenceId)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.GetEnrollment(id)
}

func (r *redisStorage) ListActiveOrPausedByProspect(prospectId string) ([]*model.Enrollment, error) {
	ctx := context.Background()
	pairs, err := r.redisClient.HGetAll(ctx, r.getNamespaceKey(PAIR_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	prefix := prospectId + ":"
	var result []*model.Enrollment
	for field, id := range pairs {
		if len(field) <= len(prefix) || field[:len(prefix)] != prefix {
			continue
		}
		enrollment, err := r.GetEnrollment(id)
		if err != nil {
			continue
		}
		result = append(result, enrollment)
	}
	return result, nil
}

// moveExpiredScript atomically moves members scored at or below ARGV[1]
// from KEYS[1] to KEYS[2] with new score ARGV[2], at most ARGV[3] of them
// (-1 for all), and returns the moved members. Doing the pop and the insert
// in one script means a member is in exactly one of the two sets at every
// point, so a crash or error mid-claim can never strand an enrollment
// outside both.
var moveExpiredScript = rd.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[3])
for i, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return ids`)

func (r *redisStorage) moveExpired(from string, to string, now time.Time, newScore time.Time, limit int) ([]string, error) {
	ctx := context.Background()
	ids, err := moveExpiredScript.Run(ctx, r.redisClient, []string{from, to},
		now.UnixMilli(), newScore.UnixMilli(), limit).StringSlice()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []string{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ids, nil
}

func (r *redisStorage) ClaimDue(now time.Time, claimTTL time.Duration, owner string, batchSize int) ([]*model.Enrollment, error) {
	var claimed []*model.Enrollment
	claimedUntil := now.Add(claimTTL)
	for p := 0; p < r.partitions; p++ {
		limit := -1
		if batchSize > 0 {
			limit = batchSize - len(claimed)
			if limit <= 0 {
				break
			}
		}
		dueKey := r.getNamespaceKey(DUE_KEY, strconv.Itoa(p))
		claimedKey := r.getNamespaceKey(CLAIMED_KEY, strconv.Itoa(p))
		ids, err := r.moveExpired(dueKey, claimedKey, now, claimedUntil, limit)
		if err != nil {
			return claimed, err
		}
		for _, id := range ids {
			enrollment, err := r.GetEnrollment(id)
			if err != nil {
				// the entry sits in the claimed set, the reclaimer returns it
				// to the due set after the TTL
				logger.Error("claimed due entry without readable enrollment record", zap.String("id", id), zap.Error(err))
				continue
			}
			if enrollment.Status != model.ENROLLMENT_ACTIVE {
				// stale queue entry, drop it without requeueing
				r.redisClient.ZRem(context.Background(), claimedKey, id)
				continue
			}
			enrollment.ClaimedBy = owner
			enrollment.ClaimedUntil = &claimedUntil
			data, err := r.enrollmentEncDec.Encode(*enrollment)
			if err != nil {
				return claimed, err
			}
			ctx := context.Background()
			if err := r.redisClient.HSet(ctx, r.getNamespaceKey(ENROLLMENT_KEY), []string{enrollment.Id, string(data)}).Err(); err != nil {
				return claimed, persistence.StorageLayerError{Message: err.Error()}
			}
			claimed = append(claimed, enrollment)
		}
	}
	return claimed, nil
}

func (r *redisStorage) ReleaseClaim(id string) error {
	enrollment, err := r.GetEnrollment(id)
	if err != nil {
		return err
	}
	enrollment.ClaimedBy = ""
	enrollment.ClaimedUntil = nil
	return r.writeEnrollment(enrollment, nil)
}

func (r *redisStorage) ReclaimExpired(now time.Time) (int, error) {
	count := 0
	for p := 0; p < r.partitions; p++ {
		dueKey := r.getNamespaceKey(DUE_KEY, strconv.Itoa(p))
		claimedKey := r.getNamespaceKey(CLAIMED_KEY, strconv.Itoa(p))
		// the atomic move back to the due set is the recovery itself; the
		// hash cleanup below is cosmetic and may fail without losing work
		ids, err := r.moveExpired(claimedKey, dueKey, now, now, -1)
		if err != nil {
			return count, err
		}
		count += len(ids)
		for _, id := range ids {
			enrollment, err := r.GetEnrollment(id)
			if err != nil {
				continue
			}
			enrollment.ClaimedBy = ""
			enrollment.ClaimedUntil = nil
			if err := r.writeEnrollment(enrollment, nil); err != nil {
				logger.Error("error clearing reclaimed lease", zap.String("id", id), zap.Error(err))
			}
		}
	}
	return count, nil
}
