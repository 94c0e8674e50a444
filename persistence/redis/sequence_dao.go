package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
)

const SEQUENCE_KEY string = "SEQUENCE"
const TRIGGER_KEY string = "TRIGGER"

func (r *redisStorage) SaveSequence(seq *model.Sequence) error {
	ctx := context.Background()
	data, err := r.sequenceEncDec.Encode(*seq)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		err := pipe.HSet(ctx, r.getNamespaceKey(SEQUENCE_KEY), []string{seq.Id, string(data)}).Err()
		if len(seq.TriggerEvent) != 0 {
			err = pipe.SAdd(ctx, r.getNamespaceKey(TRIGGER_KEY, seq.TriggerEvent), seq.Id).Err()
		}
		return err
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetSequence(id string) (*model.Sequence, error) {
	ctx := context.Background()
	val, err := r.redisClient.HGet(ctx, r.getNamespaceKey(SEQUENCE_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "sequence", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.sequenceEncDec.Decode([]byte(val))
}

func (r *redisStorage) DeleteSequence(id string) error {
	ctx := context.Background()
	seq, err := r.GetSequence(id)
	if err != nil {
		if errors.As(err, &model.NotFoundError{}) {
			return nil
		}
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		err := pipe.HDel(ctx, r.getNamespaceKey(SEQUENCE_KEY), id).Err()
		if len(seq.TriggerEvent) != 0 {
			err = pipe.SRem(ctx, r.getNamespaceKey(TRIGGER_KEY, seq.TriggerEvent), id).Err()
		}
		return err
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error) {
	ctx := context.Background()
	ids, err := r.redisClient.SMembers(ctx, r.getNamespaceKey(TRIGGER_KEY, triggerEvent)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []*model.Sequence{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var result []*model.Sequence
	for _, id := range ids {
		seq, err := r.GetSequence(id)
		if err != nil {
			continue
		}
		result = append(result, seq)
	}
	return result, nil
}
