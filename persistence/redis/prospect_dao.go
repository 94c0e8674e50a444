package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
)

const PROSPECT_KEY string = "PROSPECT"
const PROSPECT_STATUS_KEY string = "PROSPECT_STATUS"
const INTERACTION_KEY string = "INTERACTION"

func (r *redisStorage) SaveProspect(prospect *model.Prospect) error {
	ctx := context.Background()
	data, err := r.prospectEncDec.Encode(*prospect)
	if err != nil {
		return err
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		err := pipe.HSet(ctx, r.getNamespaceKey(PROSPECT_KEY), []string{prospect.Id, string(data)}).Err()
		pipe.SAdd(ctx, r.getNamespaceKey(PROSPECT_STATUS_KEY, string(prospect.Status)), prospect.Id)
		return err
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetProspect(id string) (*model.Prospect, error) {
	ctx := context.Background()
	val, err := r.redisClient.HGet(ctx, r.getNamespaceKey(PROSPECT_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "prospect", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.prospectEncDec.Decode([]byte(val))
}

func (r *redisStorage) ListNotContactedSince(status model.ProspectStatus, before time.Time) ([]*model.Prospect, error) {
	ctx := context.Background()
	ids, err := r.redisClient.SMembers(ctx, r.getNamespaceKey(PROSPECT_STATUS_KEY, string(status))).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []*model.Prospect{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var result []*model.Prospect
	for _, id := range ids {
		prospect, err := r.GetProspect(id)
		if err != nil {
			continue
		}
		// status set membership can be stale after a status change
		if prospect.Status != status {
			continue
		}
		if prospect.LastContactDate != nil && prospect.LastContactDate.After(before) {
			continue
		}
		result = append(result, prospect)
	}
	return result, nil
}

func (r *redisStorage) UpdateLastContact(id string, at time.Time) error {
	prospect, err := r.GetProspect(id)
	if err != nil {
		return err
	}
	prospect.LastContactDate = &at
	return r.SaveProspect(prospect)
}

func (r *redisStorage) AppendInteraction(interaction *model.Interaction) error {
	ctx := context.Background()
	data, err := r.interactionEncDec.Encode(*interaction)
	if err != nil {
		return err
	}
	err = r.redisClient.RPush(ctx, r.getNamespaceKey(INTERACTION_KEY, interaction.ProspectId), string(data)).Err()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) ListInteractionsByProspect(prospectId string) ([]*model.Interaction, error) {
	ctx := context.Background()
	values, err := r.redisClient.LRange(ctx, r.getNamespaceKey(INTERACTION_KEY, prospectId), 0, -1).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []*model.Interaction{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var result []*model.Interaction
	for _, v := range values {
		interaction, err := r.interactionEncDec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		result = append(result, interaction)
	}
	return result, nil
}
