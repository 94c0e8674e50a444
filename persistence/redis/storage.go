package redis

import (
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"github.com/mohitkumar/flowup/util"
)

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*baseDao
	sequenceEncDec    util.EncoderDecoder[model.Sequence]
	enrollmentEncDec  util.EncoderDecoder[model.Enrollment]
	prospectEncDec    util.EncoderDecoder[model.Prospect]
	interactionEncDec util.EncoderDecoder[model.Interaction]
}

func NewRedisStorage(conf Config) *redisStorage {
	return &redisStorage{
		baseDao:           newBaseDao(conf),
		sequenceEncDec:    util.NewJsonEncoderDecoder[model.Sequence](),
		enrollmentEncDec:  util.NewJsonEncoderDecoder[model.Enrollment](),
		prospectEncDec:    util.NewJsonEncoderDecoder[model.Prospect](),
		interactionEncDec: util.NewJsonEncoderDecoder[model.Interaction](),
	}
}
