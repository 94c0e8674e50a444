package metadata

import (
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	c "github.com/patrickmn/go-cache"
)

// SequenceService is the definition store consumed by the engine. The
// engine only reads; operators create and edit sequences through Save and
// Delete, which also invalidate the read cache.
type SequenceService interface {
	GetSequence(id string) (*model.Sequence, error)
	SaveSequence(seq *model.Sequence) (*model.Sequence, error)
	DeleteSequence(id string) error
	ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error)
}

type sequenceService struct {
	storage persistence.SequenceStorage
	cache   *c.Cache
}

func NewSequenceService(storage persistence.SequenceStorage) SequenceService {
	return &sequenceService{
		storage: storage,
		cache:   c.New(10*time.Minute, 10*time.Minute),
	}
}

func (s *sequenceService) GetSequence(id string) (*model.Sequence, error) {
	if cached, found := s.cache.Get(id); found {
		return cached.(*model.Sequence), nil
	}
	seq, err := s.storage.GetSequence(id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, seq, c.DefaultExpiration)
	return seq, nil
}

func (s *sequenceService) SaveSequence(seq *model.Sequence) (*model.Sequence, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if len(seq.Id) == 0 {
		seq.Id = uuid.NewString()
	}
	if err := s.storage.SaveSequence(seq); err != nil {
		return nil, err
	}
	s.cache.Delete(seq.Id)
	return seq, nil
}

func (s *sequenceService) DeleteSequence(id string) error {
	if err := s.storage.DeleteSequence(id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

func (s *sequenceService) ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error) {
	return s.storage.ListSequencesByTrigger(triggerEvent)
}
