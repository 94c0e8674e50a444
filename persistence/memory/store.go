package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
)

var _ persistence.Storage = new(InMemStorage)

// InMemStorage keeps everything behind one mutex. Claim conditions are
// checked and applied under the lock, so claims are atomic the same way the
// backed implementations make them atomic in the store.
type InMemStorage struct {
	mu           sync.Mutex
	sequences    map[string]*model.Sequence
	enrollments  map[string]*model.Enrollment
	prospects    map[string]*model.Prospect
	interactions map[string][]*model.Interaction
}

func NewInMemStorage() *InMemStorage {
	return &InMemStorage{
		sequences:    make(map[string]*model.Sequence),
		enrollments:  make(map[string]*model.Enrollment),
		prospects:    make(map[string]*model.Prospect),
		interactions: make(map[string][]*model.Interaction),
	}
}

func (s *InMemStorage) SaveSequence(seq *model.Sequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seq
	cp.Steps = append([]model.Step(nil), seq.Steps...)
	s.sequences[seq.Id] = &cp
	return nil
}

func (s *InMemStorage) GetSequence(id string) (*model.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequences[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "sequence", Id: id}
	}
	cp := *seq
	cp.Steps = append([]model.Step(nil), seq.Steps...)
	return &cp, nil
}

func (s *InMemStorage) DeleteSequence(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sequences, id)
	return nil
}

func (s *InMemStorage) ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Sequence
	for _, seq := range s.sequences {
		if seq.TriggerEvent == triggerEvent {
			cp := *seq
			cp.Steps = append([]model.Step(nil), seq.Steps...)
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *InMemStorage) CreateEnrollment(enrollment *model.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enrollments {
		if e.ProspectId == enrollment.ProspectId && e.SequenceId == enrollment.SequenceId && !e.Status.Terminal() {
			return model.DuplicateEnrollmentError{ProspectId: enrollment.ProspectId, SequenceId: enrollment.SequenceId}
		}
	}
	cp := *enrollment
	s.enrollments[enrollment.Id] = &cp
	return nil
}

func (s *InMemStorage) GetEnrollment(id string) (*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "enrollment", Id: id}
	}
	cp := *e
	return &cp, nil
}

func (s *InMemStorage) SaveEnrollment(enrollment *model.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[enrollment.Id]; !ok {
		return model.NotFoundError{Kind: "enrollment", Id: enrollment.Id}
	}
	cp := *enrollment
	s.enrollments[enrollment.Id] = &cp
	return nil
}

func (s *InMemStorage) FindActiveOrPaused(prospectId string, sequenceId string) (*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enrollments {
		if e.ProspectId == prospectId && e.SequenceId == sequenceId && !e.Status.Terminal() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemStorage) ListActiveOrPausedByProspect(prospectId string) ([]*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Enrollment
	for _, e := range s.enrollments {
		if e.ProspectId == prospectId && !e.Status.Terminal() {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *InMemStorage) ClaimDue(now time.Time, claimTTL time.Duration, owner string, batchSize int) ([]*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.Enrollment
	for _, e := range s.enrollments {
		if e.Status != model.ENROLLMENT_ACTIVE || e.NextStepDue == nil || e.NextStepDue.After(now) {
			continue
		}
		if e.ClaimedUntil != nil && e.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextStepDue.Before(*due[j].NextStepDue) })
	if batchSize > 0 && len(due) > batchSize {
		due = due[:batchSize]
	}
	claimedUntil := now.Add(claimTTL)
	var claimed []*model.Enrollment
	for _, e := range due {
		e.ClaimedBy = owner
		e.ClaimedUntil = &claimedUntil
		cp := *e
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (s *InMemStorage) Finalize(enrollment *model.Enrollment, interaction *model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[enrollment.Id]; !ok {
		return model.NotFoundError{Kind: "enrollment", Id: enrollment.Id}
	}
	cp := *enrollment
	cp.ClaimedBy = ""
	cp.ClaimedUntil = nil
	s.enrollments[enrollment.Id] = &cp
	if interaction != nil {
		icp := *interaction
		s.interactions[interaction.ProspectId] = append(s.interactions[interaction.ProspectId], &icp)
	}
	return nil
}

func (s *InMemStorage) ReleaseClaim(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return model.NotFoundError{Kind: "enrollment", Id: id}
	}
	e.ClaimedBy = ""
	e.ClaimedUntil = nil
	return nil
}

func (s *InMemStorage) ReclaimExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.enrollments {
		if e.ClaimedUntil != nil && !e.ClaimedUntil.After(now) {
			e.ClaimedBy = ""
			e.ClaimedUntil = nil
			count++
		}
	}
	return count, nil
}

func (s *InMemStorage) SaveProspect(prospect *model.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *prospect
	s.prospects[prospect.Id] = &cp
	return nil
}

func (s *InMemStorage) GetProspect(id string) (*model.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "prospect", Id: id}
	}
	cp := *p
	return &cp, nil
}

func (s *InMemStorage) ListNotContactedSince(status model.ProspectStatus, before time.Time) ([]*model.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Prospect
	for _, p := range s.prospects {
		if p.Status != status {
			continue
		}
		if p.LastContactDate != nil && p.LastContactDate.After(before) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *InMemStorage) UpdateLastContact(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return model.NotFoundError{Kind: "prospect", Id: id}
	}
	p.LastContactDate = &at
	return nil
}

func (s *InMemStorage) AppendInteraction(interaction *model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *interaction
	s.interactions[interaction.ProspectId] = append(s.interactions[interaction.ProspectId], &cp)
	return nil
}

func (s *InMemStorage) ListInteractionsByProspect(prospectId string) ([]*model.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.interactions[prospectId]
	result := make([]*model.Interaction, 0, len(list))
	for _, i := range list {
		cp := *i
		result = append(result, &cp)
	}
	return result, nil
}
