package engine

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"go.uber.org/zap"
)

// LifecycleService owns every operator driven enrollment transition. The
// step processor is the only other writer of enrollment state.
type LifecycleService struct {
	storage   persistence.EnrollmentStorage
	sequences metadata.SequenceService
	clock     Clock
}

func NewLifecycleService(storage persistence.EnrollmentStorage, sequences metadata.SequenceService, clock Clock) *LifecycleService {
	return &LifecycleService{
		storage:   storage,
		sequences: sequences,
		clock:     clock,
	}
}

// Enroll creates an ACTIVE enrollment at step 0. The first step falls due
// immediately when startImmediately is set, otherwise after the sequence
// initial delay plus the first step's own delay.
func (s *LifecycleService) Enroll(prospectId string, sequenceId string, startImmediately bool) (*model.Enrollment, error) {
	if len(prospectId) == 0 || len(sequenceId) == 0 {
		return nil, model.ValidationError{Message: "prospectId and sequenceId are required"}
	}
	seq, err := s.sequences.GetSequence(sequenceId)
	if err != nil {
		if errors.As(err, &model.NotFoundError{}) {
			return nil, model.SequenceInactiveError{SequenceId: sequenceId}
		}
		return nil, err
	}
	if !seq.Active {
		return nil, model.SequenceInactiveError{SequenceId: sequenceId}
	}
	existing, err := s.storage.FindActiveOrPaused(prospectId, sequenceId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.DuplicateEnrollmentError{ProspectId: prospectId, SequenceId: sequenceId}
	}
	now := s.clock.Now()
	nextStepDue := now
	if !startImmediately {
		nextStepDue = now.Add(seq.InitialDelay())
		if first := seq.StepAt(1); first != nil {
			nextStepDue = nextStepDue.Add(first.Delay())
		}
	}
	enrollment := &model.Enrollment{
		Id:          uuid.NewString(),
		ProspectId:  prospectId,
		SequenceId:  sequenceId,
		Status:      model.ENROLLMENT_ACTIVE,
		CurrentStep: 0,
		NextStepDue: &nextStepDue,
		EnrolledAt:  now,
	}
	// CreateEnrollment re-checks the pair uniqueness atomically, closing the
	// race between the lookup above and this write
	if err := s.storage.CreateEnrollment(enrollment); err != nil {
		return nil, err
	}
	logger.Info("prospect enrolled", zap.String("enrollment", enrollment.Id), zap.String("prospect", prospectId), zap.String("sequence", sequenceId))
	return enrollment, nil
}

func (s *LifecycleService) Pause(enrollmentId string) (*model.Enrollment, error) {
	enrollment, err := s.storage.GetEnrollment(enrollmentId)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.ENROLLMENT_ACTIVE {
		return nil, model.InvalidStateTransitionError{EnrollmentId: enrollmentId, From: enrollment.Status, To: model.ENROLLMENT_PAUSED}
	}
	now := s.clock.Now()
	enrollment.Status = model.ENROLLMENT_PAUSED
	enrollment.PausedAt = &now
	// nextStepDue stays as is; the due scanner's status filter skips paused
	// enrollments
	if err := s.storage.SaveEnrollment(enrollment); err != nil {
		return nil, err
	}
	logger.Info("enrollment paused", zap.String("enrollment", enrollmentId))
	return enrollment, nil
}

// Resume re-activates a paused enrollment and makes the pending step due
// immediately.
func (s *LifecycleService) Resume(enrollmentId string) (*model.Enrollment, error) {
	enrollment, err := s.storage.GetEnrollment(enrollmentId)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.ENROLLMENT_PAUSED {
		return nil, model.InvalidStateTransitionError{EnrollmentId: enrollmentId, From: enrollment.Status, To: model.ENROLLMENT_ACTIVE}
	}
	now := s.clock.Now()
	enrollment.Status = model.ENROLLMENT_ACTIVE
	enrollment.PausedAt = nil
	enrollment.NeedsAttention = false
	enrollment.FailedAttempts = 0
	enrollment.NextStepDue = &now
	if err := s.storage.SaveEnrollment(enrollment); err != nil {
		return nil, err
	}
	logger.Info("enrollment resumed", zap.String("enrollment", enrollmentId))
	return enrollment, nil
}

func (s *LifecycleService) Cancel(enrollmentId string) (*model.Enrollment, error) {
	enrollment, err := s.storage.GetEnrollment(enrollmentId)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(enrollment.Status, model.ENROLLMENT_CANCELLED) {
		return nil, model.InvalidStateTransitionError{EnrollmentId: enrollmentId, From: enrollment.Status, To: model.ENROLLMENT_CANCELLED}
	}
	now := s.clock.Now()
	enrollment.Status = model.ENROLLMENT_CANCELLED
	enrollment.CancelledAt = &now
	enrollment.NextStepDue = nil
	if err := s.storage.SaveEnrollment(enrollment); err != nil {
		return nil, err
	}
	logger.Info("enrollment cancelled", zap.String("enrollment", enrollmentId))
	return enrollment, nil
}

func (s *LifecycleService) GetEnrollment(enrollmentId string) (*model.Enrollment, error) {
	return s.storage.GetEnrollment(enrollmentId)
}
