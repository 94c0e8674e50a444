package persistence

import (
	"time"

	"github.com/mohitkumar/flowup/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return "error in underline storage layer " + e.Message
}

type SequenceStorage interface {
	SaveSequence(seq *model.Sequence) error
	GetSequence(id string) (*model.Sequence, error)
	DeleteSequence(id string) error
	ListSequencesByTrigger(triggerEvent string) ([]*model.Sequence, error)
}

// EnrollmentStorage is the single writable source of truth for enrollment
// state. ClaimDue and Finalize together form the claim-then-finalize
// protocol: a claim moves an enrollment out of the claimable set before any
// dispatch happens, and Finalize atomically writes the resulting state
// together with its interaction record. A claim not finalized within its TTL
// becomes claimable again through ReclaimExpired. ClaimDue claims at most
// batchSize enrollments; a batchSize of zero or less means no limit.
type EnrollmentStorage interface {
	CreateEnrollment(enrollment *model.Enrollment) error
	GetEnrollment(id string) (*model.Enrollment, error)
	SaveEnrollment(enrollment *model.Enrollment) error
	FindActiveOrPaused(prospectId string, sequenceId string) (*model.Enrollment, error)
	ListActiveOrPausedByProspect(prospectId string) ([]*model.Enrollment, error)
	ClaimDue(now time.Time, claimTTL time.Duration, owner string, batchSize int) ([]*model.Enrollment, error)
	Finalize(enrollment *model.Enrollment, interaction *model.Interaction) error
	ReleaseClaim(id string) error
	ReclaimExpired(now time.Time) (int, error)
}

type ProspectStorage interface {
	SaveProspect(prospect *model.Prospect) error
	GetProspect(id string) (*model.Prospect, error)
	ListNotContactedSince(status model.ProspectStatus, before time.Time) ([]*model.Prospect, error)
	UpdateLastContact(id string, at time.Time) error
}

type InteractionStorage interface {
	AppendInteraction(interaction *model.Interaction) error
	ListInteractionsByProspect(prospectId string) ([]*model.Interaction, error)
}

type Storage interface {
	SequenceStorage
	EnrollmentStorage
	ProspectStorage
	InteractionStorage
}
