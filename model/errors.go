package model

import "fmt"

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

type DuplicateEnrollmentError struct {
	ProspectId string
	SequenceId string
}

func (e DuplicateEnrollmentError) Error() string {
	return fmt.Sprintf("prospect %s already enrolled in sequence %s", e.ProspectId, e.SequenceId)
}

type SequenceInactiveError struct {
	SequenceId string
}

func (e SequenceInactiveError) Error() string {
	return fmt.Sprintf("sequence %s is inactive or does not exist", e.SequenceId)
}

type InvalidStateTransitionError struct {
	EnrollmentId string
	From         EnrollmentStatus
	To           EnrollmentStatus
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("enrollment %s can not move from %s to %s", e.EnrollmentId, e.From, e.To)
}

// DispatchError is a transport failure reported by a channel sender. It is
// retryable up to the configured attempt budget.
type DispatchError struct {
	Channel Channel
	Message string
}

func (e DispatchError) Error() string {
	return fmt.Sprintf("dispatch over %s failed: %s", e.Channel, e.Message)
}

// PersonalizationError is non fatal. Callers fall back to the raw template.
type PersonalizationError struct {
	Message string
}

func (e PersonalizationError) Error() string {
	return e.Message
}

// ClaimConflictError indicates another worker holds the claim on an
// enrollment. Losing a claim race is expected, not a bug.
type ClaimConflictError struct {
	EnrollmentId string
}

func (e ClaimConflictError) Error() string {
	return fmt.Sprintf("enrollment %s is claimed by another worker", e.EnrollmentId)
}
