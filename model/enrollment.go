package model

import "time"

type EnrollmentStatus string

const ENROLLMENT_ACTIVE EnrollmentStatus = "ACTIVE"
const ENROLLMENT_PAUSED EnrollmentStatus = "PAUSED"
const ENROLLMENT_COMPLETED EnrollmentStatus = "COMPLETED"
const ENROLLMENT_CANCELLED EnrollmentStatus = "CANCELLED"

// CanTransition reports whether the enrollment state machine permits
// moving from one status to another. COMPLETED and CANCELLED are terminal.
func CanTransition(from EnrollmentStatus, to EnrollmentStatus) bool {
	switch from {
	case ENROLLMENT_ACTIVE:
		return to == ENROLLMENT_PAUSED || to == ENROLLMENT_CANCELLED || to == ENROLLMENT_COMPLETED
	case ENROLLMENT_PAUSED:
		return to == ENROLLMENT_ACTIVE || to == ENROLLMENT_CANCELLED
	}
	return false
}

func (s EnrollmentStatus) Terminal() bool {
	return s == ENROLLMENT_COMPLETED || s == ENROLLMENT_CANCELLED
}

type Enrollment struct {
	Id             string           `json:"id"`
	ProspectId     string           `json:"prospectId"`
	SequenceId     string           `json:"sequenceId"`
	Status         EnrollmentStatus `json:"status"`
	CurrentStep    int              `json:"currentStep"`
	NextStepDue    *time.Time       `json:"nextStepDue,omitempty"`
	LastStepSentAt *time.Time       `json:"lastStepSentAt,omitempty"`
	EnrolledAt     time.Time        `json:"enrolledAt"`
	PausedAt       *time.Time       `json:"pausedAt,omitempty"`
	CancelledAt    *time.Time       `json:"cancelledAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	FailedAttempts int              `json:"failedAttempts"`
	NeedsAttention bool             `json:"needsAttention"`
	ClaimedBy      string           `json:"claimedBy,omitempty"`
	ClaimedUntil   *time.Time       `json:"claimedUntil,omitempty"`
}

type Interaction struct {
	Id          string     `json:"id"`
	ProspectId  string     `json:"prospectId"`
	Type        Channel    `json:"type"`
	Content     string     `json:"content"`
	Subject     string     `json:"subject,omitempty"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Successful  bool       `json:"successful"`
	Error       string     `json:"error,omitempty"`
}

type ProspectStatus string

const PROSPECT_NEW ProspectStatus = "NEW"
const PROSPECT_CONTACTED ProspectStatus = "CONTACTED"
const PROSPECT_QUALIFIED ProspectStatus = "QUALIFIED"
const PROSPECT_UNRESPONSIVE ProspectStatus = "UNRESPONSIVE"

type Prospect struct {
	Id              string         `json:"id"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone,omitempty"`
	LinkedinUrl     string         `json:"linkedinUrl,omitempty"`
	OwnerId         string         `json:"ownerId"`
	Status          ProspectStatus `json:"status"`
	LastContactDate *time.Time     `json:"lastContactDate,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty"`
}

// TriggerRule auto-enrolls prospects into sequences sharing its trigger
// event. Expression, when set, is a javascript predicate evaluated against
// the prospect attributes.
type TriggerRule struct {
	Name                 string         `json:"name"`
	TriggerEvent         string         `json:"triggerEvent"`
	ProspectStatus       ProspectStatus `json:"prospectStatus"`
	DaysSinceLastContact int            `json:"daysSinceLastContact"`
	Expression           string         `json:"expression,omitempty"`
}

type EnrollmentRequest struct {
	ProspectId       string `json:"prospectId"`
	SequenceId       string `json:"sequenceId"`
	StartImmediately bool   `json:"startImmediately"`
}

// ItemResult is one entry of a batch scan outcome. Batch entry points never
// abort on a single item; failures are captured here instead.
type ItemResult struct {
	EnrollmentId string `json:"enrollmentId,omitempty"`
	ProspectId   string `json:"prospectId,omitempty"`
	SequenceId   string `json:"sequenceId,omitempty"`
	StepNumber   int    `json:"stepNumber,omitempty"`
	Ok           bool   `json:"ok"`
	Skipped      bool   `json:"skipped,omitempty"`
	Error        string `json:"error,omitempty"`
}
