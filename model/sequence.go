package model

import (
	"fmt"
	"time"
)

type Channel string

const CHANNEL_EMAIL Channel = "EMAIL"
const CHANNEL_LINKEDIN_MESSAGE Channel = "LINKEDIN_MESSAGE"
const CHANNEL_SMS Channel = "SMS"
const CHANNEL_PHONE_REMINDER Channel = "PHONE_REMINDER"
const CHANNEL_SOCIAL_MEDIA_COMMENT Channel = "SOCIAL_MEDIA_COMMENT"

func ValidateChannel(ch Channel) error {
	switch ch {
	case CHANNEL_EMAIL, CHANNEL_LINKEDIN_MESSAGE, CHANNEL_SMS, CHANNEL_PHONE_REMINDER, CHANNEL_SOCIAL_MEDIA_COMMENT:
		return nil
	}
	return fmt.Errorf("invalid channel %s", ch)
}

type Step struct {
	StepNumber      int     `json:"stepNumber"`
	Channel         Channel `json:"channel"`
	ContentTemplate string  `json:"contentTemplate"`
	Subject         string  `json:"subject,omitempty"`
	AiGenerated     bool    `json:"aiGenerated"`
	DelayDays       int     `json:"delayDays"`
	DelayHours      int     `json:"delayHours"`
}

func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

type Sequence struct {
	Id               string `json:"id"`
	Name             string `json:"name"`
	InitialDelayDays int    `json:"initialDelayDays"`
	Active           bool   `json:"active"`
	TriggerEvent     string `json:"triggerEvent,omitempty"`
	Steps            []Step `json:"steps"`
}

// StepAt returns the step with the given number, nil when it does not exist.
// Steps are ordered 1..n so the lookup is positional.
func (s *Sequence) StepAt(stepNumber int) *Step {
	if stepNumber < 1 || stepNumber > len(s.Steps) {
		return nil
	}
	return &s.Steps[stepNumber-1]
}

func (s *Sequence) InitialDelay() time.Duration {
	return time.Duration(s.InitialDelayDays) * 24 * time.Hour
}

func (s *Sequence) Validate() error {
	if len(s.Name) == 0 {
		return ValidationError{Message: "sequence name can not be empty"}
	}
	if len(s.Steps) == 0 {
		return ValidationError{Message: "sequence should have at least one step"}
	}
	for i, step := range s.Steps {
		if step.StepNumber != i+1 {
			return ValidationError{Message: fmt.Sprintf("step numbers should be contiguous starting at 1, found %d at position %d", step.StepNumber, i+1)}
		}
		if err := ValidateChannel(step.Channel); err != nil {
			return ValidationError{Message: err.Error()}
		}
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return ValidationError{Message: fmt.Sprintf("step %d has negative delay", step.StepNumber)}
		}
	}
	return nil
}
