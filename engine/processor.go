package engine

import (
	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/analytics"
	"github.com/mohitkumar/flowup/channel"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/personalize"
	"github.com/mohitkumar/flowup/persistence"
	"go.uber.org/zap"
)

// StepProcessor advances one claimed enrollment by exactly one due step.
// The caller must hold the claim; the processor finalizes or releases it
// before returning.
type StepProcessor struct {
	storage      persistence.Storage
	sequences    metadata.SequenceService
	channels     *channel.Container
	personalizer personalize.Personalizer
	renderer     personalize.Personalizer
	clock        Clock
	retry        RetryConfig
}

func NewStepProcessor(storage persistence.Storage, sequences metadata.SequenceService, channels *channel.Container,
	personalizer personalize.Personalizer, clock Clock, retry RetryConfig) *StepProcessor {
	return &StepProcessor{
		storage:      storage,
		sequences:    sequences,
		channels:     channels,
		personalizer: personalize.NewFailOpen(personalizer),
		renderer:     personalize.NewFailOpen(personalize.NewTemplateRenderer()),
		clock:        clock,
		retry:        retry,
	}
}

func (p *StepProcessor) ProcessDueStep(claimed *model.Enrollment) model.ItemResult {
	result := model.ItemResult{
		EnrollmentId: claimed.Id,
		ProspectId:   claimed.ProspectId,
		SequenceId:   claimed.SequenceId,
	}
	// re-read and re-validate right before dispatching: an operator may have
	// paused or cancelled between the claim and this point
	enrollment, err := p.storage.GetEnrollment(claimed.Id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if enrollment.Status != model.ENROLLMENT_ACTIVE {
		p.releaseClaim(enrollment.Id)
		result.Ok = true
		result.Skipped = true
		return result
	}
	seq, err := p.sequences.GetSequence(enrollment.SequenceId)
	if err != nil {
		p.releaseClaim(enrollment.Id)
		result.Error = err.Error()
		return result
	}
	now := p.clock.Now()
	step := seq.StepAt(enrollment.CurrentStep + 1)
	if step == nil {
		// past the last step, nothing to dispatch
		enrollment.Status = model.ENROLLMENT_COMPLETED
		enrollment.CompletedAt = &now
		enrollment.NextStepDue = nil
		if err := p.storage.Finalize(enrollment, nil); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Ok = true
		return result
	}
	result.StepNumber = step.StepNumber
	prospect, err := p.storage.GetProspect(enrollment.ProspectId)
	if err != nil {
		p.releaseClaim(enrollment.Id)
		result.Error = err.Error()
		return result
	}

	content := p.render(step, prospect)
	scheduledAt := now
	if enrollment.NextStepDue != nil {
		scheduledAt = *enrollment.NextStepDue
	}
	messageId, sendErr := p.dispatch(step, prospect, content)
	interaction := &model.Interaction{
		Id:          uuid.NewString(),
		ProspectId:  prospect.Id,
		Type:        step.Channel,
		Content:     content,
		Subject:     step.Subject,
		ScheduledAt: scheduledAt,
		CompletedAt: &now,
		Successful:  sendErr == nil,
	}
	if sendErr != nil {
		interaction.Error = sendErr.Error()
		return p.finalizeFailure(enrollment, step, interaction, result, sendErr)
	}
	logger.Info("step dispatched", zap.String("enrollment", enrollment.Id), zap.Int("step", step.StepNumber),
		zap.String("channel", string(step.Channel)), zap.String("messageId", messageId))
	analytics.RecordDispatchSuccess(enrollment.Id, prospect.Id, step.StepNumber, string(step.Channel))

	enrollment.CurrentStep = step.StepNumber
	enrollment.LastStepSentAt = &now
	enrollment.FailedAttempts = 0
	if next := seq.StepAt(step.StepNumber + 1); next != nil {
		due := now.Add(next.Delay())
		enrollment.NextStepDue = &due
	} else {
		enrollment.Status = model.ENROLLMENT_COMPLETED
		enrollment.CompletedAt = &now
		enrollment.NextStepDue = nil
	}
	if err := p.storage.Finalize(enrollment, interaction); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := p.storage.UpdateLastContact(prospect.Id, now); err != nil {
		logger.Error("error updating prospect last contact", zap.String("prospect", prospect.Id), zap.Error(err))
	}
	result.Ok = true
	return result
}

func (p *StepProcessor) render(step *model.Step, prospect *model.Prospect) string {
	renderer := p.renderer
	if step.AiGenerated {
		renderer = p.personalizer
	}
	// both renderers fail open, the raw template is always a valid outcome
	content, _ := renderer.Personalize(step.ContentTemplate, prospect, step.Channel)
	return content
}

func (p *StepProcessor) dispatch(step *model.Step, prospect *model.Prospect, content string) (string, error) {
	sender, err := p.channels.GetSender(step.Channel)
	if err != nil {
		return "", err
	}
	return sender.Send(channel.Message{
		Prospect: prospect,
		Content:  content,
		Subject:  step.Subject,
	})
}

// finalizeFailure records the failed interaction without advancing the
// step. Within the attempt budget the step is rescheduled with backoff;
// past it the enrollment is parked as PAUSED with the attention flag so an
// operator can resume it.
func (p *StepProcessor) finalizeFailure(enrollment *model.Enrollment, step *model.Step, interaction *model.Interaction,
	result model.ItemResult, sendErr error) model.ItemResult {
	now := p.clock.Now()
	analytics.RecordDispatchFailure(enrollment.Id, enrollment.ProspectId, step.StepNumber, string(step.Channel), sendErr.Error())
	enrollment.FailedAttempts = enrollment.FailedAttempts + 1
	if enrollment.FailedAttempts >= p.retry.MaxAttempts {
		logger.Error("step dispatch retries exhausted, parking enrollment",
			zap.String("enrollment", enrollment.Id), zap.Int("step", step.StepNumber), zap.Int("attempts", enrollment.FailedAttempts), zap.Error(sendErr))
		enrollment.Status = model.ENROLLMENT_PAUSED
		enrollment.PausedAt = &now
		enrollment.NeedsAttention = true
	} else {
		retryAt := now.Add(p.retry.Backoff(enrollment.FailedAttempts))
		enrollment.NextStepDue = &retryAt
		logger.Warn("step dispatch failed, scheduling retry",
			zap.String("enrollment", enrollment.Id), zap.Int("step", step.StepNumber), zap.Int("attempt", enrollment.FailedAttempts), zap.Error(sendErr))
	}
	if err := p.storage.Finalize(enrollment, interaction); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Error = sendErr.Error()
	return result
}

func (p *StepProcessor) releaseClaim(id string) {
	if err := p.storage.ReleaseClaim(id); err != nil {
		logger.Error("error releasing claim", zap.String("enrollment", id), zap.Error(err))
	}
}
