package channel

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"go.uber.org/zap"
)

var _ Sender = new(emailSender)

type emailSender struct {
	transport Transport
}

func NewEmailSender(transport Transport) *emailSender {
	return &emailSender{transport: transport}
}

func (s *emailSender) GetChannel() model.Channel {
	return model.CHANNEL_EMAIL
}

func (s *emailSender) Send(msg Message) (string, error) {
	if len(msg.Prospect.Email) == 0 {
		return "", model.DispatchError{Channel: model.CHANNEL_EMAIL, Message: "prospect has no email address"}
	}
	messageId, err := s.transport(msg.Prospect.Email, msg.Content, msg.Subject)
	if err != nil {
		return "", model.DispatchError{Channel: model.CHANNEL_EMAIL, Message: err.Error()}
	}
	return messageId, nil
}

var _ Sender = new(linkedinSender)

type linkedinSender struct {
	transport Transport
}

func NewLinkedinSender(transport Transport) *linkedinSender {
	return &linkedinSender{transport: transport}
}

func (s *linkedinSender) GetChannel() model.Channel {
	return model.CHANNEL_LINKEDIN_MESSAGE
}

func (s *linkedinSender) Send(msg Message) (string, error) {
	if len(msg.Prospect.LinkedinUrl) == 0 {
		return "", model.DispatchError{Channel: model.CHANNEL_LINKEDIN_MESSAGE, Message: "prospect has no linkedin profile"}
	}
	messageId, err := s.transport(msg.Prospect.LinkedinUrl, msg.Content, "")
	if err != nil {
		return "", model.DispatchError{Channel: model.CHANNEL_LINKEDIN_MESSAGE, Message: err.Error()}
	}
	return messageId, nil
}

var _ Sender = new(smsSender)

type smsSender struct {
	transport Transport
}

func NewSmsSender(transport Transport) *smsSender {
	return &smsSender{transport: transport}
}

func (s *smsSender) GetChannel() model.Channel {
	return model.CHANNEL_SMS
}

func (s *smsSender) Send(msg Message) (string, error) {
	if len(msg.Prospect.Phone) == 0 {
		return "", model.DispatchError{Channel: model.CHANNEL_SMS, Message: "prospect has no phone number"}
	}
	messageId, err := s.transport(msg.Prospect.Phone, msg.Content, "")
	if err != nil {
		return "", model.DispatchError{Channel: model.CHANNEL_SMS, Message: err.Error()}
	}
	return messageId, nil
}

var _ Sender = new(phoneReminderSender)

// phoneReminderSender never calls a send API. It creates an internal task
// for the prospect owner.
type phoneReminderSender struct {
	sink TaskSink
}

func NewPhoneReminderSender(sink TaskSink) *phoneReminderSender {
	return &phoneReminderSender{sink: sink}
}

func (s *phoneReminderSender) GetChannel() model.Channel {
	return model.CHANNEL_PHONE_REMINDER
}

func (s *phoneReminderSender) Send(msg Message) (string, error) {
	title := fmt.Sprintf("Call %s", msg.Prospect.Email)
	err := s.sink.CreateTask(msg.Prospect.OwnerId, title, msg.Content)
	if err != nil {
		return "", model.DispatchError{Channel: model.CHANNEL_PHONE_REMINDER, Message: err.Error()}
	}
	return uuid.NewString(), nil
}

var _ Sender = new(socialSender)

// socialSender is a logged placeholder until a comments integration exists.
type socialSender struct {
}

func NewSocialSender() *socialSender {
	return &socialSender{}
}

func (s *socialSender) GetChannel() model.Channel {
	return model.CHANNEL_SOCIAL_MEDIA_COMMENT
}

func (s *socialSender) Send(msg Message) (string, error) {
	logger.Info("social media comment dispatch skipped", zap.String("prospect", msg.Prospect.Id))
	return uuid.NewString(), nil
}

// LoggingTransport is the default transport used when no provider is wired.
// It records the outbound message and fabricates a message id.
func LoggingTransport(ch model.Channel) Transport {
	return func(recipient string, content string, subject string) (string, error) {
		logger.Info("dispatching message", zap.String("channel", string(ch)), zap.String("recipient", recipient), zap.String("subject", subject))
		return uuid.NewString(), nil
	}
}

type logTaskSink struct {
}

func NewLogTaskSink() *logTaskSink {
	return &logTaskSink{}
}

func (s *logTaskSink) CreateTask(ownerId string, title string, body string) error {
	logger.Info("creating reminder task", zap.String("owner", ownerId), zap.String("title", title))
	return nil
}
