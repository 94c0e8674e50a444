package channel

import (
	"github.com/mohitkumar/flowup/model"
)

// Message is one rendered outreach ready for transmission.
type Message struct {
	Prospect *model.Prospect
	Content  string
	Subject  string
}

// Sender transmits a message over one channel. The engine never implements
// SMTP, SMS or LinkedIn transport itself; senders delegate to an injected
// Transport.
type Sender interface {
	GetChannel() model.Channel
	Send(msg Message) (string, error)
}

// Transport is the external send capability for a channel. It returns the
// provider message id.
type Transport func(recipient string, content string, subject string) (string, error)

// TaskSink creates a human task; phone reminders go here instead of an
// external send API.
type TaskSink interface {
	CreateTask(ownerId string, title string, body string) error
}

type Container struct {
	senders map[model.Channel]Sender
}

func NewContainer() *Container {
	return &Container{
		senders: make(map[model.Channel]Sender),
	}
}

func (c *Container) Register(sender Sender) {
	c.senders[sender.GetChannel()] = sender
}

func (c *Container) GetSender(ch model.Channel) (Sender, error) {
	sender, ok := c.senders[ch]
	if !ok {
		return nil, model.DispatchError{Channel: ch, Message: "no sender registered"}
	}
	return sender, nil
}
