package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/channel"
	"github.com/mohitkumar/flowup/config"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence/memory"
	"github.com/mohitkumar/flowup/personalize"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// dispatchRecorder is a transport that records every send and can be
// switched to fail.
type dispatchRecorder struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (r *dispatchRecorder) transport(recipient string, content string, subject string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return "", fmt.Errorf("provider unavailable")
	}
	r.sent = append(r.sent, recipient)
	return uuid.NewString(), nil
}

func (r *dispatchRecorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *dispatchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type harness struct {
	storage   *memory.InMemStorage
	sequences metadata.SequenceService
	channels  *channel.Container
	lifecycle *LifecycleService
	processor *StepProcessor
	clock     *fakeClock
	recorder  *dispatchRecorder
}

func newHarness(retry RetryConfig) *harness {
	storage := memory.NewInMemStorage()
	sequences := metadata.NewSequenceService(storage)
	recorder := &dispatchRecorder{}
	channels := channel.NewContainer()
	channels.Register(channel.NewEmailSender(recorder.transport))
	channels.Register(channel.NewSmsSender(recorder.transport))
	clock := newFakeClock()
	lifecycle := NewLifecycleService(storage, sequences, clock)
	processor := NewStepProcessor(storage, sequences, channels, personalize.NewTemplateRenderer(), clock, retry)
	return &harness{
		storage:   storage,
		sequences: sequences,
		channels:  channels,
		lifecycle: lifecycle,
		processor: processor,
		clock:     clock,
		recorder:  recorder,
	}
}

func defaultRetry() RetryConfig {
	return RetryConfig{
		Policy:       config.RETRY_POLICY_FIXED,
		DelaySeconds: 300,
		MaxAttempts:  3,
	}
}

func twoStepSequence() *model.Sequence {
	return &model.Sequence{
		Name:   "welcome",
		Active: true,
		Steps: []model.Step{
			{StepNumber: 1, Channel: model.CHANNEL_EMAIL, ContentTemplate: "Hi {$.firstName}", Subject: "Hello"},
			{StepNumber: 2, Channel: model.CHANNEL_EMAIL, ContentTemplate: "Following up", Subject: "Ping", DelayDays: 3},
		},
	}
}

func testProspect() *model.Prospect {
	return &model.Prospect{
		Id:      uuid.NewString(),
		Email:   "ada@example.com",
		Phone:   "+15550100",
		OwnerId: "owner-1",
		Status:  model.PROSPECT_NEW,
		Attributes: map[string]any{
			"firstName": "Ada",
		},
	}
}

func (h *harness) mustSequence(seq *model.Sequence) *model.Sequence {
	saved, err := h.sequences.SaveSequence(seq)
	if err != nil {
		panic(err)
	}
	return saved
}

func (h *harness) mustProspect(p *model.Prospect) *model.Prospect {
	if err := h.storage.SaveProspect(p); err != nil {
		panic(err)
	}
	return p
}

func (h *harness) claimDue(batchSize int) []*model.Enrollment {
	claimed, err := h.storage.ClaimDue(h.clock.Now(), 30*time.Minute, "test-scanner", batchSize)
	if err != nil {
		panic(err)
	}
	return claimed
}
