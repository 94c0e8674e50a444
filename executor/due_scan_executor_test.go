package executor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/channel"
	"github.com/mohitkumar/flowup/config"
	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence/memory"
	"github.com/mohitkumar/flowup/personalize"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type scanFixture struct {
	storage    *memory.InMemStorage
	processor  *engine.StepProcessor
	clock      *fixedClock
	dispatched *atomic.Int64
	wg         sync.WaitGroup
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	storage := memory.NewInMemStorage()
	sequences := metadata.NewSequenceService(storage)
	clock := &fixedClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}

	var dispatched atomic.Int64
	channels := channel.NewContainer()
	channels.Register(channel.NewEmailSender(func(recipient string, content string, subject string) (string, error) {
		dispatched.Add(1)
		return uuid.NewString(), nil
	}))

	retry := engine.RetryConfig{Policy: config.RETRY_POLICY_FIXED, DelaySeconds: 300, MaxAttempts: 3}
	processor := engine.NewStepProcessor(storage, sequences, channels, personalize.NewTemplateRenderer(), clock, retry)

	seq := &model.Sequence{
		Name:   "welcome",
		Active: true,
		Steps: []model.Step{
			{StepNumber: 1, Channel: model.CHANNEL_EMAIL, ContentTemplate: "hi"},
		},
	}
	saved, err := sequences.SaveSequence(seq)
	require.NoError(t, err)

	lifecycle := engine.NewLifecycleService(storage, sequences, clock)
	for i := 0; i < 3; i++ {
		prospect := &model.Prospect{Id: uuid.NewString(), Email: "p@example.com", Status: model.PROSPECT_NEW}
		require.NoError(t, storage.SaveProspect(prospect))
		_, err := lifecycle.Enroll(prospect.Id, saved.Id, true)
		require.NoError(t, err)
	}

	f := &scanFixture{
		storage:    storage,
		processor:  processor,
		clock:      clock,
		dispatched: &dispatched,
	}
	// registered first so it runs after every executor has stopped
	t.Cleanup(func() { f.wg.Wait() })
	return f
}

func (f *scanFixture) newExecutor(t *testing.T) *DueScanExecutor {
	t.Helper()
	ex := NewDueScanExecutor(f.storage, f.processor, f.clock, time.Hour, 30*time.Minute, 100, 16, 4, &f.wg)
	ex.Start()
	t.Cleanup(ex.Stop)
	return ex
}

func TestRunOnceProcessesWholeBatch(t *testing.T) {
	f := newScanFixture(t)
	ex := f.newExecutor(t)

	results := ex.RunOnce()
	require.Len(t, results, 3)
	for _, r := range results {
		require.True(t, r.Ok)
	}
	require.Equal(t, int64(3), f.dispatched.Load())

	// everything completed, nothing left to claim
	require.Empty(t, ex.RunOnce())
}

func TestConcurrentScansNeverDoubleDispatch(t *testing.T) {
	f := newScanFixture(t)
	exA := f.newExecutor(t)
	exB := f.newExecutor(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for _, ex := range []*DueScanExecutor{exA, exB} {
		wg.Add(1)
		go func(ex *DueScanExecutor) {
			defer wg.Done()
			results := ex.RunOnce()
			mu.Lock()
			total += len(results)
			mu.Unlock()
		}(ex)
	}
	wg.Wait()

	require.Equal(t, 3, total)
	require.Equal(t, int64(3), f.dispatched.Load())
}
