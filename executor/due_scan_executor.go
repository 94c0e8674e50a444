package executor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"github.com/mohitkumar/flowup/util"
	"go.uber.org/zap"
)

var _ Executor = new(DueScanExecutor)

type scanTask struct {
	enrollment *model.Enrollment
	done       func(model.ItemResult)
}

// DueScanExecutor periodically claims due enrollments and fans them out to
// a bounded worker pool. Distinct enrollments run in parallel; a single
// enrollment is never processed concurrently because it is claimed before
// it is handed to the pool.
type DueScanExecutor struct {
	storage   persistence.EnrollmentStorage
	processor *engine.StepProcessor
	clock     engine.Clock
	owner     string
	claimTTL  time.Duration
	batchSize int
	tw        *util.TickWorker
	pool      *util.Worker
	stop      chan struct{}
	wg        *sync.WaitGroup
}

func NewDueScanExecutor(storage persistence.EnrollmentStorage, processor *engine.StepProcessor, clock engine.Clock,
	scanInterval time.Duration, claimTTL time.Duration, batchSize int, capacity int, concurrency int, wg *sync.WaitGroup) *DueScanExecutor {
	ex := &DueScanExecutor{
		storage:   storage,
		processor: processor,
		clock:     clock,
		owner:     "due-scanner-" + uuid.NewString(),
		claimTTL:  claimTTL,
		batchSize: batchSize,
		stop:      make(chan struct{}),
		wg:        wg,
	}
	ex.pool = util.NewWorker("step-processor", wg, ex.handleTask, capacity, concurrency)
	ex.tw = util.NewTickWorker("due-scan-executor", scanInterval, ex.stop, ex.handle, wg)
	return ex
}

func (ex *DueScanExecutor) Start() {
	if ex.tw.IsRunning() {
		return
	}
	ex.pool.Start()
	ex.tw.Start()
}

func (ex *DueScanExecutor) Stop() {
	if !ex.tw.IsRunning() {
		return
	}
	ex.stop <- struct{}{}
	ex.pool.Stop()
}

func (ex *DueScanExecutor) handle() {
	results := ex.RunOnce()
	failed := 0
	for _, r := range results {
		if !r.Ok {
			failed++
		}
	}
	if len(results) != 0 {
		logger.Info("due scan pass finished", zap.Int("processed", len(results)), zap.Int("failed", failed))
	}
}

func (ex *DueScanExecutor) handleTask(task util.Task) error {
	st := task.(*scanTask)
	st.done(ex.processor.ProcessDueStep(st.enrollment))
	return nil
}

// RunOnce claims every currently due enrollment and waits for the pool to
// process the whole batch. Item failures land in the result list, they
// never abort the batch.
func (ex *DueScanExecutor) RunOnce() []model.ItemResult {
	claimed, err := ex.storage.ClaimDue(ex.clock.Now(), ex.claimTTL, ex.owner, ex.batchSize)
	if err != nil {
		logger.Error("error claiming due enrollments", zap.Error(err))
		return []model.ItemResult{{Error: err.Error()}}
	}
	if len(claimed) == 0 {
		return nil
	}
	var mu sync.Mutex
	var batchWg sync.WaitGroup
	results := make([]model.ItemResult, 0, len(claimed))
	for _, enrollment := range claimed {
		batchWg.Add(1)
		ex.pool.Sender() <- &scanTask{
			enrollment: enrollment,
			done: func(r model.ItemResult) {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				batchWg.Done()
			},
		}
	}
	batchWg.Wait()
	return results
}
