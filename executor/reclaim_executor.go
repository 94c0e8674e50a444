package executor

import (
	"sync"
	"time"

	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/persistence"
	"github.com/mohitkumar/flowup/util"
	"go.uber.org/zap"
)

var _ Executor = new(ReclaimExecutor)

// ReclaimExecutor returns enrollments whose claim lease expired back to the
// due pool, so work lost to a crashed scanner is retried.
type ReclaimExecutor struct {
	storage persistence.EnrollmentStorage
	clock   engine.Clock
	tw      *util.TickWorker
	stop    chan struct{}
}

func NewReclaimExecutor(storage persistence.EnrollmentStorage, clock engine.Clock, interval time.Duration, wg *sync.WaitGroup) *ReclaimExecutor {
	ex := &ReclaimExecutor{
		storage: storage,
		clock:   clock,
		stop:    make(chan struct{}),
	}
	ex.tw = util.NewTickWorker("reclaim-executor", interval, ex.stop, ex.handle, wg)
	return ex
}

func (ex *ReclaimExecutor) Start() {
	if ex.tw.IsRunning() {
		return
	}
	ex.tw.Start()
}

func (ex *ReclaimExecutor) Stop() {
	if !ex.tw.IsRunning() {
		return
	}
	ex.stop <- struct{}{}
}

func (ex *ReclaimExecutor) handle() {
	reclaimed, err := ex.storage.ReclaimExpired(ex.clock.Now())
	if err != nil {
		logger.Error("error reclaiming expired claims", zap.Error(err))
		return
	}
	if reclaimed != 0 {
		logger.Info("reclaimed expired claims", zap.Int("count", reclaimed))
	}
}
