package executor

import (
	"sync"
	"time"

	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/util"
	"go.uber.org/zap"
)

var _ Executor = new(TriggerExecutor)

// TriggerExecutor periodically evaluates the auto-enrollment rules.
type TriggerExecutor struct {
	evaluator *engine.TriggerEvaluator
	tw        *util.TickWorker
	stop      chan struct{}
}

func NewTriggerExecutor(evaluator *engine.TriggerEvaluator, interval time.Duration, wg *sync.WaitGroup) *TriggerExecutor {
	ex := &TriggerExecutor{
		evaluator: evaluator,
		stop:      make(chan struct{}),
	}
	ex.tw = util.NewTickWorker("trigger-executor", interval, ex.stop, ex.handle, wg)
	return ex
}

func (ex *TriggerExecutor) Start() {
	if ex.tw.IsRunning() {
		return
	}
	ex.tw.Start()
}

func (ex *TriggerExecutor) Stop() {
	if !ex.tw.IsRunning() {
		return
	}
	ex.stop <- struct{}{}
}

func (ex *TriggerExecutor) handle() {
	results := ex.RunOnce()
	enrolled := 0
	for _, r := range results {
		if r.Ok && !r.Skipped {
			enrolled++
		}
	}
	if len(results) != 0 {
		logger.Info("trigger pass finished", zap.Int("evaluated", len(results)), zap.Int("enrolled", enrolled))
	}
}

func (ex *TriggerExecutor) RunOnce() []model.ItemResult {
	return ex.evaluator.RunAutoEnroll()
}
