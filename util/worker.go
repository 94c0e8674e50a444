package util

import (
	"sync"

	"github.com/mohitkumar/flowup/logger"
	"go.uber.org/zap"
)

type Task any

// Worker drains a buffered task channel with a fixed number of goroutines.
// Handler errors are logged, never propagated; a task failure must not take
// down the pool.
type Worker struct {
	name        string
	concurrency int
	stop        chan struct{}
	wg          *sync.WaitGroup
	handler     func(Task) error
	taskChan    chan Task
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Task) error, capacity int, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		taskChan:    make(chan Task, capacity),
		name:        name,
		wg:          wg,
		stop:        make(chan struct{}),
		handler:     handler,
		concurrency: concurrency,
	}
}

func (w *Worker) Start() {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case task := <-w.taskChan:
					err := w.handler(task)
					if err != nil {
						logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Any("task", task), zap.Error(err))
					}
				case <-w.stop:
					logger.Info("stopping worker", zap.String("worker", w.name))
					return
				}
			}
		}()
	}
}

func (w *Worker) Sender() chan<- Task {
	return w.taskChan
}

func (w *Worker) Stop() {
	close(w.stop)
}
