package util

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickWorkerRunsAndStops(t *testing.T) {
	var wg sync.WaitGroup
	var ticks atomic.Int64
	stop := make(chan struct{})
	tw := NewTickWorker("test-worker", 5*time.Millisecond, stop, func() {
		ticks.Add(1)
	}, &wg)

	tw.Start()
	require.True(t, tw.IsRunning())

	require.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, time.Second, time.Millisecond)

	tw.Stop()
	wg.Wait()
	require.False(t, tw.IsRunning())
}

func TestTickWorkerRunningReadableDuringShutdown(t *testing.T) {
	var wg sync.WaitGroup
	stop := make(chan struct{})
	tw := NewTickWorker("test-worker", time.Millisecond, stop, func() {}, &wg)
	tw.Start()

	// readers overlapping the stop must not race the worker goroutine
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 100; j++ {
				tw.IsRunning()
			}
		}()
	}
	tw.Stop()
	readers.Wait()
	wg.Wait()
	require.False(t, tw.IsRunning())
}
