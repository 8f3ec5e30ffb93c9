// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesEveryJobExactlyOnce(t *testing.T) {
	const total = 500
	var processed atomic.Int64
	var mu sync.Mutex
	seen := map[int]bool{}

	pool := New(4, func(job Job) {
		processed.Add(1)
		mu.Lock()
		seen[job.Index] = true
		mu.Unlock()
	})

	for i := 0; i < total; i++ {
		pool.Submit(Job{Index: i})
	}
	pool.Stop()

	assert.EqualValues(t, total, processed.Load())
	assert.Len(t, seen, total)
}

func TestPoolSingleWorkerBusyOthersStealWork(t *testing.T) {
	var started, finished atomic.Int64
	release := make(chan struct{})

	pool := New(3, func(job Job) {
		started.Add(1)
		if job.Index == 0 {
			<-release // worker 0 blocks on the first job it claims
		}
		finished.Add(1)
	})

	pool.Submit(Job{Index: 0})
	// give worker 0 time to claim job 0 and block
	time.Sleep(20 * time.Millisecond)

	for i := 1; i < 20; i++ {
		pool.Submit(Job{Index: i})
	}

	require.Eventually(t, func() bool {
		return finished.Load() == 19
	}, time.Second, time.Millisecond, "other workers must steal and finish while worker 0 is blocked")

	close(release)
	pool.Stop()
	assert.EqualValues(t, 20, finished.Load())
}

func TestPoolRecoversFromHandlerPanic(t *testing.T) {
	var processedAfterPanic atomic.Bool

	pool := New(2, func(job Job) {
		if job.Index == 0 {
			panic("boom")
		}
		processedAfterPanic.Store(true)
	})

	pool.Submit(Job{Index: 0})
	pool.Submit(Job{Index: 1})
	pool.Stop()

	assert.True(t, processedAfterPanic.Load(), "a panic in one job must not stop the worker from processing the next")
}

func TestNewClampsWorkerCountToAtLeastOne(t *testing.T) {
	var processed atomic.Int64
	pool := New(0, func(Job) { processed.Add(1) })
	pool.Submit(Job{Index: 1})
	pool.Stop()
	assert.EqualValues(t, 1, processed.Load())
}
