// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/internal/progress"
)

func TestStartAndShutdownLifecycle(t *testing.T) {
	counters := progress.NewCounters(1)
	s, err := Start(counters, 16, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())
}

func TestCheckWatchdogInvokesOnTimeoutPastDeadline(t *testing.T) {
	var fired atomic.Bool
	s := &Scheduler{startedAt: time.Now().Add(-2 * time.Second), watchdog: time.Second, onTimeout: func() { fired.Store(true) }}
	s.checkWatchdog()
	assert.True(t, fired.Load())
}

func TestCheckWatchdogDoesNotFireBeforeDeadline(t *testing.T) {
	var fired atomic.Bool
	s := &Scheduler{startedAt: time.Now(), watchdog: time.Hour, onTimeout: func() { fired.Store(true) }}
	s.checkWatchdog()
	assert.False(t, fired.Load())
}
