// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler runs the run's periodic background jobs — progress
// ticks, the wall-clock watchdog, and prometheus metric syncing — on a
// gocron scheduler.
//
// Adapted from the teacher's internal/taskmanager.Start/Shutdown: that
// package registers several gocron jobs (footprint updates, retention,
// compression) against a job repository. None of those jobs have a role in
// a one-shot ingestion run, but the scheduler wiring itself — NewScheduler,
// a few gocron job registrations, a single Shutdown — is exactly the shape
// this run needs: one job for the progress tick plus metric sync, and one for
// the watchdog.
package scheduler

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/osprey-dp/h5-to-dp/internal/progress"
	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

// Scheduler owns the run's background gocron jobs.
type Scheduler struct {
	s         gocron.Scheduler
	startedAt time.Time
	watchdog  time.Duration
	onTimeout func()
	fired     sync.Once
}

// Start creates and starts a Scheduler. counters is polled every tick for
// the progress line and prometheus sync; watchdog is the wall-clock run
// limit (spec §4.H) — onTimeout is invoked at most once if the run exceeds
// it. A zero watchdog disables the watchdog job entirely.
func Start(counters *progress.Counters, every int, watchdog time.Duration, onTimeout func()) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	sch := &Scheduler{s: s, startedAt: time.Now(), watchdog: watchdog, onTimeout: onTimeout}

	tickEvery := 5 * time.Second
	if _, err := s.NewJob(
		gocron.DurationJob(tickEvery),
		gocron.NewTask(func() {
			counters.EmitEvery(every, false)
			counters.Sync()
		}),
	); err != nil {
		return nil, err
	}

	if watchdog > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(30*time.Second),
			gocron.NewTask(sch.checkWatchdog),
		); err != nil {
			return nil, err
		}
	}

	s.Start()
	return sch, nil
}

func (s *Scheduler) checkWatchdog() {
	if time.Since(s.startedAt) < s.watchdog {
		return
	}
	s.fired.Do(func() {
		log.Errorf("scheduler: run exceeded watchdog limit of %s, invoking timeout handler", s.watchdog)
		if s.onTimeout != nil {
			s.onTimeout()
		}
	})
}

// Shutdown stops every scheduled job.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}
