// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package progress implements component H: atomic run counters, an
// exponential-moving-average per-file timer, and a periodic progress line
// (spec §4.H). The wall-clock watchdog lives in internal/scheduler.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

// Counters holds the per-run atomic counters from spec §4.H / §5.
type Counters struct {
	FilesProcessed   atomic.Int64
	FilesFailed      atomic.Int64
	SignalsProcessed atomic.Int64
	BytesProcessed   atomic.Int64
	Errors           atomic.Int64

	total int64
	start time.Time

	emaMu       chanMutex
	emaSeconds  float64
	emaInit     bool
}

// chanMutex is a trivial, allocation-free mutex built on a 1-buffered
// channel, used only to guard the EMA float so Counters.AvgFileSeconds can be read
// without a sync.Mutex import adding another lock type to this small struct.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	c := make(chanMutex, 1)
	c <- struct{}{}
	return c
}

func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

const (
	emaAlpha        = 0.1
	emaCapSeconds   = 300 // cap at 300s per sample to resist outliers
	defaultInterval = 16  // default progress-line interval (files)
)

// NewCounters returns a fresh Counters tracking a run of `total` files.
func NewCounters(total int) *Counters {
	return &Counters{total: int64(total), start: time.Now(), emaMu: newChanMutex()}
}

// RecordFile updates the EMA and per-file counters for one completed file.
func (c *Counters) RecordFile(dur time.Duration, failed bool, signals int, bytes int64) {
	seconds := dur.Seconds()
	if seconds > emaCapSeconds {
		seconds = emaCapSeconds
	}

	c.emaMu.Lock()
	if !c.emaInit {
		c.emaSeconds = seconds
		c.emaInit = true
	} else {
		c.emaSeconds = emaAlpha*seconds + (1-emaAlpha)*c.emaSeconds
	}
	c.emaMu.Unlock()

	if failed {
		c.FilesFailed.Add(1)
	} else {
		c.FilesProcessed.Add(1)
	}
	c.SignalsProcessed.Add(int64(signals))
	c.BytesProcessed.Add(bytes)
}

// AvgFileSeconds returns the current EMA of per-file processing time.
func (c *Counters) AvgFileSeconds() float64 {
	c.emaMu.Lock()
	defer c.emaMu.Unlock()
	return c.emaSeconds
}

// Completed returns files processed + files failed.
func (c *Counters) Completed() int64 {
	return c.FilesProcessed.Load() + c.FilesFailed.Load()
}

// Line renders one progress-line snapshot: completed/total, pct, files/s,
// MB/s, signals, failures.
func (c *Counters) Line() string {
	completed := c.Completed()
	elapsed := time.Since(c.start).Seconds()
	pct := 0.0
	if c.total > 0 {
		pct = 100 * float64(completed) / float64(c.total)
	}
	filesPerSec, mbPerSec := 0.0, 0.0
	if elapsed > 0 {
		filesPerSec = float64(completed) / elapsed
		mbPerSec = float64(c.BytesProcessed.Load()) / (1024 * 1024) / elapsed
	}

	return fmt.Sprintf(
		"progress: %d/%d (%.1f%%) %.2f files/s %.2f MB/s signals=%d failures=%d errors=%d",
		completed, c.total, pct, filesPerSec, mbPerSec,
		c.SignalsProcessed.Load(), c.FilesFailed.Load(), c.Errors.Load(),
	)
}

// EmitEvery logs a progress line once every `every` completed files, and
// once unconditionally when called with force=true (run completion).
func (c *Counters) EmitEvery(every int, force bool) {
	if every <= 0 {
		every = defaultInterval
	}
	completed := c.Completed()
	if force || (completed > 0 && completed%int64(every) == 0) {
		log.Info(c.Line())
	}
}

// Prometheus metrics, registered once by RegisterMetrics and kept in sync by
// the progress tick in internal/scheduler, which calls Sync.
var (
	MetricFilesProcessed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "h5dp_files_processed_total", Help: "Files successfully ingested this run.",
	})
	MetricFilesFailed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "h5dp_files_failed_total", Help: "Files that failed ingestion this run.",
	})
	MetricSignalsProcessed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "h5dp_signals_processed_total", Help: "Signals emitted as IngestRecords this run.",
	})
	MetricErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "h5dp_errors_total", Help: "Per-record/per-signal errors this run.",
	})
	MetricAvgFileSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "h5dp_avg_file_seconds", Help: "Exponential moving average of per-file processing time.",
	})
)

// RegisterMetrics registers the package's gauges with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		MetricFilesProcessed, MetricFilesFailed, MetricSignalsProcessed, MetricErrors, MetricAvgFileSeconds,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Sync copies the atomic counters into the registered Prometheus gauges. It
// is cheap enough to call on every scheduler tick (internal/scheduler).
func (c *Counters) Sync() {
	MetricFilesProcessed.Set(float64(c.FilesProcessed.Load()))
	MetricFilesFailed.Set(float64(c.FilesFailed.Load()))
	MetricSignalsProcessed.Set(float64(c.SignalsProcessed.Load()))
	MetricErrors.Set(float64(c.Errors.Load()))
	MetricAvgFileSeconds.Set(c.AvgFileSeconds())
}
