// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

func TestRecordFileUpdatesCounters(t *testing.T) {
	c := NewCounters(10)
	c.RecordFile(100*time.Millisecond, false, 5, 1024)
	c.RecordFile(200*time.Millisecond, true, 0, 0)

	assert.EqualValues(t, 1, c.FilesProcessed.Load())
	assert.EqualValues(t, 1, c.FilesFailed.Load())
	assert.EqualValues(t, 5, c.SignalsProcessed.Load())
	assert.EqualValues(t, 1024, c.BytesProcessed.Load())
	assert.EqualValues(t, 2, c.Completed())
}

func TestAvgFileSecondsIsExponentialMovingAverage(t *testing.T) {
	c := NewCounters(1)
	c.RecordFile(10*time.Second, false, 0, 0)
	assert.InDelta(t, 10.0, c.AvgFileSeconds(), 0.001, "first sample seeds the EMA directly")

	c.RecordFile(0, false, 0, 0)
	// ema = 0.1*0 + 0.9*10 = 9
	assert.InDelta(t, 9.0, c.AvgFileSeconds(), 0.001)
}

func TestAvgFileSecondsCapsOutliers(t *testing.T) {
	c := NewCounters(1)
	c.RecordFile(10*time.Minute, false, 0, 0) // far beyond the 300s cap
	assert.InDelta(t, 300.0, c.AvgFileSeconds(), 0.001)
}

func TestLineReportsPercentAndRates(t *testing.T) {
	c := NewCounters(4)
	c.RecordFile(time.Millisecond, false, 3, 2048)
	c.RecordFile(time.Millisecond, false, 3, 2048)

	line := c.Line()
	assert.Contains(t, line, "2/4")
	assert.Contains(t, line, "signals=6")
}

func TestEmitEveryOnlyFiresOnInterval(t *testing.T) {
	var buf bytes.Buffer
	log.InfoLog.SetOutput(&buf)
	defer log.InfoLog.SetOutput(log.InfoWriter)

	c := NewCounters(10)
	// Nothing is logged unless force is set or `every` divides the current
	// completed count (and that count is non-zero).
	c.EmitEvery(5, false) // 0 completed
	assert.Empty(t, buf.String())
	c.RecordFile(time.Millisecond, false, 1, 1)
	c.EmitEvery(5, false) // 1 completed, not a multiple of 5
	assert.Empty(t, buf.String())
	c.EmitEvery(5, true)
	assert.Contains(t, buf.String(), "1/10")
}

func TestRegisterMetricsAndSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))

	c := NewCounters(1)
	c.RecordFile(time.Second, false, 2, 100)
	c.Sync()

	count, err := testGatherMetric(reg, "h5dp_files_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1.0, count)
}

func testGatherMetric(reg *prometheus.Registry, name string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue(), nil
		}
	}
	return 0, nil
}
