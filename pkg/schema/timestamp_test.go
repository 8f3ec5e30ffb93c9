// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec, nanos uint64) Timestamp {
	return Timestamp{EpochSeconds: sec, Nanoseconds: nanos}
}

func TestInferDataTimestampsRegular(t *testing.T) {
	samples := make([]Timestamp, 20)
	for i := range samples {
		samples[i] = ts(1700000000+uint64(i), 0)
	}

	dt, usedFallback := InferDataTimestamps(samples)
	require.True(t, dt.Regular)
	assert.False(t, usedFallback)
	assert.Equal(t, uint64(time.Second), dt.Clock.PeriodNanos)
	assert.Equal(t, uint32(20), dt.Clock.Count)
	assert.Equal(t, samples, dt.Expand())
}

func TestInferDataTimestampsIrregularJitter(t *testing.T) {
	samples := []Timestamp{
		ts(1700000000, 0),
		ts(1700000001, 0),
		ts(1700000002, 500_000), // 1.0005s gap, 0.5ms off the 1s period, well outside tolerance
		ts(1700000003, 500_000),
	}

	dt, _ := InferDataTimestamps(samples)
	assert.False(t, dt.Regular)
	assert.Equal(t, TimestampList(samples), dt.List)
}

func TestInferDataTimestampsImplausiblePeriodFallsBack(t *testing.T) {
	// A sub-100ns first gap is implausible; the whole series should be
	// re-evaluated against the 1s fallback period instead.
	samples := []Timestamp{
		ts(1700000000, 0),
		ts(1700000000, 50),
		ts(1700000001, 40),
	}

	dt, usedFallback := InferDataTimestamps(samples)
	assert.True(t, usedFallback)
	// the fallback period does not actually match these gaps, so the series
	// is irregular once judged against it
	assert.False(t, dt.Regular)
}

func TestInferDataTimestampsSingleSample(t *testing.T) {
	dt, usedFallback := InferDataTimestamps([]Timestamp{ts(1700000000, 0)})
	require.True(t, dt.Regular)
	assert.False(t, usedFallback)
	assert.Equal(t, uint32(1), dt.Clock.Count)
	assert.Equal(t, uint64(time.Second), dt.Clock.PeriodNanos)
}

func TestInferDataTimestampsEmpty(t *testing.T) {
	dt, usedFallback := InferDataTimestamps(nil)
	assert.False(t, dt.Regular)
	assert.False(t, usedFallback)
	assert.Empty(t, dt.Expand())
}

func TestInferDataTimestampsNonMonotonicIsIrregular(t *testing.T) {
	samples := []Timestamp{ts(1700000002, 0), ts(1700000001, 0), ts(1700000003, 0)}
	dt, _ := InferDataTimestamps(samples)
	assert.False(t, dt.Regular)
}

func TestSamplingClockLastTime(t *testing.T) {
	c := SamplingClock{StartTime: ts(1700000000, 0), PeriodNanos: uint64(time.Second), Count: 5}
	assert.Equal(t, ts(1700000004, 0), c.LastTime())

	empty := SamplingClock{StartTime: ts(1700000000, 0)}
	assert.Equal(t, empty.StartTime, empty.LastTime())
}

func TestTimestampListMonotonic(t *testing.T) {
	assert.True(t, TimestampList{ts(1, 0), ts(1, 0), ts(2, 0)}.Monotonic())
	assert.False(t, TimestampList{ts(2, 0), ts(1, 0)}.Monotonic())
}

func TestTimestampValid(t *testing.T) {
	assert.True(t, ts(1700000000, 0).Valid())
	assert.False(t, ts(0, 0).Valid(), "epoch zero is not valid")
	assert.False(t, ts(1700000000, 1_000_000_000).Valid(), "nanoseconds must be < 1e9")
}
