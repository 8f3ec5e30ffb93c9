// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"fmt"
	"time"
)

// maxPlausibleYear bounds sanity checks on decoded epoch seconds; anything
// past it is almost certainly a unit or byte-order mistake upstream.
const maxPlausibleYear = 2100

// Timestamp is a seconds+nanoseconds pair, the wire-level time representation
// shared by every signal sample and DP record.
type Timestamp struct {
	EpochSeconds uint64 `json:"epochSeconds"`
	Nanoseconds  uint64 `json:"nanoseconds"`
}

// Valid reports whether t obeys the nanosecond range invariant and falls
// within a plausible calendar range.
func (t Timestamp) Valid() bool {
	if t.Nanoseconds >= 1e9 {
		return false
	}
	if t.EpochSeconds == 0 {
		return false
	}
	return t.Time().Year() < maxPlausibleYear
}

// Time converts t to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.EpochSeconds), int64(t.Nanoseconds)).UTC()
}

// Sub returns t - o as a signed nanosecond duration.
func (t Timestamp) Sub(o Timestamp) int64 {
	return int64(t.EpochSeconds-o.EpochSeconds)*int64(time.Second) + int64(t.Nanoseconds) - int64(o.Nanoseconds)
}

// AddNanos returns t advanced by n nanoseconds (n may not be negative enough
// to underflow EpochSeconds in any caller of this package).
func (t Timestamp) AddNanos(n uint64) Timestamp {
	total := t.Nanoseconds + n
	return Timestamp{
		EpochSeconds: t.EpochSeconds + total/1e9,
		Nanoseconds:  total % 1e9,
	}
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%s.%09d", t.Time().Format("2006-01-02 15:04:05"), t.Nanoseconds)
}

// SamplingClock is the compact representation of a regularly spaced series:
// count samples starting at StartTime, PeriodNanos apart.
type SamplingClock struct {
	StartTime   Timestamp `json:"startTime"`
	PeriodNanos uint64    `json:"periodNanos"`
	Count       uint32    `json:"count"`
}

// Expand materializes the clock into an explicit, ordered list of timestamps.
func (c SamplingClock) Expand() []Timestamp {
	out := make([]Timestamp, c.Count)
	for i := range out {
		out[i] = c.StartTime.AddNanos(c.PeriodNanos * uint64(i))
	}
	return out
}

// LastTime returns StartTime + PeriodNanos*(Count-1), i.e. the logical time
// of the final sample. Used by the invariant check in spec §8.2.
func (c SamplingClock) LastTime() Timestamp {
	if c.Count == 0 {
		return c.StartTime
	}
	return c.StartTime.AddNanos(c.PeriodNanos * uint64(c.Count-1))
}

// TimestampList is the representation used for irregular sampling: an
// explicit, monotonically non-decreasing sequence.
type TimestampList []Timestamp

// Monotonic reports whether the list is non-decreasing.
func (l TimestampList) Monotonic() bool {
	for i := 1; i < len(l); i++ {
		if l[i].Sub(l[i-1]) < 0 {
			return false
		}
	}
	return true
}

// DataTimestamps is the tagged SamplingClock|TimestampList variant. Exactly
// one of Clock or List is populated; Regular reports which.
type DataTimestamps struct {
	Regular bool
	Clock   SamplingClock
	List    TimestampList
}

// NewRegular builds a DataTimestamps backed by a SamplingClock.
func NewRegular(c SamplingClock) DataTimestamps {
	return DataTimestamps{Regular: true, Clock: c}
}

// NewIrregular builds a DataTimestamps backed by an explicit TimestampList.
func NewIrregular(l TimestampList) DataTimestamps {
	return DataTimestamps{Regular: false, List: l}
}

// Len returns the number of samples represented.
func (d DataTimestamps) Len() int {
	if d.Regular {
		return int(d.Clock.Count)
	}
	return len(d.List)
}

// Expand materializes every timestamp, generating them from the clock when
// regular and returning the list verbatim otherwise.
func (d DataTimestamps) Expand() []Timestamp {
	if d.Regular {
		return d.Clock.Expand()
	}
	return d.List
}

// regularityToleranceNanos is the ±1µs tolerance from spec §3's regularity test.
const regularityToleranceNanos = 1000

// minRegularityCheckSamples is K in "every adjacent period in the first K (>=10) samples".
const minRegularityCheckSamples = 10

// fallbackPeriodNanos is substituted when an inferred period falls outside
// [minPlausiblePeriodNanos, maxPlausiblePeriodNanos].
const fallbackPeriodNanos = uint64(time.Second)

const (
	minPlausiblePeriodNanos = 100
	maxPlausiblePeriodNanos = uint64(10 * time.Second)
)

// InferDataTimestamps classifies a raw timestamp sequence as regular or
// irregular per spec §3/§4.B's regularity test, and returns the corresponding
// DataTimestamps plus whether a fallback period had to be substituted.
func InferDataTimestamps(samples []Timestamp) (dt DataTimestamps, usedFallbackPeriod bool) {
	n := len(samples)
	if n == 0 {
		return NewIrregular(nil), false
	}
	if n == 1 {
		return NewRegular(SamplingClock{StartTime: samples[0], PeriodNanos: fallbackPeriodNanos, Count: 1}), false
	}

	period := samples[1].Sub(samples[0])
	if period < 0 {
		return NewIrregular(TimestampList(samples)), false
	}
	periodNanos := uint64(period)

	if periodNanos < minPlausiblePeriodNanos || periodNanos > maxPlausiblePeriodNanos {
		periodNanos = fallbackPeriodNanos
		usedFallbackPeriod = true
	}

	checks := n - 1
	if checks > minRegularityCheckSamples {
		checks = minRegularityCheckSamples
	}
	for i := 1; i <= checks; i++ {
		gap := samples[i].Sub(samples[i-1])
		if gap < 0 {
			return NewIrregular(TimestampList(samples)), usedFallbackPeriod
		}
		diff := int64(periodNanos) - gap
		if diff < 0 {
			diff = -diff
		}
		if diff > regularityToleranceNanos {
			return NewIrregular(TimestampList(samples)), usedFallbackPeriod
		}
	}

	return NewRegular(SamplingClock{
		StartTime:   samples[0],
		PeriodNanos: periodNanos,
		Count:       uint32(n),
	}), usedFallbackPeriod
}
