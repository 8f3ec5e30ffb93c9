// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package h5reader implements component B: opening one HDF5 file, extracting
// its timestamp datasets and signal datasets, and closing it again — all
// while holding the single process-wide lock the HDF5 C library requires
// (spec §4.B, §5, §9 "Non-reentrant native library -> global lock").
package h5reader

import (
	"fmt"
	"math"
	"os"
	"sync"

	"gonum.org/v1/hdf5"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// h5Lock is the single process-wide mutex serializing every HDF5 library
// call. It must never be held across anything other than the read of one
// file (spec invariant 7: "Every HDF5 library call occurs while the
// process-global HDF5 lock is held").
var h5Lock sync.Mutex

const (
	minFileSize = 1024                  // 1 KiB
	maxFileSize = 10 * 1024 * 1024 * 1024 // 10 GiB
	maxSamples  = 10_000_000             // N > 1e7 rejected

	secondsDatasetName     = "secondsPastEpoch"
	nanosecondsDatasetName = "nanoseconds"

	axisTolerance = 0.01 // +/-1% axis-length match tolerance
)

// RawSignal is one dataset read out of an H5 file, before name-parsing or
// request-building.
type RawSignal struct {
	Name        string
	Values      []float64
	Label       string
	MatlabClass string
	// LengthMismatch records whether this signal's chosen axis required the
	// within-1%-of-N fallback rather than an exact length match.
	LengthMismatch bool
}

// FileData is everything extracted from one H5 file: the shared timestamp
// sequence and every signal read from it.
type FileData struct {
	Timestamps *schema.DataTimestamps
	Signals    []RawSignal
}

// ReadFile opens path, validates its size, reads the timestamp datasets and
// up to maxSignals other root-level datasets, and closes the file — all
// inside the single global HDF5 lock. Any failure aborts this file only; the
// lock is always released via a deferred unlock (the "scoped guard" of spec
// §4.B).
func ReadFile(path string, maxSignals int) (*FileData, error) {
	if err := checkSize(path); err != nil {
		return nil, err
	}

	h5Lock.Lock()
	defer h5Lock.Unlock()

	return readFileLocked(path, maxSignals)
}

func checkSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size < minFileSize {
		return fmt.Errorf("%s: size %d below minimum %d bytes", path, size, minFileSize)
	}
	if size > maxFileSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d bytes", path, size, maxFileSize)
	}
	return nil
}

func readFileLocked(path string, maxSignals int) (*FileData, error) {
	cache := hdf5.NewPropList(hdf5.P_FILE_ACCESS)
	defer cache.Close()
	_ = cache.SetCache(0, 521, 4*1024*1024, 0.75) // ~4MiB chunk cache, tuned for libhdf5

	f, err := hdf5.OpenFileWithProplist(path, hdf5.F_ACC_RDONLY, cache)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	seconds, err := readUint64Dataset(f, secondsDatasetName)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", path, secondsDatasetName, err)
	}
	n := len(seconds)
	if n == 0 {
		return nil, fmt.Errorf("%s: %s has zero samples", path, secondsDatasetName)
	}
	if n > maxSamples {
		return nil, fmt.Errorf("%s: %s has %d samples, exceeds maximum %d", path, secondsDatasetName, n, maxSamples)
	}

	nanos, err := readUint64Dataset(f, nanosecondsDatasetName)
	if err != nil {
		nanos = make([]uint64, n)
	} else if len(nanos) != n {
		log.Warnf("%s: %s length %d does not match %s length %d, zero-filling", path, nanosecondsDatasetName, len(nanos), secondsDatasetName, n)
		nanos = make([]uint64, n)
	}

	samples := make([]schema.Timestamp, n)
	for i := range samples {
		samples[i] = schema.Timestamp{EpochSeconds: seconds[i], Nanoseconds: nanos[i]}
	}
	dt, usedFallback := schema.InferDataTimestamps(samples)
	if usedFallback {
		log.Warnf("%s: inferred sampling period out of plausible range, substituted 1s default", path)
	}

	names, err := listDatasets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: listing datasets: %w", path, err)
	}

	var signals []RawSignal
	for _, name := range names {
		if name == secondsDatasetName || name == nanosecondsDatasetName {
			continue
		}
		if len(signals) >= maxSignals {
			log.Warnf("%s: signal count capped at %d", path, maxSignals)
			break
		}

		sig, err := readSignal(f, name, n)
		if err != nil {
			log.Warnf("%s: skipping signal %s: %v", path, name, err)
			continue
		}
		signals = append(signals, sig)
	}

	return &FileData{Timestamps: &dt, Signals: signals}, nil
}

func readSignal(f *hdf5.File, name string, n int) (RawSignal, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return RawSignal{}, err
	}
	defer ds.Close()

	dims, err := datasetDims(ds)
	if err != nil {
		return RawSignal{}, err
	}

	axis, length, mismatch, err := chooseAxis(dims, n)
	if err != nil {
		return RawSignal{}, err
	}

	values, err := readAxisAsFloat64(ds, dims, axis, length)
	if err != nil {
		// Final fallback: preserve cardinality with a NaN-filled column
		// rather than dropping the signal (spec Open Question 1).
		log.Warnf("dataset %s: %v, emitting NaN-filled column", name, err)
		values = nanFilled(n)
	}
	if len(values) != n {
		// A within-tolerance axis is NaN-padded (or truncated) to the
		// timestamp count so len(values) == len(timestamps) always holds.
		padded := nanFilled(n)
		copy(padded, values)
		values = padded
	}

	label, _ := readStringAttr(ds, "label")
	matlabClass, _ := readStringAttr(ds, "MATLAB_class")

	return RawSignal{
		Name:           name,
		Values:         values,
		Label:          label,
		MatlabClass:    matlabClass,
		LengthMismatch: mismatch,
	}, nil
}

// chooseAxis picks the dataset dimension whose length equals n, or else the
// one closest to n within axisTolerance (reported as a mismatch); otherwise
// the largest axis is returned with mismatch set and an error, and readSignal
// skips the dataset (spec §4.B step 7).
func chooseAxis(dims []int, n int) (axis int, length int, mismatch bool, err error) {
	best, bestAxis := -1, -1
	near, nearAxis := -1, -1
	tolerance := float64(n) * axisTolerance
	for i, d := range dims {
		if d == n {
			return i, d, false, nil
		}
		if diff := absInt(d - n); float64(diff) <= tolerance && (nearAxis < 0 || diff < absInt(near-n)) {
			near, nearAxis = d, i
		}
		if best < 0 || d > best {
			best, bestAxis = d, i
		}
	}
	if bestAxis < 0 {
		return 0, 0, false, fmt.Errorf("dataset has no dimensions")
	}

	if nearAxis >= 0 {
		return nearAxis, near, true, nil
	}

	return bestAxis, best, true, fmt.Errorf("no axis within %.0f%% of expected length %d (largest: %d)", axisTolerance*100, n, best)
}

func nanFilled(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
