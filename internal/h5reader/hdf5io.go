// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Low-level helpers isolating the actual gonum.org/v1/hdf5 cgo calls from
// the orchestration logic in reader.go, so the lock-acquisition and
// fallback-cascade logic above reads independently of libhdf5's API shape.
package h5reader

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// readUint64Dataset reads a 1-D uint64 dataset by name.
func readUint64Dataset(f *hdf5.File, name string) ([]uint64, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	dims, err := datasetDims(ds)
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("%s: expected 1-D dataset, got %d dims", name, len(dims))
	}

	buf := make([]uint64, dims[0])
	if err := ds.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// datasetDims returns the simple extent dimensions of ds.
func datasetDims(ds *hdf5.Dataset) ([]int, error) {
	space := ds.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}

	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	if len(out) == 0 {
		out = []int{1}
	}
	return out, nil
}

// listDatasets enumerates the names of every dataset directly in the file's
// root group (spec §4.B step 6).
func listDatasets(f *hdf5.File) ([]string, error) {
	rootGroup, err := f.OpenGroup("/")
	if err != nil {
		return nil, err
	}
	defer rootGroup.Close()

	n, err := rootGroup.NumObjects()
	if err != nil {
		return nil, err
	}

	var names []string
	for i := uint(0); i < n; i++ {
		name, err := rootGroup.ObjectNameByIndex(i)
		if err != nil {
			continue
		}
		objType, err := rootGroup.ObjectTypeByIndex(i)
		if err != nil || objType != hdf5.H5G_DATASET {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// readAxisAsFloat64 reads the chosen axis of ds as float64, preferring a
// native f64 read and falling back through f32 and i32 (spec §4.B step 7).
// It returns an error only when every representation fails; the caller then
// applies the final NaN-filled fallback.
func readAxisAsFloat64(ds *hdf5.Dataset, dims []int, axis, length int) ([]float64, error) {
	if len(dims) == 1 {
		return readFlatAsFloat64(ds, length)
	}
	return readSlicedAxisAsFloat64(ds, dims, axis, length)
}

func readFlatAsFloat64(ds *hdf5.Dataset, length int) ([]float64, error) {
	if buf, err := readFloat64(ds, length); err == nil {
		return buf, nil
	}
	if buf, err := readFloat32(ds, length); err == nil {
		return toFloat64(buf), nil
	}
	if buf, err := readInt32(ds, length); err == nil {
		return int32ToFloat64(buf), nil
	}
	return nil, fmt.Errorf("no supported native type for dataset")
}

// readSlicedAxisAsFloat64 handles the 2-D-with-a-singleton case from spec
// §4.B step 7: read the full buffer in its native type, then project out the
// chosen axis.
func readSlicedAxisAsFloat64(ds *hdf5.Dataset, dims []int, axis, length int) ([]float64, error) {
	total := 1
	for _, d := range dims {
		total *= d
	}

	flat, err := readFlatAsFloat64(ds, total)
	if err != nil {
		return nil, err
	}

	if axis == len(dims)-1 {
		stride := total / length
		out := make([]float64, length)
		for i := range out {
			out[i] = flat[i*stride]
		}
		return out, nil
	}

	out := make([]float64, length)
	copy(out, flat[:length])
	return out, nil
}

func readFloat64(ds *hdf5.Dataset, length int) ([]float64, error) {
	buf := make([]float64, length)
	if err := ds.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFloat32(ds *hdf5.Dataset, length int) ([]float32, error) {
	buf := make([]float32, length)
	if err := ds.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readInt32(ds *hdf5.Dataset, length int) ([]int32, error) {
	buf := make([]int32, length)
	if err := ds.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func int32ToFloat64(in []int32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// readStringAttr reads an optional string attribute from a dataset.
func readStringAttr(ds *hdf5.Dataset, name string) (string, bool) {
	attr, err := ds.OpenAttribute(name)
	if err != nil {
		return "", false
	}
	defer attr.Close()

	var value string
	if err := attr.Read(&value, nil); err != nil {
		return "", false
	}
	return value, true
}
