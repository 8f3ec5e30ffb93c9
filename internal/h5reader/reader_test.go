// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package h5reader

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseAxisExactMatch(t *testing.T) {
	axis, length, mismatch, err := chooseAxis([]int{3, 1000}, 1000)
	assert.NoError(t, err)
	assert.Equal(t, 1, axis)
	assert.Equal(t, 1000, length)
	assert.False(t, mismatch)
}

func TestChooseAxisWithinTolerance(t *testing.T) {
	// 995 is within 1% of 1000 (tolerance = 10)
	axis, length, mismatch, err := chooseAxis([]int{995}, 1000)
	assert.NoError(t, err)
	assert.Equal(t, 0, axis)
	assert.Equal(t, 995, length)
	assert.True(t, mismatch)
}

func TestChooseAxisOutsideToleranceErrors(t *testing.T) {
	_, _, mismatch, err := chooseAxis([]int{500}, 1000)
	assert.Error(t, err)
	assert.True(t, mismatch)
}

func TestChooseAxisNoDimensionsErrors(t *testing.T) {
	_, _, _, err := chooseAxis(nil, 1000)
	assert.Error(t, err)
}

func TestChooseAxisPicksLargestWhenNoneMatch(t *testing.T) {
	axis, length, mismatch, err := chooseAxis([]int{10, 900, 50}, 1000)
	assert.Error(t, err)
	assert.Equal(t, 1, axis)
	assert.Equal(t, 900, length)
	assert.True(t, mismatch)
}

func TestNanFilledLength(t *testing.T) {
	out := nanFilled(5)
	assert.Len(t, out, 5)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestAbsInt(t *testing.T) {
	assert.Equal(t, 5, absInt(-5))
	assert.Equal(t, 5, absInt(5))
	assert.Equal(t, 0, absInt(0))
}

func TestToFloat64AndInt32ToFloat64(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5}, toFloat64([]float32{1, 2.5}))
	assert.Equal(t, []float64{-3, 4}, int32ToFloat64([]int32{-3, 4}))
}
