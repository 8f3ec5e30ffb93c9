// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64PreservesNaNAndInf(t *testing.T) {
	assert.True(t, math.IsNaN(Float64(math.NaN()).AsFloat64()))
	assert.True(t, math.IsInf(Float64(math.Inf(1)).AsFloat64(), 1))
	assert.True(t, math.IsInf(Float64(math.Inf(-1)).AsFloat64(), -1))
	assert.Equal(t, 3.5, Float64(3.5).AsFloat64())
}

func TestAsFloat64NumericArms(t *testing.T) {
	assert.Equal(t, 7.0, DataValue{Kind: KindInt32, Int32Val: 7}.AsFloat64())
	assert.Equal(t, -3.0, DataValue{Kind: KindInt64, Int64Val: -3}.AsFloat64())
	assert.Equal(t, 9.0, DataValue{Kind: KindUint32, Uint32Val: 9}.AsFloat64())
	assert.Equal(t, 11.0, DataValue{Kind: KindUint64, Uint64Val: 11}.AsFloat64())
	assert.Equal(t, float64(float32(1.5)), DataValue{Kind: KindFloat32, Float32Val: 1.5}.AsFloat64())
	assert.Equal(t, 1.0, DataValue{Kind: KindBool, BoolVal: true}.AsFloat64())
	assert.Equal(t, 0.0, DataValue{Kind: KindBool, BoolVal: false}.AsFloat64())
}

func TestAsFloat64StringArm(t *testing.T) {
	assert.Equal(t, 42.5, DataValue{Kind: KindString, StringVal: "42.5"}.AsFloat64())
	assert.True(t, math.IsNaN(DataValue{Kind: KindString, StringVal: "not-a-number"}.AsFloat64()))
	assert.True(t, math.IsNaN(DataValue{Kind: KindString, StringVal: ""}.AsFloat64()))
}

func TestAsFloat64UnknownArmIsNaNNeverZero(t *testing.T) {
	v := DataValue{Kind: KindStructure}
	assert.True(t, math.IsNaN(v.AsFloat64()), "an unprojectable arm must never silently read as 0")
}
