// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wirecodec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	column := schema.DataColumn{
		Name: "BPMS_LI21_233_X",
		Values: []schema.DataValue{
			schema.Float64(1.5),
			schema.Float64(math.NaN()),
			schema.Float64(math.Inf(1)),
			schema.Float64(math.Inf(-1)),
			schema.Float64(-42.0),
		},
	}

	serialized, err := Encode(column)
	require.NoError(t, err)
	assert.Equal(t, column.Name, serialized.Name)
	assert.NotEmpty(t, serialized.Payload)

	decoded, err := Decode(serialized)
	require.NoError(t, err)
	assert.Equal(t, column.Name, decoded.Name)
	require.Len(t, decoded.Values, len(column.Values))

	assert.Equal(t, 1.5, decoded.Values[0].AsFloat64())
	assert.True(t, math.IsNaN(decoded.Values[1].AsFloat64()))
	assert.True(t, math.IsInf(decoded.Values[2].AsFloat64(), 1))
	assert.True(t, math.IsInf(decoded.Values[3].AsFloat64(), -1))
	assert.Equal(t, -42.0, decoded.Values[4].AsFloat64())
}

func TestEncodeEmptyColumn(t *testing.T) {
	serialized, err := Encode(schema.DataColumn{Name: "empty"})
	require.NoError(t, err)

	decoded, err := Decode(serialized)
	require.NoError(t, err)
	assert.Equal(t, "empty", decoded.Name)
	assert.Empty(t, decoded.Values)
}

func TestDecodeCorruptPayloadErrors(t *testing.T) {
	_, err := Decode(schema.SerializedDataColumn{Name: "bad", Payload: []byte{0xff, 0xfe, 0xfd}})
	assert.Error(t, err)
}
