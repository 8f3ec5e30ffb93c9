// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wirecodec implements the Avro encoding for schema.SerializedDataColumn,
// resolving spec Open Question 3 ("always implement decode, never stub it").
//
// Grounded on the teacher's goavro usage in
// internal/memorystore/avroCheckpoint.go, which builds a goavro.Codec from a
// generated schema string and reads/writes Avro Object Container Files. This
// package needs neither a container file nor a dynamically generated schema
// — a SerializedDataColumn is a single in-memory byte blob, one column at a
// time — so it uses goavro's single-record BinaryFromNative/NativeFromBinary
// pair against one fixed schema. The schema has a field for every DataValue
// arm, but this engine only produces float64 samples: Encode fills the other
// fields with defaults and Decode reads only float64Val, so non-float values
// do not round-trip.
package wirecodec

import (
	"fmt"

	"github.com/linkedin/goavro/v2"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// columnSchema is the Avro record schema for one DataColumn. kind mirrors
// schema.ValueKind; only the field matching kind is meaningful per value,
// mirroring the tagged-union shape of schema.DataValue itself.
const columnSchema = `
{
  "type": "record",
  "name": "DataColumn",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "values", "type": {"type": "array", "items": {
      "type": "record",
      "name": "DataValue",
      "fields": [
        {"name": "kind", "type": "int"},
        {"name": "stringVal", "type": "string", "default": ""},
        {"name": "boolVal", "type": "boolean", "default": false},
        {"name": "int64Val", "type": "long", "default": 0},
        {"name": "uint64Val", "type": "long", "default": 0},
        {"name": "float64Val", "type": "double", "default": 0.0},
        {"name": "bytesVal", "type": "bytes", "default": ""}
      ]
    }}}
  ]
}`

var codec *goavro.Codec

func init() {
	c, err := goavro.NewCodec(columnSchema)
	if err != nil {
		// The schema above is a fixed literal; a failure here means this
		// package itself is broken, not a runtime/data condition.
		panic(fmt.Sprintf("wirecodec: invalid embedded schema: %v", err))
	}
	codec = c
}

// Encode serializes column into the Avro binary form carried by
// SerializedDataColumn.Payload. Every DataValue is projected to float64 via
// AsFloat64 before encoding: DP's wire payloads this engine produces are
// always float64 samples (spec §3); the other fields of the Avro schema
// above are written as their defaults.
func Encode(column schema.DataColumn) (schema.SerializedDataColumn, error) {
	native := map[string]any{
		"name":   column.Name,
		"values": make([]any, len(column.Values)),
	}
	values := native["values"].([]any)
	for i, v := range column.Values {
		values[i] = map[string]any{
			"kind":       int32(schema.KindFloat64),
			"stringVal":  "",
			"boolVal":    false,
			"int64Val":   int64(0),
			"uint64Val":  int64(0),
			"float64Val": v.AsFloat64(),
			"bytesVal":   []byte{},
		}
	}

	buf, err := codec.BinaryFromNative(nil, native)
	if err != nil {
		return schema.SerializedDataColumn{}, fmt.Errorf("encoding column %s: %w", column.Name, err)
	}
	return schema.SerializedDataColumn{Name: column.Name, Payload: buf}, nil
}

// Decode reverses Encode, reconstructing a DataColumn. Every value comes
// back as a Float64 read from its float64Val field; kind and the other
// fields are ignored. It is always
// implemented: a corrupt or truncated payload returns an error rather than
// silently producing an empty column, so a caller never mistakes a decode
// failure for "no data" (spec §4.G, Open Question 3).
func Decode(serialized schema.SerializedDataColumn) (schema.DataColumn, error) {
	native, _, err := codec.NativeFromBinary(serialized.Payload)
	if err != nil {
		return schema.DataColumn{}, fmt.Errorf("decoding column %s: %w", serialized.Name, err)
	}

	rec, ok := native.(map[string]any)
	if !ok {
		return schema.DataColumn{}, fmt.Errorf("decoding column %s: unexpected native shape", serialized.Name)
	}

	name, _ := rec["name"].(string)
	rawValues, _ := rec["values"].([]any)

	values := make([]schema.DataValue, len(rawValues))
	for i, rv := range rawValues {
		m, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		f, _ := m["float64Val"].(float64)
		values[i] = schema.Float64(f)
	}

	return schema.DataColumn{Name: name, Values: values}, nil
}
