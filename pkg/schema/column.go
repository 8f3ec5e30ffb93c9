// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// DataColumn is a named, ordered sequence of DataValue — one signal's worth
// of samples, paired positionally with a DataTimestamps.
type DataColumn struct {
	Name   string      `json:"name"`
	Values []DataValue `json:"values"`
}

// SerializedDataColumn is the wire-opaque form of a DataColumn: a byte blob
// produced by a codec (see internal/wirecodec) plus the column name needed to
// route it without decoding. Per spec Open Question 3, decoding this type is
// always implemented — never stubbed — by every consumer in this engine.
type SerializedDataColumn struct {
	Name    string `json:"name"`
	Payload []byte `json:"payload"`
}
