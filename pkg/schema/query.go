// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// Bucket is a server-side fragment of a time series returned by the query
// service: a DataTimestamps paired with a DataColumn, possibly still
// serialized.
type Bucket struct {
	PVName               string                `json:"pvName"`
	Timestamps           *DataTimestamps       `json:"timestamps"`
	Column               *DataColumn           `json:"column,omitempty"`
	SerializedColumn      *SerializedDataColumn `json:"serializedColumn,omitempty"`
}

// QuerySpec describes a time-windowed pull of one or more PVs.
type QuerySpec struct {
	Begin           Timestamp `json:"begin"`
	End             Timestamp `json:"end"`
	PVNames         []string  `json:"pvNames"`
	UseSerialized   bool      `json:"useSerialized"`
}

// QueryResponse is the unary/streamed response shape: zero or more buckets.
type QueryResponse struct {
	Buckets []Bucket             `json:"buckets"`
	Error   *ExceptionalResult   `json:"error,omitempty"`
}

// CursorOp is the bidirectional query pull operation (spec §4.G / §6).
type CursorOp int

const (
	CursorNext CursorOp = iota
)

// DecodedSeries is a decoded, paired (timestamp, value) sequence — the
// output of Decode (spec §4.G "Decoding a bucket").
type DecodedSeries struct {
	PVName     string
	Timestamps []Timestamp
	Values     []float64
}

// Statistics holds min/max/mean computed over finite values only (spec §4.G,
// invariant 4: never NaN when at least one finite value exists).
type Statistics struct {
	Min         float64
	Max         float64
	Mean        float64
	TotalPoints int
	FinitePoints int
}

// PVInfo is one entry of a QueryPvMetadata response.
type PVInfo struct {
	Name  string     `json:"name"`
	Info  SignalInfo `json:"info"`
}

// ProviderInfo and ProviderMetadata mirror the remaining read-only RPCs in
// §6 (QueryProviders / QueryProviderMetadata); they are simple records with
// no behavior of their own.
type ProviderInfo struct {
	ProviderID  string `json:"providerId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ProviderMetadata struct {
	ProviderInfo
	Tags       []string          `json:"tags,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RequestStatus is one row of a QueryRequestStatus response: the server's
// bookkeeping for one previously-ingested ClientRequestID.
type RequestStatus struct {
	ClientRequestID string            `json:"clientRequestId"`
	ProviderID      string            `json:"providerId"`
	Status          ExceptionalStatus `json:"status,omitempty"`
	Message         string            `json:"message,omitempty"`
}
