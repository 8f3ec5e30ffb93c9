// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// DataFrame pairs one DataTimestamps with one or more DataColumns sampled on
// it, the payload half of an IngestRecord.
type DataFrame struct {
	Timestamps *DataTimestamps `json:"timestamps"`
	Columns    []DataColumn    `json:"columns"`
}

// EventMetadata annotates a record with a human-readable description and the
// wall-clock span it covers (spec §4.D).
type EventMetadata struct {
	Description string    `json:"description"`
	StartTime   Timestamp `json:"startTime"`
	StopTime    Timestamp `json:"stopTime"`
}

// IngestRecord is one self-contained unit sent to DP's ingestion service.
// ClientRequestId is the server-side idempotency key (spec §3, §4.D, §9).
type IngestRecord struct {
	ProviderID      string            `json:"providerId"`
	ClientRequestID string            `json:"clientRequestId"`
	DataFrame       DataFrame         `json:"dataFrame"`
	Attributes      map[string]string `json:"attributes"`
	Tags            []string          `json:"tags"`
	EventMetadata   *EventMetadata    `json:"eventMetadata,omitempty"`
}

// ProviderRegistration is the one-time-per-run handle returned by
// RegisterProvider; every IngestRecord in the run carries its ID.
type ProviderRegistration struct {
	ProviderID string `json:"providerId"`
}

// ExceptionalStatus is the taxonomy of non-ack DP responses (spec §6).
type ExceptionalStatus string

const (
	StatusReject   ExceptionalStatus = "REJECT"
	StatusError    ExceptionalStatus = "ERROR"
	StatusEmpty    ExceptionalStatus = "EMPTY"
	StatusNotReady ExceptionalStatus = "NOT_READY"
)

// ExceptionalResult is the error-carrying counterpart to an ack.
type ExceptionalResult struct {
	Status  ExceptionalStatus `json:"status"`
	Message string            `json:"message"`
}

func (e *ExceptionalResult) Error() string {
	return string(e.Status) + ": " + e.Message
}

// Ack is the affirmative response to an ingest call.
type Ack struct {
	AcceptedRows int64 `json:"acceptedRows"`
}

// StreamSummary is the terminal response of a client-streaming ingest
// session: one ack (or error) per record sent, in order.
type StreamSummary struct {
	Acks   []Ack                `json:"acks"`
	Errors []*ExceptionalResult `json:"errors"`
}
