// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// SignalFileMetadata is derived from the H5 filename convention
// ORIGIN_PATHWAY_YYYYMMDD_HHMMSS[_PROJECT].h5. Parsing is best-effort: a file
// that doesn't match the convention gets "unknown_*" defaults rather than
// failing the file (spec §3).
type SignalFileMetadata struct {
	Origin  string `json:"origin"`
	Pathway string `json:"pathway"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Project string `json:"project,omitempty"`
}

// SignalInfo is the structured identity of one PV, as derived by the
// signal-name parser (spec §4.C) plus the units/type enrichment.
type SignalInfo struct {
	FullName        string `json:"fullName"`
	Device          string `json:"device"`
	DeviceArea      string `json:"deviceArea"`
	DeviceLocation  string `json:"deviceLocation"`
	DeviceAttribute string `json:"deviceAttribute"`
	SignalType      string `json:"signalType"`
	Units           string `json:"units"`
	MatlabClass     string `json:"matlabClass,omitempty"`
	Label           string `json:"label,omitempty"`
	// NameParsed is false when DEVICE_AREA_LOCATION_ATTRIBUTE didn't match
	// and every field above fell back to "unknown".
	NameParsed bool `json:"-"`
}

// Signal is one fully-read PV from one HDF5 file: metadata plus the decoded
// sample sequence. len(Values) must equal Timestamps.Len() (spec invariant 1).
type Signal struct {
	Info         SignalInfo
	FileMetadata SignalFileMetadata
	// Timestamps is a pointer shared across every Signal read from the same
	// file — spec §3 "Ownership": all signals in a file share one
	// DataTimestamps, and Go's garbage collector keeps it alive for as long
	// as any Signal (or in-flight IngestRecord built from it) still holds it.
	Timestamps *DataTimestamps
	Values     []float64
}
