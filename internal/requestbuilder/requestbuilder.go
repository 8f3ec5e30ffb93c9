// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package requestbuilder implements component D: turning one read Signal
// into one DP IngestRecord, with NaN/Inf preserved exactly and the
// attribute/tag set spec §4.D requires.
package requestbuilder

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// requestCounter is the process-global monotonic counter embedded in every
// ClientRequestID (spec §4.D, §9 "Signal identity and retries").
var requestCounter uint64

// runEpoch is the wall-clock second the process started; mixing it into the
// ID means a restarted process's counter can never collide with a prior
// run's IDs for unrelated signals (spec §9).
var runEpoch = time.Now().Unix()

// Builder embeds its prefix in every ClientRequestID so different client
// instances (e.g. two
// engine processes ingesting the same root concurrently) don't share a
// request-id namespace; see NewBuilder.
type Builder struct {
	prefix string
}

// NewBuilder returns a Builder whose ClientRequestIDs are scoped under
// prefix (conventionally the provider name).
func NewBuilder(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// nextClientRequestID formats <prefix>_<counter>_<runEpoch> (spec §4.D).
func (b *Builder) nextClientRequestID() string {
	n := atomic.AddUint64(&requestCounter, 1)
	return fmt.Sprintf("%s_%d_%d", b.prefix, n, runEpoch)
}

// Build constructs one IngestRecord for sig, sourced from sourceFile.
func (b *Builder) Build(providerID string, sig schema.Signal, sourceFile string) schema.IngestRecord {
	values := make([]schema.DataValue, len(sig.Values))
	validSamples, nanSamples, infSamples := 0, 0, 0
	for i, v := range sig.Values {
		values[i] = schema.Float64(v)
		switch {
		case math.IsNaN(v):
			nanSamples++
		case math.IsInf(v, 0):
			infSamples++
		default:
			validSamples++
		}
	}

	column := schema.DataColumn{Name: sig.Info.FullName, Values: values}

	attrs := baseAttributes(sig, sourceFile, validSamples, nanSamples, infSamples)
	if sig.Info.NameParsed {
		attrs["device"] = sig.Info.Device
		attrs["device_area"] = sig.Info.DeviceArea
		attrs["device_location"] = sig.Info.DeviceLocation
		attrs["measurement_type"] = sig.Info.SignalType
	}

	tags := []string{"h5_data", "accelerator_data"}
	if !sig.Info.NameParsed {
		tags = append(tags, "unparsed_name")
	}
	if nanSamples > 0 {
		tags = append(tags, "contains_nan")
	}
	if infSamples > 0 {
		tags = append(tags, "contains_inf")
	}
	if validSamples == len(sig.Values) {
		tags = append(tags, "all_valid")
	}
	if !sig.Timestamps.Regular {
		tags = append(tags, "irregular_sampling")
	}

	timestamps := sig.Timestamps.Expand()
	var event *schema.EventMetadata
	if len(timestamps) > 0 {
		event = &schema.EventMetadata{
			Description: "H5: " + sig.Info.FullName,
			StartTime:   timestamps[0],
			StopTime:    timestamps[len(timestamps)-1],
		}
	}

	return schema.IngestRecord{
		ProviderID:      providerID,
		ClientRequestID: b.nextClientRequestID(),
		DataFrame: schema.DataFrame{
			Timestamps: sig.Timestamps,
			Columns:    []schema.DataColumn{column},
		},
		Attributes:    attrs,
		Tags:          tags,
		EventMetadata: event,
	}
}

func baseAttributes(sig schema.Signal, sourceFile string, valid, nans, infs int) map[string]string {
	total := len(sig.Values)
	ratio := 0.0
	if total > 0 {
		ratio = float64(valid) / float64(total)
	}

	return map[string]string{
		"pv_name":            sig.Info.FullName,
		"source_file":        sourceFile,
		"sample_count":       strconv.Itoa(total),
		"beam_line":          sig.FileMetadata.Origin + "_" + sig.FileMetadata.Pathway,
		"acquisition_date":   sig.FileMetadata.Date,
		"acquisition_time":   sig.FileMetadata.Time,
		"valid_samples":      strconv.Itoa(valid),
		"nan_samples":        strconv.Itoa(nans),
		"inf_samples":        strconv.Itoa(infs),
		"data_quality_ratio": strconv.FormatFloat(ratio, 'f', 6, 64),
	}
}
