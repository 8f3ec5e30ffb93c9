// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline wires components B, C, and D together into the
// single-file unit of work the worker pool schedules (spec §4.B-D, §5 "one
// file is the unit of parallelism").
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/osprey-dp/h5-to-dp/internal/h5reader"
	"github.com/osprey-dp/h5-to-dp/internal/requestbuilder"
	"github.com/osprey-dp/h5-to-dp/internal/signalname"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// Result is everything a file's processing produced, for progress tracking
// and the dpclient transmission stage.
type Result struct {
	Path           string
	Records        []schema.IngestRecord
	SignalCount    int
	SkippedCount   int
	LengthMismatch int
}

// ProcessFile reads one H5 file and builds an IngestRecord per signal that
// survives name-parsing and the optional filter. A file-level read failure
// (bad size, corrupt datasets) is returned as an error; a single signal's
// read failure never aborts the file, it is logged by h5reader and simply
// omitted upstream of this function's signal loop never seeing it.
func ProcessFile(path string, providerID string, maxSignals int, filter *signalname.Filter, builder *requestbuilder.Builder) (Result, error) {
	fileMeta := signalname.ParseFileMetadata(path)

	data, err := h5reader.ReadFile(path, maxSignals)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	result := Result{Path: path}
	for _, raw := range data.Signals {
		info := signalname.Parse(raw.Name)
		info.MatlabClass = raw.MatlabClass
		info.Label = raw.Label

		if filter != nil {
			matched, ferr := filter.Matches(info)
			if ferr != nil {
				return result, fmt.Errorf("evaluating filter for %s: %w", raw.Name, ferr)
			}
			if !matched {
				result.SkippedCount++
				continue
			}
		}

		sig := schema.Signal{
			Info:         info,
			FileMetadata: fileMeta,
			Timestamps:   data.Timestamps,
			Values:       raw.Values,
		}

		record := builder.Build(providerID, sig, path)
		result.Records = append(result.Records, record)
		result.SignalCount++
		if raw.LengthMismatch {
			result.LengthMismatch++
		}
	}

	return result, nil
}
