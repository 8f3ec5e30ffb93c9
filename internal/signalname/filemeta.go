// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package signalname

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// filenamePattern matches ORIGIN_PATHWAY_YYYYMMDD_HHMMSS[_PROJECT].h5.
var filenamePattern = regexp.MustCompile(`^([^_]+)_([^_]+)_(\d{8})_(\d{6})(?:_(.+))?$`)

// ParseFileMetadata derives a schema.SignalFileMetadata from an H5 file's
// base name, per the convention in spec §3/§6. A non-matching name is
// non-fatal: Origin, Pathway, Date and Time get "unknown_*" defaults and
// Project is left empty.
func ParseFileMetadata(path string) schema.SignalFileMetadata {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return schema.SignalFileMetadata{
			Origin:  "unknown_origin",
			Pathway: "unknown_pathway",
			Date:    "unknown_date",
			Time:    "unknown_time",
		}
	}

	return schema.SignalFileMetadata{
		Origin:  m[1],
		Pathway: m[2],
		Date:    m[3],
		Time:    m[4],
		Project: m[5],
	}
}
