// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package signalname implements component C: deriving structured metadata
// from a PV identifier string, plus unit and signal-type inference.
package signalname

import (
	"regexp"
	"strings"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// pvPattern matches DEVICE_AREA_LOCATION_ATTRIBUTE: DEVICE is an uppercase
// token, AREA an uppercase token that may contain digits (e.g. LI21),
// LOCATION is digits, ATTRIBUTE is whatever remains.
var pvPattern = regexp.MustCompile(`^([A-Z]+)_([A-Z][A-Z0-9]*)_(\d+)_(.+)$`)

// Parse derives a schema.SignalInfo from a PV name. If the name doesn't
// match DEVICE_AREA_LOCATION_ATTRIBUTE, the device fields and Units default
// to "unknown", SignalType to "measurement", and NameParsed is false (the
// caller tags the record "unparsed_name").
func Parse(fullName string) schema.SignalInfo {
	info := schema.SignalInfo{FullName: fullName}

	m := pvPattern.FindStringSubmatch(fullName)
	if m == nil {
		info.Device = "unknown"
		info.DeviceArea = "unknown"
		info.DeviceLocation = "unknown"
		info.DeviceAttribute = "unknown"
		info.SignalType = "measurement"
		info.Units = "unknown"
		return info
	}

	info.Device = m[1]
	info.DeviceArea = m[2]
	info.DeviceLocation = m[3]
	info.DeviceAttribute = m[4]
	info.NameParsed = true
	info.Units = inferUnits(info.DeviceAttribute)
	info.SignalType = inferSignalType(info.DeviceAttribute)
	return info
}

// unitRule pairs an attribute-suffix matcher with the unit it implies,
// evaluated top to bottom so more specific rules (exact X/Y/Z) can precede
// broader substring rules (PHAS, AMPL, ...).
type unitRule struct {
	match func(attr string) bool
	unit  string
}

var unitRules = []unitRule{
	{exact("X", "Y", "Z"), "mm"},
	{hasPrefix("TMIT"), "pC"},
	{exact("BCTRL", "BDES", "BACT"), "kG"},
	{contains("PHAS"), "deg"},
	{contains("AMPL"), "MV/m"},
	{contains("POW"), "MW"},
	{contains("TEMP"), "°C"},
	{contains("PRESS"), "Torr"},
	{contains("CURR"), "A"},
	{contains("VOLT"), "V"},
}

func inferUnits(attr string) string {
	for _, r := range unitRules {
		if r.match(attr) {
			return r.unit
		}
	}
	return "unknown"
}

type typeRule struct {
	match func(attr string) bool
	kind  string
}

var typeRules = []typeRule{
	{exact("X", "Y", "Z"), "position"},
	{hasPrefix("TMIT"), "charge"},
	{exact("BCTRL"), "control"},
	{exact("BDES"), "control"},
	{exact("BACT"), "actual"},
	{contains("PHAS"), "phase"},
	{contains("AMPL"), "amplitude"},
	{contains("POW"), "power"},
	{contains("TEMP"), "temperature"},
	{contains("PRESS"), "pressure"},
	{contains("CURR"), "current"},
	{contains("VOLT"), "voltage"},
}

func inferSignalType(attr string) string {
	for _, r := range typeRules {
		if r.match(attr) {
			return r.kind
		}
	}
	return "measurement"
}

func exact(values ...string) func(string) bool {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(attr string) bool {
		_, ok := set[attr]
		return ok
	}
}

func hasPrefix(prefix string) func(string) bool {
	return func(attr string) bool { return strings.HasPrefix(attr, prefix) }
}

func contains(sub string) func(string) bool {
	return func(attr string) bool { return strings.Contains(attr, sub) }
}
