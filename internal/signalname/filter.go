// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package signalname

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// filterEnv is the field set a --filter expression can reference, e.g.
// `Device == "BPMS" && SignalType == "charge"`.
type filterEnv struct {
	Device          string
	DeviceArea      string
	DeviceLocation  string
	DeviceAttribute string
	SignalType      string
	Units           string
	FullName        string
}

// Filter is a compiled --filter expression (spec-supplement, §"SUPPLEMENTED
// FEATURES"): a boolean predicate over a signal's derived SignalInfo, used
// to select a subset of signals per run the way the C++ source's ad-hoc PV
// substring filters did, generalized into a real expression language.
type Filter struct {
	program *vm.Program
}

// CompileFilter compiles expr into a reusable Filter. An empty expr compiles
// to a Filter that matches everything.
func CompileFilter(exprStr string) (*Filter, error) {
	if exprStr == "" {
		return nil, nil
	}
	program, err := expr.Compile(exprStr, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter expression %q: %w", exprStr, err)
	}
	return &Filter{program: program}, nil
}

// Matches reports whether info passes the filter. A nil Filter matches
// everything.
func (f *Filter) Matches(info schema.SignalInfo) (bool, error) {
	if f == nil {
		return true, nil
	}
	env := filterEnv{
		Device:          info.Device,
		DeviceArea:      info.DeviceArea,
		DeviceLocation:  info.DeviceLocation,
		DeviceAttribute: info.DeviceAttribute,
		SignalType:      info.SignalType,
		Units:           info.Units,
		FullName:        info.FullName,
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, err
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not evaluate to a boolean")
	}
	return matched, nil
}
