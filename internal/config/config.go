// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and resolves the engine's IngestConfig, the way
// internal/config.Init resolves cc-backend's ProgramConfig: built-in
// defaults, optionally overridden by a JSON file (schema-validated), then by
// CLI flags. Server address resolution follows CLI flag -> file -> default,
// exactly as spec §6 requires.
package config

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// Keys holds the resolved configuration for the current run. It starts out
// as schema.Defaults() and is mutated in place by Init.
var Keys = schema.Defaults()

// fileOverlay is the subset of IngestConfig fields a config file is allowed
// to set; rootDir/resume/streaming/etc remain CLI-only per spec §6.
type fileOverlay struct {
	IngestServer        *string `json:"ingestServer"`
	QueryServer         *string `json:"queryServer"`
	BatchSize           *int    `json:"batchSize"`
	InFlightBatches     *int    `json:"inFlightBatches"`
	MaxSignals          *int    `json:"maxSignals"`
	Workers             *int    `json:"workers"`
	ProviderName        *string `json:"providerName"`
	ProviderDescription *string `json:"providerDescription"`
	ProgressEvery       *int    `json:"progressEvery"`
	StatusAddr          *string `json:"statusAddr"`
	LedgerPath          *string `json:"ledgerPath"`
	Filter              *string `json:"filter"`
	MonitorAddr         *string `json:"monitorAddr"`
	MonitorSubject      *string `json:"monitorSubject"`
	OAuthEnabled        *bool   `json:"oauthEnabled"`
	OAuthTokenURL       *string `json:"oauthTokenUrl"`
	BackupBucket        *string `json:"backupBucket"`
	BackupEndpoint      *string `json:"backupEndpoint"`
	BackupRegion        *string `json:"backupRegion"`
	BackupUsePathStyle  *bool   `json:"backupUsePathStyle"`
}

// FlagSet is the CLI surface named in spec §6: a root directory plus a small
// set of overrides. Parsing, help text, and usage banners are explicitly out
// of scope (spec §1) and are the caller's responsibility to wire; this
// function only defines and applies the flags themselves.
type FlagSet struct {
	RootDir         string
	Resume          bool
	Streaming       bool
	BatchSize       int
	InFlightBatches int
	MaxSignals      int
	Workers         int
	Server          string
	ConfigFile      string
	Strict          bool
}

// RegisterFlags binds the engine's flags onto fs (normally flag.CommandLine),
// returning a FlagSet whose fields are populated once fs.Parse has run.
func RegisterFlags(fs *flag.FlagSet, defaults schema.IngestConfig) *FlagSet {
	f := &FlagSet{}
	fs.BoolVar(&f.Resume, "resume", defaults.Resume, "skip files already present in the processed-file cache")
	fs.BoolVar(&f.Streaming, "streaming", defaults.Streaming, "use client-streaming batches instead of unary ingest calls")
	fs.IntVar(&f.BatchSize, "batch-size", defaults.BatchSize, "records per streaming batch")
	fs.IntVar(&f.InFlightBatches, "in-flight-batches", defaults.InFlightBatches, "maximum batches/unary calls in flight at once, bounds memory regardless of input size")
	fs.IntVar(&f.MaxSignals, "max-signals", defaults.MaxSignals, "maximum signals read per file")
	fs.IntVar(&f.Workers, "workers", defaults.Workers, "parallel file workers")
	fs.StringVar(&f.Server, "server", "", "DP ingest server HOST:PORT (overrides config file and default)")
	fs.StringVar(&f.ConfigFile, "config", "", "optional JSON config file")
	fs.BoolVar(&f.Strict, "strict", defaults.Strict, "exit non-zero if any file fails")
	return f
}

// Init resolves Keys from defaults, an optional config file named by
// flags.ConfigFile, and flags themselves, and validates the result.
func Init(flags *FlagSet) error {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	Keys = schema.Defaults()

	if flags.ConfigFile != "" {
		if err := loadFile(flags.ConfigFile, &Keys); err != nil {
			return fmt.Errorf("loading config file %q: %w", flags.ConfigFile, err)
		}
	}

	// A numeric flag left at its built-in default does not override a value
	// the config file set.
	defaults := schema.Defaults()
	Keys.RootDir = flags.RootDir
	Keys.Resume = flags.Resume
	Keys.Streaming = flags.Streaming
	if flags.BatchSize != defaults.BatchSize {
		Keys.BatchSize = flags.BatchSize
	}
	if flags.InFlightBatches != defaults.InFlightBatches {
		Keys.InFlightBatches = flags.InFlightBatches
	}
	if flags.MaxSignals != defaults.MaxSignals {
		Keys.MaxSignals = flags.MaxSignals
	}
	if flags.Workers != defaults.Workers {
		Keys.Workers = flags.Workers
	}
	Keys.Strict = flags.Strict

	if flags.Server != "" {
		Keys.IngestServer = flags.Server
	}

	if Keys.RootDir == "" {
		return fmt.Errorf("root directory is required")
	}
	if info, err := os.Stat(Keys.RootDir); err != nil || !info.IsDir() {
		return fmt.Errorf("root directory %q: %w", Keys.RootDir, err)
	}

	log.Infof("config resolved: workers=%d batchSize=%d streaming=%v resume=%v server=%s",
		Keys.Workers, Keys.BatchSize, Keys.Streaming, Keys.Resume, Keys.IngestServer)
	return nil
}

func loadFile(path string, into *schema.IngestConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := validateAgainstSchema(raw); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	var overlay fileOverlay
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&overlay); err != nil {
		return err
	}

	applyOverlay(overlay, into)
	return nil
}

func applyOverlay(o fileOverlay, into *schema.IngestConfig) {
	if o.IngestServer != nil {
		into.IngestServer = *o.IngestServer
	}
	if o.QueryServer != nil {
		into.QueryServer = *o.QueryServer
	}
	if o.BatchSize != nil {
		into.BatchSize = *o.BatchSize
	}
	if o.InFlightBatches != nil {
		into.InFlightBatches = *o.InFlightBatches
	}
	if o.MaxSignals != nil {
		into.MaxSignals = *o.MaxSignals
	}
	if o.Workers != nil {
		into.Workers = *o.Workers
	}
	if o.ProviderName != nil {
		into.ProviderName = *o.ProviderName
	}
	if o.ProviderDescription != nil {
		into.ProviderDescription = *o.ProviderDescription
	}
	if o.ProgressEvery != nil {
		into.ProgressEvery = *o.ProgressEvery
	}
	if o.StatusAddr != nil {
		into.StatusAddr = *o.StatusAddr
	}
	if o.LedgerPath != nil {
		into.LedgerPath = *o.LedgerPath
	}
	if o.Filter != nil {
		into.Filter = *o.Filter
	}
	if o.MonitorAddr != nil {
		into.MonitorAddr = *o.MonitorAddr
	}
	if o.MonitorSubject != nil {
		into.MonitorSubject = *o.MonitorSubject
	}
	if o.OAuthEnabled != nil {
		into.OAuthEnabled = *o.OAuthEnabled
	}
	if o.OAuthTokenURL != nil {
		into.OAuthTokenURL = *o.OAuthTokenURL
	}
	if o.BackupBucket != nil {
		into.BackupBucket = *o.BackupBucket
	}
	if o.BackupEndpoint != nil {
		into.BackupEndpoint = *o.BackupEndpoint
	}
	if o.BackupRegion != nil {
		into.BackupRegion = *o.BackupRegion
	}
	if o.BackupUsePathStyle != nil {
		into.BackupUsePathStyle = *o.BackupUsePathStyle
	}
}

// configSchema mirrors internal/config's use of jsonschema/v5 to validate the
// config file shape before decoding it.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "ingestServer": {"type": "string"},
    "queryServer": {"type": "string"},
    "batchSize": {"type": "integer", "minimum": 1},
    "inFlightBatches": {"type": "integer", "minimum": 1},
    "maxSignals": {"type": "integer", "minimum": 1},
    "workers": {"type": "integer", "minimum": 1},
    "providerName": {"type": "string"},
    "providerDescription": {"type": "string"},
    "progressEvery": {"type": "integer", "minimum": 1},
    "statusAddr": {"type": "string"},
    "ledgerPath": {"type": "string"},
    "filter": {"type": "string"},
    "monitorAddr": {"type": "string"},
    "monitorSubject": {"type": "string"},
    "oauthEnabled": {"type": "boolean"},
    "oauthTokenUrl": {"type": "string"},
    "backupBucket": {"type": "string"},
    "backupEndpoint": {"type": "string"},
    "backupRegion": {"type": "string"},
    "backupUsePathStyle": {"type": "boolean"}
  }
}`

func validateAgainstSchema(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader([]byte(configSchema))); err != nil {
		return err
	}
	sch, err := compiler.Compile("config.json")
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return sch.Validate(doc)
}
