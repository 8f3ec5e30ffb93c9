// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import "time"

// IngestConfig is the fully-resolved configuration for one run of the engine,
// built by internal/config from defaults, an optional JSON file, and CLI
// flags, in that override order (spec §6 "Environment").
type IngestConfig struct {
	RootDir       string `json:"rootDir"`
	Resume        bool   `json:"resume"`
	Streaming     bool   `json:"streaming"`
	BatchSize     int    `json:"batchSize"`
	MaxSignals    int    `json:"maxSignals"`
	Workers       int    `json:"workers"`
	IngestServer  string `json:"ingestServer"`
	QueryServer   string `json:"queryServer"`
	OutputDir     string `json:"outputDir"`
	Strict        bool   `json:"strict"`
	Filter        string `json:"filter,omitempty"`

	ProviderName        string `json:"providerName"`
	ProviderDescription string `json:"providerDescription"`

	ProgressEvery int           `json:"progressEvery"`
	Watchdog      time.Duration `json:"watchdog"`

	InFlightBatches int           `json:"inFlightBatches"`
	InterBatchPause time.Duration `json:"interBatchPause"`
	CallDeadline    time.Duration `json:"callDeadline"`

	StatusAddr  string `json:"statusAddr"`
	LedgerPath  string `json:"ledgerPath"`
	JWTSecret   string `json:"-"`

	MonitorAddr    string `json:"monitorAddr,omitempty"`
	MonitorSubject string `json:"monitorSubject,omitempty"`

	OAuthEnabled  bool   `json:"oauthEnabled,omitempty"`
	OAuthTokenURL string `json:"oauthTokenUrl,omitempty"`
	OAuthClientID string `json:"-"`

	BackupBucket       string `json:"backupBucket,omitempty"`
	BackupEndpoint     string `json:"backupEndpoint,omitempty"`
	BackupRegion       string `json:"backupRegion,omitempty"`
	BackupUsePathStyle bool   `json:"backupUsePathStyle,omitempty"`
}

// Defaults returns the baseline configuration, mirroring the style of
// internal/config.Keys in the teacher repo: every field has a sane zero-risk
// default before any file or flag is applied.
func Defaults() IngestConfig {
	return IngestConfig{
		Resume:              false,
		Streaming:           false,
		BatchSize:           10,
		MaxSignals:          1000,
		Workers:             8,
		IngestServer:        "localhost:50051",
		QueryServer:         "localhost:50052",
		OutputDir:           ".",
		Strict:              false,
		ProviderName:        "h5-to-dp",
		ProviderDescription: "H5 to DP ingestion engine",
		ProgressEvery:       16,
		Watchdog:            24 * time.Hour,
		InFlightBatches:     4,
		InterBatchPause:     200 * time.Millisecond,
		CallDeadline:        30 * time.Second,
		StatusAddr:          "127.0.0.1:9090",
		LedgerPath:          "",
	}
}
