// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command h5-to-dp is the ingestion engine: it walks a directory tree of
// HDF5 files, extracts process-variable time series, and transmits them to
// DP's ingestion service, the way cc-backend's main.go wires flags, config,
// and subsystems together before handing off to a long-running loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/osprey-dp/h5-to-dp/internal/config"
	"github.com/osprey-dp/h5-to-dp/internal/dpclient"
	"github.com/osprey-dp/h5-to-dp/internal/ledger"
	"github.com/osprey-dp/h5-to-dp/internal/ledgerbackup"
	"github.com/osprey-dp/h5-to-dp/internal/monitor"
	"github.com/osprey-dp/h5-to-dp/internal/pipeline"
	"github.com/osprey-dp/h5-to-dp/internal/progress"
	"github.com/osprey-dp/h5-to-dp/internal/requestbuilder"
	"github.com/osprey-dp/h5-to-dp/internal/scanner"
	"github.com/osprey-dp/h5-to-dp/internal/scheduler"
	"github.com/osprey-dp/h5-to-dp/internal/signalname"
	"github.com/osprey-dp/h5-to-dp/internal/statusapi"
	"github.com/osprey-dp/h5-to-dp/internal/workerpool"
	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func main() {
	os.Exit(run())
}

// run implements the engine's exit-code contract (spec §7): 0 all files
// ingested, 1 usage/config error, 2 one or more files failed under
// --strict, 3 unrecoverable transport failure or watchdog timeout.
func run() int {
	var flagGops bool
	flag.BoolVar(&flagGops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")
	flags := config.RegisterFlags(flag.CommandLine, schema.Defaults())
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err)
		}
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: h5-to-dp [flags] <root-dir>")
		return 1
	}
	flags.RootDir = flag.Arg(0)

	if err := config.Init(flags); err != nil {
		log.Errorf("config: %v", err)
		return 1
	}
	cfg := config.Keys

	runner, err := newRunner(cfg)
	if err != nil {
		log.Errorf("startup: %v", err)
		return 1
	}
	defer runner.Close()

	return runner.Run(context.Background())
}

// runner holds every subsystem wired for one invocation of the engine.
type runner struct {
	cfg        schema.IngestConfig
	cache      *scanner.Cache
	filter     *signalname.Filter
	builder    *requestbuilder.Builder
	client     *dpclient.Client
	counters   *progress.Counters
	ledger     *ledger.Ledger
	pub        *monitor.Publisher
	status     *statusapi.Server
	backup     *ledgerbackup.Target
	runID      int64
	providerID string
}

func newRunner(cfg schema.IngestConfig) (*runner, error) {
	cache, err := scanner.Load(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("loading processed-file cache: %w", err)
	}

	var filter *signalname.Filter
	if cfg.Filter != "" {
		filter, err = signalname.CompileFilter(cfg.Filter)
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("compiling --filter expression: %w", err)
		}
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	pub, err := monitor.Connect(cfg.MonitorAddr, cfg.MonitorSubject)
	if err != nil {
		led.Close()
		cache.Close()
		return nil, fmt.Errorf("connecting monitor: %w", err)
	}

	backup, err := ledgerbackup.New(context.Background(), ledgerbackup.Config{
		Endpoint:     cfg.BackupEndpoint,
		Bucket:       cfg.BackupBucket,
		AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:       cfg.BackupRegion,
		UsePathStyle: cfg.BackupUsePathStyle,
	})
	if err != nil {
		pub.Close()
		led.Close()
		cache.Close()
		return nil, fmt.Errorf("configuring ledger backup: %w", err)
	}

	client := dpclient.New(dpclient.Options{
		IngestServer:      cfg.IngestServer,
		QueryServer:       cfg.QueryServer,
		CallDeadline:      cfg.CallDeadline,
		OAuthEnabled:      cfg.OAuthEnabled,
		OAuthTokenURL:     cfg.OAuthTokenURL,
		OAuthClientID:     cfg.OAuthClientID,
		OAuthClientSecret: os.Getenv("H5_TO_DP_OAUTH_CLIENT_SECRET"),
		InterBatchPause:   cfg.InterBatchPause,
		InFlightBatches:   cfg.InFlightBatches,
	})

	return &runner{
		cfg:     cfg,
		cache:   cache,
		filter:  filter,
		builder: requestbuilder.NewBuilder(cfg.ProviderName),
		client:  client,
		ledger:  led,
		pub:     pub,
		backup:  backup,
	}, nil
}

func (r *runner) Close() {
	if r.status != nil {
		r.status.Close()
	}
	r.pub.Close()
	r.ledger.Close()
	r.cache.Close()
}

func (r *runner) Run(ctx context.Context) int {
	startWall := time.Now()

	reg, err := r.client.RegisterProvider(ctx, r.cfg.ProviderName, r.cfg.ProviderDescription)
	if err != nil {
		log.Errorf("registering provider: %v", err)
		return 3
	}
	log.Infof("registered as provider %s", reg.ProviderID)
	r.providerID = reg.ProviderID

	runID, err := r.ledger.StartRun(startWall.Unix(), r.cfg.RootDir, reg.ProviderID)
	if err != nil {
		log.Warnf("ledger: recording run start: %v", err)
	}
	r.runID = runID

	files, err := scanner.Scan(r.cfg.RootDir)
	if err != nil {
		log.Errorf("scanning %s: %v", r.cfg.RootDir, err)
		return 1
	}
	if r.cfg.Resume {
		before := len(files)
		files = scanner.FilterResumable(files, r.cache)
		log.Infof("resume: %d/%d files already processed, %d remaining", before-len(files), before, len(files))
	}
	log.Infof("discovered %d candidate files under %s", len(files), r.cfg.RootDir)

	r.counters = progress.NewCounters(len(files))
	if err := progress.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		log.Warnf("registering prometheus metrics: %v", err)
	}

	r.status = statusapi.New(r.cfg.StatusAddr, r.counters, r.cfg.JWTSecret, nil)
	if r.cfg.StatusAddr != "" {
		r.status.Start()
	}

	var failedOverWatchdog bool
	sched, err := scheduler.Start(r.counters, r.cfg.ProgressEvery, r.cfg.Watchdog, func() {
		failedOverWatchdog = true
	})
	if err != nil {
		log.Warnf("starting progress scheduler: %v", err)
	} else {
		defer sched.Shutdown()
	}

	pool := workerpool.New(r.cfg.Workers, func(job workerpool.Job) {
		r.processOne(ctx, files[job.Index].Path)
	})
	for i, f := range files {
		pool.Submit(workerpool.Job{Path: f.Path, Index: i})
	}
	pool.Stop()

	r.counters.EmitEvery(1, true)
	log.Infof("run complete in %s: %s", time.Since(startWall).Round(time.Second), r.counters.Line())

	if r.cfg.LedgerPath != "" {
		if err := r.backup.UploadFile(ctx, r.cfg.LedgerPath, "ledger/"+time.Now().Format("20060102-150405")+".db"); err != nil {
			log.Warnf("ledger backup: %v", err)
		}
	}

	if failedOverWatchdog {
		return 3
	}
	if r.cfg.Strict && r.counters.FilesFailed.Load() > 0 {
		return 2
	}
	return 0
}

// processOne is the worker pool's Handler body for one file: read, build
// records, transmit, record outcome (spec §5 "one file is the unit of
// parallelism").
func (r *runner) processOne(ctx context.Context, path string) {
	start := time.Now()

	fields := log.Fields{"run": r.runID, "file": path}

	result, err := pipeline.ProcessFile(path, r.providerID, r.cfg.MaxSignals, r.filter, r.builder)
	if err != nil {
		fields.Errorf("processing failed: %v", err)
		r.counters.RecordFile(time.Since(start), true, 0, 0)
		r.recordAttempt(path, false, 0, err.Error())
		return
	}

	var bytesSent int64
	for _, rec := range result.Records {
		for _, col := range rec.DataFrame.Columns {
			bytesSent += int64(len(col.Values)) * 8
		}
		if r.pub != nil {
			r.pub.Publish(rec)
		}
	}

	if err := r.transmit(ctx, result.Records); err != nil {
		fields.Errorf("transmitting: %v", err)
		r.counters.RecordFile(time.Since(start), true, result.SignalCount, bytesSent)
		r.recordAttempt(path, false, result.SignalCount, err.Error())
		return
	}

	if err := r.cache.MarkProcessed(path); err != nil {
		fields.Warnf("marking processed: %v", err)
	}
	if sum, ferr := scanner.FingerprintFile(path); ferr == nil {
		r.cache.RecordFingerprint(path, sum)
	}

	r.counters.RecordFile(time.Since(start), false, result.SignalCount, bytesSent)
	r.recordAttempt(path, true, result.SignalCount, "")
}

// transmit sends records to DP. In unary mode each record is one IngestData
// RPC (spec §4.F: "one IngestRecord -> one unary RPC -> one ack"); batching
// by BatchSize is a streaming-mode-only concept. In streaming mode records
// are grouped into batches of BatchSize, each batch its own IngestDataStream
// session, with an inter-batch pause between sessions (spec §4.F, §9
// "Backpressure", provided by the client's own rate limiter, one Wait per
// call). A file with any per-record rejection is reported as failed so
// processOne leaves it unmarked for a subsequent --resume (spec §7).
func (r *runner) transmit(ctx context.Context, records []schema.IngestRecord) error {
	if len(records) == 0 {
		return nil
	}

	if !r.cfg.Streaming {
		rejected := 0
		for _, rec := range records {
			if _, err := r.client.IngestData(ctx, rec); err != nil {
				var exc *schema.ExceptionalResult
				if !errors.As(err, &exc) {
					return err
				}
				rejected++
				r.counters.Errors.Add(1)
				log.Fields{"run": r.runID, "request": rec.ClientRequestID}.Warnf("record rejected: %v", exc)
				r.recordRequestStatus(rec.ClientRequestID, schema.RequestStatus{
					ClientRequestID: rec.ClientRequestID,
					ProviderID:      rec.ProviderID,
					Status:          exc.Status,
					Message:         exc.Message,
				})
			}
		}
		if rejected > 0 {
			return fmt.Errorf("%d/%d records rejected", rejected, len(records))
		}
		return nil
	}

	rejected := 0
	for start := 0; start < len(records); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		summary, err := r.client.IngestDataStream(ctx, batch)
		if err != nil {
			return err
		}
		for i, excErr := range summary.Errors {
			if excErr != nil {
				rejected++
				r.counters.Errors.Add(1)
				log.Fields{"run": r.runID, "request": batch[i].ClientRequestID}.Warnf("record rejected: %v", excErr)
				r.recordRequestStatus(batch[i].ClientRequestID, schema.RequestStatus{
					ClientRequestID: batch[i].ClientRequestID,
					ProviderID:      batch[i].ProviderID,
					Status:          excErr.Status,
					Message:         excErr.Message,
				})
			}
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d records rejected across %d batches", rejected, (len(records)+r.cfg.BatchSize-1)/r.cfg.BatchSize)
	}
	return nil
}

func (r *runner) recordAttempt(path string, succeeded bool, signalCount int, errMsg string) {
	if err := r.ledger.RecordFileAttempt(r.runID, path, time.Now().Unix(), succeeded, signalCount, errMsg); err != nil {
		log.Fields{"run": r.runID, "file": path}.Warnf("ledger: recording attempt: %v", err)
	}
}

func (r *runner) recordRequestStatus(clientRequestID string, status schema.RequestStatus) {
	if err := r.ledger.UpsertRequestStatus(r.runID, time.Now().Unix(), status); err != nil {
		log.Fields{"run": r.runID, "request": clientRequestID}.Warnf("ledger: recording status: %v", err)
	}
}
