// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command dp-decode is the secondary query/decode path (spec §4.G / §6
// "QueryData"/"QueryDataStream"/"Decode"): a small CLI that pulls one or more
// PVs back out of DP and prints their decoded (timestamp, value) pairs and
// summary statistics, for spot-checking an ingest run without a full client.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osprey-dp/h5-to-dp/internal/dpclient"
	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		server        = flag.String("server", "localhost:50052", "DP query server HOST:PORT")
		pvNames       = flag.String("pv", "", "comma-separated PV names to query (required)")
		begin         = flag.String("begin", "", "RFC3339 window start (default: 1h ago)")
		end           = flag.String("end", "", "RFC3339 window end (default: now)")
		useSerialized = flag.Bool("serialized", false, "request the server-side Avro-serialized column form")
		stream        = flag.Bool("stream", false, "use the streaming query path instead of a single unary call")
		listProviders = flag.Bool("providers", false, "list registered providers and exit")
		callDeadline  = flag.Duration("timeout", 30*time.Second, "per-call deadline")
	)
	flag.Parse()

	client := dpclient.New(dpclient.Options{QueryServer: *server, CallDeadline: *callDeadline})
	ctx := context.Background()

	if *listProviders {
		return printProviders(ctx, client)
	}

	if *pvNames == "" {
		fmt.Fprintln(os.Stderr, "usage: dp-decode -pv=<name[,name...]> [flags]")
		return 1
	}
	names := strings.Split(*pvNames, ",")

	beginTs, err := parseTimeFlag(*begin, time.Now().Add(-time.Hour))
	if err != nil {
		log.Errorf("parsing -begin: %v", err)
		return 1
	}
	endTs, err := parseTimeFlag(*end, time.Now())
	if err != nil {
		log.Errorf("parsing -end: %v", err)
		return 1
	}

	spec := schema.QuerySpec{
		Begin:         toTimestamp(beginTs),
		End:           toTimestamp(endTs),
		PVNames:       names,
		UseSerialized: *useSerialized,
	}

	w := csv.NewWriter(os.Stdout)
	w.Comma = '\t'
	defer w.Flush()
	_ = w.Write([]string{"pv", "timestamp", "value"})

	var decodeErr error
	onBucket := func(b schema.Bucket) error {
		return emitBucket(w, b)
	}

	if *stream {
		decodeErr = client.QueryDataStream(ctx, spec, onBucket)
	} else {
		resp, qerr := client.QueryData(ctx, spec)
		if qerr != nil {
			decodeErr = qerr
		} else if resp.Error != nil {
			decodeErr = resp.Error
		} else {
			for _, b := range resp.Buckets {
				if err := onBucket(b); err != nil {
					decodeErr = err
					break
				}
			}
		}
	}

	if decodeErr != nil {
		log.Errorf("query failed: %v", decodeErr)
		return 3
	}
	return 0
}

func emitBucket(w *csv.Writer, b schema.Bucket) error {
	series, stats, err := dpclient.Decode(b)
	if err != nil {
		return fmt.Errorf("decoding bucket for %s: %w", b.PVName, err)
	}
	for i, ts := range series.Timestamps {
		_ = w.Write([]string{series.PVName, ts.String(), strconv.FormatFloat(series.Values[i], 'g', -1, 64)})
	}
	log.Infof("%s: min=%g max=%g mean=%g points=%d/%d",
		series.PVName, stats.Min, stats.Max, stats.Mean, stats.FinitePoints, stats.TotalPoints)
	return nil
}

func printProviders(ctx context.Context, client *dpclient.Client) int {
	providers, err := client.QueryProviders(ctx)
	if err != nil {
		log.Errorf("listing providers: %v", err)
		return 3
	}
	for _, p := range providers {
		fmt.Printf("%s\t%s\t%s\n", p.ProviderID, p.Name, p.Description)
	}
	return 0
}

func parseTimeFlag(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, s)
}

func toTimestamp(t time.Time) schema.Timestamp {
	return schema.Timestamp{EpochSeconds: uint64(t.Unix()), Nanoseconds: uint64(t.Nanosecond())}
}
