// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dpclient

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func TestRegisterProviderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/providers/register", r.URL.Path)
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "demo", req.Name)
		_ = json.NewEncoder(w).Encode(schema.ProviderRegistration{ProviderID: "prov-1"})
	}))
	defer srv.Close()

	c := New(Options{IngestServer: srv.URL, InterBatchPause: time.Microsecond})
	reg, err := c.RegisterProvider(context.Background(), "demo", "desc")
	require.NoError(t, err)
	assert.Equal(t, "prov-1", reg.ProviderID)
}

func TestDoJSONReturnsExceptionalResultOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(schema.ExceptionalResult{Status: schema.StatusReject, Message: "bad record"})
	}))
	defer srv.Close()

	c := New(Options{IngestServer: srv.URL, InterBatchPause: time.Microsecond})
	_, err := c.IngestData(context.Background(), schema.IngestRecord{})
	require.Error(t, err)

	var exc *schema.ExceptionalResult
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, schema.StatusReject, exc.Status)
	assert.Equal(t, "bad record", exc.Message)
}

func TestIngestDataBoundsInFlightCalls(t *testing.T) {
	const inFlight = 2
	var current, max int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&max)
			if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&current, -1)
		_ = json.NewEncoder(w).Encode(schema.Ack{})
	}))
	defer srv.Close()

	c := New(Options{IngestServer: srv.URL, InterBatchPause: time.Microsecond, InFlightBatches: inFlight})

	done := make(chan struct{})
	for i := 0; i < inFlight+3; i++ {
		go func() {
			_, _ = c.IngestData(context.Background(), schema.IngestRecord{})
			done <- struct{}{}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&current)), inFlight, "no more than InFlightBatches calls may be outstanding")

	close(release)
	for i := 0; i < inFlight+3; i++ {
		<-done
	}
	assert.LessOrEqual(t, int(atomic.LoadInt32(&max)), inFlight)
}

func TestQueryPvMetadataCachesResult(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]schema.PVInfo{{Name: "PV1"}})
	}))
	defer srv.Close()

	c := New(Options{QueryServer: srv.URL, InterBatchPause: time.Microsecond})
	ctx := context.Background()

	infos, err := c.QueryPvMetadata(ctx, []string{"PV1"})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "PV1", infos[0].Name)

	_, err = c.QueryPvMetadata(ctx, []string{"PV1"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call within TTL must be served from cache")

	infos, err = c.QueryPvMetadata(ctx, []string{"PV2"})
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, 2, calls, "a different key must not hit the cache")
}

func TestQueryPvMetadataDoesNotCacheErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{QueryServer: srv.URL, InterBatchPause: time.Microsecond})
	ctx := context.Background()

	_, err := c.QueryPvMetadata(ctx, []string{"PV1"})
	require.Error(t, err)
	_, err = c.QueryPvMetadata(ctx, []string{"PV1"})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "a failed lookup must not be cached")
}

func TestIngestDataStreamRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		dec := json.NewDecoder(r.Body)
		count := 0
		for dec.More() {
			var rec schema.IngestRecord
			require.NoError(t, dec.Decode(&rec))
			count++
		}
		_ = json.NewEncoder(w).Encode(schema.StreamSummary{Acks: make([]schema.Ack, count)})
	}))
	defer srv.Close()

	c := New(Options{IngestServer: srv.URL, InterBatchPause: time.Microsecond})
	records := []schema.IngestRecord{{ClientRequestID: "a"}, {ClientRequestID: "b"}}
	summary, err := c.IngestDataStream(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, summary.Acks, 2)
}

func TestQueryDataStreamInvokesCallbackPerBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		require.NoError(t, enc.Encode(schema.Bucket{PVName: "PV1"}))
		require.NoError(t, enc.Encode(schema.Bucket{PVName: "PV2"}))
	}))
	defer srv.Close()

	c := New(Options{QueryServer: srv.URL, InterBatchPause: time.Microsecond})
	var names []string
	err := c.QueryDataStream(context.Background(), schema.QuerySpec{}, func(b schema.Bucket) error {
		names = append(names, b.PVName)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PV1", "PV2"}, names)
}

func TestWithScheme(t *testing.T) {
	assert.Equal(t, "", withScheme(""))
	assert.Equal(t, "http://localhost:1234", withScheme("localhost:1234"))
	assert.Equal(t, "http://localhost:1234", withScheme("http://localhost:1234"))
	assert.Equal(t, "https://localhost:1234", withScheme("https://localhost:1234"))
}

func TestDecodeComputesStatisticsOverFiniteValuesOnly(t *testing.T) {
	bucket := schema.Bucket{
		PVName: "PV1",
		Timestamps: &schema.DataTimestamps{Regular: true, Clock: schema.SamplingClock{
			StartTime: schema.Timestamp{EpochSeconds: 1000}, PeriodNanos: uint64(time.Second), Count: 4,
		}},
		Column: &schema.DataColumn{Values: []schema.DataValue{
			schema.Float64(1),
			schema.Float64(math.NaN()),
			schema.Float64(3),
			schema.Float64(math.Inf(1)),
		}},
	}

	series, stats, err := Decode(bucket)
	require.NoError(t, err)
	require.Len(t, series.Values, 4)
	assert.True(t, math.IsNaN(series.Values[1]), "NaN must survive decode, never be rescued to zero")
	assert.True(t, math.IsInf(series.Values[3], 1))

	assert.Equal(t, 4, stats.TotalPoints)
	assert.Equal(t, 2, stats.FinitePoints)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 3.0, stats.Max)
	assert.Equal(t, 2.0, stats.Mean)
}

func TestDecodeAllNonFiniteYieldsZeroedMinMax(t *testing.T) {
	bucket := schema.Bucket{
		Column: &schema.DataColumn{Values: []schema.DataValue{schema.Float64(math.NaN())}},
	}
	_, stats, err := Decode(bucket)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FinitePoints)
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 0.0, stats.Max)
}
