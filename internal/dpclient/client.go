// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dpclient implements components F and G: the HTTP/JSON client
// talking to DP's ingest and query services.
//
// The spec describes these as RPCs (unary, client-streaming, bidi-streaming);
// this engine has no protobuf/gRPC toolchain available, so every call is
// carried over HTTP/JSON instead, grounded on the teacher's
// internal/metricstoreclient HTTP client (same shape: a small struct holding
// an http.Client and a base URL, a doRequest helper, bearer-token auth).
// Streaming calls are represented as chunked NDJSON bodies: the client writes
// or reads one JSON object per line rather than opening a second connection
// per direction, the same substitution spec §6 calls out under "Transport".
package dpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/lrucache"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// pvMetadataTTL bounds how long a QueryPvMetadata result is reused before
// the client re-asks the server, in case PV metadata is edited upstream.
const pvMetadataTTL = 30 * time.Second

// Client is the HTTP client for DP's ingest and query services.
type Client struct {
	http         *http.Client
	ingestURL    string
	queryURL     string
	callDeadline time.Duration
	limiter      *rate.Limiter
	pvCache      *lrucache.Cache
	inFlight     chan struct{}
}

// Options configures New.
type Options struct {
	IngestServer string
	QueryServer  string
	CallDeadline time.Duration

	// OAuth client-credentials config; Enabled=false skips bearer auth
	// entirely (spec §6's auth is deployment-specific and optional).
	OAuthEnabled      bool
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	// InterBatchPause throttles every call (one limiter Wait per unary call
	// or per stream session) via a token-bucket limiter so a fast
	// worker pool never outpaces DP's ingest service (spec §4.F, §9
	// "Backpressure").
	InterBatchPause time.Duration

	// InFlightBatches bounds how many IngestData/IngestDataStream calls may
	// be outstanding at once, the single throttle that bounds memory
	// regardless of input size (spec §4.F, §5, §9 "Backpressure") —
	// independent of and complementary to InterBatchPause's time-based
	// pacing.
	InFlightBatches int
}

// New builds a Client from opts. Both server addresses are expected to be
// bare host:port; "http://" is prefixed if missing.
func New(opts Options) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if opts.OAuthEnabled {
		cfg := clientcredentials.Config{
			ClientID:     opts.OAuthClientID,
			ClientSecret: opts.OAuthClientSecret,
			TokenURL:     opts.OAuthTokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cfg.Client(ctx)
	}

	pause := opts.InterBatchPause
	if pause <= 0 {
		pause = 200 * time.Millisecond
	}

	inFlight := opts.InFlightBatches
	if inFlight <= 0 {
		inFlight = 4
	}

	return &Client{
		http:         httpClient,
		ingestURL:    withScheme(opts.IngestServer),
		queryURL:     withScheme(opts.QueryServer),
		callDeadline: opts.CallDeadline,
		limiter:      rate.NewLimiter(rate.Every(pause), 1),
		pvCache:      lrucache.New(),
		inFlight:     make(chan struct{}, inFlight),
	}
}

// acquire blocks until a slot in the in-flight batch window is free, or ctx
// is done.
func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.inFlight <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.inFlight
}

func withScheme(addr string) string {
	if addr == "" {
		return addr
	}
	if len(addr) >= 7 && addr[:7] == "http://" {
		return addr
	}
	if len(addr) >= 8 && addr[:8] == "https://" {
		return addr
	}
	return "http://" + addr
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.callDeadline <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.callDeadline)
}

// doJSON sends body to url with the given method and decodes the JSON
// response into out. A non-2xx
// status is read as an ExceptionalResult per spec §6's response taxonomy.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("performing request to %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var exc schema.ExceptionalResult
		if derr := json.NewDecoder(res.Body).Decode(&exc); derr == nil && exc.Status != "" {
			return &exc
		}
		return fmt.Errorf("%s: HTTP status %s", url, res.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(bufio.NewReader(res.Body)).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// RegisterProvider registers this engine run as a data provider, returning
// the ProviderID every subsequent IngestRecord must carry (spec §4.F).
func (c *Client) RegisterProvider(ctx context.Context, name, description string) (schema.ProviderRegistration, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}{name, description}

	var reg schema.ProviderRegistration
	err := c.doJSON(ctx, http.MethodPost, c.ingestURL+"/api/providers/register", req, &reg)
	return reg, err
}

// IngestData sends a single IngestRecord as a unary call, returning its Ack
// (spec §4.F, §6 "IngestData": one record, one RPC, one ack — batching by B
// is a streaming-mode concept only, see IngestDataStream).
func (c *Client) IngestData(ctx context.Context, record schema.IngestRecord) (schema.Ack, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if err := c.acquire(ctx); err != nil {
		return schema.Ack{}, err
	}
	defer c.release()

	var ack schema.Ack
	err := c.doJSON(ctx, http.MethodPost, c.ingestURL+"/api/ingest", record, &ack)
	return ack, err
}

// QueryRequestStatus looks up the server's bookkeeping for a previously-sent
// ClientRequestID (spec §4.F "QueryRequestStatus").
func (c *Client) QueryRequestStatus(ctx context.Context, clientRequestID string) (schema.RequestStatus, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	var status schema.RequestStatus
	url := c.ingestURL + "/api/requests/" + clientRequestID + "/status"
	err := c.doJSON(ctx, http.MethodGet, url, nil, &status)
	return status, err
}

func logCallFailure(op string, err error) {
	if err != nil {
		log.Errorf("dpclient: %s failed: %v", op, err)
	}
}
