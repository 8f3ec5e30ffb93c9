// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// IngestDataStream sends records as a single chunked request body, one JSON
// object per line, and decodes the terminal StreamSummary the server writes
// once every line has been consumed — the NDJSON substitute for DP's
// client-streaming IngestDataStream RPC (spec §4.F, §6).
func (c *Client) IngestDataStream(ctx context.Context, records []schema.IngestRecord) (schema.StreamSummary, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return schema.StreamSummary{}, err
	}
	if err := c.acquire(ctx); err != nil {
		return schema.StreamSummary{}, err
	}
	defer c.release()

	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				pw.CloseWithError(fmt.Errorf("encoding stream record: %w", err))
				return
			}
		}
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL+"/api/ingest/stream", pr)
	if err != nil {
		return schema.StreamSummary{}, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	res, err := c.http.Do(req)
	if err != nil {
		return schema.StreamSummary{}, fmt.Errorf("performing stream request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return schema.StreamSummary{}, fmt.Errorf("%s: HTTP status %s", req.URL, res.Status)
	}

	var summary schema.StreamSummary
	if err := json.NewDecoder(bufio.NewReader(res.Body)).Decode(&summary); err != nil {
		return schema.StreamSummary{}, fmt.Errorf("decoding stream summary: %w", err)
	}
	return summary, nil
}

// IngestDataBidiStream sends records one line at a time and calls onAck as
// each corresponding ack or error arrives on the response body, rather than
// waiting for a terminal summary — the NDJSON substitute for DP's
// bidi-streaming IngestDataBidiStream RPC (spec §4.F, §6). It blocks until
// every record has been sent and every matching response line read.
func (c *Client) IngestDataBidiStream(ctx context.Context, records []schema.IngestRecord, onAck func(int, schema.Ack, *schema.ExceptionalResult)) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				pw.CloseWithError(fmt.Errorf("encoding bidi record: %w", err))
				return
			}
		}
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL+"/api/ingest/bidi", pr)
	if err != nil {
		return fmt.Errorf("building bidi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("performing bidi request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: HTTP status %s", req.URL, res.Status)
	}

	type line struct {
		Ack   *schema.Ack               `json:"ack,omitempty"`
		Error *schema.ExceptionalResult `json:"error,omitempty"`
	}

	dec := json.NewDecoder(bufio.NewReader(res.Body))
	for i := range records {
		var l line
		if err := dec.Decode(&l); err != nil {
			if err == io.EOF {
				return fmt.Errorf("bidi stream closed early after %d/%d responses", i, len(records))
			}
			return fmt.Errorf("decoding bidi response %d: %w", i, err)
		}
		var ack schema.Ack
		if l.Ack != nil {
			ack = *l.Ack
		}
		onAck(i, ack, l.Error)
	}
	return nil
}

// QueryDataStream pulls a QuerySpec's results as NDJSON and invokes onBucket
// for each decoded Bucket — the substitute for QueryDataStream (spec §4.G).
func (c *Client) QueryDataStream(ctx context.Context, spec schema.QuerySpec, onBucket func(schema.Bucket) error) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	buf, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding query spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL+"/api/query/stream", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("building query stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("performing query stream request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: HTTP status %s", req.URL, res.Status)
	}

	dec := json.NewDecoder(bufio.NewReader(res.Body))
	for dec.More() {
		var bucket schema.Bucket
		if err := dec.Decode(&bucket); err != nil {
			return fmt.Errorf("decoding bucket: %w", err)
		}
		if err := onBucket(bucket); err != nil {
			return err
		}
	}
	return nil
}

// QueryDataBidiStream issues one separate QueryDataStream request per
// pvName, in order, and invokes onBucket with that pvName for each bucket
// streamed back — the substitute for QueryDataBidiStream (spec §4.G). It
// does not share one connection across PVs and has no cursor-based paging;
// the first error from a request or from onBucket stops the loop.
func (c *Client) QueryDataBidiStream(ctx context.Context, base schema.QuerySpec, pvNames []string, onBucket func(string, schema.Bucket) error) error {
	for _, pv := range pvNames {
		spec := base
		spec.PVNames = []string{pv}
		var innerErr error
		err := c.QueryDataStream(ctx, spec, func(b schema.Bucket) error {
			return onBucket(pv, b)
		})
		if err != nil {
			return err
		}
		if innerErr != nil {
			return innerErr
		}
	}
	return nil
}
