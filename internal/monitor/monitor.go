// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package monitor implements the SubscribeData fan-out (spec §6
// "SubscribeData"): as IngestRecords are built, a live sample of their
// values is published over NATS using the InfluxDB line-protocol wire
// format, so an operator can tail a running engine with any NATS/line-
// protocol-aware tool without waiting for DP's own query path.
//
// Grounded on the teacher's pkg/nats.Client (connection management,
// reconnect/error handlers, Publish) and its influxDecoder.go use of
// influxdata/line-protocol/v2 — here used for encoding rather than decoding.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	influx "github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// Publisher publishes a live sample of ingested signals to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	mu      sync.Mutex
	enc     influx.Encoder
}

// Connect dials addr and returns a Publisher bound to subject. An empty addr
// disables the publisher: Publish becomes a no-op, so callers don't need a
// separate "monitoring enabled" branch.
func Connect(addr, subject string) (*Publisher, error) {
	if addr == "" {
		return &Publisher{}, nil
	}

	opts := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("monitor: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("monitor: NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("monitor: NATS connect to %s failed: %w", addr, err)
	}

	log.Infof("monitor: NATS connected to %s, publishing on %q", addr, subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// Publish encodes one IngestRecord's first sample as an InfluxDB line
// protocol point and publishes it. Only the first sample per record is sent
// — SubscribeData is a liveness/sanity tap, not a full replay channel (spec
// §6).
func (p *Publisher) Publish(record schema.IngestRecord) {
	if p.conn == nil {
		return
	}
	if len(record.DataFrame.Columns) == 0 || len(record.DataFrame.Columns[0].Values) == 0 {
		return
	}

	column := record.DataFrame.Columns[0]
	sample := column.Values[0].AsFloat64()
	ts := record.DataFrame.Timestamps.Expand()
	var when time.Time
	if len(ts) > 0 {
		when = ts[0].Time()
	} else {
		when = time.Unix(0, 0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.enc.Reset()
	p.enc.StartLine(column.Name)
	p.enc.AddTag([]byte("providerId"), []byte(record.ProviderID))
	p.enc.AddField([]byte("value"), influx.MustNewValue(sample))
	p.enc.EndLine(when)

	buf, err := p.enc.Bytes(), p.enc.Err()
	if err != nil {
		log.Warnf("monitor: encoding line protocol for %s: %v", column.Name, err)
		return
	}

	if err := p.conn.Publish(p.subject, buf); err != nil {
		log.Warnf("monitor: publishing %s: %v", column.Name, err)
	}
}

// Close releases the NATS connection. A disabled Publisher's Close is a
// no-op.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
