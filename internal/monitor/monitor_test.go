// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func TestConnectWithEmptyAddrDisablesPublisher(t *testing.T) {
	p, err := Connect("", "ignored.subject")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.conn)
}

func TestPublishOnDisabledPublisherIsANoOp(t *testing.T) {
	p, err := Connect("", "subject")
	require.NoError(t, err)

	record := schema.IngestRecord{
		ProviderID: "prov-1",
		DataFrame: schema.DataFrame{
			Timestamps: &schema.DataTimestamps{},
			Columns:    []schema.DataColumn{{Name: "PV1", Values: []schema.DataValue{schema.Float64(1)}}},
		},
	}
	assert.NotPanics(t, func() { p.Publish(record) })
}

func TestPublishWithNoColumnsIsANoOp(t *testing.T) {
	p, err := Connect("", "subject")
	require.NoError(t, err)
	assert.NotPanics(t, func() { p.Publish(schema.IngestRecord{}) })
}

func TestCloseOnDisabledPublisherIsANoOp(t *testing.T) {
	p, err := Connect("", "subject")
	require.NoError(t, err)
	assert.NotPanics(t, p.Close)
}

func TestConnectToUnreachableAddrReturnsError(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "subject")
	assert.Error(t, err)
}
