// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dpclient

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/osprey-dp/h5-to-dp/internal/wirecodec"
	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// QueryData performs a unary time-windowed pull of one or more PVs (spec
// §4.G "QueryData").
func (c *Client) QueryData(ctx context.Context, spec schema.QuerySpec) (schema.QueryResponse, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	var resp schema.QueryResponse
	err := c.doJSON(ctx, http.MethodPost, c.queryURL+"/api/query", spec, &resp)
	return resp, err
}

// QueryTable performs the tabular join variant of QueryData (spec §4.G
// "QueryTable"): one row per timestamp, one column per requested PV.
func (c *Client) QueryTable(ctx context.Context, spec schema.QuerySpec) ([][]schema.DataValue, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	var rows [][]schema.DataValue
	err := c.doJSON(ctx, http.MethodPost, c.queryURL+"/api/query/table", spec, &rows)
	return rows, err
}

// QueryPvMetadata looks up the structured SignalInfo for one or more PV
// names (spec §4.G "QueryPvMetadata"). Results are cached per exact pvNames
// set for pvMetadataTTL, since a decode pass commonly re-resolves the same
// PV list across many buckets.
func (c *Client) QueryPvMetadata(ctx context.Context, pvNames []string) ([]schema.PVInfo, error) {
	key := strings.Join(pvNames, ",")

	var callErr error
	value, _ := c.pvCache.Get(key, func() (interface{}, time.Duration) {
		infos, err := c.fetchPvMetadata(ctx, pvNames)
		callErr = err
		if err != nil {
			return nil, 0
		}
		return infos, pvMetadataTTL
	})
	if callErr != nil {
		c.pvCache.Invalidate(key)
		return nil, callErr
	}
	infos, _ := value.([]schema.PVInfo)
	return infos, nil
}

func (c *Client) fetchPvMetadata(ctx context.Context, pvNames []string) ([]schema.PVInfo, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := struct {
		PVNames []string `json:"pvNames"`
	}{pvNames}

	var infos []schema.PVInfo
	err := c.doJSON(ctx, http.MethodPost, c.queryURL+"/api/pvs/metadata", req, &infos)
	return infos, err
}

// QueryProviders lists every registered provider (spec §4.G
// "QueryProviders").
func (c *Client) QueryProviders(ctx context.Context) ([]schema.ProviderInfo, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	var providers []schema.ProviderInfo
	err := c.doJSON(ctx, http.MethodGet, c.queryURL+"/api/providers", nil, &providers)
	return providers, err
}

// QueryProviderMetadata fetches the full tag/attribute metadata for one
// provider (spec §4.G "QueryProviderMetadata").
func (c *Client) QueryProviderMetadata(ctx context.Context, providerID string) (schema.ProviderMetadata, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	var meta schema.ProviderMetadata
	err := c.doJSON(ctx, http.MethodGet, c.queryURL+"/api/providers/"+providerID, nil, &meta)
	return meta, err
}

// Decode turns one Bucket into a DecodedSeries plus Statistics computed over
// finite samples only (spec §4.G "Decoding a bucket", invariant 4). A bucket
// carrying a SerializedColumn is decoded via internal/wirecodec first — per
// spec Open Question 3 this path is never stubbed.
func Decode(bucket schema.Bucket) (schema.DecodedSeries, schema.Statistics, error) {
	column := bucket.Column
	if column == nil && bucket.SerializedColumn != nil {
		decoded, err := wirecodec.Decode(*bucket.SerializedColumn)
		if err != nil {
			return schema.DecodedSeries{}, schema.Statistics{}, err
		}
		column = &decoded
	}

	series := schema.DecodedSeries{PVName: bucket.PVName}
	stats := schema.Statistics{Min: math.Inf(1), Max: math.Inf(-1)}

	if bucket.Timestamps != nil {
		series.Timestamps = bucket.Timestamps.Expand()
	}
	if column != nil {
		series.Values = make([]float64, len(column.Values))
		for i, v := range column.Values {
			f := v.AsFloat64()
			series.Values[i] = f
			stats.TotalPoints++
			if !math.IsNaN(f) && !math.IsInf(f, 0) {
				stats.FinitePoints++
				if f < stats.Min {
					stats.Min = f
				}
				if f > stats.Max {
					stats.Max = f
				}
				stats.Mean += f
			}
		}
	}

	if stats.FinitePoints > 0 {
		stats.Mean /= float64(stats.FinitePoints)
	} else {
		stats.Min, stats.Max = 0, 0
	}

	return series, stats, nil
}
