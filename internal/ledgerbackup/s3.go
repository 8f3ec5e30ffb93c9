// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ledgerbackup optionally uploads a run bookkeeping file to
// S3-compatible object storage; cmd/h5-to-dp uses it to upload the sqlite
// ledger once at the end of a run (the processed-file cache is not uploaded)
// (spec-supplement: a headless batch engine that runs unattended on a
// cluster still benefits from its bookkeeping surviving the local disk).
//
// Grounded on the teacher's pkg/archive/parquet.S3Target: same
// aws-sdk-go-v2 config/credentials/client construction, same
// static-credentials + optional custom endpoint + path-style option shape.
package ledgerbackup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config configures New. An empty Bucket disables the backup entirely.
type Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// Target uploads run artifacts to an S3-compatible bucket.
type Target struct {
	client *s3.Client
	bucket string
}

// New builds a Target from cfg. A Target built from an empty cfg.Bucket is
// valid and its UploadFile calls are no-ops.
func New(ctx context.Context, cfg Config) (*Target, error) {
	if cfg.Bucket == "" {
		return &Target{}, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ledgerbackup: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	client := s3.NewFromConfig(awsCfg, opts)
	return &Target{client: client, bucket: cfg.Bucket}, nil
}

// UploadFile uploads the file at localPath under key. A disabled Target
// returns nil without touching the network.
func (t *Target) UploadFile(ctx context.Context, localPath, key string) error {
	if t.client == nil {
		return nil
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("ledgerbackup: reading %s: %w", localPath, err)
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(localPath) {
	case ".db", ".sqlite":
		contentType = "application/vnd.sqlite3"
	case ".txt":
		contentType = "text/plain"
	}

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("ledgerbackup: put object %q: %w", key, err)
	}
	return nil
}
