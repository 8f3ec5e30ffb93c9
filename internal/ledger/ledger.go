// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

// StartRun records the start of a new run and returns its row id. A
// disabled Ledger returns 0, nil.
func (l *Ledger) StartRun(startedAtUnix int64, rootDir, providerID string) (int64, error) {
	if l.db == nil {
		return 0, nil
	}
	res, err := sq.Insert("run").
		Columns("started_at", "root_dir", "provider_id").
		Values(startedAtUnix, rootDir, providerID).
		RunWith(l.db).Exec()
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordFileAttempt appends one row per file processing attempt, success or
// failure. A disabled Ledger is a no-op.
func (l *Ledger) RecordFileAttempt(runID int64, path string, attemptedAtUnix int64, succeeded bool, signalCount int, errMsg string) error {
	if l.db == nil {
		return nil
	}
	var errCol interface{}
	if errMsg != "" {
		errCol = errMsg
	}
	_, err := sq.Insert("file_attempt").
		Columns("run_id", "path", "attempted_at", "succeeded", "signal_count", "error_message").
		Values(runID, path, attemptedAtUnix, boolToInt(succeeded), signalCount, errCol).
		RunWith(l.db).Exec()
	return err
}

// UpsertRequestStatus records or updates the server-reported status for one
// ClientRequestID (spec §4.F "QueryRequestStatus" bookkeeping).
func (l *Ledger) UpsertRequestStatus(runID int64, updatedAtUnix int64, status schema.RequestStatus) error {
	if l.db == nil {
		return nil
	}
	_, err := l.db.Exec(`
		INSERT INTO request_status (client_request_id, run_id, provider_id, status, message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_request_id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at`,
		status.ClientRequestID, runID, status.ProviderID, string(status.Status), status.Message, updatedAtUnix,
	)
	return err
}

// PriorAttempts returns every recorded attempt for path, most recent first.
// A disabled Ledger returns an empty slice.
func (l *Ledger) PriorAttempts(path string) ([]FileAttempt, error) {
	if l.db == nil {
		return nil, nil
	}
	rows, err := sq.Select("id", "run_id", "path", "attempted_at", "succeeded", "signal_count", "error_message").
		From("file_attempt").
		Where(sq.Eq{"path": path}).
		OrderBy("attempted_at DESC").
		RunWith(l.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileAttempt
	for rows.Next() {
		var a FileAttempt
		var succeeded int
		var errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &a.Path, &a.AttemptedAt, &succeeded, &a.SignalCount, &errMsg); err != nil {
			return nil, err
		}
		a.Succeeded = succeeded != 0
		a.ErrorMessage = errMsg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// FileAttempt is one row of the file_attempt table.
type FileAttempt struct {
	ID           int64
	RunID        int64
	Path         string
	AttemptedAt  int64
	Succeeded    bool
	SignalCount  int
	ErrorMessage string
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
