// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osprey-dp/h5-to-dp/pkg/schema"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestDisabledLedgerIsANoOp(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)

	runID, err := l.StartRun(0, "/root", "provider-1")
	require.NoError(t, err)
	assert.Zero(t, runID)

	require.NoError(t, l.RecordFileAttempt(0, "a.h5", 0, true, 1, ""))
	attempts, err := l.PriorAttempts("a.h5")
	require.NoError(t, err)
	assert.Nil(t, attempts)
	assert.NoError(t, l.Close())
}

func TestStartRunAndRecordFileAttempt(t *testing.T) {
	l := openTestLedger(t)

	runID, err := l.StartRun(1700000000, "/data/root", "provider-1")
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0))

	require.NoError(t, l.RecordFileAttempt(runID, "/data/root/a.h5", 1700000001, true, 12, ""))
	require.NoError(t, l.RecordFileAttempt(runID, "/data/root/a.h5", 1700000050, false, 0, "read error"))

	attempts, err := l.PriorAttempts("/data/root/a.h5")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	// most recent first
	assert.False(t, attempts[0].Succeeded)
	assert.Equal(t, "read error", attempts[0].ErrorMessage)
	assert.True(t, attempts[1].Succeeded)
	assert.Equal(t, 12, attempts[1].SignalCount)
}

func TestPriorAttemptsEmptyForUnknownPath(t *testing.T) {
	l := openTestLedger(t)
	attempts, err := l.PriorAttempts("/never/seen.h5")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestUpsertRequestStatusInsertsThenUpdates(t *testing.T) {
	l := openTestLedger(t)
	runID, err := l.StartRun(1700000000, "/data/root", "provider-1")
	require.NoError(t, err)

	status := schema.RequestStatus{
		ClientRequestID: "provider-1_1_1700000000",
		ProviderID:      "provider-1",
		Status:          schema.StatusNotReady,
		Message:         "queued",
	}
	require.NoError(t, l.UpsertRequestStatus(runID, 1700000001, status))

	status.Status = schema.StatusError
	status.Message = "rejected"
	require.NoError(t, l.UpsertRequestStatus(runID, 1700000002, status))

	var count int
	row := l.db.QueryRow(`SELECT count(*) FROM request_status WHERE client_request_id = ?`, status.ClientRequestID)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count, "upsert must not create a second row for the same ClientRequestID")

	var gotMessage string
	row = l.db.QueryRow(`SELECT message FROM request_status WHERE client_request_id = ?`, status.ClientRequestID)
	require.NoError(t, row.Scan(&gotMessage))
	assert.Equal(t, "rejected", gotMessage)
}
