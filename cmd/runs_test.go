package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hunterpro/hunter-cli/internal/cost"
	"github.com/hunterpro/hunter-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.HuntRun{
		{
			ID:            "abc12345-6789-0000-0000-000000000000",
			Intent:        "شقة مطلوبة",
			City:          "Cairo",
			Status:        model.RunStatusComplete,
			QueriesIssued: 12,
			LeadsFound:    4,
			LeadsCreated:  3,
			DurationSecs:  42.5,
			StartedAt:     now,
		},
		{
			ID:          "def12345-6789-0000-0000-000000000000",
			Intent:      "villa wanted",
			City:        "Giza",
			Status:      model.RunStatusAborted,
			AbortReason: model.AbortNoCredentials,
			StartedAt:   now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "INTENT")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "شقة مطلوبة")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "aborted (no_credentials)")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "42.5s")
}

func TestComputeRunStats(t *testing.T) {
	runs := []model.HuntRun{
		{Status: model.RunStatusComplete, QueriesIssued: 12, QueriesFailed: 1, LeadsFound: 5, LeadsCreated: 2, DurationSecs: 30},
		{Status: model.RunStatusComplete, QueriesIssued: 12, LeadsFound: 1, LeadsCreated: 1, DurationSecs: 20},
		{Status: model.RunStatusAborted, AbortReason: model.AbortNoCredentials},
		{Status: model.RunStatusAborted, AbortReason: model.AbortCanceled, QueriesIssued: 3, DurationSecs: 10},
	}

	s := computeRunStats(runs, cost.NewCalculator(cost.DefaultRates()), 50)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 2, s.Aborted)
	assert.Equal(t, 1, s.NoCredentials)
	assert.Equal(t, 1, s.Canceled)
	assert.Equal(t, 27, s.Queries)
	assert.Equal(t, 1, s.FailedQueries)
	assert.Equal(t, 6, s.LeadsFound)
	assert.Equal(t, 3, s.LeadsCreated)
	assert.InDelta(t, 15.0, s.AvgDurSecs, 0.001)
	assert.Equal(t, 52, s.Credits)
	assert.InDelta(t, 0.052, s.CostUSD, 1e-9)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil, nil, 0)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.AvgDurSecs)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 3, Complete: 2, Aborted: 1, NoCredentials: 1, LeadsCreated: 4, AvgDurSecs: 12.3, Credits: 40, CostUSD: 0.04})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "No credentials:")
	assert.Contains(t, output, "Leads created:")
	assert.Contains(t, output, "12.3s")
	assert.Contains(t, output, "40 ($0.040)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "شقة", truncateText("شقة", 10))
	assert.Equal(t, "abcd...", truncateText("abcdefghij", 7))
}
