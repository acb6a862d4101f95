package main

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterpro/hunter-cli/internal/model"
)

func sampleLeads() []model.Lead {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []model.Lead{
		{
			Phone:     "01012345678",
			Source:    "serper: شقة مطلوبة",
			Quality:   model.QualityExcellent,
			Segment:   model.SegmentLuxury,
			Status:    model.LeadStatusNew,
			Notes:     "https://example.com/post/1",
			Actor:     "admin",
			CreatedAt: created,
		},
	}
}

func TestWriteLeadsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLeadsCSV(&buf, sampleLeads()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, leadCSVHeader, rows[0])
	assert.Equal(t, []string{
		"01012345678", "+20 10 1234 5678", "EXCELLENT", "LUXURY", "hot", "NEW",
		"serper: شقة مطلوبة", "https://example.com/post/1", "admin", "2026-05-01T09:00:00Z",
	}, rows[1])
}

func TestFormatLeadsList(t *testing.T) {
	var buf bytes.Buffer
	formatLeadsList(&buf, sampleLeads())

	output := buf.String()
	assert.Contains(t, output, "PHONE")
	assert.Contains(t, output, "01012345678")
	assert.Contains(t, output, "EXCELLENT")
	assert.Contains(t, output, "2026-05-01 09:00")
}

func newLeadFilterCmd() *cobra.Command {
	c := &cobra.Command{}
	c.Flags().String("status", "", "")
	c.Flags().String("quality", "", "")
	c.Flags().String("segment", "", "")
	c.Flags().String("user", "", "")
	c.Flags().Duration("since", 0, "")
	c.Flags().Int("limit", 0, "")
	return c
}

func TestLeadFilterFromFlags(t *testing.T) {
	c := newLeadFilterCmd()
	require.NoError(t, c.Flags().Set("quality", "good"))
	require.NoError(t, c.Flags().Set("segment", "SOCIAL"))
	require.NoError(t, c.Flags().Set("since", "24h"))
	require.NoError(t, c.Flags().Set("limit", "5"))

	f, err := leadFilterFromFlags(c)
	require.NoError(t, err)
	assert.Equal(t, model.QualityGood, f.Quality)
	assert.Equal(t, model.SegmentSocial, f.Segment)
	assert.Equal(t, 5, f.Limit)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), f.CreatedAfter, time.Minute)
}

func TestLeadFilterFromFlags_BadQuality(t *testing.T) {
	c := newLeadFilterCmd()
	require.NoError(t, c.Flags().Set("quality", "superb"))

	_, err := leadFilterFromFlags(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown quality")
}
