package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

func sampleSummary() *catalog.Summary {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	return &catalog.Summary{
		RunID:           "run-1",
		Root:            "/data",
		Batches:         2,
		Found:           catalog.Counts{Acquisitions: 3, Previews: 1, Intermediates: 4, Finals: 2},
		Skipped:         catalog.Counts{Finals: 1},
		Totals:          catalog.Counts{Acquisitions: 10, Previews: 5, Intermediates: 12, Finals: 7},
		ScanStartedAt:   start,
		InsertStartedAt: start.Add(90 * time.Second),
		EndedAt:         start.Add(95 * time.Second),
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummary(), Meta{DBPath: "/srv/renders.db", Now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}))
	out := buf.String()

	for _, want := range []string{
		"DopplerIndex Scan Report",
		"Scan Path       : /data",
		"DB Path         : /srv/renders.db",
		"Scan Date       : 2025-01-01 10:00:00",
		"Report Date     : 2025-01-01 12:00:00",
		"Scan Duration   : 1m30s",
		"Insert Duration : 5s",
		"Total Duration  : 1m35s",
		"Found Holo      : 3",
		"Found HD        : 4",
		"Skipped EF      : 1",
		"Total Preview   : 5",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "CURRENT IN DB"))
}

func TestRenderMissingTimestamps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &catalog.Summary{}, Meta{}))
	assert.Contains(t, buf.String(), "Scan Date       : N/A")
	assert.Contains(t, buf.String(), "Insert Duration : N/A")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "scan.txt")
	summaries := []*catalog.Summary{sampleSummary(), sampleSummary()}

	require.NoError(t, WriteFile(path, summaries, Meta{DBPath: "x.db"}, logging.NewNopLogger()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "DopplerIndex Scan Report"))
}
