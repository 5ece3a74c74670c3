package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/config"
	"github.com/camden-git/dopplerindex/crawler"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/repository"
)

func TestCrawlerOptionsFromSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, crawler.DefaultOptions(), crawlerOptions(config.NewSettings(nil)))
	})

	t.Run("overrides", func(t *testing.T) {
		s := config.NewSettings(map[string]any{"scan": map[string]any{
			"acquisition_ext":   ".HOLO",
			"preview_exts":      []any{".mkv"},
			"load_input_params": true,
		}})
		opts := crawlerOptions(s)
		assert.Equal(t, ".HOLO", opts.AcquisitionExt)
		assert.Equal(t, []string{".mkv"}, opts.PreviewExts)
		assert.True(t, opts.LoadInputParams)
	})
}

func TestScanThenPrintIndex(t *testing.T) {
	root := t.TempDir()
	batch := filepath.Join(root, "250101_ABC")
	require.NoError(t, os.MkdirAll(filepath.Join(batch, "run1_HD_0", "eyeflow", "run1_HD_0_EF_0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batch, "run1.holo"), []byte("holo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(batch, "run2.holo"), []byte("holo"), 0o644))

	log := logging.NewNopLogger()
	c := config.Config{
		DatabasePath: filepath.Join(t.TempDir(), "renders.db"),
		ReportPath:   filepath.Join(t.TempDir(), "out", "scan_report.txt"),
		Settings:     config.NewSettings(map[string]any{"scan": map[string]any{"parallel": false}}),
	}

	db, err := openIndex(c, false, log)
	require.NoError(t, err)
	defer db.Close()

	orch := newOrchestrator(c, db, nil, log)
	assert.False(t, orch.Parallel)
	summaries, err := orch.Scan(context.Background(), []string{root}, true, nil)
	require.NoError(t, err)
	require.NoError(t, writeReport(c, summaries, log))

	data, err := os.ReadFile(c.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DopplerIndex Scan Report")

	gormDB, err := database.InitGormDB(db, log)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printIndex(&out, repository.NewCatalogRepository(gormDB), c.DatabasePath))
	assert.Contains(t, out.String(), "Holo files:            2")
	assert.Contains(t, out.String(), "HD folders:            1")
	assert.Contains(t, out.String(), "Unprocessed holo:      1")
	assert.Contains(t, out.String(), "Incomplete EF folders: 1")
}

func TestWriteReportDisabled(t *testing.T) {
	c := config.Config{ReportPath: ""}
	assert.NoError(t, writeReport(c, nil, logging.NewNopLogger()))
}

func TestPartialScanError(t *testing.T) {
	cause := errors.New("failed to load /data/b: disk full")

	assert.Same(t, cause, partialScanError(cause, nil, true), "nothing committed, nothing to add")

	committed := []*catalog.Summary{{Root: "/data/a"}}
	err := partialScanError(cause, committed, true)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reset was applied")
	assert.Contains(t, err.Error(), "/data/a")

	err = partialScanError(cause, committed, false)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "reset")
	assert.Contains(t, err.Error(), "/data/a")
}
