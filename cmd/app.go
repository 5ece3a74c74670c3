package cmd

import (
	"database/sql"
	"time"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/config"
	"github.com/camden-git/dopplerindex/crawler"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/loader"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/metrics"
	"github.com/camden-git/dopplerindex/report"
	"github.com/camden-git/dopplerindex/scan"
)

// crawlerOptions maps the scan.* settings onto the crawler.
func crawlerOptions(s *config.Settings) crawler.Options {
	defaults := crawler.DefaultOptions()
	return crawler.Options{
		AcquisitionExt:  s.String(config.KeyScanAcquisitionExt, defaults.AcquisitionExt),
		PreviewExts:     s.Strings(config.KeyScanPreviewExts, defaults.PreviewExts),
		LoadInputParams: s.Bool(config.KeyScanLoadInputParams, defaults.LoadInputParams),
	}
}

// openIndex opens the SQLite index; the file is replaced when forced or
// when db.override_db is set.
func openIndex(c config.Config, force bool, log *logging.Logger) (*sql.DB, error) {
	return database.InitDB(c.DatabasePath, database.Options{
		Override: force || c.Settings.Bool(config.KeyDBOverride, false),
	}, log)
}

func newOrchestrator(c config.Config, db *sql.DB, m *metrics.Metrics, log *logging.Logger) *scan.Orchestrator {
	return &scan.Orchestrator{
		Crawler:  crawler.New(log, crawlerOptions(c.Settings)),
		Loader:   loader.New(db, log, m),
		Log:      log,
		Metrics:  m,
		Parallel: c.Settings.Bool(config.KeyScanParallel, true),
		Workers:  c.Settings.ScanWorkers(),
	}
}

// writeReport writes the scan report when a report path is configured.
func writeReport(c config.Config, summaries []*catalog.Summary, log *logging.Logger) error {
	if c.ReportPath == "" || len(summaries) == 0 {
		return nil
	}
	return report.WriteFile(c.ReportPath, summaries, report.Meta{DBPath: c.DatabasePath, Now: time.Now()}, log)
}
