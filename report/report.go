// Package report renders the plain-text summary written after each scan.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

const width = 40

// Meta is context the summary itself does not carry.
type Meta struct {
	DBPath string
	// Now stamps the report; zero means time.Now().
	Now time.Time
}

func center(s string) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return "N/A"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}

// Render writes the report for one committed run.
func Render(w io.Writer, s *catalog.Summary, meta Meta) error {
	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}
	sep := strings.Repeat("=", width)

	var b bytes.Buffer
	line := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	line("%s", sep)
	line("%s", center("DopplerIndex Scan Report"))
	line("%s", sep)
	line("")
	line("Run ID          : %s", s.RunID)
	line("Scan Path       : %s", s.Root)
	line("DB Path         : %s", meta.DBPath)
	line("Batch Folders   : %d", s.Batches)
	line("Reset           : %t", s.Reset)
	line("")
	line("Scan Date       : %s", formatDate(s.ScanStartedAt))
	line("Insert Date     : %s", formatDate(s.InsertStartedAt))
	line("End Date        : %s", formatDate(s.EndedAt))
	line("Report Date     : %s", formatDate(now))
	line("")
	line("Scan Duration   : %s", formatDuration(s.ScanStartedAt, s.InsertStartedAt))
	line("Insert Duration : %s", formatDuration(s.InsertStartedAt, s.EndedAt))
	line("Total Duration  : %s", formatDuration(s.ScanStartedAt, s.EndedAt))
	line("")
	line("%s", sep)
	line("%s", center("METRICS"))
	line("%s", sep)
	line("")
	line("%s", center("WHILE SCANNING"))
	line("")
	writeCounts(line, "Found", s.Found)
	line("")
	line("%s", center("SKIPPED"))
	line("")
	writeCounts(line, "Skipped", s.Skipped)
	line("")
	line("%s", sep)
	line("")
	line("%s", center("CURRENT IN DB"))
	line("")
	writeCounts(line, "Total", s.Totals)

	_, err := w.Write(b.Bytes())
	return err
}

func writeCounts(line func(string, ...any), label string, c catalog.Counts) {
	pad := func(kind string) string { return fmt.Sprintf("%-16s", label+" "+kind) }
	line("%s: %d", pad("Holo"), c.Acquisitions)
	line("%s: %d", pad("HD"), c.Intermediates)
	line("%s: %d", pad("EF"), c.Finals)
	line("%s: %d", pad("Preview"), c.Previews)
}

// WriteFile renders one section per summary into path, creating parent
// directories as needed.
func WriteFile(path string, summaries []*catalog.Summary, meta Meta, log *logging.Logger) error {
	log = log.Tag(logging.TagReport)

	var b bytes.Buffer
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n")
		}
		if err := Render(&b, s, meta); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Error("failed to create report directory", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		log.Error("failed to generate report", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	log.Info("report generated", zap.String("path", path))
	return nil
}
