package catalog

import "time"

// Counts is a per-entity tally.
type Counts struct {
	Acquisitions  int `json:"acquisitions"`
	Previews      int `json:"previews"`
	Intermediates int `json:"intermediates"`
	Finals        int `json:"finals"`
}

// Total sums all kinds.
func (c Counts) Total() int {
	return c.Acquisitions + c.Previews + c.Intermediates + c.Finals
}

// Summary describes one committed ingest run. It is consumed by the report
// renderer and by the HTTP layer's post-scan notification.
type Summary struct {
	RunID   string `json:"run_id"`
	Root    string `json:"root"`
	Batches int    `json:"batches"`

	// Found is what the crawl produced, Skipped what the loader dropped,
	// Totals what storage holds after the commit.
	Found   Counts `json:"found"`
	Skipped Counts `json:"skipped"`
	Totals  Counts `json:"totals"`

	Reset bool `json:"reset"`

	ScanStartedAt   time.Time `json:"scan_started_at"`
	InsertStartedAt time.Time `json:"insert_started_at"`
	EndedAt         time.Time `json:"ended_at"`
}

// Inserted is the number of rows written by the run.
func (s *Summary) Inserted() Counts {
	return Counts{
		Acquisitions:  s.Found.Acquisitions - s.Skipped.Acquisitions,
		Previews:      s.Found.Previews - s.Skipped.Previews,
		Intermediates: s.Found.Intermediates - s.Skipped.Intermediates,
		Finals:        s.Found.Finals - s.Skipped.Finals,
	}
}

func (s *Summary) ScanDuration() time.Duration {
	return durationBetween(s.ScanStartedAt, s.InsertStartedAt)
}

func (s *Summary) InsertDuration() time.Duration {
	return durationBetween(s.InsertStartedAt, s.EndedAt)
}

func (s *Summary) TotalDuration() time.Duration {
	return durationBetween(s.ScanStartedAt, s.EndedAt)
}

func durationBetween(start, end time.Time) time.Duration {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}
