package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
)

// ErrScanRunning is returned by Runner.Start while another scan is active.
var ErrScanRunning = errors.New("a scan is already running")

// Event kinds emitted by a Runner.
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// Event is a progress notification for listeners such as the websocket hub.
type Event struct {
	Kind     string
	Fraction float64
	Label    string
	Status   Status
}

// Status describes the latest run a Runner started.
type Status struct {
	Running   bool               `json:"running"`
	Roots     []string           `json:"roots"`
	Reset     bool               `json:"reset"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
	Summaries []*catalog.Summary `json:"summaries,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Runner serialises scans triggered from long-lived processes: at most one
// runs at a time and its outcome stays queryable afterwards.
type Runner struct {
	Orchestrator *Orchestrator
	Roots        []string
	// Notify, when set, receives every event. It is called from the scan
	// goroutine and must not block for long.
	Notify func(Event)
	// AfterScan, when set, runs after a successful scan (report writing).
	AfterScan func(summaries []*catalog.Summary) error

	mu     sync.Mutex
	status *Status
	wg     sync.WaitGroup
}

// Start launches a scan in the background. It returns ErrScanRunning when a
// scan is already in progress.
func (r *Runner) Start(ctx context.Context, reset bool) error {
	r.mu.Lock()
	if r.status != nil && r.status.Running {
		r.mu.Unlock()
		return ErrScanRunning
	}
	r.status = &Status{
		Running:   true,
		Roots:     append([]string(nil), r.Roots...),
		Reset:     reset,
		StartedAt: time.Now(),
	}
	started := *r.status
	r.mu.Unlock()

	r.Orchestrator.Metrics.SetScanRunning(true)
	r.notify(Event{Kind: EventStarted, Status: started})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, reset)
	}()
	return nil
}

func (r *Runner) run(ctx context.Context, reset bool) {
	progress := func(fraction float64, label string) {
		r.notify(Event{Kind: EventProgress, Fraction: fraction, Label: label, Status: r.snapshot()})
	}

	summaries, err := r.Orchestrator.Scan(ctx, r.Roots, reset, progress)
	if err == nil && r.AfterScan != nil {
		if hookErr := r.AfterScan(summaries); hookErr != nil {
			r.Orchestrator.Log.Warn("post-scan hook failed", zap.Error(hookErr))
		}
	}

	ended := time.Now()
	r.mu.Lock()
	r.status.Running = false
	r.status.EndedAt = &ended
	r.status.Summaries = summaries
	if err != nil {
		r.status.Error = err.Error()
	}
	final := *r.status
	r.mu.Unlock()

	r.Orchestrator.Metrics.SetScanRunning(false)
	if err != nil {
		r.Orchestrator.Log.Error("scan failed", zap.Error(err))
		r.notify(Event{Kind: EventFailed, Fraction: 1, Status: final})
		return
	}
	r.notify(Event{Kind: EventCompleted, Fraction: 1, Status: final})
}

func (r *Runner) notify(e Event) {
	if r.Notify != nil {
		r.Notify(e)
	}
}

func (r *Runner) snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return Status{}
	}
	return *r.status
}

// Latest returns the status of the most recent scan, if any was started.
func (r *Runner) Latest() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return Status{}, false
	}
	return *r.status, true
}

// Wait blocks until the background scan, if any, has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
