// Package loader writes a crawled Batch to the index in a single
// transaction, resolving in-memory parent handles into durable row ids.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/metrics"
)

// InsertFunc inserts one row and returns its id. An id of 0 with a nil error
// means no row was produced; the record is then treated like a failed parent.
type InsertFunc func(ctx context.Context, q database.Querier, table string, values map[string]any) (int64, error)

// PersistenceError reports a storage failure that rolled back a whole load.
type PersistenceError struct {
	Op    string
	Table string
	Path  string
	Err   error
}

func (e *PersistenceError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("load rolled back: %s %s (%s): %v", e.Op, e.Table, e.Path, e.Err)
	case e.Table != "":
		return fmt.Sprintf("load rolled back: %s %s: %v", e.Op, e.Table, e.Err)
	default:
		return fmt.Sprintf("load rolled back: %s: %v", e.Op, e.Err)
	}
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type LoadOptions struct {
	// Reset clears every table inside the load transaction first.
	Reset         bool
	Root          string
	ScanStartedAt time.Time
}

type Loader struct {
	DB      *sql.DB
	Log     *logging.Logger
	Insert  InsertFunc
	Metrics *metrics.Metrics

	skipLog *logging.Logger
}

func New(db *sql.DB, log *logging.Logger, m *metrics.Metrics) *Loader {
	return &Loader{
		DB:      db,
		Log:     log.Tag(logging.TagDatabase),
		Insert:  database.InsertRow,
		Metrics: m,
		skipLog: log.Tag(logging.TagSkip),
	}
}

// Load inserts batch in three passes (acquisitions, then previews and HD
// renders, then EF renders) inside one transaction. Records whose parent got
// no id are logged and skipped. Any storage error rolls everything back,
// including the optional reset, and is returned as *PersistenceError.
func (l *Loader) Load(ctx context.Context, batch *catalog.Batch, opts LoadOptions) (*catalog.Summary, error) {
	if batch == nil {
		batch = &catalog.Batch{}
	}
	if l.skipLog == nil {
		l.skipLog = l.Log.Tag(logging.TagSkip)
	}

	summary := &catalog.Summary{
		RunID:           uuid.NewString(),
		Root:            opts.Root,
		Batches:         len(batch.Folders),
		Found:           batch.Counts(),
		Reset:           opts.Reset,
		ScanStartedAt:   opts.ScanStartedAt,
		InsertStartedAt: time.Now(),
	}
	if summary.ScanStartedAt.IsZero() {
		summary.ScanStartedAt = summary.InsertStartedAt
	}
	log := l.Log.WithFields(zap.String("run_id", summary.RunID))

	if err := l.load(ctx, batch, opts, summary, log); err != nil {
		l.Metrics.RecordLoad(nil, time.Since(summary.InsertStartedAt))
		log.Error("load failed, transaction rolled back", zap.Error(err))
		return nil, err
	}

	summary.EndedAt = time.Now()
	totals, err := database.CountAll(ctx, l.DB)
	if err != nil {
		log.Warn("failed to count rows after commit", zap.Error(err))
	}
	summary.Totals = totals
	l.Metrics.RecordLoad(summary, summary.InsertDuration())

	inserted := summary.Inserted()
	log.Info("load committed",
		zap.String("root", summary.Root),
		zap.Int("acquisitions", inserted.Acquisitions),
		zap.Int("previews", inserted.Previews),
		zap.Int("intermediates", inserted.Intermediates),
		zap.Int("finals", inserted.Finals),
		zap.Int("skipped", summary.Skipped.Total()),
		zap.Duration("duration", summary.InsertDuration()),
	)
	return summary, nil
}

func (l *Loader) load(ctx context.Context, batch *catalog.Batch, opts LoadOptions, summary *catalog.Summary, log *logging.Logger) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if opts.Reset {
		if err := database.Reset(ctx, tx); err != nil {
			return &PersistenceError{Op: "reset", Err: err}
		}
		log.Info("index reset inside load transaction")
	}

	acquisitionIDs, err := l.insertAcquisitions(ctx, tx, batch, &summary.Skipped)
	if err != nil {
		return err
	}
	if err := l.insertPreviews(ctx, tx, batch, acquisitionIDs, &summary.Skipped); err != nil {
		return err
	}
	intermediateIDs, err := l.insertIntermediates(ctx, tx, batch, acquisitionIDs, &summary.Skipped)
	if err != nil {
		return err
	}
	if err := l.insertFinals(ctx, tx, batch, intermediateIDs, &summary.Skipped); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

// idMap maps arena handles of one generation to durable ids; 0 means the
// record has no row.
type idMap []int64

func (m idMap) lookup(ref int) (int64, bool) {
	if ref < 0 || ref >= len(m) || m[ref] == 0 {
		return 0, false
	}
	return m[ref], true
}

func (l *Loader) insert(ctx context.Context, tx *sql.Tx, table, path string, values map[string]any) (int64, error) {
	id, err := l.Insert(ctx, tx, table, values)
	if err != nil {
		return 0, &PersistenceError{Op: "insert", Table: table, Path: path, Err: err}
	}
	if id == 0 {
		l.skipLog.Error("insert produced no row, dependent records will be skipped",
			zap.String("table", table), zap.String("path", path))
	}
	return id, nil
}

func (l *Loader) orphan(table, path, parent string) {
	l.skipLog.Error("parent has no row, skipping record",
		zap.String("table", table), zap.String("path", path), zap.String("parent", parent))
}

func (l *Loader) insertAcquisitions(ctx context.Context, tx *sql.Tx, batch *catalog.Batch, skipped *catalog.Counts) (idMap, error) {
	ids := make(idMap, len(batch.Acquisitions))
	for i, a := range batch.Acquisitions {
		id, err := l.insert(ctx, tx, database.TableAcquisition, a.TempID(), map[string]any{
			"path":       a.Path,
			"tag":        nullable(a.Tag),
			"created_at": nullableTime(a.CreatedAt),
		})
		if err != nil {
			return nil, err
		}
		if id == 0 {
			skipped.Acquisitions++
		}
		ids[i] = id
	}
	return ids, nil
}

func (l *Loader) insertPreviews(ctx context.Context, tx *sql.Tx, batch *catalog.Batch, acquisitions idMap, skipped *catalog.Counts) error {
	for _, p := range batch.Previews {
		parent, ok := acquisitions.lookup(int(p.Acquisition))
		if !ok {
			l.orphan(database.TablePreviewAsset, p.TempID(), batch.AcquisitionTempID(p.Acquisition))
			skipped.Previews++
			continue
		}
		id, err := l.insert(ctx, tx, database.TablePreviewAsset, p.TempID(), map[string]any{
			"acquisition_id": parent,
			"path":           p.Path,
		})
		if err != nil {
			return err
		}
		if id == 0 {
			skipped.Previews++
		}
	}
	return nil
}

func (l *Loader) insertIntermediates(ctx context.Context, tx *sql.Tx, batch *catalog.Batch, acquisitions idMap, skipped *catalog.Counts) (idMap, error) {
	ids := make(idMap, len(batch.Intermediates))
	for i, r := range batch.Intermediates {
		parent, ok := acquisitions.lookup(int(r.Acquisition))
		if !ok {
			l.orphan(database.TableIntermediateRender, r.TempID(), batch.AcquisitionTempID(r.Acquisition))
			skipped.Intermediates++
			continue
		}
		id, err := l.insert(ctx, tx, database.TableIntermediateRender, r.TempID(), map[string]any{
			"acquisition_id":  parent,
			"path":            r.Path,
			"sequence_no":     nullable(r.SequenceNo),
			"params_json":     nullable(r.ParamsJSON),
			"raw_output_path": nullable(r.RawOutputPath),
			"version":         nullable(r.Version),
			"updated_at":      nullable(r.UpdatedAt),
		})
		if err != nil {
			return nil, err
		}
		if id == 0 {
			skipped.Intermediates++
		}
		ids[i] = id
	}
	return ids, nil
}

func (l *Loader) insertFinals(ctx context.Context, tx *sql.Tx, batch *catalog.Batch, intermediates idMap, skipped *catalog.Counts) error {
	for _, r := range batch.Finals {
		parent, ok := intermediates.lookup(int(r.Intermediate))
		if !ok {
			l.orphan(database.TableFinalRender, r.TempID(), batch.IntermediateTempID(r.Intermediate))
			skipped.Finals++
			continue
		}
		id, err := l.insert(ctx, tx, database.TableFinalRender, r.TempID(), map[string]any{
			"intermediate_id":   parent,
			"path":              r.Path,
			"sequence_no":       nullable(r.SequenceNo),
			"input_params_json": nullable(r.InputParamsJSON),
			"version":           nullable(r.Version),
			"report_path":       nullable(r.ReportPath),
			"output_path":       nullable(r.OutputPath),
			"updated_at":        nullable(r.UpdatedAt),
		})
		if err != nil {
			return err
		}
		if id == 0 {
			skipped.Finals++
		}
	}
	return nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
