package loader

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/crawler"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/logging"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "index.db"), database.Options{}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// sampleBatch holds two acquisitions: a with a preview, two HD renders and
// one EF render on the first HD; b with one HD and one EF.
func sampleBatch() *catalog.Batch {
	b := &catalog.Batch{Folders: []string{"/data/250101_ABC"}}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	a := b.AddAcquisition(catalog.Acquisition{Path: "/data/250101_ABC/a.holo", CreatedAt: now})
	b.AddPreview(catalog.PreviewAsset{Acquisition: a, Path: "/data/250101_ABC/R_a_p.avi"})
	aHD0 := b.AddIntermediate(catalog.IntermediateRender{Acquisition: a, Path: "/data/250101_ABC/a_HD_0", SequenceNo: intPtr(0), Version: strPtr("1.0")})
	b.AddIntermediate(catalog.IntermediateRender{Acquisition: a, Path: "/data/250101_ABC/a_HD_1", SequenceNo: intPtr(1), UpdatedAt: &now})
	b.AddFinal(catalog.FinalRender{Intermediate: aHD0, Path: "/data/250101_ABC/a_HD_0/eyeflow/a_HD_0_EF_0", SequenceNo: intPtr(0), Version: strPtr("v2.3.1")})

	bAcq := b.AddAcquisition(catalog.Acquisition{Path: "/data/250101_ABC/b.holo", Tag: strPtr("ABC"), CreatedAt: now})
	bHD := b.AddIntermediate(catalog.IntermediateRender{Acquisition: bAcq, Path: "/data/250101_ABC/b_HD_0", SequenceNo: intPtr(0)})
	b.AddFinal(catalog.FinalRender{Intermediate: bHD, Path: "/data/250101_ABC/b_HD_0/eyeflow/b_HD_0_EF_3", SequenceNo: intPtr(3)})
	return b
}

func counts(t *testing.T, db *sql.DB) catalog.Counts {
	t.Helper()
	c, err := database.CountAll(context.Background(), db)
	require.NoError(t, err)
	return c
}

func TestLoadParentBeforeChild(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)

	summary, err := New(db, logging.NewNopLogger(), nil).Load(ctx, sampleBatch(), LoadOptions{Root: "/data", ScanStartedAt: started})
	require.NoError(t, err)

	want := catalog.Counts{Acquisitions: 2, Previews: 1, Intermediates: 3, Finals: 2}
	assert.Equal(t, want, summary.Found)
	assert.Equal(t, want, summary.Totals)
	assert.Equal(t, want, summary.Inserted())
	assert.Zero(t, summary.Skipped.Total())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "/data", summary.Root)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, started, summary.ScanStartedAt)
	assert.False(t, summary.EndedAt.Before(summary.InsertStartedAt))

	acqs, err := database.SelectRows(ctx, db, database.TableAcquisition, nil)
	require.NoError(t, err)
	acqIDs := map[int64]string{}
	for _, row := range acqs {
		acqIDs[row["id"].(int64)] = row["path"].(string)
	}

	hds, err := database.SelectRows(ctx, db, database.TableIntermediateRender, nil)
	require.NoError(t, err)
	hdIDs := map[int64]string{}
	for _, row := range hds {
		parent, ok := acqIDs[row["acquisition_id"].(int64)]
		require.True(t, ok, "intermediate %v has no acquisition", row["path"])
		assert.Equal(t, filepath.Dir(row["path"].(string))+"/"+stemOf(row["path"].(string))+".holo", parent)
		hdIDs[row["id"].(int64)] = row["path"].(string)
	}

	finals, err := database.SelectRows(ctx, db, database.TableFinalRender, nil)
	require.NoError(t, err)
	for _, row := range finals {
		parent, ok := hdIDs[row["intermediate_id"].(int64)]
		require.True(t, ok, "final %v has no intermediate", row["path"])
		assert.Equal(t, parent, filepath.Dir(filepath.Dir(row["path"].(string))))
	}
	assert.Equal(t, "v2.3.1", finals[0]["version"])
	assert.Nil(t, finals[1]["version"])
}

// stemOf maps ".../a_HD_0" to "a".
func stemOf(p string) string {
	base := filepath.Base(p)
	for i := 0; i+4 <= len(base); i++ {
		if base[i:i+4] == "_HD_" {
			return base[:i]
		}
	}
	return base
}

func TestLoadIsAtomicForAnyFailurePoint(t *testing.T) {
	total := sampleBatch().Counts().Total()

	for n := 1; n <= total; n++ {
		db := openTestDB(t)
		ctx := context.Background()
		_, err := database.InsertRow(ctx, db, database.TableAcquisition, map[string]any{"path": "/existing.holo"})
		require.NoError(t, err)
		before := counts(t, db)

		l := New(db, logging.NewNopLogger(), nil)
		inserted := 0
		l.Insert = func(ctx context.Context, q database.Querier, table string, values map[string]any) (int64, error) {
			if inserted == n {
				return 0, errors.New("disk I/O error")
			}
			inserted++
			return database.InsertRow(ctx, q, table, values)
		}

		summary, err := l.Load(ctx, sampleBatch(), LoadOptions{})
		if n == total {
			require.NoError(t, err, "all %d inserts succeed", n)
			continue
		}
		require.Error(t, err, "failure after %d inserts", n)
		assert.Nil(t, summary)

		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "insert", perr.Op)
		assert.NotEmpty(t, perr.Path)
		assert.EqualError(t, errors.Unwrap(err), "disk I/O error")
		assert.Equal(t, before, counts(t, db), "failure after %d inserts left rows behind", n)
	}
}

func TestLoadOrphanTolerance(t *testing.T) {
	db := openTestDB(t)
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(db, logging.NewWithCore(core), nil)
	l.Insert = func(ctx context.Context, q database.Querier, table string, values map[string]any) (int64, error) {
		if table == database.TableAcquisition && values["path"] == "/data/250101_ABC/a.holo" {
			return 0, nil
		}
		return database.InsertRow(ctx, q, table, values)
	}

	summary, err := l.Load(context.Background(), sampleBatch(), LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, catalog.Counts{Acquisitions: 1, Previews: 1, Intermediates: 2, Finals: 1}, summary.Skipped)
	assert.Equal(t, catalog.Counts{Acquisitions: 1, Intermediates: 1, Finals: 1}, summary.Totals)

	orphans := logs.FilterMessage("parent has no row, skipping record").All()
	require.Len(t, orphans, 4)
	for _, entry := range orphans {
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, logging.TagSkip, entry.ContextMap()["category"])
	}
	assert.Equal(t, "/data/250101_ABC/a.holo", orphans[0].ContextMap()["parent"])
	assert.Equal(t, "/data/250101_ABC/a_HD_0", orphans[3].ContextMap()["parent"])
	assert.Equal(t, 1, logs.FilterMessage("insert produced no row, dependent records will be skipped").Len())
}

func TestLoadWithoutResetDuplicatesRows(t *testing.T) {
	db := openTestDB(t)
	l := New(db, logging.NewNopLogger(), nil)
	ctx := context.Background()
	single := sampleBatch().Counts()

	_, err := l.Load(ctx, sampleBatch(), LoadOptions{})
	require.NoError(t, err)
	summary, err := l.Load(ctx, sampleBatch(), LoadOptions{})
	require.NoError(t, err)

	// no implicit dedup: a second pass over the same tree appends
	assert.Equal(t, catalog.Counts{
		Acquisitions:  2 * single.Acquisitions,
		Previews:      2 * single.Previews,
		Intermediates: 2 * single.Intermediates,
		Finals:        2 * single.Finals,
	}, summary.Totals)

	summary, err = l.Load(ctx, sampleBatch(), LoadOptions{Reset: true})
	require.NoError(t, err)
	assert.True(t, summary.Reset)
	assert.Equal(t, single, summary.Totals)
}

func TestLoadRollsBackOnSecondIntermediate(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TRIGGER fail_second_intermediate BEFORE INSERT ON intermediate_render
		WHEN (SELECT COUNT(*) FROM intermediate_render) >= 1
		BEGIN SELECT RAISE(ABORT, 'injected'); END;`)
	require.NoError(t, err)

	batch := &catalog.Batch{}
	acq := batch.AddAcquisition(catalog.Acquisition{Path: "/data/250101_ABC/run1.holo"})
	batch.AddIntermediate(catalog.IntermediateRender{Acquisition: acq, Path: "/data/250101_ABC/run1_HD_0"})
	batch.AddIntermediate(catalog.IntermediateRender{Acquisition: acq, Path: "/data/250101_ABC/run1_HD_1"})

	_, err = New(db, logging.NewNopLogger(), nil).Load(context.Background(), batch, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected")

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, database.TableIntermediateRender, perr.Table)
	assert.Equal(t, "/data/250101_ABC/run1_HD_1", perr.Path)

	assert.Zero(t, counts(t, db).Total())
}

func TestLoadFailureUndoesReset(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := New(db, logging.NewNopLogger(), nil).Load(ctx, sampleBatch(), LoadOptions{})
	require.NoError(t, err)
	before := counts(t, db)

	l := New(db, logging.NewNopLogger(), nil)
	l.Insert = func(context.Context, database.Querier, string, map[string]any) (int64, error) {
		return 0, errors.New("database is locked")
	}
	_, err = l.Load(ctx, sampleBatch(), LoadOptions{Reset: true})
	require.Error(t, err)
	assert.Equal(t, before, counts(t, db))
}

func TestLoadEmptyBatch(t *testing.T) {
	db := openTestDB(t)
	summary, err := New(db, logging.NewNopLogger(), nil).Load(context.Background(), nil, LoadOptions{})
	require.NoError(t, err)
	assert.Zero(t, summary.Found.Total())
	assert.Zero(t, summary.Totals.Total())
}

func TestLoadCrawledTree(t *testing.T) {
	batchDir := filepath.Join(t.TempDir(), "250101_ABC")
	require.NoError(t, os.MkdirAll(filepath.Join(batchDir, "run1_HD_0", "eyeflow", "run1_HD_0_EF_0", "log"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batchDir, "run1.holo"), []byte("holo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(batchDir, "run1_HD_0", "eyeflow", "run1_HD_0_EF_0", "log", "anything.txt"),
		[]byte("Welcome to EyeFlow v2.3.1\n"), 0o644))

	batch, err := crawler.New(logging.NewNopLogger(), crawler.DefaultOptions()).Crawl(batchDir)
	require.NoError(t, err)

	db := openTestDB(t)
	ctx := context.Background()
	summary, err := New(db, logging.NewNopLogger(), nil).Load(ctx, batch, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, catalog.Counts{Acquisitions: 1, Intermediates: 1, Finals: 1}, summary.Totals)

	hds, err := database.SelectRows(ctx, db, database.TableIntermediateRender, nil)
	require.NoError(t, err)
	require.Len(t, hds, 1)
	assert.Nil(t, hds[0]["version"])
	assert.Nil(t, hds[0]["params_json"])
	assert.Equal(t, int64(0), hds[0]["sequence_no"])

	finals, err := database.SelectRows(ctx, db, database.TableFinalRender, nil)
	require.NoError(t, err)
	require.Len(t, finals, 1)
	assert.Equal(t, "v2.3.1", finals[0]["version"])
	assert.Nil(t, finals[0]["report_path"])
	assert.Equal(t, hds[0]["id"], finals[0]["intermediate_id"])
}
