// Package scan drives a whole ingest run: batch folder discovery, crawling on
// a worker pool and the transactional load of each root.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/facette/natsort"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/crawler"
	"github.com/camden-git/dopplerindex/loader"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/metrics"
	"github.com/camden-git/dopplerindex/workers"
)

// ProgressFunc is called after each batch folder finishes, in completion
// order. fraction covers the whole run, label names the folder.
type ProgressFunc func(fraction float64, label string)

// BatchCrawler is satisfied by *crawler.Crawler.
type BatchCrawler interface {
	Crawl(batchDir string) (*catalog.Batch, error)
}

// BatchLoader is satisfied by *loader.Loader.
type BatchLoader interface {
	Load(ctx context.Context, batch *catalog.Batch, opts loader.LoadOptions) (*catalog.Summary, error)
}

type Orchestrator struct {
	Crawler  BatchCrawler
	Loader   BatchLoader
	Log      *logging.Logger
	Metrics  *metrics.Metrics
	Parallel bool
	// Workers bounds the crawl pool; 0 means one per CPU.
	Workers int
}

func (o *Orchestrator) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Scan crawls and loads each root in turn. Only the first root is loaded with
// reset; later roots append. Each root commits in its own transaction, so a
// load failure stops the run with the roots before it (and the reset applied
// with the first root) still committed; the failing root commits nothing.
// ctx is checked between roots only: a load that has started always runs to
// commit or rollback.
func (o *Orchestrator) Scan(ctx context.Context, roots []string, reset bool, progress ProgressFunc) ([]*catalog.Summary, error) {
	if len(roots) == 0 {
		return nil, errors.New("no scan root configured")
	}
	if progress == nil {
		progress = func(float64, string) {}
	}
	log := o.Log.Tag(logging.TagScan)

	var summaries []*catalog.Summary
	for i, root := range roots {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			return summaries, fmt.Errorf("failed to get absolute path for %s: %w", root, err)
		}
		root = filepath.ToSlash(abs)

		offset := float64(i)
		scaled := func(fraction float64, label string) {
			progress((offset+fraction)/float64(len(roots)), label)
		}

		startedAt := time.Now()
		log.Info("scan started", zap.String("root", root), zap.Bool("reset", reset && i == 0), zap.Bool("parallel", o.Parallel))

		batch, err := o.Crawl(ctx, root, scaled)
		if err != nil {
			return summaries, err
		}

		summary, err := o.Loader.Load(context.WithoutCancel(ctx), batch, loader.LoadOptions{
			Reset:         reset && i == 0,
			Root:          root,
			ScanStartedAt: startedAt,
		})
		if err != nil {
			return summaries, fmt.Errorf("failed to load %s: %w", root, err)
		}
		summaries = append(summaries, summary)
		log.Info("scan finished", zap.String("root", root), zap.Duration("duration", summary.TotalDuration()))
	}
	return summaries, nil
}

// Crawl crawls every batch folder directly under root and merges the results.
// A folder that fails or panics contributes nothing; only an unreadable root
// is an error.
func (o *Orchestrator) Crawl(ctx context.Context, root string, progress ProgressFunc) (*catalog.Batch, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}
	folders, err := o.batchFolders(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := o.Log.Tag(logging.TagScan)
	merged := &catalog.Batch{}
	done := 0
	collect := func(res workers.CrawlResult) {
		done++
		if res.Err != nil {
			log.Error("batch folder crawl failed, nothing recorded for it", zap.String("path", res.Folder), zap.Error(res.Err))
		} else {
			merged.Merge(res.Batch)
		}
		progress(float64(done)/float64(len(folders)), filepath.Base(res.Folder))
	}

	if o.Parallel && len(folders) > 1 {
		n := o.workerCount()
		if n > len(folders) {
			n = len(folders)
		}
		pool := workers.NewCrawlPool(o.timedCrawl, o.Log.Tag(logging.TagScan), len(folders), n)
		o.Metrics.SetActiveWorkers(n)
		for _, folder := range folders {
			pool.Submit(folder)
		}
		pool.Close()
		for res := range pool.Results {
			collect(res)
		}
		o.Metrics.SetActiveWorkers(0)
	} else {
		for _, folder := range folders {
			collect(workers.SafeCrawl(o.timedCrawl, folder))
		}
	}

	counts := merged.Counts()
	log.Info("crawl finished",
		zap.String("root", root),
		zap.Int("batch_folders", len(folders)),
		zap.Int("acquisitions", counts.Acquisitions),
		zap.Int("previews", counts.Previews),
		zap.Int("intermediates", counts.Intermediates),
		zap.Int("finals", counts.Finals),
	)
	return merged, nil
}

func (o *Orchestrator) timedCrawl(folder string) (*catalog.Batch, error) {
	start := time.Now()
	batch, err := o.Crawler.Crawl(folder)
	o.Metrics.RecordBatchCrawled(err == nil, time.Since(start))
	return batch, err
}

// batchFolders lists the date-coded directories directly under root in
// natural order. Symlinked directories count.
func (o *Orchestrator) batchFolders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan root %s: %w", root, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return natsort.Compare(entries[i].Name(), entries[j].Name())
	})

	skipLog := o.Log.Tag(logging.TagSkip)
	var folders []string
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !entry.IsDir() {
			if entry.Type()&os.ModeSymlink == 0 {
				continue
			}
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				continue
			}
		}
		if !crawler.IsBatchFolder(entry.Name()) {
			skipLog.Info("not a batch folder, skipping", zap.String("path", path))
			continue
		}
		folders = append(folders, path)
	}
	return folders, nil
}
