package workers

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

// CrawlFunc crawls one batch folder.
type CrawlFunc func(folder string) (*catalog.Batch, error)

type CrawlJob struct {
	Folder string
}

// CrawlResult carries either a Batch or the reason there is none.
type CrawlResult struct {
	Folder string
	Batch  *catalog.Batch
	Err    error
}

// CrawlPool runs a fixed number of crawl workers. Workers share nothing but
// the two channels; results arrive in completion order.
type CrawlPool struct {
	JobQueue chan CrawlJob
	Results  chan CrawlResult
	Crawl    CrawlFunc
	Log      *logging.Logger
	Wg       sync.WaitGroup

	closeOnce sync.Once
}

// NewCrawlPool starts numWorkers workers. queueSize bounds both channels; a
// caller that submits more than queueSize jobs must drain Results
// concurrently.
func NewCrawlPool(crawl CrawlFunc, log *logging.Logger, queueSize, numWorkers int) *CrawlPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	pool := &CrawlPool{
		JobQueue: make(chan CrawlJob, queueSize),
		Results:  make(chan CrawlResult, queueSize),
		Crawl:    crawl,
		Log:      log,
	}
	pool.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}
	log.Debug("crawl workers started", zap.Int("workers", numWorkers), zap.Int("queue_size", queueSize))
	return pool
}

func (p *CrawlPool) worker(id int) {
	defer p.Wg.Done()

	for job := range p.JobQueue {
		p.Log.Debug("crawl job received", zap.Int("worker", id), zap.String("path", job.Folder))
		p.Results <- SafeCrawl(p.Crawl, job.Folder)
	}
	p.Log.Debug("crawl worker stopping: job queue closed", zap.Int("worker", id))
}

// Submit queues folder for crawling.
func (p *CrawlPool) Submit(folder string) {
	p.JobQueue <- CrawlJob{Folder: folder}
}

// Close stops accepting jobs. Results is closed once every queued job has
// been crawled.
func (p *CrawlPool) Close() {
	p.closeOnce.Do(func() {
		close(p.JobQueue)
		go func() {
			p.Wg.Wait()
			close(p.Results)
		}()
	})
}

// SafeCrawl runs crawl, turning a panic into an error so one broken folder
// cannot take the whole scan down.
func SafeCrawl(crawl CrawlFunc, folder string) (res CrawlResult) {
	res.Folder = folder
	defer func() {
		if r := recover(); r != nil {
			res.Batch = nil
			res.Err = fmt.Errorf("panic while crawling %s: %v\n%s", folder, r, debug.Stack())
		}
	}()
	res.Batch, res.Err = crawl(folder)
	return res
}
