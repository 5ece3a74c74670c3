package workers

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

func batchOf(folder string) *catalog.Batch {
	b := &catalog.Batch{Folders: []string{folder}}
	b.AddAcquisition(catalog.Acquisition{Path: folder + "/a.holo"})
	return b
}

func TestCrawlPoolProcessesEveryJob(t *testing.T) {
	var calls int32
	crawl := func(folder string) (*catalog.Batch, error) {
		atomic.AddInt32(&calls, 1)
		return batchOf(folder), nil
	}

	folders := make([]string, 20)
	for i := range folders {
		folders[i] = fmt.Sprintf("/data/2501%02d", i)
	}

	pool := NewCrawlPool(crawl, logging.NewNopLogger(), len(folders), 4)
	for _, f := range folders {
		pool.Submit(f)
	}
	pool.Close()

	seen := map[string]bool{}
	for res := range pool.Results {
		require.NoError(t, res.Err)
		require.NotNil(t, res.Batch)
		assert.Equal(t, []string{res.Folder}, res.Batch.Folders)
		seen[res.Folder] = true
	}
	assert.Len(t, seen, len(folders))
	assert.Equal(t, int32(len(folders)), atomic.LoadInt32(&calls))
}

func TestCrawlPoolRunsConcurrently(t *testing.T) {
	var running, peak int32
	crawl := func(folder string) (*catalog.Batch, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return batchOf(folder), nil
	}

	pool := NewCrawlPool(crawl, logging.NewNopLogger(), 8, 4)
	for i := 0; i < 8; i++ {
		pool.Submit(fmt.Sprintf("/data/%06d", i))
	}
	pool.Close()
	for range pool.Results {
	}

	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestCrawlPoolIsolatesFailures(t *testing.T) {
	crawl := func(folder string) (*catalog.Batch, error) {
		switch folder {
		case "/data/250102":
			return nil, errors.New("disk on fire")
		case "/data/250103":
			panic("nil map write")
		}
		return batchOf(folder), nil
	}

	pool := NewCrawlPool(crawl, logging.NewNopLogger(), 3, 2)
	for _, f := range []string{"/data/250101", "/data/250102", "/data/250103"} {
		pool.Submit(f)
	}
	pool.Close()
	pool.Close()

	results := map[string]CrawlResult{}
	for res := range pool.Results {
		results[res.Folder] = res
	}
	require.Len(t, results, 3)
	assert.NoError(t, results["/data/250101"].Err)
	assert.EqualError(t, results["/data/250102"].Err, "disk on fire")
	require.Error(t, results["/data/250103"].Err)
	assert.Contains(t, results["/data/250103"].Err.Error(), "panic while crawling /data/250103: nil map write")
	assert.Nil(t, results["/data/250103"].Batch)
}
