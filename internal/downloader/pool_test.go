package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinksync/pkg/logger"
	"blinksync/pkg/storage"
)

// MockFetcher serves a fixed body for every URL
type MockFetcher struct {
	body     string
	delay    time.Duration
	errors   map[string]error
	calls    int32
	inflight int32
	peak     int32
	mu       sync.Mutex
	order    []string
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.inflight, 1)
	defer atomic.AddInt32(&m.inflight, -1)
	for {
		peak := atomic.LoadInt32(&m.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&m.peak, peak, cur) {
			break
		}
	}

	m.mu.Lock()
	m.order = append(m.order, url)
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.errors[url]; err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(m.body)), nil
}

func (m *MockFetcher) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func newTestStorage(t *testing.T) *storage.Manager {
	t.Helper()
	m, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func runJobs(t *testing.T, pool *WorkerPool, jobs []Job) []Result {
	t.Helper()
	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()

	for _, j := range jobs {
		require.NoError(t, pool.Submit(j))
	}
	pool.Stop()
	<-done
	return results
}

func TestDownloadWritesFile(t *testing.T) {
	store := newTestStorage(t)
	fetcher := &MockFetcher{body: "jpeg"}
	d := New(fetcher, store, logger.NewTestLogger())

	dest := store.ThumbnailPath("Home", "Front", "abc")
	r := d.Download(context.Background(), "http://blink/thumb/abc.jpg", dest)

	assert.Equal(t, Downloaded, r.Outcome)
	assert.NoError(t, r.Err)
	assert.Equal(t, int64(4), r.Bytes)
	assert.True(t, store.Exists(dest))
}

func TestDownloadSkipsExistingWithoutRequest(t *testing.T) {
	store := newTestStorage(t)
	dest := store.VideoPath("Home", "Front", "2024-01-01T00-00-00")
	_, err := store.Save(strings.NewReader("original"), dest)
	require.NoError(t, err)

	fetcher := &MockFetcher{body: "replacement"}
	r := New(fetcher, store, logger.NewTestLogger()).Download(context.Background(), "http://blink/m.mp4", dest)

	assert.Equal(t, Skipped, r.Outcome)
	assert.Equal(t, 0, fetcher.Calls())
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	store := newTestStorage(t)
	fetcher := &MockFetcher{errors: map[string]error{"http://blink/bad": errors.New("404")}}
	log := logger.NewTestLogger()

	dest := store.VideoPath("Home", "Front", "x")
	r := New(fetcher, store, log).Download(context.Background(), "http://blink/bad", dest)

	assert.Equal(t, Failed, r.Outcome)
	assert.ErrorContains(t, r.Err, "download failed")
	assert.False(t, store.Exists(dest))
	assert.True(t, log.HasError())
}

func TestDownloadSkipsPathInFlight(t *testing.T) {
	store := newTestStorage(t)
	d := New(&MockFetcher{body: "x"}, store, logger.NewTestLogger())

	dest := store.VideoPath("Home", "Front", "busy")
	require.True(t, d.claim(dest))
	r := d.Download(context.Background(), "http://blink/busy", dest)
	assert.Equal(t, Skipped, r.Outcome)

	d.release(dest)
	r = d.Download(context.Background(), "http://blink/busy", dest)
	assert.Equal(t, Downloaded, r.Outcome)
}

// pausingStorage answers Exists with the state at call time, then blocks
// until proceed is closed
type pausingStorage struct {
	*storage.Manager
	checked chan struct{}
	proceed chan struct{}
}

func (p *pausingStorage) Exists(path string) bool {
	exists := p.Manager.Exists(path)
	p.checked <- struct{}{}
	<-p.proceed
	return exists
}

func TestDownloadDoesNotOverwriteFileFinishedByAnotherWorker(t *testing.T) {
	store := newTestStorage(t)
	paused := &pausingStorage{Manager: store, checked: make(chan struct{}, 1), proceed: make(chan struct{})}
	fetcher := &MockFetcher{body: "second"}
	d := New(fetcher, paused, logger.NewTestLogger())

	dest := store.VideoPath("Home", "Front", "2024-01-01T00-00-00")
	// another worker is writing dest
	require.True(t, d.claim(dest))

	done := make(chan Result, 1)
	go func() {
		done <- d.Download(context.Background(), "http://blink/m.mp4", dest)
	}()

	var r Result
	finished := false
	select {
	case <-paused.checked:
	case r = <-done:
		finished = true
	}

	// the other worker completes and releases the path
	_, err := store.Save(strings.NewReader("first"), dest)
	require.NoError(t, err)
	d.release(dest)
	close(paused.proceed)

	if !finished {
		r = <-done
	}
	assert.Equal(t, Skipped, r.Outcome)
	assert.Equal(t, 0, fetcher.Calls())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestDownloadChecksExistenceWhileHoldingClaim(t *testing.T) {
	store := newTestStorage(t)
	dest := store.ThumbnailPath("Home", "Front", "abc")
	_, err := store.Save(strings.NewReader("jpeg"), dest)
	require.NoError(t, err)

	d := New(&MockFetcher{body: "x"}, store, logger.NewTestLogger())
	r := d.Download(context.Background(), "http://blink/thumb/abc.jpg", dest)

	assert.Equal(t, Skipped, r.Outcome)
	// the claim is released after a skip
	assert.True(t, d.claim(dest))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "downloaded", Downloaded.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestWorkerPoolSequentialKeepsOrder(t *testing.T) {
	store := newTestStorage(t)
	fetcher := &MockFetcher{body: "clip", delay: time.Millisecond}
	pool := NewWorkerPool(1, New(fetcher, store, logger.NewTestLogger()), logger.NewTestLogger())
	pool.Start(context.Background())

	var jobs []Job
	var urls []string
	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("http://blink/m/%d.mp4", i)
		urls = append(urls, url)
		jobs = append(jobs, Job{Kind: KindVideo, URL: url, Dest: store.VideoPath("Home", "Front", fmt.Sprint(i))})
	}

	results := runJobs(t, pool, jobs)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, jobs[i].Dest, r.Job.Dest)
		assert.Equal(t, Downloaded, r.Outcome)
	}
	assert.Equal(t, urls, fetcher.order)
	assert.Equal(t, int32(1), fetcher.peak)
}

func TestWorkerPoolConcurrent(t *testing.T) {
	store := newTestStorage(t)
	fetcher := &MockFetcher{body: "clip", delay: 20 * time.Millisecond}
	pool := NewWorkerPool(4, New(fetcher, store, logger.NewTestLogger()), logger.NewTestLogger())
	assert.Equal(t, 4, pool.GetActiveWorkers())
	pool.Start(context.Background())

	var jobs []Job
	for i := 0; i < 8; i++ {
		jobs = append(jobs, Job{URL: fmt.Sprintf("http://blink/%d", i), Dest: store.VideoPath("N", "C", fmt.Sprint(i))})
	}

	results := runJobs(t, pool, jobs)
	assert.Len(t, results, 8)
	assert.Equal(t, 8, fetcher.Calls())
	assert.Greater(t, atomic.LoadInt32(&fetcher.peak), int32(1))
}

func TestWorkerPoolFailureDoesNotBlockSiblings(t *testing.T) {
	store := newTestStorage(t)
	fetcher := &MockFetcher{body: "ok", errors: map[string]error{"http://blink/1": errors.New("boom")}}
	pool := NewWorkerPool(1, New(fetcher, store, logger.NewTestLogger()), logger.NewTestLogger())
	pool.Start(context.Background())

	results := runJobs(t, pool, []Job{
		{URL: "http://blink/0", Dest: store.VideoPath("N", "C", "0")},
		{URL: "http://blink/1", Dest: store.VideoPath("N", "C", "1")},
		{URL: "http://blink/2", Dest: store.VideoPath("N", "C", "2")},
	})

	require.Len(t, results, 3)
	assert.Equal(t, Downloaded, results[0].Outcome)
	assert.Equal(t, Failed, results[1].Outcome)
	assert.Equal(t, Downloaded, results[2].Outcome)
}

func TestWorkerPoolClampsSize(t *testing.T) {
	d := New(&MockFetcher{}, newTestStorage(t), logger.NewTestLogger())
	assert.Equal(t, 1, NewWorkerPool(0, d, nil).GetActiveWorkers())
	assert.Equal(t, MaxWorkers, NewWorkerPool(50, d, nil).GetActiveWorkers())
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	d := New(&MockFetcher{}, newTestStorage(t), logger.NewTestLogger())
	pool := NewWorkerPool(1, d, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	err := pool.Submit(Job{URL: "http://blink/x", Dest: "unused"})
	assert.ErrorContains(t, err, "shutting down")
	assert.ErrorIs(t, err, context.Canceled)
	pool.Stop()
}
