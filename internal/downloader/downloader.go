package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"blinksync/pkg/logger"
)

// Kind tells thumbnails and clips apart in logs and metrics
type Kind string

const (
	KindThumbnail Kind = "thumbnail"
	KindVideo     Kind = "video"
)

// Outcome is the result class of one download
type Outcome int

const (
	Downloaded Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Job is a single download task
type Job struct {
	Kind    Kind
	URL     string
	Dest    string
	Network string
	Camera  string
}

// Result reports what happened to a job
type Result struct {
	Job      Job
	Outcome  Outcome
	Err      error
	Bytes    int64
	Duration time.Duration
}

// Fetcher opens a remote resource for streaming
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Storage persists streamed bodies and answers presence checks
type Storage interface {
	Exists(path string) bool
	Save(r io.Reader, path string) (int64, error)
}

// Downloader fetches a URL into a destination path unless the path exists
type Downloader struct {
	fetcher Fetcher
	storage Storage
	logger  logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Downloader
func New(fetcher Fetcher, storage Storage, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		fetcher:  fetcher,
		storage:  storage,
		logger:   log,
		inFlight: make(map[string]struct{}),
	}
}

// Download fetches url into dest. An existing dest, or one another worker
// is already writing, is skipped without touching the network.
func (d *Downloader) Download(ctx context.Context, url, dest string) Result {
	return d.Process(ctx, Job{URL: url, Dest: dest})
}

// Process runs a job and returns its result
func (d *Downloader) Process(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}
	finish := func(o Outcome, err error) Result {
		result.Outcome = o
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	// existence is only checked while holding the claim on the path
	if !d.claim(job.Dest) {
		d.logger.DebugWithFields("File already being downloaded", map[string]interface{}{
			"path": job.Dest,
		})
		return finish(Skipped, nil)
	}
	defer d.release(job.Dest)

	if d.storage.Exists(job.Dest) {
		d.logger.DebugWithFields("Skipping existing file", map[string]interface{}{
			"path": job.Dest,
		})
		return finish(Skipped, nil)
	}

	d.logger.InfoWithFields("Downloading", map[string]interface{}{
		"kind": string(job.Kind),
		"path": job.Dest,
	})

	body, err := d.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		d.logger.ErrorWithFields("Failed to download", map[string]interface{}{
			"url":   job.URL,
			"error": err.Error(),
		})
		return finish(Failed, fmt.Errorf("download failed: %w", err))
	}
	defer body.Close()

	n, err := d.storage.Save(body, job.Dest)
	result.Bytes = n
	if err != nil {
		d.logger.ErrorWithFields("Failed to save file", map[string]interface{}{
			"path":  job.Dest,
			"error": err.Error(),
			"bytes": n,
		})
		return finish(Failed, fmt.Errorf("save failed: %w", err))
	}

	d.logger.DebugWithFields("Download complete", map[string]interface{}{
		"path":  job.Dest,
		"bytes": n,
	})
	return finish(Downloaded, nil)
}

func (d *Downloader) claim(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[path]; busy {
		return false
	}
	d.inFlight[path] = struct{}{}
	return true
}

func (d *Downloader) release(path string) {
	d.mu.Lock()
	delete(d.inFlight, path)
	d.mu.Unlock()
}
