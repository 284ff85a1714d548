package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blinksync/internal/downloader"
	"blinksync/pkg/blink"
	"blinksync/pkg/checkpoint"
	"blinksync/pkg/config"
	"blinksync/pkg/logger"
	"blinksync/pkg/metrics"
	"blinksync/pkg/prompt"
	"blinksync/pkg/retry"
	"blinksync/pkg/storage"
)

// Options carries the optional collaborators of a Syncer
type Options struct {
	Logger     logger.Logger
	Checkpoint *checkpoint.Manager
	Metrics    *metrics.Recorder
	Observer   StateObserver
}

// Syncer mirrors the clips and thumbnails of one account into local storage
type Syncer struct {
	auth       Authenticator
	api        API
	storage    *storage.Manager
	checkpoint *checkpoint.Manager
	metrics    *metrics.Recorder
	config     *config.Config
	logger     logger.Logger
	observer   StateObserver

	mu    sync.Mutex
	state State
	email string
}

// New creates a Syncer. The checkpoint manager, metrics recorder and
// observer are optional.
func New(cfg *config.Config, auth Authenticator, api API, store *storage.Manager, opts Options) (*Syncer, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if api == nil {
		return nil, errors.New("blink API is required")
	}
	if store == nil {
		return nil, errors.New("storage manager is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Syncer{
		auth:       auth,
		api:        api,
		storage:    store,
		checkpoint: opts.Checkpoint,
		metrics:    opts.Metrics,
		config:     cfg,
		logger:     log,
		observer:   opts.Observer,
		state:      StateAuthenticating,
	}, nil
}

// State returns the current loop state
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Syncer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.DebugWithFields("state changed", map[string]interface{}{
		"state": string(state),
	})
	s.metrics.SetState(string(state))
	if s.observer != nil {
		s.observer(state)
	}
}

// Run authenticates once and then repeats cycles until ctx is done.
// Authentication failures are returned as they are; otherwise Run only
// returns the context error.
func (s *Syncer) Run(ctx context.Context, creds blink.Credentials, pins prompt.PinReader) error {
	session, err := s.Authenticate(ctx, creds, pins)
	if err != nil {
		return err
	}

	for {
		if _, err := s.RunCycle(ctx, session); err != nil {
			return err
		}

		s.setState(StateSleeping)
		s.logger.InfoWithFields("Sleeping until next cycle", map[string]interface{}{
			"interval": s.config.Poll.Interval,
		})
		if err := retry.Wait(ctx, s.config.Poll.Interval); err != nil {
			return err
		}
	}
}

// Authenticate performs the login and PIN exchange
func (s *Syncer) Authenticate(ctx context.Context, creds blink.Credentials, pins prompt.PinReader) (blink.Session, error) {
	if s.auth == nil {
		return blink.Session{}, errors.New("no authenticator configured")
	}

	s.setState(StateAuthenticating)
	session, err := s.auth.Authenticate(ctx, creds, pinStep{syncer: s, next: pins})
	if err != nil {
		return blink.Session{}, err
	}

	s.mu.Lock()
	s.email = creds.Email
	s.mu.Unlock()
	return session, nil
}

// pinStep moves the loop into VERIFYING_PIN when the PIN is requested
type pinStep struct {
	syncer *Syncer
	next   prompt.PinReader
}

func (p pinStep) ReadPIN(ctx context.Context) (string, error) {
	p.syncer.setState(StateVerifyingPin)
	return p.next.ReadPIN(ctx)
}

// RunCycle performs one enumeration and download pass. Per-item failures
// are counted in the report; only cancellation makes it return an error.
func (s *Syncer) RunCycle(ctx context.Context, session blink.Session) (*checkpoint.CycleReport, error) {
	report := &checkpoint.CycleReport{StartedAt: time.Now().UTC()}

	networks, err := s.listNetworks(ctx, session, report)
	if err != nil {
		return report, err
	}
	report.Networks = len(networks)

	d := downloader.New(blink.SessionFetcher{Client: s.api, Session: session}, s.storage, s.logger)

	s.setState(StateDownloadingThumbnails)
	report.Thumbnails = s.runDownloads(ctx, d, func(submit func(downloader.Job) error) {
		s.queueThumbnails(ctx, session, networks, report, submit)
	})
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.setState(StateListingMediaPages)
	items := s.listMedia(ctx, session, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.setState(StateDownloadingMedia)
	report.Videos = s.runDownloads(ctx, d, func(submit func(downloader.Job) error) {
		s.queueVideos(session, items, report, submit)
	})
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	s.recordCycle(session, report)
	return report, nil
}

// listNetworks retries the listing after the fixed delay until it succeeds
// or ctx is done. The session is reused for every attempt.
func (s *Syncer) listNetworks(ctx context.Context, session blink.Session, report *checkpoint.CycleReport) ([]blink.Network, error) {
	s.setState(StateListingNetworks)

	var networks []blink.Network
	err := retry.Do(ctx, func() error {
		var err error
		networks, err = s.api.ListNetworks(ctx, session)
		return err
	}, &retry.Config{
		Backoff: &retry.ConstantBackoff{Delay: s.config.Poll.RetryDelay},
		RetryIf: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, delay time.Duration) {
			report.ListingRetries++
			s.metrics.ListingFailed()
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Warn("Failed to list networks, retrying")
		},
		Logger: s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("network listing aborted: %w", err)
	}

	s.logger.InfoWithFields("Networks listed", map[string]interface{}{
		"networks": len(networks),
	})
	return networks, nil
}

// queueThumbnails submits one thumbnail job per camera. A camera whose
// detail cannot be fetched is skipped.
func (s *Syncer) queueThumbnails(ctx context.Context, session blink.Session, networks []blink.Network, report *checkpoint.CycleReport, submit func(downloader.Job) error) {
	for _, network := range networks {
		for _, camera := range network.Cameras {
			if ctx.Err() != nil {
				return
			}
			report.Cameras++

			log := s.logger.WithFields(map[string]interface{}{
				"network": network.Name,
				"camera":  camera.Name,
			})

			detail, err := s.api.CameraDetail(ctx, session, network.ID, camera.ID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				report.CameraFailures++
				s.metrics.CameraFailed()
				log.WithError(err).Warn("Failed to fetch camera detail, skipping camera")
				continue
			}

			thumbnail := detail.CameraStatus.Thumbnail
			id := blink.ThumbnailID(thumbnail)
			if id == "" {
				log.Debug("Camera has no thumbnail")
				continue
			}

			job := downloader.Job{
				Kind:    downloader.KindThumbnail,
				URL:     blink.GetThumbnailURL(session, thumbnail),
				Dest:    s.storage.ThumbnailPath(network.Name, camera.Name, id),
				Network: network.Name,
				Camera:  camera.Name,
			}
			if err := submit(job); err != nil {
				log.WithError(err).Warn("Failed to submit thumbnail job")
				return
			}
		}
	}
}

// listMedia walks the changed-media listing from page 1 until an empty or
// failed page
func (s *Syncer) listMedia(ctx context.Context, session blink.Session, report *checkpoint.CycleReport) []blink.MediaItem {
	var all []blink.MediaItem
	for page := 1; ; page++ {
		items, err := s.api.MediaPage(ctx, session, page, s.config.Poll.Since)
		if err != nil {
			if ctx.Err() == nil {
				s.metrics.PageFailed()
				s.logger.WithError(err).WithField("page", page).Warn("Failed to fetch media page, stopping pagination")
			}
			break
		}
		report.Pages++
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}

	s.logger.InfoWithFields("Media listed", map[string]interface{}{
		"pages": report.Pages,
		"items": len(all),
	})
	return all
}

// queueVideos submits every clip that is not marked deleted
func (s *Syncer) queueVideos(session blink.Session, items []blink.MediaItem, report *checkpoint.CycleReport, submit func(downloader.Job) error) {
	for _, item := range items {
		if item.Deleted.Unrecognised() {
			s.logger.WarnWithFields("Unrecognised deleted flag, downloading clip", map[string]interface{}{
				"media":   item.Media,
				"deleted": item.Deleted.Raw,
			})
		}
		if item.Deleted.Value {
			s.logger.DebugWithFields("Skipping deleted clip", map[string]interface{}{
				"media": item.Media,
			})
			continue
		}

		created, err := blink.ParseCreatedAt(item.CreatedAt)
		if err != nil {
			s.logger.WithError(err).WithField("media", item.Media).Warn("Skipping clip with unreadable timestamp")
			continue
		}
		created = created.UTC()
		if created.After(report.NewestMedia) {
			report.NewestMedia = created
		}

		job := downloader.Job{
			Kind:    downloader.KindVideo,
			URL:     blink.GetMediaFileURL(session, item.Media),
			Dest:    s.storage.VideoPath(item.NetworkName, item.DeviceName, created.Format(blink.FileStemLayout)),
			Network: item.NetworkName,
			Camera:  item.DeviceName,
		}
		if err := submit(job); err != nil {
			s.logger.WithError(err).Warn("Failed to submit clip job")
			return
		}
	}
}

// runDownloads starts a worker pool, lets produce submit jobs and tallies
// the results once the pool has drained
func (s *Syncer) runDownloads(ctx context.Context, d *downloader.Downloader, produce func(submit func(downloader.Job) error)) checkpoint.Counts {
	pool := downloader.NewWorkerPool(s.config.Download.ConcurrentDownloads, d, s.logger)
	pool.Start(ctx)

	var counts checkpoint.Counts
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			s.tally(&counts, result)
		}
	}()

	produce(pool.Submit)
	pool.Stop()
	wg.Wait()
	return counts
}

func (s *Syncer) tally(counts *checkpoint.Counts, result downloader.Result) {
	switch result.Outcome {
	case downloader.Downloaded:
		counts.Downloaded++
		counts.Bytes += result.Bytes
	case downloader.Skipped:
		counts.Skipped++
	case downloader.Failed:
		counts.Failed++
	}
	s.metrics.Download(string(result.Job.Kind), result.Outcome.String(), result.Bytes)
}

func (s *Syncer) recordCycle(session blink.Session, report *checkpoint.CycleReport) {
	s.metrics.CycleCompleted(report.FinishedAt)

	s.logger.InfoWithFields("Cycle complete", map[string]interface{}{
		"networks":     report.Networks,
		"cameras":      report.Cameras,
		"pages":        report.Pages,
		"thumbnails":   report.Thumbnails.Downloaded,
		"videos":       report.Videos.Downloaded,
		"skipped":      report.Thumbnails.Skipped + report.Videos.Skipped,
		"failed":       report.Thumbnails.Failed + report.Videos.Failed,
		"bytes":        report.Thumbnails.Bytes + report.Videos.Bytes,
		"duration":     report.Duration(),
		"newest_media": report.NewestMedia,
	})

	if s.checkpoint == nil {
		return
	}

	s.mu.Lock()
	email := s.email
	s.mu.Unlock()

	if _, err := s.checkpoint.RecordCycle(email, session.AccountID, *report); err != nil {
		s.logger.WithError(err).Warn("Failed to save sync state")
	}
}
