// Package imagesweeper removes cached QR bitmaps in the background. Record
// deletion stays synchronous on the request path; only the file removal is
// deferred, batched behind a queue so a burst of deletions does not stack
// disk I/O onto request handlers.
package imagesweeper

import (
	"context"
	"os"
	"time"

	"github.com/patric-chuzhbe/qrvault/internal/logger"
)

type ImageSweeper struct {
	queue              chan string
	delayBetweenSweeps time.Duration
	errorChannel       chan error
}

func New(
	channelCapacity int,
	delayBetweenSweeps time.Duration,
) *ImageSweeper {
	return &ImageSweeper{
		queue:              make(chan string, channelCapacity),
		delayBetweenSweeps: delayBetweenSweeps,
		errorChannel:       make(chan error, channelCapacity),
	}
}

// ListenErrors drains the error channel through the given callback.
func (s *ImageSweeper) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the sweep loop. It accumulates queued paths and removes them in
// batches on every tick, until ctx is cancelled.
func (s *ImageSweeper) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.delayBetweenSweeps * time.Second)
		defer ticker.Stop()

		var paths []string

		for {
			select {
			case <-ctx.Done():
				s.removeBatch(paths)
				return
			case path := <-s.queue:
				paths = append(paths, path)
			case <-ticker.C:
				if len(paths) == 0 {
					continue
				}
				s.removeBatch(paths)
				paths = nil
			}
		}
	}()
}

func (s *ImageSweeper) removeBatch(paths []string) {
	removed := 0
	for _, path := range paths {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			s.errorChannel <- err
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Log.Infof("processed removing of %d cached images", removed)
	}
}

// EnqueueJob schedules a cached image file for removal. Empty paths are
// ignored, so callers can pass a record's ImagePath unconditionally.
func (s *ImageSweeper) EnqueueJob(path string) {
	if path == "" {
		return
	}
	s.queue <- path
}
