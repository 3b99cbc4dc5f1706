// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

// DefaultInterval is used when a job is built with a non-positive interval.
const DefaultInterval = 5 * time.Minute

// PeriodicJob calls a [Task] on a ticker. The job is idle until Start is
// called and can be restarted after Stop.
type PeriodicJob struct {
	name     string
	interval time.Duration
	task     Task
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicJob builds a job running task every interval.
func NewPeriodicJob(name string, interval time.Duration, task Task, log *logger.Logger) *PeriodicJob {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PeriodicJob{
		name:     name,
		interval: interval,
		task:     task,
		logger:   log.WithComponent("job:" + name),
	}
}

// Start stops any previous run, then launches a goroutine that calls the
// task every interval. The goroutine exits when ctx is cancelled or Stop is
// called.
func (j *PeriodicJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	j.logger.Debug().Dur("interval", j.interval).Msg("periodic job started")

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(j.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.task(jobCtx)
			}
		}
	}()
}

// Stop cancels the running goroutine and waits for it to exit. Safe to call
// when the job is not running.
func (j *PeriodicJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
		j.logger.Debug().Msg("periodic job stopped")
	}
	j.wg.Wait()
}

// Running reports whether the job has been started and not stopped.
func (j *PeriodicJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel != nil
}
