/* Copyright 2025 Leafsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sync

import (
	"fmt"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

// Scheduler runs sync cycles on a fixed interval and retries failed cycles
// early with exponential backoff. TryPerformSync keeps a slow cycle from
// stacking up behind the next tick.
type Scheduler struct {
	Syncer   *Syncer
	Interval time.Duration
	Backoff  BackoffPolicy

	cron    *cron.Cron
	attempt int
}

// NewScheduler returns a scheduler for the given syncer
func NewScheduler(s *Syncer, interval time.Duration) *Scheduler {
	return &Scheduler{
		Syncer:   s,
		Interval: interval,
		Backoff:  DefaultBackoff,
	}
}

// Start begins scheduling cycles. It returns immediately; cycles run on the
// cron's goroutine until Stop is called.
func (s *Scheduler) Start() error {
	s.cron = cron.New()

	spec := fmt.Sprintf("@every %s", s.Interval)
	if err := s.cron.AddFunc(spec, s.tick); err != nil {
		return errors.Wrap(err, "adding cron entry")
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling. A cycle already running is not interrupted.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) tick() {
	result, err := s.Syncer.TryPerformSync()
	if err != nil {
		if errors.Is(err, ErrAlreadyInProgress) {
			log.Debug("skipping tick: %s\n", err)
			return
		}

		log.Warnf("sync failed: %s\n", err)

		if Retryable(err) {
			delay := s.Backoff.Delay(s.attempt)
			s.attempt++
			log.Debug("retrying in %s\n", delay)
			time.AfterFunc(delay, s.tick)
		}
		return
	}

	s.attempt = 0
	log.Debug("synced: %s\n", FormatResult(result))

	for _, recordErr := range result.Errors {
		log.Warnf("record %s failed: %s\n", recordErr.UUID, recordErr.Reason)
	}
}
