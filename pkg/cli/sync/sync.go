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

// Package sync implements the push-then-pull cycle between the local store
// and the server. A cycle never holds a store transaction across a network
// call: it reads dirty state, talks to the server, then writes outcomes.
package sync

import (
	"database/sql"
	"fmt"
	gosync "sync"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/pkg/errors"
)

// ErrAlreadyInProgress is returned by TryPerformSync when a cycle is running
var ErrAlreadyInProgress = errors.New("a sync is already in progress")

// ErrVolatileIdentity is returned when the device identity could not be
// persisted. Syncing with an identity that changes on restart would orphan
// every pushed record, so the cycle refuses to run.
var ErrVolatileIdentity = errors.New("device identity is not durable")

// ErrCycleTimeout is returned when a cycle exceeds its time budget. The
// cycle is abandoned between network calls: outcomes already written stay
// written, everything else remains pending for the next cycle.
var ErrCycleTimeout = errors.New("sync cycle timed out")

// defaultBatchSize is the number of records pushed per request
const defaultBatchSize = 50

// defaultTimeout bounds a whole sync cycle
const defaultTimeout = 5 * time.Minute

// RecordError describes a record that failed to sync in a cycle
type RecordError struct {
	UUID   string
	Reason string
}

// Result is the outcome of a sync cycle. It is reported to the caller and
// never persisted; the durable cursor state lives in the system table.
type Result struct {
	Success     bool
	PushedCount int
	PulledCount int
	Duration    time.Duration
	Errors      []RecordError
}

// Syncer coordinates sync cycles. Concurrent callers are coalesced: at most
// one cycle runs at a time and callers that arrive during a cycle receive
// that cycle's result.
type Syncer struct {
	DB        *database.DB
	Client    client.Client
	Device    device.Provider
	Clock     clock.Clock
	BatchSize int
	Timeout   time.Duration

	mu       gosync.Mutex
	inflight *cycle

	// deadline for the running cycle. Only the cycle goroutine touches it.
	deadline time.Time
}

type cycle struct {
	done   chan struct{}
	result Result
	err    error
}

// NewSyncer returns a syncer with the default batch size
func NewSyncer(db *database.DB, c client.Client, dev device.Provider, cl clock.Clock) *Syncer {
	return &Syncer{
		DB:        db,
		Client:    c,
		Device:    dev,
		Clock:     cl,
		BatchSize: defaultBatchSize,
		Timeout:   defaultTimeout,
	}
}

// PerformSync runs a sync cycle. If a cycle is already running, the call
// blocks until it finishes and returns its result instead of starting a
// second cycle.
func (s *Syncer) PerformSync() (Result, error) {
	s.mu.Lock()
	if s.inflight != nil {
		c := s.inflight
		s.mu.Unlock()

		<-c.done
		return c.result, c.err
	}

	c := &cycle{done: make(chan struct{})}
	s.inflight = c
	s.mu.Unlock()

	result, err := s.run()

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()

	c.result = result
	c.err = err
	close(c.done)

	return result, err
}

// TryPerformSync runs a sync cycle unless one is already running, in which
// case it returns ErrAlreadyInProgress without blocking
func (s *Syncer) TryPerformSync() (Result, error) {
	s.mu.Lock()
	if s.inflight != nil {
		s.mu.Unlock()
		return Result{}, ErrAlreadyInProgress
	}

	c := &cycle{done: make(chan struct{})}
	s.inflight = c
	s.mu.Unlock()

	result, err := s.run()

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()

	c.result = result
	c.err = err
	close(c.done)

	return result, err
}

func (s *Syncer) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}

	return defaultBatchSize
}

func (s *Syncer) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}

	return defaultTimeout
}

// checkDeadline aborts the cycle if its time budget is spent. It is called
// between network calls, never inside a store write, so abandonment leaves
// no half-applied state.
func (s *Syncer) checkDeadline() error {
	if s.Clock.Now().After(s.deadline) {
		return ErrCycleTimeout
	}

	return nil
}

func (s *Syncer) run() (Result, error) {
	start := s.Clock.Now()
	s.deadline = start.Add(s.timeout())

	id, err := s.Device.Get()
	if err != nil {
		return Result{}, errors.Wrap(err, "getting device identity")
	}
	if !id.Durable {
		return Result{}, ErrVolatileIdentity
	}

	var ret Result
	ret.Success = true

	if err := s.push(&ret); err != nil {
		ret.Success = false
		ret.Duration = s.Clock.Now().Sub(start)
		return ret, errors.Wrap(err, "pushing")
	}

	if err := s.pull(&ret); err != nil {
		ret.Success = false
		ret.Duration = s.Clock.Now().Sub(start)
		return ret, errors.Wrap(err, "pulling")
	}

	ret.Duration = s.Clock.Now().Sub(start)
	return ret, nil
}

// push sends dirty records in dependency order, parents before children,
// so the server never sees a diagnosis for a scan it does not know
func (s *Syncer) push(ret *Result) error {
	if err := s.pushScans(ret); err != nil {
		return errors.Wrap(err, "pushing scans")
	}
	if err := s.pushDiagnoses(ret); err != nil {
		return errors.Wrap(err, "pushing diagnoses")
	}
	if err := s.pushRecommendations(ret); err != nil {
		return errors.Wrap(err, "pushing recommendations")
	}

	return nil
}

func (s *Syncer) pushScans(ret *Result) error {
	dirty, err := database.ListDirtyScans(s.DB)
	if err != nil {
		return errors.Wrap(err, "listing dirty scans")
	}

	for start := 0; start < len(dirty); start += s.batchSize() {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		end := start + s.batchSize()
		if end > len(dirty) {
			end = len(dirty)
		}
		chunk := dirty[start:end]

		items := make([]client.ScanItem, 0, len(chunk))
		seen := map[string]int64{}
		for _, scan := range chunk {
			items = append(items, client.ScanItem{
				UUID:      scan.UUID,
				CropID:    scan.CropID,
				ImagePath: scan.ImagePath,
				Status:    scan.Status,
				CreatedAt: scan.CreatedAt,
				UpdatedAt: scan.UpdatedAt,
				Deleted:   scan.Deleted(),
			})
			seen[scan.UUID] = scan.UpdatedAt
		}

		resp, err := s.Client.PushScans(items)
		if err != nil {
			return errors.Wrap(err, "posting a batch")
		}

		marks := applyBatchResults(resp, seen, ret)
		if err := database.MarkScansSynced(s.DB, marks, consts.SyncStatePushed); err != nil {
			return errors.Wrap(err, "marking scans synced")
		}
	}

	return nil
}

func (s *Syncer) pushDiagnoses(ret *Result) error {
	dirty, err := database.ListDirtyDiagnoses(s.DB)
	if err != nil {
		return errors.Wrap(err, "listing dirty diagnoses")
	}

	for start := 0; start < len(dirty); start += s.batchSize() {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		end := start + s.batchSize()
		if end > len(dirty) {
			end = len(dirty)
		}
		chunk := dirty[start:end]

		items := make([]client.DiagnosisItem, 0, len(chunk))
		seen := map[string]int64{}
		for _, d := range chunk {
			items = append(items, client.DiagnosisItem{
				ScanUUID:      d.ScanUUID,
				NScore:        d.NScore,
				PScore:        d.PScore,
				KScore:        d.KScore,
				NConfidence:   d.NConfidence,
				PConfidence:   d.PConfidence,
				KConfidence:   d.KConfidence,
				NSeverity:     d.NSeverity,
				PSeverity:     d.PSeverity,
				KSeverity:     d.KSeverity,
				OverallStatus: d.OverallStatus,
				DetectedClass: d.DetectedClass,
				CreatedAt:     d.CreatedAt,
				UpdatedAt:     d.UpdatedAt,
				Deleted:       d.DeletedAt.Valid,
			})
			seen[d.ScanUUID] = d.UpdatedAt
		}

		resp, err := s.Client.PushDiagnoses(items)
		if err != nil {
			return errors.Wrap(err, "posting a batch")
		}

		marks := applyBatchResults(resp, seen, ret)
		if err := database.MarkDiagnosesSynced(s.DB, marks, consts.SyncStatePushed); err != nil {
			return errors.Wrap(err, "marking diagnoses synced")
		}
	}

	return nil
}

func (s *Syncer) pushRecommendations(ret *Result) error {
	dirty, err := database.ListDirtyRecommendations(s.DB)
	if err != nil {
		return errors.Wrap(err, "listing dirty recommendations")
	}

	for start := 0; start < len(dirty); start += s.batchSize() {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		end := start + s.batchSize()
		if end > len(dirty) {
			end = len(dirty)
		}
		chunk := dirty[start:end]

		items := make([]client.RecommendationItem, 0, len(chunk))
		seen := map[string]int64{}
		for _, r := range chunk {
			items = append(items, client.RecommendationItem{
				ScanUUID:  r.ScanUUID,
				AdviceN:   r.AdviceN,
				AdviceP:   r.AdviceP,
				AdviceK:   r.AdviceK,
				AdviceNHi: r.AdviceNHi,
				AdvicePHi: r.AdvicePHi,
				AdviceKHi: r.AdviceKHi,
				Priority:  r.Priority,
				CreatedAt: r.CreatedAt,
				UpdatedAt: r.UpdatedAt,
				Deleted:   r.DeletedAt.Valid,
			})
			seen[r.ScanUUID] = r.UpdatedAt
		}

		resp, err := s.Client.PushRecommendations(items)
		if err != nil {
			return errors.Wrap(err, "posting a batch")
		}

		marks := applyBatchResults(resp, seen, ret)
		if err := database.MarkRecommendationsSynced(s.DB, marks, consts.SyncStatePushed); err != nil {
			return errors.Wrap(err, "marking recommendations synced")
		}
	}

	return nil
}

// applyBatchResults splits the per-item outcomes of a batch: succeeded
// records become marks to transition, failed records become record errors.
// A failed item stays local_only and is retried in a later cycle.
func applyBatchResults(resp client.BatchResp, seen map[string]int64, ret *Result) []database.SyncedMark {
	var marks []database.SyncedMark

	for _, item := range resp.Results {
		if item.OK {
			marks = append(marks, database.SyncedMark{
				UUID:          item.UUID,
				SeenUpdatedAt: seen[item.UUID],
			})
			ret.PushedCount++
			continue
		}

		ret.Errors = append(ret.Errors, RecordError{
			UUID:   item.UUID,
			Reason: item.Error,
		})
	}

	return marks
}

// pull fetches records updated since each entity's watermark and applies
// them with last-writer-wins. The watermark is advanced only after every
// record in the fetched set has been applied, and it never decreases.
func (s *Syncer) pull(ret *Result) error {
	if err := s.pullScans(ret); err != nil {
		return errors.Wrap(err, "pulling scans")
	}
	if err := s.pullDiagnoses(ret); err != nil {
		return errors.Wrap(err, "pulling diagnoses")
	}
	if err := s.pullRecommendations(ret); err != nil {
		return errors.Wrap(err, "pulling recommendations")
	}

	return nil
}

func getWatermark(db *database.DB, key string) (int64, error) {
	var ret int64
	if _, err := database.GetSystemOptional(db, key, &ret); err != nil {
		return 0, errors.Wrap(err, "querying watermark")
	}

	return ret, nil
}

func advanceWatermark(db *database.DB, key string, candidate int64) error {
	current, err := getWatermark(db, key)
	if err != nil {
		return errors.Wrap(err, "getting current watermark")
	}
	if candidate <= current {
		return nil
	}

	if err := database.UpsertSystem(db, key, candidate); err != nil {
		return errors.Wrap(err, "saving watermark")
	}

	return nil
}

func (s *Syncer) pullScans(ret *Result) error {
	since, err := getWatermark(s.DB, consts.SystemLastPullScans)
	if err != nil {
		return err
	}

	cursor := since
	maxSeen := since
	for {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		resp, err := s.Client.GetScanChanges(cursor, s.batchSize())
		if err != nil {
			return errors.Wrap(err, "fetching changes")
		}
		if len(resp.Records) == 0 {
			break
		}

		for _, item := range resp.Records {
			applied, err := database.ApplyRemoteScan(s.DB, scanFromItem(item))
			if err != nil {
				return errors.Wrapf(err, "applying scan %s", item.UUID)
			}
			if applied {
				ret.PulledCount++
			}
			if item.UpdatedAt > maxSeen {
				maxSeen = item.UpdatedAt
			}
		}

		if len(resp.Records) < s.batchSize() {
			break
		}
		cursor = maxSeen
	}

	return advanceWatermark(s.DB, consts.SystemLastPullScans, maxSeen)
}

func (s *Syncer) pullDiagnoses(ret *Result) error {
	since, err := getWatermark(s.DB, consts.SystemLastPullDiagnoses)
	if err != nil {
		return err
	}

	cursor := since
	maxSeen := since
	for {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		resp, err := s.Client.GetDiagnosisChanges(cursor, s.batchSize())
		if err != nil {
			return errors.Wrap(err, "fetching changes")
		}
		if len(resp.Records) == 0 {
			break
		}

		for _, item := range resp.Records {
			applied, err := database.ApplyRemoteDiagnosis(s.DB, diagnosisFromItem(item))
			if err != nil {
				return errors.Wrapf(err, "applying diagnosis %s", item.ScanUUID)
			}
			if applied {
				ret.PulledCount++
			}
			if item.UpdatedAt > maxSeen {
				maxSeen = item.UpdatedAt
			}
		}

		if len(resp.Records) < s.batchSize() {
			break
		}
		cursor = maxSeen
	}

	return advanceWatermark(s.DB, consts.SystemLastPullDiagnoses, maxSeen)
}

func (s *Syncer) pullRecommendations(ret *Result) error {
	since, err := getWatermark(s.DB, consts.SystemLastPullRecommendations)
	if err != nil {
		return err
	}

	cursor := since
	maxSeen := since
	for {
		if err := s.checkDeadline(); err != nil {
			return err
		}

		resp, err := s.Client.GetRecommendationChanges(cursor, s.batchSize())
		if err != nil {
			return errors.Wrap(err, "fetching changes")
		}
		if len(resp.Records) == 0 {
			break
		}

		for _, item := range resp.Records {
			applied, err := database.ApplyRemoteRecommendation(s.DB, recommendationFromItem(item))
			if err != nil {
				return errors.Wrapf(err, "applying recommendation %s", item.ScanUUID)
			}
			if applied {
				ret.PulledCount++
			}
			if item.UpdatedAt > maxSeen {
				maxSeen = item.UpdatedAt
			}
		}

		if len(resp.Records) < s.batchSize() {
			break
		}
		cursor = maxSeen
	}

	return advanceWatermark(s.DB, consts.SystemLastPullRecommendations, maxSeen)
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func scanFromItem(item client.ScanItem) database.Scan {
	ret := database.Scan{
		UUID:      item.UUID,
		CropID:    item.CropID,
		ImagePath: item.ImagePath,
		Status:    item.Status,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Deleted {
		ret.DeletedAt = nullInt64(item.UpdatedAt)
	}

	return ret
}

func diagnosisFromItem(item client.DiagnosisItem) database.Diagnosis {
	ret := database.Diagnosis{
		ScanUUID:      item.ScanUUID,
		NScore:        item.NScore,
		PScore:        item.PScore,
		KScore:        item.KScore,
		NConfidence:   item.NConfidence,
		PConfidence:   item.PConfidence,
		KConfidence:   item.KConfidence,
		NSeverity:     item.NSeverity,
		PSeverity:     item.PSeverity,
		KSeverity:     item.KSeverity,
		OverallStatus: item.OverallStatus,
		DetectedClass: item.DetectedClass,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
	if item.Deleted {
		ret.DeletedAt = nullInt64(item.UpdatedAt)
	}

	return ret
}

func recommendationFromItem(item client.RecommendationItem) database.Recommendation {
	ret := database.Recommendation{
		ScanUUID:  item.ScanUUID,
		AdviceN:   item.AdviceN,
		AdviceP:   item.AdviceP,
		AdviceK:   item.AdviceK,
		AdviceNHi: item.AdviceNHi,
		AdvicePHi: item.AdvicePHi,
		AdviceKHi: item.AdviceKHi,
		Priority:  item.Priority,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Deleted {
		ret.DeletedAt = nullInt64(item.UpdatedAt)
	}

	return ret
}

// FormatResult renders a one-line summary of a cycle for CLI output
func FormatResult(r Result) string {
	return fmt.Sprintf("pushed %d, pulled %d in %s", r.PushedCount, r.PulledCount, r.Duration.Round(time.Millisecond))
}
