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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/assert"
	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/cli/testutils"
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// fakeServer is an in-memory stand-in for the reconciliation service. Its
// handlers can be overridden per test to simulate failures.
type fakeServer struct {
	mu gosync.Mutex

	scans       map[string]client.ScanItem
	pushedScans [][]client.ScanItem

	scanResults func(items []client.ScanItem) []client.BatchResultItem
	failPush    bool
	failPull    bool

	server *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		scans: map[string]client.ScanItem{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scans/batch", f.handleScanBatch)
	mux.HandleFunc("/v1/diagnoses/batch", f.handleEmptyBatch)
	mux.HandleFunc("/v1/recommendations/batch", f.handleEmptyBatch)
	mux.HandleFunc("/v1/changes", f.handleChanges)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeServer) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPush {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var payload struct {
		Items []client.ScanItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.pushedScans = append(f.pushedScans, payload.Items)

	var results []client.BatchResultItem
	if f.scanResults != nil {
		results = f.scanResults(payload.Items)
	} else {
		for _, item := range payload.Items {
			f.scans[item.UUID] = item
			results = append(results, client.BatchResultItem{UUID: item.UUID, OK: true})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client.BatchResp{Results: results})
}

func (f *fakeServer) handleEmptyBatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client.BatchResp{})
}

func (f *fakeServer) handleChanges(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPull {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	entity := r.URL.Query().Get("entity")
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	w.Header().Set("Content-Type", "application/json")

	if entity != "scans" {
		json.NewEncoder(w).Encode(map[string]interface{}{"records": []interface{}{}})
		return
	}

	var records []client.ScanItem
	for _, item := range f.scans {
		if item.UpdatedAt > since {
			records = append(records, item)
		}
	}
	json.NewEncoder(w).Encode(client.GetScanChangesResp{Records: records})
}

func newTestSyncer(t *testing.T, f *fakeServer) (*Syncer, *database.DB) {
	db := testutils.InitMemoryDB(t)
	t.Cleanup(func() { db.Close() })

	ctx := context.LeafCtx{
		APIEndpoint: f.server.URL,
		Version:     "0.1.0-test",
	}
	dev := &device.StaticProvider{
		Identity: device.Identity{UUID: "device-1-uuid", Durable: true},
	}

	s := NewSyncer(db, client.New(ctx, dev), dev, clock.NewMock())

	return s, db
}

func insertDirtyScan(t *testing.T, db *database.DB, uuid string, createdAt int64) {
	testutils.MustExec(t, "inserting scan "+uuid, db,
		"INSERT INTO scans (uuid, crop_id, image_path, status, created_at, updated_at, sync_state) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid, 1, "/images/"+uuid+".jpg", consts.StatusCompleted, createdAt, createdAt, consts.SyncStateLocalOnly)
}

func getSyncState(t *testing.T, db *database.DB, uuid string) string {
	var ret string
	testutils.MustScan(t, "querying sync state",
		db.QueryRow("SELECT sync_state FROM scans WHERE uuid = ?", uuid), &ret)

	return ret
}

func TestPerformSync_push(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	insertDirtyScan(t, db, "scan-1-uuid", 100)
	insertDirtyScan(t, db, "scan-2-uuid", 200)

	result, err := s.PerformSync()
	assert.Equal(t, err, nil, "PerformSync error mismatch")
	assert.Equal(t, result.Success, true, "Success mismatch")
	assert.Equal(t, result.PushedCount, 2, "PushedCount mismatch")
	assert.Equal(t, len(result.Errors), 0, "Errors mismatch")

	assert.Equal(t, getSyncState(t, db, "scan-1-uuid"), consts.SyncStatePushed, "scan 1 state mismatch")
	assert.Equal(t, getSyncState(t, db, "scan-2-uuid"), consts.SyncStatePushed, "scan 2 state mismatch")
}

func TestPerformSync_idempotentPush(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	insertDirtyScan(t, db, "scan-1-uuid", 100)

	if _, err := s.PerformSync(); err != nil {
		t.Fatal(err)
	}
	result, err := s.PerformSync()
	assert.Equal(t, err, nil, "second PerformSync error mismatch")
	assert.Equal(t, result.PushedCount, 0, "second cycle should push nothing")

	f.mu.Lock()
	pushCount := len(f.pushedScans)
	f.mu.Unlock()
	assert.Equal(t, pushCount, 1, "a clean record must not be pushed again")
}

func TestPerformSync_partialBatchIsolation(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	f.scanResults = func(items []client.ScanItem) []client.BatchResultItem {
		var ret []client.BatchResultItem
		for _, item := range items {
			if item.UUID == "scan-2-uuid" {
				ret = append(ret, client.BatchResultItem{UUID: item.UUID, OK: false, Error: "validation failed"})
				continue
			}
			f.scans[item.UUID] = item
			ret = append(ret, client.BatchResultItem{UUID: item.UUID, OK: true})
		}

		return ret
	}

	insertDirtyScan(t, db, "scan-1-uuid", 100)
	insertDirtyScan(t, db, "scan-2-uuid", 200)
	insertDirtyScan(t, db, "scan-3-uuid", 300)

	result, err := s.PerformSync()
	assert.Equal(t, err, nil, "PerformSync error mismatch")
	assert.Equal(t, result.Success, true, "a per-record failure does not fail the cycle")
	assert.Equal(t, result.PushedCount, 2, "PushedCount mismatch")

	wantErrors := []RecordError{{UUID: "scan-2-uuid", Reason: "validation failed"}}
	if diff := cmp.Diff(wantErrors, result.Errors); diff != "" {
		t.Fatalf("Errors mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, getSyncState(t, db, "scan-1-uuid"), consts.SyncStatePushed, "scan 1 state mismatch")
	assert.Equal(t, getSyncState(t, db, "scan-2-uuid"), consts.SyncStateLocalOnly, "failed record should stay dirty")
	assert.Equal(t, getSyncState(t, db, "scan-3-uuid"), consts.SyncStatePushed, "scan 3 state mismatch")
}

func TestPerformSync_transientFailureKeepsRecords(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	f.failPush = true

	insertDirtyScan(t, db, "scan-1-uuid", 100)

	result, err := s.PerformSync()
	assert.NotEqual(t, err, nil, "a transport failure should surface as an error")
	assert.Equal(t, result.Success, false, "Success mismatch")
	assert.Equal(t, Retryable(err), true, "a 503 should be retryable")

	assert.Equal(t, getSyncState(t, db, "scan-1-uuid"), consts.SyncStateLocalOnly, "record should stay dirty after a failed cycle")

	// A later cycle picks the record up with no special recovery
	f.mu.Lock()
	f.failPush = false
	f.mu.Unlock()

	result, err = s.PerformSync()
	assert.Equal(t, err, nil, "recovery cycle error mismatch")
	assert.Equal(t, result.PushedCount, 1, "recovery cycle should push the record")
}

func TestPerformSync_pullAppliesRemote(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	f.scans["scan-9-uuid"] = client.ScanItem{
		UUID:      "scan-9-uuid",
		CropID:    5,
		ImagePath: "/images/scan-9.jpg",
		Status:    consts.StatusCompleted,
		CreatedAt: 100,
		UpdatedAt: 150,
	}

	result, err := s.PerformSync()
	assert.Equal(t, err, nil, "PerformSync error mismatch")
	assert.Equal(t, result.PulledCount, 1, "PulledCount mismatch")

	got, err := database.GetScan(db, "scan-9-uuid")
	assert.Equal(t, err, nil, "GetScan error mismatch")
	assert.Equal(t, got.CropID, 5, "CropID mismatch")
	assert.Equal(t, got.SyncState, consts.SyncStatePullApplied, "SyncState mismatch")
}

func TestPerformSync_pullLastWriterWins(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	// Local record edited at t=500; remote copy is older
	testutils.MustExec(t, "inserting scan", db,
		"INSERT INTO scans (uuid, crop_id, image_path, status, created_at, updated_at, sync_state) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"scan-1-uuid", 2, "/images/1.jpg", consts.StatusCompleted, 100, 500, consts.SyncStatePushed)

	f.scans["scan-1-uuid"] = client.ScanItem{
		UUID:      "scan-1-uuid",
		CropID:    7,
		ImagePath: "/images/1.jpg",
		Status:    consts.StatusFailed,
		CreatedAt: 100,
		UpdatedAt: 400,
	}

	_, err := s.PerformSync()
	assert.Equal(t, err, nil, "PerformSync error mismatch")

	got, err := database.GetScan(db, "scan-1-uuid")
	assert.Equal(t, err, nil, "GetScan error mismatch")
	assert.Equal(t, got.CropID, 2, "stale remote must not clobber a newer local record")
	assert.Equal(t, got.UpdatedAt, int64(500), "UpdatedAt mismatch")
}

func TestPerformSync_watermarkAdvances(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	f.scans["scan-1-uuid"] = client.ScanItem{
		UUID: "scan-1-uuid", CropID: 1, ImagePath: "/images/1.jpg",
		Status: consts.StatusCompleted, CreatedAt: 100, UpdatedAt: 700,
	}

	if _, err := s.PerformSync(); err != nil {
		t.Fatal(err)
	}

	var watermark int64
	if err := database.GetSystem(db, consts.SystemLastPullScans, &watermark); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, watermark, int64(700), "watermark should advance to max updated_at")

	// An empty pull must not move the watermark backwards
	if _, err := s.PerformSync(); err != nil {
		t.Fatal(err)
	}
	if err := database.GetSystem(db, consts.SystemLastPullScans, &watermark); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, watermark, int64(700), "watermark must never decrease")
}

func TestPerformSync_failedPullKeepsWatermark(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	f.scans["scan-1-uuid"] = client.ScanItem{
		UUID: "scan-1-uuid", CropID: 1, ImagePath: "/images/1.jpg",
		Status: consts.StatusCompleted, CreatedAt: 100, UpdatedAt: 700,
	}
	if _, err := s.PerformSync(); err != nil {
		t.Fatal(err)
	}

	f.mu.Lock()
	f.failPull = true
	f.mu.Unlock()

	result, err := s.PerformSync()
	assert.NotEqual(t, err, nil, "failed pull should surface as an error")
	assert.Equal(t, result.Success, false, "Success mismatch")

	var watermark int64
	if err := database.GetSystem(db, consts.SystemLastPullScans, &watermark); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, watermark, int64(700), "a failed pull must not move the watermark")
}

func TestPerformSync_volatileIdentity(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	s.Device = &device.StaticProvider{
		Identity: device.Identity{UUID: "session-only-uuid", Durable: false},
	}
	s.Client.Device = s.Device

	insertDirtyScan(t, db, "scan-1-uuid", 100)

	_, err := s.PerformSync()
	assert.Equal(t, errors.Is(err, ErrVolatileIdentity), true, "should refuse a volatile identity")

	f.mu.Lock()
	pushCount := len(f.pushedScans)
	f.mu.Unlock()
	assert.Equal(t, pushCount, 0, "nothing should reach the server")
}

func TestPerformSync_singleFlight(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	insertDirtyScan(t, db, "scan-1-uuid", 100)

	const concurrency = 8
	results := make([]Result, concurrency)
	errs := make([]error, concurrency)

	var wg gosync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.PerformSync()
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		assert.Equal(t, errs[i], nil, "PerformSync error mismatch")
		assert.Equal(t, results[i].Success, true, "every caller should receive a successful result")
	}

	f.mu.Lock()
	pushCount := len(f.pushedScans)
	f.mu.Unlock()
	if pushCount > 1 {
		t.Fatalf("expected coalesced cycles, got %d pushes", pushCount)
	}
}

func TestTryPerformSync(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)
	_ = db

	release := make(chan struct{})
	entered := make(chan struct{})
	f.scanResults = func(items []client.ScanItem) []client.BatchResultItem {
		close(entered)
		<-release
		var ret []client.BatchResultItem
		for _, item := range items {
			ret = append(ret, client.BatchResultItem{UUID: item.UUID, OK: true})
		}
		return ret
	}

	insertDirtyScan(t, db, "scan-1-uuid", 100)

	go s.PerformSync()
	<-entered

	_, err := s.TryPerformSync()
	assert.Equal(t, errors.Is(err, ErrAlreadyInProgress), true, "should report an in-flight cycle")

	close(release)
}

func TestPerformSync_timeout(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)

	mock := clock.NewMock()
	s.Clock = mock
	s.BatchSize = 1

	// The clock jumps past the cycle deadline while the first batch is in
	// flight; the cycle must stop before posting the second batch.
	f.scanResults = func(items []client.ScanItem) []client.BatchResultItem {
		mock.Advance(10 * time.Minute)
		var ret []client.BatchResultItem
		for _, item := range items {
			f.scans[item.UUID] = item
			ret = append(ret, client.BatchResultItem{UUID: item.UUID, OK: true})
		}
		return ret
	}

	insertDirtyScan(t, db, "scan-1-uuid", 100)
	insertDirtyScan(t, db, "scan-2-uuid", 200)

	result, err := s.PerformSync()
	assert.Equal(t, errors.Is(err, ErrCycleTimeout), true, "should abandon the cycle on timeout")
	assert.Equal(t, result.Success, false, "Success mismatch")
	assert.Equal(t, result.PushedCount, 1, "PushedCount mismatch")

	// Progress made before the deadline stays; the rest waits for the next cycle
	assert.Equal(t, getSyncState(t, db, "scan-1-uuid"), consts.SyncStatePushed, "completed batch should keep its progress")
	assert.Equal(t, getSyncState(t, db, "scan-2-uuid"), consts.SyncStateLocalOnly, "unpushed record should stay dirty")

	assert.Equal(t, Retryable(err), true, "an abandoned cycle should be retryable")
}

func TestPerformSync_batching(t *testing.T) {
	f := newFakeServer(t)
	s, db := newTestSyncer(t, f)
	s.BatchSize = 2

	insertDirtyScan(t, db, "scan-1-uuid", 100)
	insertDirtyScan(t, db, "scan-2-uuid", 200)
	insertDirtyScan(t, db, "scan-3-uuid", 300)
	insertDirtyScan(t, db, "scan-4-uuid", 400)
	insertDirtyScan(t, db, "scan-5-uuid", 500)

	result, err := s.PerformSync()
	assert.Equal(t, err, nil, "PerformSync error mismatch")
	assert.Equal(t, result.PushedCount, 5, "PushedCount mismatch")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, len(f.pushedScans), 3, "batch count mismatch")
	assert.Equal(t, len(f.pushedScans[0]), 2, "first batch size mismatch")
	assert.Equal(t, f.pushedScans[0][0].UUID, "scan-1-uuid", "batches should be ordered by created_at")
	assert.Equal(t, len(f.pushedScans[2]), 1, "last batch size mismatch")
}
