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

package app

import (
	"fmt"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/fasalvaidya/leafsync/pkg/server/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeviceUUID  = "3e6c8400-e29b-41d4-a716-446655440000"
	otherDeviceUUID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
	testScanUUID    = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
)

func newTestApp(t *testing.T) (*App, *database.Device) {
	t.Helper()

	db := testutils.InitMemoryDB(t)
	device := testutils.MustCreateDevice(t, db, testDeviceUUID)

	return &App{DB: db, Clock: clock.NewMock()}, device
}

func scanItemFixture(uuid string, updatedAt int64) ScanItem {
	return ScanItem{
		UUID:      uuid,
		CropID:    2,
		ImagePath: "images/" + uuid + ".jpg",
		Status:    "pending_diagnosis",
		CreatedAt: 100,
		UpdatedAt: updatedAt,
	}
}

func TestUpsertScans_create(t *testing.T) {
	a, device := newTestApp(t)

	results, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].OK, "result should be ok")
	assert.Equal(t, testScanUUID, results[0].UUID)

	var scan database.Scan
	require.NoError(t, a.DB.Where("uuid = ?", testScanUUID).First(&scan).Error)
	assert.Equal(t, device.ID, scan.DeviceID)
	assert.Equal(t, 2, scan.CropID)
	assert.Equal(t, int64(200), scan.RecordUpdatedAt)
}

func TestUpsertScans_idempotent(t *testing.T) {
	a, device := newTestApp(t)

	item := scanItemFixture(testScanUUID, 200)
	_, err := a.UpsertScans(device, []ScanItem{item})
	require.NoError(t, err)

	// Replaying the same item must succeed without changing the row
	results, err := a.UpsertScans(device, []ScanItem{item})
	require.NoError(t, err)
	assert.True(t, results[0].OK)

	var count int64
	require.NoError(t, a.DB.Model(&database.Scan{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "scan count mismatch")
}

func TestUpsertScans_lastWriterWins(t *testing.T) {
	a, device := newTestApp(t)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	stale := scanItemFixture(testScanUUID, 150)
	stale.Status = "stale"
	results, err := a.UpsertScans(device, []ScanItem{stale})
	require.NoError(t, err)
	assert.True(t, results[0].OK, "stale write should be an ok no-op")

	var scan database.Scan
	require.NoError(t, a.DB.Where("uuid = ?", testScanUUID).First(&scan).Error)
	assert.Equal(t, "pending_diagnosis", scan.Status, "stale write should not apply")

	newer := scanItemFixture(testScanUUID, 300)
	newer.Status = "completed"
	_, err = a.UpsertScans(device, []ScanItem{newer})
	require.NoError(t, err)

	require.NoError(t, a.DB.Where("uuid = ?", testScanUUID).First(&scan).Error)
	assert.Equal(t, "completed", scan.Status)
	assert.Equal(t, int64(300), scan.RecordUpdatedAt)
}

func TestUpsertScans_partialFailure(t *testing.T) {
	a, device := newTestApp(t)

	items := []ScanItem{
		scanItemFixture(testScanUUID, 200),
		scanItemFixture("not-a-uuid", 200),
		scanItemFixture("7c9e6679-7425-40de-944b-e07fc1f90ae7", 200),
	}
	results, err := a.UpsertScans(device, items)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Equal(t, "invalid uuid", results[1].Error)
	assert.True(t, results[2].OK, "sibling of a failing record should apply")
}

func TestUpsertScans_ownership(t *testing.T) {
	a, device := newTestApp(t)
	other := testutils.MustCreateDevice(t, a.DB, otherDeviceUUID)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	results, err := a.UpsertScans(other, []ScanItem{scanItemFixture(testScanUUID, 300)})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, "record belongs to another device", results[0].Error)
}

func TestUpsertScans_tombstone(t *testing.T) {
	a, device := newTestApp(t)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	tombstone := scanItemFixture(testScanUUID, 300)
	tombstone.Deleted = true
	_, err = a.UpsertScans(device, []ScanItem{tombstone})
	require.NoError(t, err)

	var scan database.Scan
	require.NoError(t, a.DB.Where("uuid = ?", testScanUUID).First(&scan).Error)
	assert.True(t, scan.Deleted, "tombstone should be recorded")
}

func TestUpsertDiagnoses_unknownScan(t *testing.T) {
	a, device := newTestApp(t)

	item := DiagnosisItem{ScanUUID: testScanUUID, NScore: 0.5, CreatedAt: 100, UpdatedAt: 200}
	results, err := a.UpsertDiagnoses(device, []DiagnosisItem{item})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, "unknown scan", results[0].Error)
}

func TestUpsertDiagnoses_upsert(t *testing.T) {
	a, device := newTestApp(t)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	item := DiagnosisItem{
		ScanUUID:      testScanUUID,
		NScore:        0.8,
		NSeverity:     "critical",
		OverallStatus: "critical",
		DetectedClass: "nitrogen_deficiency",
		CreatedAt:     100,
		UpdatedAt:     200,
	}
	results, err := a.UpsertDiagnoses(device, []DiagnosisItem{item})
	require.NoError(t, err)
	assert.True(t, results[0].OK)

	// A newer write replaces the stored row
	item.NScore = 0.3
	item.NSeverity = "healthy"
	item.UpdatedAt = 300
	_, err = a.UpsertDiagnoses(device, []DiagnosisItem{item})
	require.NoError(t, err)

	var diag database.Diagnosis
	require.NoError(t, a.DB.Where("scan_uuid = ?", testScanUUID).First(&diag).Error)
	assert.Equal(t, 0.3, diag.NScore)
	assert.Equal(t, "healthy", diag.NSeverity)
	assert.Equal(t, int64(300), diag.RecordUpdatedAt)
}

func TestUpsertRecommendations_upsert(t *testing.T) {
	a, device := newTestApp(t)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	item := RecommendationItem{
		ScanUUID:  testScanUUID,
		AdviceN:   "Apply 50-70 kg Urea per acre.",
		Priority:  "critical",
		CreatedAt: 100,
		UpdatedAt: 200,
	}
	results, err := a.UpsertRecommendations(device, []RecommendationItem{item})
	require.NoError(t, err)
	assert.True(t, results[0].OK)

	var rec database.Recommendation
	require.NoError(t, a.DB.Where("scan_uuid = ?", testScanUUID).First(&rec).Error)
	assert.Equal(t, "critical", rec.Priority)
}

func TestGetScanChanges(t *testing.T) {
	a, device := newTestApp(t)
	other := testutils.MustCreateDevice(t, a.DB, otherDeviceUUID)

	for i := 0; i < 5; i++ {
		uuid := fmt.Sprintf("6ba7b810-9dad-11d1-80b4-00c04fd430c%d", i)
		_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(uuid, int64(200+i))})
		require.NoError(t, err)
	}
	_, err := a.UpsertScans(other, []ScanItem{scanItemFixture("7c9e6679-7425-40de-944b-e07fc1f90ae7", 999)})
	require.NoError(t, err)

	// Only the device's own records after the watermark, in order
	items, err := a.GetScanChanges(device, 201, 0)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, int64(202), items[0].UpdatedAt)
	assert.Equal(t, int64(203), items[1].UpdatedAt)
	assert.Equal(t, int64(204), items[2].UpdatedAt)
}

func TestGetScanChanges_limit(t *testing.T) {
	a, device := newTestApp(t)

	for i := 0; i < 5; i++ {
		uuid := fmt.Sprintf("6ba7b810-9dad-11d1-80b4-00c04fd430c%d", i)
		_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(uuid, int64(200+i))})
		require.NoError(t, err)
	}

	items, err := a.GetScanChanges(device, 0, 2)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, int64(200), items[0].UpdatedAt)
	assert.Equal(t, int64(201), items[1].UpdatedAt)
}

func TestGetScanChanges_boundaryTies(t *testing.T) {
	a, device := newTestApp(t)

	// Three records share an updated_at; a limit of 2 would split the
	// group and the client, advancing its watermark past 300, would
	// never see the rest
	for i := 0; i < 3; i++ {
		uuid := fmt.Sprintf("6ba7b810-9dad-11d1-80b4-00c04fd430c%d", i)
		_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(uuid, 300)})
		require.NoError(t, err)
	}
	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture("7c9e6679-7425-40de-944b-e07fc1f90ae7", 400)})
	require.NoError(t, err)

	items, err := a.GetScanChanges(device, 0, 2)
	require.NoError(t, err)

	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, int64(300), item.UpdatedAt)
	}

	// The next page picks up after the tie group
	items, err = a.GetScanChanges(device, 300, 2)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, int64(400), items[0].UpdatedAt)
}

func TestGetScanChanges_includesTombstones(t *testing.T) {
	a, device := newTestApp(t)

	_, err := a.UpsertScans(device, []ScanItem{scanItemFixture(testScanUUID, 200)})
	require.NoError(t, err)

	tombstone := scanItemFixture(testScanUUID, 300)
	tombstone.Deleted = true
	_, err = a.UpsertScans(device, []ScanItem{tombstone})
	require.NoError(t, err)

	items, err := a.GetScanChanges(device, 250, 0)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.True(t, items[0].Deleted, "tombstone should be served")
}
