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
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/fasalvaidya/leafsync/pkg/server/helpers"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	// changesLimitDefault is the page size for the changes feed when the
	// client does not specify one
	changesLimitDefault = 100
	// changesLimitMax caps the page size a client may request
	changesLimitMax = 500
)

// ScanItem represents a scan on the wire
type ScanItem struct {
	UUID      string `json:"uuid"`
	CropID    int    `json:"crop_id"`
	ImagePath string `json:"image_path"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Deleted   bool   `json:"deleted"`
}

// DiagnosisItem represents a diagnosis on the wire
type DiagnosisItem struct {
	ScanUUID      string  `json:"scan_uuid"`
	NScore        float64 `json:"n_score"`
	PScore        float64 `json:"p_score"`
	KScore        float64 `json:"k_score"`
	NConfidence   float64 `json:"n_confidence"`
	PConfidence   float64 `json:"p_confidence"`
	KConfidence   float64 `json:"k_confidence"`
	NSeverity     string  `json:"n_severity"`
	PSeverity     string  `json:"p_severity"`
	KSeverity     string  `json:"k_severity"`
	OverallStatus string  `json:"overall_status"`
	DetectedClass string  `json:"detected_class"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
	Deleted       bool    `json:"deleted"`
}

// RecommendationItem represents a recommendation on the wire
type RecommendationItem struct {
	ScanUUID  string `json:"scan_uuid"`
	AdviceN   string `json:"advice_n"`
	AdviceP   string `json:"advice_p"`
	AdviceK   string `json:"advice_k"`
	AdviceNHi string `json:"advice_n_hi"`
	AdvicePHi string `json:"advice_p_hi"`
	AdviceKHi string `json:"advice_k_hi"`
	Priority  string `json:"priority"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Deleted   bool   `json:"deleted"`
}

// BatchResultItem is the per-record outcome of a batch upsert. A failing
// record does not affect its siblings in the batch.
type BatchResultItem struct {
	UUID  string `json:"uuid"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func resultOK(uuid string) BatchResultItem {
	return BatchResultItem{UUID: uuid, OK: true}
}

func resultErr(uuid, reason string) BatchResultItem {
	return BatchResultItem{UUID: uuid, OK: false, Error: reason}
}

// UpsertScans applies a batch of scans for the given device. Each record is
// applied independently: a record older than the stored row is an
// idempotent no-op, a record with a strictly newer updated_at wins.
func (a *App) UpsertScans(device *database.Device, items []ScanItem) ([]BatchResultItem, error) {
	results := make([]BatchResultItem, 0, len(items))

	for _, item := range items {
		if !helpers.ValidateUUID(item.UUID) {
			results = append(results, resultErr(item.UUID, "invalid uuid"))
			continue
		}

		var scan database.Scan
		err := a.DB.Where("uuid = ?", item.UUID).First(&scan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			scan = database.Scan{
				UUID:            item.UUID,
				DeviceID:        device.ID,
				CropID:          item.CropID,
				ImagePath:       item.ImagePath,
				Status:          item.Status,
				RecordCreatedAt: item.CreatedAt,
				RecordUpdatedAt: item.UpdatedAt,
				Deleted:         item.Deleted,
			}
			if err := a.DB.Create(&scan).Error; err != nil {
				return nil, errors.Wrap(err, "creating scan")
			}

			results = append(results, resultOK(item.UUID))
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "finding scan")
		}

		if scan.DeviceID != device.ID {
			results = append(results, resultErr(item.UUID, "record belongs to another device"))
			continue
		}
		if item.UpdatedAt <= scan.RecordUpdatedAt {
			results = append(results, resultOK(item.UUID))
			continue
		}

		scan.CropID = item.CropID
		scan.ImagePath = item.ImagePath
		scan.Status = item.Status
		scan.RecordUpdatedAt = item.UpdatedAt
		scan.Deleted = item.Deleted
		if err := a.DB.Save(&scan).Error; err != nil {
			return nil, errors.Wrap(err, "updating scan")
		}

		results = append(results, resultOK(item.UUID))
	}

	return results, nil
}

// findOwnedScan looks up the scan with the given uuid belonging to the device
func (a *App) findOwnedScan(device *database.Device, scanUUID string) (*database.Scan, error) {
	var scan database.Scan
	err := a.DB.Where("uuid = ? AND device_id = ?", scanUUID, device.ID).First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding scan")
	}

	return &scan, nil
}

// UpsertDiagnoses applies a batch of diagnoses for the given device. A
// diagnosis references its scan by uuid; a diagnosis for an unknown scan
// fails individually so that the client can retry it after the scan lands.
func (a *App) UpsertDiagnoses(device *database.Device, items []DiagnosisItem) ([]BatchResultItem, error) {
	results := make([]BatchResultItem, 0, len(items))

	for _, item := range items {
		if !helpers.ValidateUUID(item.ScanUUID) {
			results = append(results, resultErr(item.ScanUUID, "invalid uuid"))
			continue
		}
		if _, err := a.findOwnedScan(device, item.ScanUUID); err != nil {
			if errors.Is(err, ErrScanNotFound) {
				results = append(results, resultErr(item.ScanUUID, "unknown scan"))
				continue
			}
			return nil, err
		}

		var diag database.Diagnosis
		err := a.DB.Where("scan_uuid = ?", item.ScanUUID).First(&diag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			diag = database.Diagnosis{
				ScanUUID:        item.ScanUUID,
				DeviceID:        device.ID,
				RecordCreatedAt: item.CreatedAt,
			}
			applyDiagnosisItem(&diag, item)
			if err := a.DB.Create(&diag).Error; err != nil {
				return nil, errors.Wrap(err, "creating diagnosis")
			}

			results = append(results, resultOK(item.ScanUUID))
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "finding diagnosis")
		}

		if diag.DeviceID != device.ID {
			results = append(results, resultErr(item.ScanUUID, "record belongs to another device"))
			continue
		}
		if item.UpdatedAt <= diag.RecordUpdatedAt {
			results = append(results, resultOK(item.ScanUUID))
			continue
		}

		applyDiagnosisItem(&diag, item)
		if err := a.DB.Save(&diag).Error; err != nil {
			return nil, errors.Wrap(err, "updating diagnosis")
		}

		results = append(results, resultOK(item.ScanUUID))
	}

	return results, nil
}

func applyDiagnosisItem(diag *database.Diagnosis, item DiagnosisItem) {
	diag.NScore = item.NScore
	diag.PScore = item.PScore
	diag.KScore = item.KScore
	diag.NConfidence = item.NConfidence
	diag.PConfidence = item.PConfidence
	diag.KConfidence = item.KConfidence
	diag.NSeverity = item.NSeverity
	diag.PSeverity = item.PSeverity
	diag.KSeverity = item.KSeverity
	diag.OverallStatus = item.OverallStatus
	diag.DetectedClass = item.DetectedClass
	diag.RecordUpdatedAt = item.UpdatedAt
	diag.Deleted = item.Deleted
}

// UpsertRecommendations applies a batch of recommendations for the given
// device with the same per-record semantics as UpsertDiagnoses.
func (a *App) UpsertRecommendations(device *database.Device, items []RecommendationItem) ([]BatchResultItem, error) {
	results := make([]BatchResultItem, 0, len(items))

	for _, item := range items {
		if !helpers.ValidateUUID(item.ScanUUID) {
			results = append(results, resultErr(item.ScanUUID, "invalid uuid"))
			continue
		}
		if _, err := a.findOwnedScan(device, item.ScanUUID); err != nil {
			if errors.Is(err, ErrScanNotFound) {
				results = append(results, resultErr(item.ScanUUID, "unknown scan"))
				continue
			}
			return nil, err
		}

		var rec database.Recommendation
		err := a.DB.Where("scan_uuid = ?", item.ScanUUID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = database.Recommendation{
				ScanUUID:        item.ScanUUID,
				DeviceID:        device.ID,
				RecordCreatedAt: item.CreatedAt,
			}
			applyRecommendationItem(&rec, item)
			if err := a.DB.Create(&rec).Error; err != nil {
				return nil, errors.Wrap(err, "creating recommendation")
			}

			results = append(results, resultOK(item.ScanUUID))
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "finding recommendation")
		}

		if rec.DeviceID != device.ID {
			results = append(results, resultErr(item.ScanUUID, "record belongs to another device"))
			continue
		}
		if item.UpdatedAt <= rec.RecordUpdatedAt {
			results = append(results, resultOK(item.ScanUUID))
			continue
		}

		applyRecommendationItem(&rec, item)
		if err := a.DB.Save(&rec).Error; err != nil {
			return nil, errors.Wrap(err, "updating recommendation")
		}

		results = append(results, resultOK(item.ScanUUID))
	}

	return results, nil
}

func applyRecommendationItem(rec *database.Recommendation, item RecommendationItem) {
	rec.AdviceN = item.AdviceN
	rec.AdviceP = item.AdviceP
	rec.AdviceK = item.AdviceK
	rec.AdviceNHi = item.AdviceNHi
	rec.AdvicePHi = item.AdvicePHi
	rec.AdviceKHi = item.AdviceKHi
	rec.Priority = item.Priority
	rec.RecordUpdatedAt = item.UpdatedAt
	rec.Deleted = item.Deleted
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return changesLimitDefault
	}
	if limit > changesLimitMax {
		return changesLimitMax
	}

	return limit
}

func scanToItem(s database.Scan) ScanItem {
	return ScanItem{
		UUID:      s.UUID,
		CropID:    s.CropID,
		ImagePath: s.ImagePath,
		Status:    s.Status,
		CreatedAt: s.RecordCreatedAt,
		UpdatedAt: s.RecordUpdatedAt,
		Deleted:   s.Deleted,
	}
}

func diagnosisToItem(d database.Diagnosis) DiagnosisItem {
	return DiagnosisItem{
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
		CreatedAt:     d.RecordCreatedAt,
		UpdatedAt:     d.RecordUpdatedAt,
		Deleted:       d.Deleted,
	}
}

func recommendationToItem(r database.Recommendation) RecommendationItem {
	return RecommendationItem{
		ScanUUID:  r.ScanUUID,
		AdviceN:   r.AdviceN,
		AdviceP:   r.AdviceP,
		AdviceK:   r.AdviceK,
		AdviceNHi: r.AdviceNHi,
		AdvicePHi: r.AdvicePHi,
		AdviceKHi: r.AdviceKHi,
		Priority:  r.Priority,
		CreatedAt: r.RecordCreatedAt,
		UpdatedAt: r.RecordUpdatedAt,
		Deleted:   r.Deleted,
	}
}

// GetScanChanges returns the device's scans updated after the given
// watermark, in updated_at order. Tombstones are included so that deletes
// propagate. A full page is extended through any records sharing the last
// updated_at: the client advances its watermark past that value, so a
// record split off the page by the limit would otherwise never be served.
func (a *App) GetScanChanges(device *database.Device, since int64, limit int) ([]ScanItem, error) {
	lim := clampLimit(limit)

	var rows []database.Scan
	err := a.DB.
		Where("device_id = ? AND record_updated_at > ?", device.ID, since).
		Order("record_updated_at asc, id asc").
		Limit(lim).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying scan changes")
	}

	if len(rows) == lim {
		last := rows[len(rows)-1]

		var ties []database.Scan
		err := a.DB.
			Where("device_id = ? AND record_updated_at = ? AND id > ?", device.ID, last.RecordUpdatedAt, last.ID).
			Order("id asc").
			Find(&ties).Error
		if err != nil {
			return nil, errors.Wrap(err, "querying boundary scan changes")
		}

		rows = append(rows, ties...)
	}

	ret := make([]ScanItem, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, scanToItem(row))
	}

	return ret, nil
}

// GetDiagnosisChanges returns the device's diagnoses updated after the
// given watermark. A full page is extended through boundary ties the same
// way as GetScanChanges.
func (a *App) GetDiagnosisChanges(device *database.Device, since int64, limit int) ([]DiagnosisItem, error) {
	lim := clampLimit(limit)

	var rows []database.Diagnosis
	err := a.DB.
		Where("device_id = ? AND record_updated_at > ?", device.ID, since).
		Order("record_updated_at asc, id asc").
		Limit(lim).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying diagnosis changes")
	}

	if len(rows) == lim {
		last := rows[len(rows)-1]

		var ties []database.Diagnosis
		err := a.DB.
			Where("device_id = ? AND record_updated_at = ? AND id > ?", device.ID, last.RecordUpdatedAt, last.ID).
			Order("id asc").
			Find(&ties).Error
		if err != nil {
			return nil, errors.Wrap(err, "querying boundary diagnosis changes")
		}

		rows = append(rows, ties...)
	}

	ret := make([]DiagnosisItem, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, diagnosisToItem(row))
	}

	return ret, nil
}

// GetRecommendationChanges returns the device's recommendations updated
// after the given watermark. A full page is extended through boundary ties
// the same way as GetScanChanges.
func (a *App) GetRecommendationChanges(device *database.Device, since int64, limit int) ([]RecommendationItem, error) {
	lim := clampLimit(limit)

	var rows []database.Recommendation
	err := a.DB.
		Where("device_id = ? AND record_updated_at > ?", device.ID, since).
		Order("record_updated_at asc, id asc").
		Limit(lim).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying recommendation changes")
	}

	if len(rows) == lim {
		last := rows[len(rows)-1]

		var ties []database.Recommendation
		err := a.DB.
			Where("device_id = ? AND record_updated_at = ? AND id > ?", device.ID, last.RecordUpdatedAt, last.ID).
			Order("id asc").
			Find(&ties).Error
		if err != nil {
			return nil, errors.Wrap(err, "querying boundary recommendation changes")
		}

		rows = append(rows, ties...)
	}

	ret := make([]RecommendationItem, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, recommendationToItem(row))
	}

	return ret, nil
}
