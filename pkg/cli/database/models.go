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

package database

import (
	"database/sql"

	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/pkg/errors"
)

// Scan is a leaf scan captured on this device
type Scan struct {
	UUID      string
	CropID    int
	ImagePath string
	Status    string
	CreatedAt int64
	UpdatedAt int64
	DeletedAt sql.NullInt64
	SyncState string
}

// Diagnosis is the NPK deficiency analysis for a scan. It shares the
// scan's uuid because a scan has at most one diagnosis.
type Diagnosis struct {
	ScanUUID      string
	NScore        float64
	PScore        float64
	KScore        float64
	NConfidence   float64
	PConfidence   float64
	KConfidence   float64
	NSeverity     string
	PSeverity     string
	KSeverity     string
	OverallStatus string
	DetectedClass string
	CreatedAt     int64
	UpdatedAt     int64
	DeletedAt     sql.NullInt64
	SyncState     string
}

// Recommendation is the fertilizer advice derived from a diagnosis
type Recommendation struct {
	ScanUUID  string
	AdviceN   string
	AdviceP   string
	AdviceK   string
	AdviceNHi string
	AdvicePHi string
	AdviceKHi string
	Priority  string
	CreatedAt int64
	UpdatedAt int64
	DeletedAt sql.NullInt64
	SyncState string
}

// Deleted reports whether the scan carries a tombstone
func (s Scan) Deleted() bool {
	return s.DeletedAt.Valid
}

// written reports whether the statement wrote a row
func written(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting affected rows")
	}

	return n > 0, nil
}

// Upsert writes the scan by uuid. An existing row is overwritten only if
// this record's updated_at is strictly ahead of the stored one. The guard
// is part of the statement itself, so an edit committing between a read
// and this write cannot be clobbered by a stale record. It reports whether
// a row was written.
func (s Scan) Upsert(db *DB) (bool, error) {
	res, err := db.Exec(`INSERT INTO scans
		(uuid, crop_id, image_path, status, created_at, updated_at, deleted_at, sync_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			crop_id = excluded.crop_id, image_path = excluded.image_path, status = excluded.status,
			created_at = excluded.created_at, updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at, sync_state = excluded.sync_state
		WHERE excluded.updated_at > scans.updated_at`,
		s.UUID, s.CropID, s.ImagePath, s.Status, s.CreatedAt, s.UpdatedAt, s.DeletedAt, s.SyncState)
	if err != nil {
		return false, errors.Wrap(err, "upserting scan")
	}

	return written(res)
}

// UpdateIfNewer overwrites the existing row for the scan only if this
// record's updated_at is strictly ahead of the stored one. A missing row
// is a no-op. It reports whether a row was written.
func (s Scan) UpdateIfNewer(db *DB) (bool, error) {
	res, err := db.Exec(`UPDATE scans
		SET crop_id = ?, image_path = ?, status = ?, created_at = ?, updated_at = ?, deleted_at = ?, sync_state = ?
		WHERE uuid = ? AND updated_at < ?`,
		s.CropID, s.ImagePath, s.Status, s.CreatedAt, s.UpdatedAt, s.DeletedAt, s.SyncState, s.UUID, s.UpdatedAt)
	if err != nil {
		return false, errors.Wrap(err, "updating scan")
	}

	return written(res)
}

// Upsert writes the diagnosis by scan uuid with the same forward-only
// updated_at guard as Scan.Upsert
func (d Diagnosis) Upsert(db *DB) (bool, error) {
	res, err := db.Exec(`INSERT INTO diagnoses
		(scan_uuid, n_score, p_score, k_score, n_confidence, p_confidence, k_confidence,
		 n_severity, p_severity, k_severity, overall_status, detected_class,
		 created_at, updated_at, deleted_at, sync_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scan_uuid) DO UPDATE SET
			n_score = excluded.n_score, p_score = excluded.p_score, k_score = excluded.k_score,
			n_confidence = excluded.n_confidence, p_confidence = excluded.p_confidence, k_confidence = excluded.k_confidence,
			n_severity = excluded.n_severity, p_severity = excluded.p_severity, k_severity = excluded.k_severity,
			overall_status = excluded.overall_status, detected_class = excluded.detected_class,
			created_at = excluded.created_at, updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at, sync_state = excluded.sync_state
		WHERE excluded.updated_at > diagnoses.updated_at`,
		d.ScanUUID, d.NScore, d.PScore, d.KScore, d.NConfidence, d.PConfidence, d.KConfidence,
		d.NSeverity, d.PSeverity, d.KSeverity, d.OverallStatus, d.DetectedClass,
		d.CreatedAt, d.UpdatedAt, d.DeletedAt, d.SyncState)
	if err != nil {
		return false, errors.Wrap(err, "upserting diagnosis")
	}

	return written(res)
}

// UpdateIfNewer overwrites the existing diagnosis only if this record's
// updated_at is strictly ahead of the stored one
func (d Diagnosis) UpdateIfNewer(db *DB) (bool, error) {
	res, err := db.Exec(`UPDATE diagnoses
		SET n_score = ?, p_score = ?, k_score = ?, n_confidence = ?, p_confidence = ?, k_confidence = ?,
		    n_severity = ?, p_severity = ?, k_severity = ?, overall_status = ?, detected_class = ?,
		    created_at = ?, updated_at = ?, deleted_at = ?, sync_state = ?
		WHERE scan_uuid = ? AND updated_at < ?`,
		d.NScore, d.PScore, d.KScore, d.NConfidence, d.PConfidence, d.KConfidence,
		d.NSeverity, d.PSeverity, d.KSeverity, d.OverallStatus, d.DetectedClass,
		d.CreatedAt, d.UpdatedAt, d.DeletedAt, d.SyncState, d.ScanUUID, d.UpdatedAt)
	if err != nil {
		return false, errors.Wrap(err, "updating diagnosis")
	}

	return written(res)
}

// Upsert writes the recommendation by scan uuid with the same forward-only
// updated_at guard as Scan.Upsert
func (r Recommendation) Upsert(db *DB) (bool, error) {
	res, err := db.Exec(`INSERT INTO recommendations
		(scan_uuid, advice_n, advice_p, advice_k, advice_n_hi, advice_p_hi, advice_k_hi,
		 priority, created_at, updated_at, deleted_at, sync_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scan_uuid) DO UPDATE SET
			advice_n = excluded.advice_n, advice_p = excluded.advice_p, advice_k = excluded.advice_k,
			advice_n_hi = excluded.advice_n_hi, advice_p_hi = excluded.advice_p_hi, advice_k_hi = excluded.advice_k_hi,
			priority = excluded.priority, created_at = excluded.created_at, updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at, sync_state = excluded.sync_state
		WHERE excluded.updated_at > recommendations.updated_at`,
		r.ScanUUID, r.AdviceN, r.AdviceP, r.AdviceK, r.AdviceNHi, r.AdvicePHi, r.AdviceKHi,
		r.Priority, r.CreatedAt, r.UpdatedAt, r.DeletedAt, r.SyncState)
	if err != nil {
		return false, errors.Wrap(err, "upserting recommendation")
	}

	return written(res)
}

// UpdateIfNewer overwrites the existing recommendation only if this
// record's updated_at is strictly ahead of the stored one
func (r Recommendation) UpdateIfNewer(db *DB) (bool, error) {
	res, err := db.Exec(`UPDATE recommendations
		SET advice_n = ?, advice_p = ?, advice_k = ?, advice_n_hi = ?, advice_p_hi = ?, advice_k_hi = ?,
		    priority = ?, created_at = ?, updated_at = ?, deleted_at = ?, sync_state = ?
		WHERE scan_uuid = ? AND updated_at < ?`,
		r.AdviceN, r.AdviceP, r.AdviceK, r.AdviceNHi, r.AdvicePHi, r.AdviceKHi,
		r.Priority, r.CreatedAt, r.UpdatedAt, r.DeletedAt, r.SyncState, r.ScanUUID, r.UpdatedAt)
	if err != nil {
		return false, errors.Wrap(err, "updating recommendation")
	}

	return written(res)
}

// GetScan returns the scan with the given uuid
func GetScan(db *DB, uuid string) (Scan, error) {
	var ret Scan

	err := db.QueryRow(`SELECT uuid, crop_id, image_path, status, created_at, updated_at, deleted_at, sync_state
		FROM scans WHERE uuid = ?`, uuid).
		Scan(&ret.UUID, &ret.CropID, &ret.ImagePath, &ret.Status, &ret.CreatedAt, &ret.UpdatedAt, &ret.DeletedAt, &ret.SyncState)
	if err != nil {
		return ret, errors.Wrap(err, "querying scan")
	}

	return ret, nil
}

// GetDiagnosis returns the diagnosis for the given scan uuid
func GetDiagnosis(db *DB, scanUUID string) (Diagnosis, error) {
	var ret Diagnosis

	err := db.QueryRow(`SELECT scan_uuid, n_score, p_score, k_score, n_confidence, p_confidence, k_confidence,
		n_severity, p_severity, k_severity, overall_status, detected_class,
		created_at, updated_at, deleted_at, sync_state
		FROM diagnoses WHERE scan_uuid = ?`, scanUUID).
		Scan(&ret.ScanUUID, &ret.NScore, &ret.PScore, &ret.KScore, &ret.NConfidence, &ret.PConfidence, &ret.KConfidence,
			&ret.NSeverity, &ret.PSeverity, &ret.KSeverity, &ret.OverallStatus, &ret.DetectedClass,
			&ret.CreatedAt, &ret.UpdatedAt, &ret.DeletedAt, &ret.SyncState)
	if err != nil {
		return ret, errors.Wrap(err, "querying diagnosis")
	}

	return ret, nil
}

// GetRecommendation returns the recommendation for the given scan uuid
func GetRecommendation(db *DB, scanUUID string) (Recommendation, error) {
	var ret Recommendation

	err := db.QueryRow(`SELECT scan_uuid, advice_n, advice_p, advice_k, advice_n_hi, advice_p_hi, advice_k_hi,
		priority, created_at, updated_at, deleted_at, sync_state
		FROM recommendations WHERE scan_uuid = ?`, scanUUID).
		Scan(&ret.ScanUUID, &ret.AdviceN, &ret.AdviceP, &ret.AdviceK, &ret.AdviceNHi, &ret.AdvicePHi, &ret.AdviceKHi,
			&ret.Priority, &ret.CreatedAt, &ret.UpdatedAt, &ret.DeletedAt, &ret.SyncState)
	if err != nil {
		return ret, errors.Wrap(err, "querying recommendation")
	}

	return ret, nil
}

// ListScans returns scans that do not carry a tombstone, most recent first
func ListScans(db *DB) ([]Scan, error) {
	rows, err := db.Query(`SELECT uuid, crop_id, image_path, status, created_at, updated_at, deleted_at, sync_state
		FROM scans WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying scans")
	}
	defer rows.Close()

	var ret []Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.UUID, &s.CropID, &s.ImagePath, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt, &s.SyncState); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	return ret, nil
}

// NewScan returns a scan in the initial capture state
func NewScan(uuid string, cropID int, imagePath string, now int64) Scan {
	return Scan{
		UUID:      uuid,
		CropID:    cropID,
		ImagePath: imagePath,
		Status:    consts.StatusPendingDiagnosis,
		CreatedAt: now,
		UpdatedAt: now,
		SyncState: consts.SyncStateLocalOnly,
	}
}
