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

// SyncedMark identifies a dirty row to transition after a successful push.
// SeenUpdatedAt is the updated_at read when the batch was formed; a row
// edited after that stays dirty so the edit is pushed in a later cycle.
type SyncedMark struct {
	UUID          string
	SeenUpdatedAt int64
}

// PutScan upserts the scan by uuid. Writes whose updated_at is not ahead
// of the stored row are ignored, so replayed or out-of-order writes cannot
// move a record backwards. Local edits bump updated_at before calling.
// It reports whether the row was written.
func PutScan(db *DB, scan Scan) (bool, error) {
	return scan.Upsert(db)
}

// PutDiagnosis upserts the diagnosis by scan uuid with the same
// forward-only updated_at rule as PutScan
func PutDiagnosis(db *DB, diag Diagnosis) (bool, error) {
	return diag.Upsert(db)
}

// PutRecommendation upserts the recommendation by scan uuid with the same
// forward-only updated_at rule as PutScan
func PutRecommendation(db *DB, rec Recommendation) (bool, error) {
	return rec.Upsert(db)
}

// ListDirtyScans returns scans awaiting push, oldest capture first so the
// server receives records in the order they were created
func ListDirtyScans(db *DB) ([]Scan, error) {
	rows, err := db.Query(`SELECT uuid, crop_id, image_path, status, created_at, updated_at, deleted_at, sync_state
		FROM scans WHERE sync_state = ? ORDER BY created_at ASC`, consts.SyncStateLocalOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty scans")
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

// ListDirtyDiagnoses returns diagnoses awaiting push, oldest first
func ListDirtyDiagnoses(db *DB) ([]Diagnosis, error) {
	rows, err := db.Query(`SELECT scan_uuid, n_score, p_score, k_score, n_confidence, p_confidence, k_confidence,
		n_severity, p_severity, k_severity, overall_status, detected_class,
		created_at, updated_at, deleted_at, sync_state
		FROM diagnoses WHERE sync_state = ? ORDER BY created_at ASC`, consts.SyncStateLocalOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty diagnoses")
	}
	defer rows.Close()

	var ret []Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ScanUUID, &d.NScore, &d.PScore, &d.KScore, &d.NConfidence, &d.PConfidence, &d.KConfidence,
			&d.NSeverity, &d.PSeverity, &d.KSeverity, &d.OverallStatus, &d.DetectedClass,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt, &d.SyncState); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	return ret, nil
}

// ListDirtyRecommendations returns recommendations awaiting push, oldest first
func ListDirtyRecommendations(db *DB) ([]Recommendation, error) {
	rows, err := db.Query(`SELECT scan_uuid, advice_n, advice_p, advice_k, advice_n_hi, advice_p_hi, advice_k_hi,
		priority, created_at, updated_at, deleted_at, sync_state
		FROM recommendations WHERE sync_state = ? ORDER BY created_at ASC`, consts.SyncStateLocalOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty recommendations")
	}
	defer rows.Close()

	var ret []Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.ScanUUID, &r.AdviceN, &r.AdviceP, &r.AdviceK, &r.AdviceNHi, &r.AdvicePHi, &r.AdviceKHi,
			&r.Priority, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt, &r.SyncState); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	return ret, nil
}

func markSynced(db *DB, table, keyCol string, marks []SyncedMark, state string) error {
	for _, m := range marks {
		_, err := db.Exec("UPDATE "+table+" SET sync_state = ? WHERE "+keyCol+" = ? AND updated_at = ?",
			state, m.UUID, m.SeenUpdatedAt)
		if err != nil {
			return errors.Wrapf(err, "marking %s synced", table)
		}
	}

	return nil
}

// MarkScansSynced transitions the given scans to the given sync state.
// Rows whose updated_at moved since the mark was formed are skipped.
func MarkScansSynced(db *DB, marks []SyncedMark, state string) error {
	return markSynced(db, "scans", "uuid", marks, state)
}

// MarkDiagnosesSynced transitions the given diagnoses to the given sync state
func MarkDiagnosesSynced(db *DB, marks []SyncedMark, state string) error {
	return markSynced(db, "diagnoses", "scan_uuid", marks, state)
}

// MarkRecommendationsSynced transitions the given recommendations to the
// given sync state
func MarkRecommendationsSynced(db *DB, marks []SyncedMark, state string) error {
	return markSynced(db, "recommendations", "scan_uuid", marks, state)
}

// ApplyRemoteScan applies a record from the server using last-writer-wins:
// the incoming record is written only if its updated_at is strictly greater
// than the local one. A stale pull therefore can neither clobber a local
// edit nor resurrect a locally deleted scan. It reports whether the record
// was applied.
func ApplyRemoteScan(db *DB, remote Scan) (bool, error) {
	remote.SyncState = consts.SyncStatePullApplied

	// A tombstone for a record this device never had is dropped, so
	// deletes apply only as updates to an existing row
	if remote.Deleted() {
		return remote.UpdateIfNewer(db)
	}

	return remote.Upsert(db)
}

// ApplyRemoteDiagnosis applies a diagnosis from the server using
// last-writer-wins
func ApplyRemoteDiagnosis(db *DB, remote Diagnosis) (bool, error) {
	remote.SyncState = consts.SyncStatePullApplied

	if remote.DeletedAt.Valid {
		return remote.UpdateIfNewer(db)
	}

	return remote.Upsert(db)
}

// ApplyRemoteRecommendation applies a recommendation from the server using
// last-writer-wins
func ApplyRemoteRecommendation(db *DB, remote Recommendation) (bool, error) {
	remote.SyncState = consts.SyncStatePullApplied

	if remote.DeletedAt.Valid {
		return remote.UpdateIfNewer(db)
	}

	return remote.Upsert(db)
}

// SoftDeleteScan writes a tombstone for the scan and its diagnosis and
// recommendation, and resets them to local_only so the deletion propagates
// on the next push. The image file on disk is left to the caller.
func SoftDeleteScan(db *DB, uuid string, now int64) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	deletedAt := sql.NullInt64{Int64: now, Valid: true}

	if _, err := tx.Exec(`UPDATE scans SET deleted_at = ?, updated_at = ?, sync_state = ? WHERE uuid = ?`,
		deletedAt, now, consts.SyncStateLocalOnly, uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting scan")
	}
	if _, err := tx.Exec(`UPDATE diagnoses SET deleted_at = ?, updated_at = ?, sync_state = ? WHERE scan_uuid = ?`,
		deletedAt, now, consts.SyncStateLocalOnly, uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting diagnosis")
	}
	if _, err := tx.Exec(`UPDATE recommendations SET deleted_at = ?, updated_at = ?, sync_state = ? WHERE scan_uuid = ?`,
		deletedAt, now, consts.SyncStateLocalOnly, uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting recommendation")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}

// ExpungeScan removes the scan and its children from the store entirely.
// Only records whose tombstone has been confirmed by the server may be
// expunged; expunging a dirty tombstone would keep the record alive on the
// server and on other devices.
func ExpungeScan(db *DB, uuid string) error {
	local, err := GetScan(db, uuid)
	if err != nil {
		return errors.Wrap(err, "getting scan")
	}
	if !local.Deleted() || local.SyncState == consts.SyncStateLocalOnly {
		return errors.New("scan is not a synced tombstone")
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if _, err := tx.Exec("DELETE FROM recommendations WHERE scan_uuid = ?", uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "expunging recommendation")
	}
	if _, err := tx.Exec("DELETE FROM diagnoses WHERE scan_uuid = ?", uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "expunging diagnosis")
	}
	if _, err := tx.Exec("DELETE FROM scans WHERE uuid = ?", uuid); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "expunging scan")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}
