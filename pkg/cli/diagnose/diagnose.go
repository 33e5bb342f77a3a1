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

// Package diagnose runs the NPK analysis for a captured scan and records
// the outcome locally
package diagnose

import (
	"database/sql"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/pkg/errors"
)

// Result is the outcome of diagnosing a scan
type Result struct {
	Diagnosis      database.Diagnosis
	Recommendation database.Recommendation
}

// Diagnoser produces a diagnosis for a scan
type Diagnoser interface {
	Diagnose(scan database.Scan) (Result, error)
}

// RemoteDiagnoser sends the scan to the server for analysis. The scan must
// have been pushed first; the server analyzes the record it owns.
type RemoteDiagnoser struct {
	Client client.Client
}

// Diagnose asks the server to analyze the given scan
func (d RemoteDiagnoser) Diagnose(scan database.Scan) (Result, error) {
	resp, err := d.Client.Diagnose(scan.UUID)
	if err != nil {
		return Result{}, errors.Wrap(err, "requesting diagnosis")
	}

	diag := resp.Diagnosis
	rec := resp.Recommendation

	return Result{
		Diagnosis: database.Diagnosis{
			ScanUUID:      diag.ScanUUID,
			NScore:        diag.NScore,
			PScore:        diag.PScore,
			KScore:        diag.KScore,
			NConfidence:   diag.NConfidence,
			PConfidence:   diag.PConfidence,
			KConfidence:   diag.KConfidence,
			NSeverity:     diag.NSeverity,
			PSeverity:     diag.PSeverity,
			KSeverity:     diag.KSeverity,
			OverallStatus: diag.OverallStatus,
			DetectedClass: diag.DetectedClass,
			CreatedAt:     diag.CreatedAt,
			UpdatedAt:     diag.UpdatedAt,
		},
		Recommendation: database.Recommendation{
			ScanUUID:  rec.ScanUUID,
			AdviceN:   rec.AdviceN,
			AdviceP:   rec.AdviceP,
			AdviceK:   rec.AdviceK,
			AdviceNHi: rec.AdviceNHi,
			AdvicePHi: rec.AdvicePHi,
			AdviceKHi: rec.AdviceKHi,
			Priority:  rec.Priority,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		},
	}, nil
}

// Record applies a diagnosis result to the local store: the diagnosis and
// recommendation are upserted and the scan is marked completed. All writes
// happen in one transaction so a half-recorded diagnosis cannot be observed.
func Record(db *database.DB, c clock.Clock, scan database.Scan, result Result) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	now := c.Now().UnixNano()

	diag := result.Diagnosis
	if diag.UpdatedAt == 0 {
		diag.CreatedAt = now
		diag.UpdatedAt = now
	}
	diag.SyncState = consts.SyncStateLocalOnly
	if _, err := database.PutDiagnosis(tx, diag); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "putting diagnosis")
	}

	rec := result.Recommendation
	if rec.UpdatedAt == 0 {
		rec.CreatedAt = now
		rec.UpdatedAt = now
	}
	rec.SyncState = consts.SyncStateLocalOnly
	if _, err := database.PutRecommendation(tx, rec); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "putting recommendation")
	}

	scan.Status = consts.StatusCompleted
	scan.UpdatedAt = now
	scan.SyncState = consts.SyncStateLocalOnly
	scan.DeletedAt = sql.NullInt64{}
	if _, err := database.PutScan(tx, scan); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "updating scan status")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}
