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
	"hash/fnv"

	"github.com/fasalvaidya/leafsync/pkg/crops"
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/pkg/errors"
)

// ScanStatusCompleted is the scan status after a successful diagnosis
const ScanStatusCompleted = "completed"

// DiagnoseResult is the outcome of analyzing a scan
type DiagnoseResult struct {
	Diagnosis      DiagnosisItem      `json:"diagnosis"`
	Recommendation RecommendationItem `json:"recommendation"`
}

// scoreComponent derives a stable score in [0, 1) from the scan uuid and a
// per-nutrient salt. A stand-in for a trained model: the same scan always
// yields the same scores.
func scoreComponent(scanUUID, salt string) float64 {
	h := fnv.New32a()
	h.Write([]byte(scanUUID))
	h.Write([]byte(salt))

	return float64(h.Sum32()%1000) / 1000.0
}

func confidenceFor(score float64) float64 {
	// High scores come with high confidence, floored at 0.6
	return 0.6 + 0.4*score
}

func detectedClass(nScore, pScore, kScore float64) string {
	maxScore := nScore
	class := "nitrogen_deficiency"
	if pScore > maxScore {
		maxScore = pScore
		class = "phosphorus_deficiency"
	}
	if kScore > maxScore {
		maxScore = kScore
		class = "potassium_deficiency"
	}

	if maxScore < crops.ThresholdAttention {
		return "healthy"
	}

	return class
}

func overallStatus(nScore, pScore, kScore float64) string {
	maxScore := nScore
	if pScore > maxScore {
		maxScore = pScore
	}
	if kScore > maxScore {
		maxScore = kScore
	}

	return crops.Severity(maxScore)
}

// Diagnose analyzes the scan with the given uuid and persists the resulting
// diagnosis and recommendation so that other sessions of the device can
// pull them.
func (a *App) Diagnose(device *database.Device, scanUUID string) (DiagnoseResult, error) {
	scan, err := a.findOwnedScan(device, scanUUID)
	if err != nil {
		return DiagnoseResult{}, err
	}
	if scan.Deleted {
		return DiagnoseResult{}, ErrScanNotFound
	}

	nScore := scoreComponent(scanUUID, "n")
	pScore := scoreComponent(scanUUID, "p")
	kScore := scoreComponent(scanUUID, "k")

	now := a.Clock.Now().UnixNano()

	diagItem := DiagnosisItem{
		ScanUUID:      scanUUID,
		NScore:        nScore,
		PScore:        pScore,
		KScore:        kScore,
		NConfidence:   confidenceFor(nScore),
		PConfidence:   confidenceFor(pScore),
		KConfidence:   confidenceFor(kScore),
		NSeverity:     crops.Severity(nScore),
		PSeverity:     crops.Severity(pScore),
		KSeverity:     crops.Severity(kScore),
		OverallStatus: overallStatus(nScore, pScore, kScore),
		DetectedClass: detectedClass(nScore, pScore, kScore),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	advice := crops.Recommend(scan.CropID, nScore, pScore, kScore)
	recItem := RecommendationItem{
		ScanUUID:  scanUUID,
		AdviceN:   advice.N.En,
		AdviceP:   advice.P.En,
		AdviceK:   advice.K.En,
		AdviceNHi: advice.N.Hi,
		AdvicePHi: advice.P.Hi,
		AdviceKHi: advice.K.Hi,
		Priority:  advice.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := a.UpsertDiagnoses(device, []DiagnosisItem{diagItem}); err != nil {
		return DiagnoseResult{}, errors.Wrap(err, "persisting diagnosis")
	}
	if _, err := a.UpsertRecommendations(device, []RecommendationItem{recItem}); err != nil {
		return DiagnoseResult{}, errors.Wrap(err, "persisting recommendation")
	}

	if scan.Status != ScanStatusCompleted {
		scan.Status = ScanStatusCompleted
		scan.RecordUpdatedAt = now
		if err := a.DB.Save(scan).Error; err != nil {
			return DiagnoseResult{}, errors.Wrap(err, "updating scan status")
		}
	}

	return DiagnoseResult{Diagnosis: diagItem, Recommendation: recItem}, nil
}
