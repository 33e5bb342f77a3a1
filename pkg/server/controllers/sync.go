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

package controllers

import (
	"net/http"

	"github.com/fasalvaidya/leafsync/pkg/server/app"
	svrcontext "github.com/fasalvaidya/leafsync/pkg/server/context"
	"github.com/pkg/errors"
)

// NewSync creates a new Sync controller
func NewSync(app *app.App) *Sync {
	return &Sync{app: app}
}

// Sync is a controller for the push and pull halves of the sync cycle
type Sync struct {
	app *app.App
}

type batchResp struct {
	Results []app.BatchResultItem `json:"results"`
}

// BatchScans handles POST /v1/scans/batch
func (s *Sync) BatchScans(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	var payload struct {
		Items []app.ScanItem `json:"items"`
	}
	if err := parseBody(r, &payload); err != nil {
		doError(w, "parsing batch payload", err, http.StatusBadRequest)
		return
	}

	results, err := s.app.UpsertScans(device, payload.Items)
	if err != nil {
		doError(w, "upserting scans", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, batchResp{Results: results})
}

// BatchDiagnoses handles POST /v1/diagnoses/batch
func (s *Sync) BatchDiagnoses(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	var payload struct {
		Items []app.DiagnosisItem `json:"items"`
	}
	if err := parseBody(r, &payload); err != nil {
		doError(w, "parsing batch payload", err, http.StatusBadRequest)
		return
	}

	results, err := s.app.UpsertDiagnoses(device, payload.Items)
	if err != nil {
		doError(w, "upserting diagnoses", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, batchResp{Results: results})
}

// BatchRecommendations handles POST /v1/recommendations/batch
func (s *Sync) BatchRecommendations(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	var payload struct {
		Items []app.RecommendationItem `json:"items"`
	}
	if err := parseBody(r, &payload); err != nil {
		doError(w, "parsing batch payload", err, http.StatusBadRequest)
		return
	}

	results, err := s.app.UpsertRecommendations(device, payload.Items)
	if err != nil {
		doError(w, "upserting recommendations", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, batchResp{Results: results})
}

// GetChanges handles GET /v1/changes. The records are scoped to the calling
// device and ordered by updated_at so that the client can advance its
// watermark as it pages.
func (s *Sync) GetChanges(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	since, err := parseInt64Param(r, "since")
	if err != nil {
		doError(w, "parsing since", err, http.StatusBadRequest)
		return
	}
	limit64, err := parseInt64Param(r, "limit")
	if err != nil {
		doError(w, "parsing limit", err, http.StatusBadRequest)
		return
	}
	limit := int(limit64)

	serverTime := s.app.Clock.Now().UnixNano()

	entity := r.URL.Query().Get("entity")
	switch entity {
	case "scans":
		records, err := s.app.GetScanChanges(device, since, limit)
		if err != nil {
			doError(w, "getting scan changes", err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, struct {
			Records    []app.ScanItem `json:"records"`
			ServerTime int64          `json:"server_time"`
		}{Records: records, ServerTime: serverTime})
	case "diagnoses":
		records, err := s.app.GetDiagnosisChanges(device, since, limit)
		if err != nil {
			doError(w, "getting diagnosis changes", err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, struct {
			Records    []app.DiagnosisItem `json:"records"`
			ServerTime int64               `json:"server_time"`
		}{Records: records, ServerTime: serverTime})
	case "recommendations":
		records, err := s.app.GetRecommendationChanges(device, since, limit)
		if err != nil {
			doError(w, "getting recommendation changes", err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, struct {
			Records    []app.RecommendationItem `json:"records"`
			ServerTime int64                    `json:"server_time"`
		}{Records: records, ServerTime: serverTime})
	default:
		doError(w, "validating entity", errors.Errorf("unknown entity '%s'", entity), http.StatusBadRequest)
	}
}
