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
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// NewDiagnose creates a new Diagnose controller
func NewDiagnose(app *app.App) *Diagnose {
	return &Diagnose{app: app}
}

// Diagnose is a controller for analyzing scans
type Diagnose struct {
	app *app.App
}

// Analyze handles POST /v1/scans/{scanUUID}/diagnose
func (d *Diagnose) Analyze(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	vars := mux.Vars(r)
	scanUUID := vars["scanUUID"]

	result, err := d.app.Diagnose(device, scanUUID)
	if errors.Is(err, app.ErrScanNotFound) {
		doError(w, "diagnosing scan", err, http.StatusNotFound)
		return
	}
	if err != nil {
		doError(w, "diagnosing scan", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
