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
	"fmt"
	"net/http"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/server/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScanUUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func scanBatchBody(uuid string, updatedAt int64) string {
	return fmt.Sprintf(`{"items": [{
		"uuid": %q,
		"crop_id": 2,
		"image_path": "images/%s.jpg",
		"status": "pending_diagnosis",
		"created_at": 100,
		"updated_at": %d
	}]}`, uuid, uuid, updatedAt)
}

func TestBatchScans(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", "/api/v1/scans/batch", scanBatchBody(testScanUUID, 200))
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Results []app.BatchResultItem `json:"results"`
	}
	mustUnmarshalBody(t, res, &resp)

	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].OK)
	assert.Equal(t, testScanUUID, resp.Results[0].UUID)
}

func TestBatchScans_invalidPayload(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", "/api/v1/scans/batch", "not json")
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetChanges(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", "/api/v1/scans/batch", scanBatchBody(testScanUUID, 200))
	res.Body.Close()

	res = doReq(t, server, "GET", "/api/v1/changes?entity=scans&since=0", "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Records    []app.ScanItem `json:"records"`
		ServerTime int64          `json:"server_time"`
	}
	mustUnmarshalBody(t, res, &resp)

	require.Len(t, resp.Records, 1)
	assert.Equal(t, testScanUUID, resp.Records[0].UUID)
	assert.NotZero(t, resp.ServerTime, "server_time should be set")
}

func TestGetChanges_sinceExcludes(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", "/api/v1/scans/batch", scanBatchBody(testScanUUID, 200))
	res.Body.Close()

	// A watermark at or past the record's updated_at excludes it
	res = doReq(t, server, "GET", "/api/v1/changes?entity=scans&since=200", "")
	defer res.Body.Close()

	var resp struct {
		Records []app.ScanItem `json:"records"`
	}
	mustUnmarshalBody(t, res, &resp)
	assert.Empty(t, resp.Records)
}

func TestGetChanges_unknownEntity(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "GET", "/api/v1/changes?entity=bogus&since=0", "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBatchScans_missingDeviceHeader(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest("POST", server.URL+"/api/v1/scans/batch", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDiagnoseEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", "/api/v1/scans/batch", scanBatchBody(testScanUUID, 200))
	res.Body.Close()

	res = doReq(t, server, "POST", fmt.Sprintf("/api/v1/scans/%s/diagnose", testScanUUID), "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp app.DiagnoseResult
	mustUnmarshalBody(t, res, &resp)
	assert.Equal(t, testScanUUID, resp.Diagnosis.ScanUUID)
	assert.NotEmpty(t, resp.Diagnosis.OverallStatus)
}

func TestDiagnoseEndpoint_unknownScan(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "POST", fmt.Sprintf("/api/v1/scans/%s/diagnose", testScanUUID), "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCropsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res := doReq(t, server, "GET", "/api/v1/crops", "")
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Crops []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"crops"`
	}
	mustUnmarshalBody(t, res, &resp)
	assert.NotEmpty(t, resp.Crops)
	assert.Equal(t, 1, resp.Crops[0].ID)
	assert.Equal(t, "Wheat", resp.Crops[0].Name)
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}
