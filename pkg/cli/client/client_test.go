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

package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/assert"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/pkg/errors"
)

func newTestClient(endpoint string) Client {
	ctx := context.LeafCtx{
		APIEndpoint: endpoint,
		Version:     "0.1.0-test",
	}
	dev := &device.StaticProvider{
		Identity: device.Identity{UUID: "device-1-uuid", Durable: true},
	}

	return New(ctx, dev)
}

func TestPushScans(t *testing.T) {
	var gotDeviceID, gotMethod, gotPath string
	var gotPayload struct {
		Items []ScanItem `json:"items"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDeviceID = r.Header.Get("X-Device-ID")
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatal(errors.Wrap(err, "decoding payload"))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(BatchResp{
			Results: []BatchResultItem{
				{UUID: "scan-1-uuid", OK: true},
				{UUID: "scan-2-uuid", OK: false, Error: "validation failed"},
			},
		}); err != nil {
			t.Fatal(errors.Wrap(err, "encoding response"))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	resp, err := c.PushScans([]ScanItem{
		{UUID: "scan-1-uuid", CropID: 1, UpdatedAt: 100},
		{UUID: "scan-2-uuid", CropID: 2, UpdatedAt: 200},
	})
	assert.Equal(t, err, nil, "PushScans error mismatch")

	assert.Equal(t, gotDeviceID, "device-1-uuid", "X-Device-ID mismatch")
	assert.Equal(t, gotMethod, "POST", "method mismatch")
	assert.Equal(t, gotPath, "/v1/scans/batch", "path mismatch")
	assert.Equal(t, len(gotPayload.Items), 2, "payload item count mismatch")

	assert.Equal(t, len(resp.Results), 2, "result count mismatch")
	assert.Equal(t, resp.Results[0].OK, true, "first result should succeed")
	assert.Equal(t, resp.Results[1].OK, false, "second result should fail")
	assert.Equal(t, resp.Results[1].Error, "validation failed", "error reason mismatch")
}

func TestGetScanChanges(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(GetScanChangesResp{
			Records: []ScanItem{
				{UUID: "scan-1-uuid", UpdatedAt: 500},
			},
			ServerTime: 1000,
		}); err != nil {
			t.Fatal(errors.Wrap(err, "encoding response"))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	resp, err := c.GetScanChanges(400, 50)
	assert.Equal(t, err, nil, "GetScanChanges error mismatch")

	assert.DeepEqual(t, gotQuery["entity"], []string{"scans"}, "entity param mismatch")
	assert.DeepEqual(t, gotQuery["since"], []string{"400"}, "since param mismatch")
	assert.DeepEqual(t, gotQuery["limit"], []string{"50"}, "limit param mismatch")

	assert.Equal(t, len(resp.Records), 1, "record count mismatch")
	assert.Equal(t, resp.Records[0].UUID, "scan-1-uuid", "record uuid mismatch")
	assert.Equal(t, resp.ServerTime, int64(1000), "server time mismatch")
}

func TestUpdateProfile_conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "phone number is bound to another device", http.StatusConflict)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.UpdateProfile(UpdateProfilePayload{Phone: "9999999999", Name: "Asha"})
	assert.NotEqual(t, err, nil, "conflict should be an error")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.IsConflict(), true, "IsConflict mismatch")
	assert.Equal(t, httpErr.IsTransient(), false, "a conflict is not transient")
}

func TestDoReq_serverError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "something went wrong", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.GetScanChanges(0, 0)
	assert.NotEqual(t, err, nil, "server error should be an error")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.IsTransient(), true, "a 500 is transient")
}

func TestDoReq_contentTypeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.GetCrops()
	assert.NotEqual(t, err, nil, "content type mismatch should be an error")
	assert.Equal(t, errors.Is(err, ErrContentTypeMismatch), true, "should wrap ErrContentTypeMismatch")
}
