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

// Package client provides interfaces for interacting with the leafsync
// server and the data structures for responses
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrContentTypeMismatch is an error for an unexpected response content type
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsConflict returns true if the error is a 409 Conflict error
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsTransient returns true if the error is worth retrying: server-side
// failures and throttling, as opposed to validation or conflict errors.
func (e *HTTPError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

var contentTypeApplicationJSON = "application/json"

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
	// requestTimeout bounds a single request so that a stalled connection
	// cannot hang a sync cycle
	requestTimeout = 30 * time.Second
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// Client talks to the leafsync server on behalf of this device. The device
// identity is read from the injected provider on every request rather than
// cached, so a reset device does not keep using a stale uuid.
type Client struct {
	Ctx    context.LeafCtx
	Device device.Provider
}

// New returns a client for the given runtime context and device identity
func New(ctx context.LeafCtx, dev device.Provider) Client {
	return Client{Ctx: ctx, Device: dev}
}

func (c Client) getHTTPClient() *http.Client {
	if c.Ctx.HTTPClient != nil {
		return c.Ctx.HTTPClient
	}

	return &http.Client{}
}

func (c Client) getReq(method, path, body string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", c.Ctx.APIEndpoint, path)
	req, err := http.NewRequest(method, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	id, err := c.Device.Get()
	if err != nil {
		return nil, errors.Wrap(err, "getting device identity")
	}

	req.Header.Set("CLI-Version", c.Ctx.Version)
	req.Header.Set("X-Device-ID", id.UUID)
	if body != "" {
		req.Header.Set("Content-Type", contentTypeApplicationJSON)
	}

	return req, nil
}

// checkRespErr checks if the given http response indicates an error. It
// returns a decoded error message if so.
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	bodyStr := string(body)
	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(bodyStr, "\n"),
	}
}

func checkContentType(res *http.Response) error {
	got := res.Header.Get("Content-Type")
	if !strings.HasPrefix(got, contentTypeApplicationJSON) {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, contentTypeApplicationJSON)
	}

	return nil
}

// doReq does a http request to the given path in the api endpoint
func (c Client) doReq(method, path, body string) (*http.Response, error) {
	req, err := c.getReq(method, path, body)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	log.Debug("HTTP %s %s\n", method, path)

	res, err := c.getHTTPClient().Do(req)
	if err != nil {
		return res, errors.Wrap(err, "making http request")
	}

	log.Debug("HTTP %d %s\n", res.StatusCode, res.Status)

	if err = checkRespErr(res); err != nil {
		return res, err
	}

	if err = checkContentType(res); err != nil {
		return res, errors.Wrap(err, "unexpected Content-Type")
	}

	return res, nil
}

func (c Client) doJSON(method, path string, payload, dest interface{}) error {
	var body string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshalling the payload")
		}
		body = string(b)
	}

	res, err := c.doReq(method, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if dest == nil {
		return nil
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "reading the response body")
	}
	if err = json.Unmarshal(b, dest); err != nil {
		return errors.Wrap(err, "unmarshalling the payload")
	}

	return nil
}

// ScanItem represents a scan on the wire. Deleted carries the tombstone;
// deleted records keep their uuid and timestamps but no payload matters.
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

// BatchResultItem is the per-record outcome of a batch push. A failed item
// carries the reason; its siblings are unaffected.
type BatchResultItem struct {
	UUID  string `json:"uuid"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BatchResp is the response from the batch upsert endpoints
type BatchResp struct {
	Results []BatchResultItem `json:"results"`
}

// PushScans posts a batch of scans to the server
func (c Client) PushScans(items []ScanItem) (BatchResp, error) {
	var ret BatchResp
	payload := struct {
		Items []ScanItem `json:"items"`
	}{Items: items}

	if err := c.doJSON("POST", "/v1/scans/batch", payload, &ret); err != nil {
		return ret, errors.Wrap(err, "posting scans")
	}

	return ret, nil
}

// PushDiagnoses posts a batch of diagnoses to the server
func (c Client) PushDiagnoses(items []DiagnosisItem) (BatchResp, error) {
	var ret BatchResp
	payload := struct {
		Items []DiagnosisItem `json:"items"`
	}{Items: items}

	if err := c.doJSON("POST", "/v1/diagnoses/batch", payload, &ret); err != nil {
		return ret, errors.Wrap(err, "posting diagnoses")
	}

	return ret, nil
}

// PushRecommendations posts a batch of recommendations to the server
func (c Client) PushRecommendations(items []RecommendationItem) (BatchResp, error) {
	var ret BatchResp
	payload := struct {
		Items []RecommendationItem `json:"items"`
	}{Items: items}

	if err := c.doJSON("POST", "/v1/recommendations/batch", payload, &ret); err != nil {
		return ret, errors.Wrap(err, "posting recommendations")
	}

	return ret, nil
}

func changesPath(entity string, since int64, limit int) string {
	v := url.Values{}
	v.Set("entity", entity)
	v.Set("since", strconv.FormatInt(since, 10))
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}

	return fmt.Sprintf("/v1/changes?%s", v.Encode())
}

// GetScanChangesResp is the response from the changes endpoint for scans
type GetScanChangesResp struct {
	Records    []ScanItem `json:"records"`
	ServerTime int64      `json:"server_time"`
}

// GetScanChanges fetches scans updated after the given watermark
func (c Client) GetScanChanges(since int64, limit int) (GetScanChangesResp, error) {
	var ret GetScanChangesResp
	if err := c.doJSON("GET", changesPath("scans", since, limit), nil, &ret); err != nil {
		return ret, errors.Wrap(err, "getting scan changes")
	}

	return ret, nil
}

// GetDiagnosisChangesResp is the response from the changes endpoint for diagnoses
type GetDiagnosisChangesResp struct {
	Records    []DiagnosisItem `json:"records"`
	ServerTime int64           `json:"server_time"`
}

// GetDiagnosisChanges fetches diagnoses updated after the given watermark
func (c Client) GetDiagnosisChanges(since int64, limit int) (GetDiagnosisChangesResp, error) {
	var ret GetDiagnosisChangesResp
	if err := c.doJSON("GET", changesPath("diagnoses", since, limit), nil, &ret); err != nil {
		return ret, errors.Wrap(err, "getting diagnosis changes")
	}

	return ret, nil
}

// GetRecommendationChangesResp is the response from the changes endpoint for
// recommendations
type GetRecommendationChangesResp struct {
	Records    []RecommendationItem `json:"records"`
	ServerTime int64                `json:"server_time"`
}

// GetRecommendationChanges fetches recommendations updated after the given
// watermark
func (c Client) GetRecommendationChanges(since int64, limit int) (GetRecommendationChangesResp, error) {
	var ret GetRecommendationChangesResp
	if err := c.doJSON("GET", changesPath("recommendations", since, limit), nil, &ret); err != nil {
		return ret, errors.Wrap(err, "getting recommendation changes")
	}

	return ret, nil
}

// UpdateProfilePayload is a payload for updating the profile bound to this
// device
type UpdateProfilePayload struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

// ProfileResp is the profile bound to this device
type ProfileResp struct {
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photo_url"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateProfile binds the profile to this device. The server rejects the
// write with a 409 if the phone number is already bound to another device;
// check with IsConflict.
func (c Client) UpdateProfile(payload UpdateProfilePayload) (ProfileResp, error) {
	var ret ProfileResp
	if err := c.doJSON("POST", "/v1/profile", payload, &ret); err != nil {
		return ret, err
	}

	return ret, nil
}

// GetProfile fetches the profile bound to this device
func (c Client) GetProfile() (ProfileResp, error) {
	var ret ProfileResp
	if err := c.doJSON("GET", "/v1/profile", nil, &ret); err != nil {
		return ret, errors.Wrap(err, "getting profile")
	}

	return ret, nil
}

// DiagnoseResp is the response from the diagnose endpoint
type DiagnoseResp struct {
	Diagnosis      DiagnosisItem      `json:"diagnosis"`
	Recommendation RecommendationItem `json:"recommendation"`
}

// Diagnose asks the server to analyze the scan with the given uuid
func (c Client) Diagnose(scanUUID string) (DiagnoseResp, error) {
	var ret DiagnoseResp
	path := fmt.Sprintf("/v1/scans/%s/diagnose", scanUUID)
	if err := c.doJSON("POST", path, nil, &ret); err != nil {
		return ret, errors.Wrap(err, "requesting diagnosis")
	}

	return ret, nil
}

// CropResp is a crop in the server catalog
type CropResp struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	NameHi   string `json:"name_hi"`
	Season   string `json:"season"`
	IconPath string `json:"icon_path"`
}

// GetCrops fetches the crop catalog
func (c Client) GetCrops() ([]CropResp, error) {
	var ret struct {
		Crops []CropResp `json:"crops"`
	}
	if err := c.doJSON("GET", "/v1/crops", nil, &ret); err != nil {
		return nil, errors.Wrap(err, "getting crops")
	}

	return ret.Crops, nil
}
