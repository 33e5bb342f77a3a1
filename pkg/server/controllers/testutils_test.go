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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/fasalvaidya/leafsync/pkg/server/app"
	"github.com/fasalvaidya/leafsync/pkg/server/testutils"
	"github.com/stretchr/testify/require"
)

const testDeviceUUID = "3e6c8400-e29b-41d4-a716-446655440000"

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()

	a := &app.App{
		DB:    testutils.InitMemoryDB(t),
		Clock: clock.NewMock(),
	}

	router, err := NewRouter(a, New(a))
	require.NoError(t, err, "creating router")

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, a
}

// doReq makes a request as the test device
func doReq(t *testing.T, server *httptest.Server, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	require.NoError(t, err, "constructing request")
	req.Header.Set("X-Device-ID", testDeviceUUID)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "making request")

	return res
}

func mustUnmarshalBody(t *testing.T, res *http.Response, dest interface{}) {
	t.Helper()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err, "reading response body")
	require.NoError(t, json.Unmarshal(b, dest), "unmarshalling response body: %s", string(b))
}
