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
	mw "github.com/fasalvaidya/leafsync/pkg/server/middleware"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Route represents a single route
type Route struct {
	Method    string
	Pattern   string
	Handler   http.HandlerFunc
	RateLimit bool
}

const (
	// apiRateLimitPerSecond is the per-client request rate for rate-limited routes
	apiRateLimitPerSecond = 50
	// apiRateLimitBurst is the burst capacity for rate-limited routes
	apiRateLimitBurst = 100
)

// NewAPIRoutes returns the api routes. Every route except the health check
// requires a device header.
func NewAPIRoutes(a *app.App, c *Controllers) []Route {
	return []Route{
		{"POST", "/v1/scans/batch", mw.DeviceAuth(a.DB, c.Sync.BatchScans), false},
		{"POST", "/v1/diagnoses/batch", mw.DeviceAuth(a.DB, c.Sync.BatchDiagnoses), false},
		{"POST", "/v1/recommendations/batch", mw.DeviceAuth(a.DB, c.Sync.BatchRecommendations), false},
		{"GET", "/v1/changes", mw.DeviceAuth(a.DB, c.Sync.GetChanges), false},

		{"GET", "/v1/profile", mw.DeviceAuth(a.DB, c.Profile.Get), true},
		{"POST", "/v1/profile", mw.DeviceAuth(a.DB, c.Profile.Update), true},
		{"POST", "/v1/scans/{scanUUID}/diagnose", mw.DeviceAuth(a.DB, c.Diagnose.Analyze), true},
		{"GET", "/v1/crops", mw.DeviceAuth(a.DB, c.Crops.Index), true},
	}
}

func registerRoutes(router *mux.Router, rl *mw.RateLimiter, routes []Route) {
	for _, route := range routes {
		handler := mw.ApplyLimit(rl, route.Handler, route.RateLimit)

		router.
			Handle(route.Pattern, handler).
			Methods(route.Method)
	}
}

// NewRouter creates and returns a new router
func NewRouter(a *app.App, c *Controllers) (http.Handler, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating the app parameters")
	}

	router := mux.NewRouter().StrictSlash(true)
	apiRouter := router.PathPrefix("/api").Subrouter()

	rl := mw.NewRateLimiter(rate.Limit(apiRateLimitPerSecond), apiRateLimitBurst)
	registerRoutes(apiRouter, rl, NewAPIRoutes(a, c))

	router.Handle("/health", http.HandlerFunc(c.Health.Index)).Methods("GET")

	return mw.Global(router), nil
}
