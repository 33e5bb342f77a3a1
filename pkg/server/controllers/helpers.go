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
	"net/http"
	"strconv"

	"github.com/fasalvaidya/leafsync/pkg/server/log"
	"github.com/pkg/errors"
)

// respondJSON writes the JSON-encoding of the given value
func respondJSON(w http.ResponseWriter, statusCode int, val interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(val); err != nil {
		log.ErrorWrap(err, "encoding response")
	}
}

// doError logs the given error and responds with a client-safe message
func doError(w http.ResponseWriter, msg string, err error, statusCode int) {
	log.WithFields(log.Fields{
		"err":        err.Error(),
		"statusCode": statusCode,
	}).Error(msg)

	var respMsg string
	if statusCode >= 500 {
		respMsg = "internal server error"
	} else {
		respMsg = err.Error()
	}

	http.Error(w, respMsg, statusCode)
}

// parseBody decodes the request body into the given destination
func parseBody(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "decoding request body")
	}

	return nil
}

// parseInt64Param parses the named query parameter, defaulting to zero when
// absent
func parseInt64Param(r *http.Request, name string) (int64, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return 0, nil
	}

	ret, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", name)
	}

	return ret, nil
}
