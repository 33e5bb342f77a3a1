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

package sync

import (
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/pkg/errors"
)

// BackoffPolicy decides whether and when a failed cycle is retried
type BackoffPolicy struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff is the policy used by automatic retries
var DefaultBackoff = BackoffPolicy{
	Min: 1 * time.Second,
	Max: 5 * time.Minute,
}

// Retryable reports whether the cycle error is worth retrying. Network
// failures and server-side errors are transient; everything else, such as
// validation or conflict responses, will fail the same way again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrVolatileIdentity) || errors.Is(err, ErrAlreadyInProgress) {
		return false
	}

	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsTransient()
	}

	// An error without an HTTP status means the request never completed
	return true
}

// Delay returns the wait before the given retry attempt. Attempts count
// from zero; the delay doubles per attempt and is capped at Max.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Min
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}

	return d
}
