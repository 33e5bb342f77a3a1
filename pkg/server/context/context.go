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

// Package context provides utilities for propagating request-scoped values
package context

import (
	"context"

	"github.com/fasalvaidya/leafsync/pkg/server/database"
)

type contextKey string

const deviceContextKey contextKey = "device"

// WithDevice returns a new context with the given device
func WithDevice(ctx context.Context, device *database.Device) context.Context {
	return context.WithValue(ctx, deviceContextKey, device)
}

// Device returns the device stored in the given context, if any
func Device(ctx context.Context) *database.Device {
	d, ok := ctx.Value(deviceContextKey).(*database.Device)
	if !ok {
		return nil
	}

	return d
}
