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

// Package app provides the application services for the server
package app

import (
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/fasalvaidya/leafsync/pkg/server/config"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Common errors returned by the application services
var (
	// ErrPhoneTaken is returned when binding a phone number that belongs to
	// another device
	ErrPhoneTaken = errors.New("phone number is bound to another device")
	// ErrScanNotFound is returned when the referenced scan does not exist
	// for the device
	ErrScanNotFound = errors.New("scan not found")
)

// App is an abstraction of the server application
type App struct {
	DB     *gorm.DB
	Clock  clock.Clock
	Config config.Config
}

// Validate checks that the app is initialized
func (a *App) Validate() error {
	if a.DB == nil {
		return errors.New("DB is not initialized")
	}
	if a.Clock == nil {
		return errors.New("Clock is not initialized")
	}

	return nil
}
