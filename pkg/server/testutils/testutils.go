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

// Package testutils provides utilities used in server tests
package testutils

import (
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// InitMemoryDB opens an in-memory database with the schema migrated
func InitMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err, "opening in-memory database")

	// An in-memory SQLite database exists per connection; keep the pool at
	// one so every query sees the same database.
	sqlDB, err := db.DB()
	require.NoError(t, err, "getting underlying connection")
	sqlDB.SetMaxOpenConns(1)

	err = database.InitSchema(db)
	require.NoError(t, err, "migrating schema")

	return db
}

// MustCreateDevice registers a device with the given uuid
func MustCreateDevice(t *testing.T, db *gorm.DB, uuid string) *database.Device {
	t.Helper()

	device := database.Device{UUID: uuid}
	err := db.Create(&device).Error
	require.NoError(t, err, "creating device")

	return &device
}
