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

package database_test

import (
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/assert"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/testutils"
)

func TestUpsertSystem(t *testing.T) {
	db := testutils.InitMemoryDB(t)
	defer db.Close()

	err := database.UpsertSystem(db, "device_uuid", "device-1-uuid")
	assert.Equal(t, err, nil, "inserting error mismatch")

	var got string
	err = database.GetSystem(db, "device_uuid", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, got, "device-1-uuid", "value mismatch")

	err = database.UpsertSystem(db, "device_uuid", "device-2-uuid")
	assert.Equal(t, err, nil, "updating error mismatch")

	err = database.GetSystem(db, "device_uuid", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, got, "device-2-uuid", "value mismatch")

	var count int
	testutils.MustScan(t, "counting keys",
		db.QueryRow("SELECT count(*) FROM system WHERE key = ?", "device_uuid"), &count)
	assert.Equal(t, count, 1, "upsert should not duplicate the key")
}

func TestGetSystemOptional(t *testing.T) {
	db := testutils.InitMemoryDB(t)
	defer db.Close()

	var got int64
	ok, err := database.GetSystemOptional(db, "last_pull_scans", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, ok, false, "missing key should report false")

	err = database.UpsertSystem(db, "last_pull_scans", int64(12345))
	assert.Equal(t, err, nil, "inserting error mismatch")

	ok, err = database.GetSystemOptional(db, "last_pull_scans", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, ok, true, "existing key should report true")
	assert.Equal(t, got, int64(12345), "value mismatch")
}

func TestDeleteSystem(t *testing.T) {
	db := testutils.InitMemoryDB(t)
	defer db.Close()

	err := database.UpsertSystem(db, "profile_phone", "9999999999")
	assert.Equal(t, err, nil, "inserting error mismatch")

	err = database.DeleteSystem(db, "profile_phone")
	assert.Equal(t, err, nil, "deleting error mismatch")

	var got string
	ok, err := database.GetSystemOptional(db, "profile_phone", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, ok, false, "deleted key should be gone")
}

func TestTransaction(t *testing.T) {
	db := testutils.InitMemoryDB(t)
	defer db.Close()

	tx, err := db.Begin()
	assert.Equal(t, err, nil, "beginning error mismatch")

	if err := database.UpsertSystem(tx, "schema", 1); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	var got int
	ok, err := database.GetSystemOptional(db, "schema", &got)
	assert.Equal(t, err, nil, "getting error mismatch")
	assert.Equal(t, ok, false, "rolled back write should not persist")
}
