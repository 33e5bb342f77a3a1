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

// Package testutils provides test utilities
package testutils

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// InitMemoryDB opens an in-memory database with the schema applied.
// The caller owns the returned handle and should defer Close.
func InitMemoryDB(t *testing.T) *database.DB {
	t.Helper()

	// A bare :memory: DSN gives each pooled connection its own empty
	// database. A named shared-cache database with a single-connection
	// pool gives every goroutine in a test the same store.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())

	db, err := database.Open(dsn)
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening memory db"))
	}
	db.SetMaxOpenConns(1)
	if err := database.InitSchema(db); err != nil {
		t.Fatal(errors.Wrap(err, "initializing schema"))
	}

	return db
}

// MustExec executes the query and fails the test upon error
func MustExec(t *testing.T, message string, db *database.DB, query string, args ...interface{}) sql.Result {
	t.Helper()

	result, err := db.Exec(query, args...)
	if err != nil {
		t.Fatal(errors.Wrapf(err, "executing sql: %s", message))
	}

	return result
}

// MustScan scans the row into the given destinations and fails the test
// upon error
func MustScan(t *testing.T, message string, row *sql.Row, dest ...interface{}) {
	t.Helper()

	if err := row.Scan(dest...); err != nil {
		t.Fatal(errors.Wrapf(err, "scanning a row: %s", message))
	}
}
