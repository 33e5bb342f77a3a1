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

// Package database provides the local durable store for leafsync.
// It is the sole owner of record state; the sync coordinator and the
// capture path only touch records through its operations.
package database

import (
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// DB is a handle to the local store. It wraps either a connection or an
// ongoing transaction so that store operations can run in both contexts.
type DB struct {
	conn *sql.DB
	tx   *sql.Tx
}

// Open opens a database connection to the local store at the given path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// Concurrent capture and sync share this handle. WAL lets readers
	// proceed while the sync transaction writes, and busy_timeout bounds
	// lock contention instead of failing immediately.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;"); err != nil {
		return nil, errors.Wrap(err, "configuring database")
	}

	return &DB{conn: conn}, nil
}

// SetMaxOpenConns caps the underlying connection pool
func (d *DB) SetMaxOpenConns(n int) {
	d.conn.SetMaxOpenConns(n)
}

// Close closes the database connection
func (d *DB) Close() error {
	if d.tx != nil {
		return errors.New("closing a transaction handle")
	}

	return d.conn.Close()
}

// Begin starts a transaction and returns a handle scoped to it
func (d *DB) Begin() (*DB, error) {
	if d.tx != nil {
		return nil, errors.New("transaction already in progress")
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning a transaction")
	}

	return &DB{conn: d.conn, tx: tx}, nil
}

// Commit commits the transaction
func (d *DB) Commit() error {
	if d.tx == nil {
		return errors.New("not in a transaction")
	}

	return d.tx.Commit()
}

// Rollback aborts the transaction
func (d *DB) Rollback() error {
	if d.tx == nil {
		return errors.New("not in a transaction")
	}

	return d.tx.Rollback()
}

// Exec executes a query without returning any rows
func (d *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	if d.tx != nil {
		return d.tx.Exec(query, args...)
	}

	return d.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (d *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if d.tx != nil {
		return d.tx.Query(query, args...)
	}

	return d.conn.Query(query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (d *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	if d.tx != nil {
		return d.tx.QueryRow(query, args...)
	}

	return d.conn.QueryRow(query, args...)
}

// InitSchema creates the tables and indices if they do not exist
func InitSchema(db *DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "running schema sql")
	}

	return nil
}

// GetSystem scans the value of the given key in the system table into dest
func GetSystem(db *DB, key string, dest interface{}) error {
	if err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(dest); err != nil {
		return errors.Wrapf(err, "querying system key %s", key)
	}

	return nil
}

// UpsertSystem inserts or updates the given key in the system table
func UpsertSystem(db *DB, key string, val interface{}) error {
	var count int
	if err := db.QueryRow("SELECT count(*) FROM system WHERE key = ?", key).Scan(&count); err != nil {
		return errors.Wrapf(err, "counting system key %s", key)
	}

	if count == 0 {
		if _, err := db.Exec("INSERT INTO system (key, value) VALUES (?, ?)", key, val); err != nil {
			return errors.Wrapf(err, "inserting system key %s", key)
		}

		return nil
	}

	if _, err := db.Exec("UPDATE system SET value = ? WHERE key = ?", val, key); err != nil {
		return errors.Wrapf(err, "updating system key %s", key)
	}

	return nil
}

// DeleteSystem removes the given key from the system table
func DeleteSystem(db *DB, key string) error {
	if _, err := db.Exec("DELETE FROM system WHERE key = ?", key); err != nil {
		return errors.Wrapf(err, "deleting system key %s", key)
	}

	return nil
}

// GetSystemOptional scans the value of the given key into dest and reports
// whether the key existed
func GetSystemOptional(db *DB, key string, dest interface{}) (bool, error) {
	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(dest)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "querying system key %s", key)
	}

	return true, nil
}
