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

// Package device provides the stable identity of this installation.
// All server-side ownership is keyed by the device uuid, so every caller
// that talks to the server takes a Provider rather than reading the
// identity from a global.
package device

import (
	"sync"

	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Identity identifies this installation to the server. Durable is false
// when the identity could not be persisted; such an identity changes on
// restart and must not be used to claim server-side records.
type Identity struct {
	UUID      string
	Durable   bool
	CreatedAt int64
}

// Provider returns the identity of this installation
type Provider interface {
	Get() (Identity, error)
	Reset() error
}

// StoreProvider persists the identity in the local store. The first Get
// generates a v4 uuid and saves it; subsequent calls return the saved one.
type StoreProvider struct {
	DB    *database.DB
	Clock clock.Clock

	mu sync.Mutex
	// volatile holds an identity that could not be persisted, so that a
	// session presents a single uuid even while the store is unavailable
	volatile *Identity
}

// NewStoreProvider returns a provider backed by the given store
func NewStoreProvider(db *database.DB, c clock.Clock) *StoreProvider {
	return &StoreProvider{DB: db, Clock: c}
}

// Get returns the persisted identity, generating one on first use. If the
// generated identity cannot be persisted, it is returned with Durable set
// to false rather than failing the caller outright, and is held for the
// rest of the session so every request presents the same uuid.
func (p *StoreProvider) Get() (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var savedUUID string
	ok, err := database.GetSystemOptional(p.DB, consts.SystemDeviceUUID, &savedUUID)
	if err != nil {
		return Identity{}, errors.Wrap(err, "getting device uuid")
	}

	if ok {
		var createdAt int64
		if _, err := database.GetSystemOptional(p.DB, consts.SystemDeviceCreatedAt, &createdAt); err != nil {
			return Identity{}, errors.Wrap(err, "getting device created_at")
		}

		p.volatile = nil
		return Identity{UUID: savedUUID, Durable: true, CreatedAt: createdAt}, nil
	}

	if p.volatile != nil {
		return *p.volatile, nil
	}

	id := uuid.New().String()
	now := p.Clock.Now().UnixNano()

	if err := p.persist(id, now); err != nil {
		p.volatile = &Identity{UUID: id, Durable: false, CreatedAt: now}
		return *p.volatile, nil
	}

	return Identity{UUID: id, Durable: true, CreatedAt: now}, nil
}

func (p *StoreProvider) persist(id string, now int64) error {
	tx, err := p.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}
	if err := database.UpsertSystem(tx, consts.SystemDeviceUUID, id); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving device uuid")
	}
	if err := database.UpsertSystem(tx, consts.SystemDeviceCreatedAt, now); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving device created_at")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}

// Reset discards the identity and the cached profile. The next Get mints a
// fresh uuid, so the server treats this installation as a new device.
func (p *StoreProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volatile = nil

	tx, err := p.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	for _, key := range []string{
		consts.SystemDeviceUUID,
		consts.SystemDeviceCreatedAt,
		consts.SystemProfilePhone,
		consts.SystemProfileName,
		consts.SystemProfilePhoto,
	} {
		if err := database.DeleteSystem(tx, key); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "clearing %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}

// StaticProvider returns a fixed identity. Useful for tests.
type StaticProvider struct {
	Identity Identity
}

// Get returns the fixed identity
func (p *StaticProvider) Get() (Identity, error) {
	return p.Identity, nil
}

// Reset is a no-op
func (p *StaticProvider) Reset() error {
	return nil
}
