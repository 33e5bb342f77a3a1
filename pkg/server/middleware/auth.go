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

package middleware

import (
	"net/http"
	"time"

	svrcontext "github.com/fasalvaidya/leafsync/pkg/server/context"
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/fasalvaidya/leafsync/pkg/server/helpers"
	"github.com/fasalvaidya/leafsync/pkg/server/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DeviceHeaderName is the header carrying the device identifier
const DeviceHeaderName = "X-Device-ID"

// getOrCreateDevice looks up the device with the given UUID, registering it
// on first contact and stamping its last activity.
func getOrCreateDevice(db *gorm.DB, deviceUUID string) (*database.Device, error) {
	now := time.Now().UnixNano()

	var device database.Device
	err := db.Where("uuid = ?", deviceUUID).First(&device).Error
	if err == nil {
		if err := db.Model(&device).Update("last_active_at", now).Error; err != nil {
			return nil, errors.Wrap(err, "updating device activity")
		}

		return &device, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "finding device")
	}

	device = database.Device{UUID: deviceUUID, LastActiveAt: now}
	if err := db.Create(&device).Error; err != nil {
		return nil, errors.Wrap(err, "creating device")
	}

	log.WithFields(log.Fields{"device_uuid": deviceUUID}).Info("registered new device")

	return &device, nil
}

// DeviceAuth authenticates the request by its device header. The device is
// created if it has not been seen before, and is stored in the request
// context for downstream handlers.
func DeviceAuth(db *gorm.DB, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceUUID := r.Header.Get(DeviceHeaderName)
		if deviceUUID == "" {
			http.Error(w, "missing device header", http.StatusUnauthorized)
			return
		}
		if !helpers.ValidateUUID(deviceUUID) {
			http.Error(w, "invalid device identifier", http.StatusUnauthorized)
			return
		}

		device, err := getOrCreateDevice(db, deviceUUID)
		if err != nil {
			log.ErrorWrap(err, "authenticating device")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		ctx := svrcontext.WithDevice(r.Context(), device)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
