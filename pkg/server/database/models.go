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

package database

import (
	"time"
)

// Model is the base for the database models. It mirrors gorm.Model except
// that it does not soft-delete; record deletion is tracked explicitly per
// table so that tombstones can be served through the changes feed.
type Model struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Device is a registered client device. A device is created implicitly the
// first time it makes an authenticated request.
type Device struct {
	Model
	UUID             string `gorm:"uniqueIndex;not null"`
	Phone            string `gorm:"index"`
	Name             string
	PhotoURL         string
	ProfileUpdatedAt int64
	LastActiveAt     int64
}

// Scan is a leaf scan uploaded by a device.
//
// RecordCreatedAt and RecordUpdatedAt are the client-assigned timestamps in
// unix nanoseconds. They are distinct from the row timestamps because the
// client clock, not the server clock, decides last-writer-wins ordering.
type Scan struct {
	Model
	UUID            string `gorm:"uniqueIndex;not null"`
	DeviceID        uint   `gorm:"index;not null"`
	CropID          int    `gorm:"not null"`
	ImagePath       string
	Status          string `gorm:"not null"`
	RecordCreatedAt int64  `gorm:"not null"`
	RecordUpdatedAt int64  `gorm:"index;not null"`
	Deleted         bool   `gorm:"default:false;not null"`
}

// Diagnosis is the NPK deficiency analysis for a scan. It is keyed by the
// scan UUID because a scan has at most one diagnosis.
type Diagnosis struct {
	Model
	ScanUUID        string `gorm:"uniqueIndex;not null"`
	DeviceID        uint   `gorm:"index;not null"`
	NScore          float64
	PScore          float64
	KScore          float64
	NConfidence     float64
	PConfidence     float64
	KConfidence     float64
	NSeverity       string
	PSeverity       string
	KSeverity       string
	OverallStatus   string
	DetectedClass   string
	RecordCreatedAt int64 `gorm:"not null"`
	RecordUpdatedAt int64 `gorm:"index;not null"`
	Deleted         bool  `gorm:"default:false;not null"`
}

// Recommendation is the fertilizer advice derived from a diagnosis. Like
// Diagnosis, it is keyed by the scan UUID.
type Recommendation struct {
	Model
	ScanUUID        string `gorm:"uniqueIndex;not null"`
	DeviceID        uint   `gorm:"index;not null"`
	AdviceN         string
	AdviceP         string
	AdviceK         string
	AdviceNHi       string
	AdvicePHi       string
	AdviceKHi       string
	Priority        string
	RecordCreatedAt int64 `gorm:"not null"`
	RecordUpdatedAt int64 `gorm:"index;not null"`
	Deleted         bool  `gorm:"default:false;not null"`
}
