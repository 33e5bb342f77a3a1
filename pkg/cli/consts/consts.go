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

// Package consts provides definitions of constants
package consts

var (
	// LeafsyncDirName is the name of the directory containing leafsync files
	LeafsyncDirName = "leafsync"
	// LeafsyncDBFileName is a filename for the leafsync SQLite database
	LeafsyncDBFileName = "leafsync.db"
	// ImageDirName is the name of the directory holding captured scan images
	ImageDirName = "images"
	// ConfigFilename is the name of the config file
	ConfigFilename = "leafsyncrc"

	// SystemSchema is the key for schema in the system table
	SystemSchema = "schema"
	// SystemDeviceUUID is the key for the persisted device identity
	SystemDeviceUUID = "device_uuid"
	// SystemDeviceCreatedAt is the key for the creation time of the device identity
	SystemDeviceCreatedAt = "device_created_at"
	// SystemProfilePhone is the key for the cached profile phone number
	SystemProfilePhone = "profile_phone"
	// SystemProfileName is the key for the cached profile name
	SystemProfileName = "profile_name"
	// SystemProfilePhoto is the key for the cached profile photo reference
	SystemProfilePhoto = "profile_photo"
	// SystemLastPullScans is the pull watermark for scans
	SystemLastPullScans = "last_pull_scans"
	// SystemLastPullDiagnoses is the pull watermark for diagnoses
	SystemLastPullDiagnoses = "last_pull_diagnoses"
	// SystemLastPullRecommendations is the pull watermark for recommendations
	SystemLastPullRecommendations = "last_pull_recommendations"
)

// Scan statuses
const (
	// StatusPendingDiagnosis marks a captured scan awaiting its diagnosis
	StatusPendingDiagnosis = "pending_diagnosis"
	// StatusCompleted marks a scan with a stored diagnosis
	StatusCompleted = "completed"
	// StatusFailed marks a scan whose diagnosis failed permanently
	StatusFailed = "failed"
)

// Sync states
const (
	// SyncStateLocalOnly marks a record that has never been pushed successfully
	SyncStateLocalOnly = "local_only"
	// SyncStatePushed marks a record whose local copy has been accepted by the server
	SyncStatePushed = "pushed"
	// SyncStatePullApplied marks a record whose latest copy came from a pull
	SyncStatePullApplied = "pull_applied"
)
