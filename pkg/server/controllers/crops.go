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

package controllers

import (
	"net/http"

	"github.com/fasalvaidya/leafsync/pkg/crops"
)

// NewCrops creates a new Crops controller
func NewCrops() *Crops {
	return &Crops{}
}

// Crops is a controller for the crop catalog
type Crops struct {
}

type cropResp struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	NameHi   string `json:"name_hi"`
	Season   string `json:"season"`
	IconPath string `json:"icon_path"`
}

// Index handles GET /v1/crops
func (c *Crops) Index(w http.ResponseWriter, r *http.Request) {
	catalog := crops.All()

	items := make([]cropResp, 0, len(catalog))
	for _, crop := range catalog {
		items = append(items, cropResp{
			ID:       crop.ID,
			Name:     crop.Name,
			NameHi:   crop.NameHi,
			Season:   crop.Season,
			IconPath: crop.Icon,
		})
	}

	respondJSON(w, http.StatusOK, struct {
		Crops []cropResp `json:"crops"`
	}{Crops: items})
}
