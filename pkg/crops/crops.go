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

// Package crops defines the supported crop catalog and the fertilizer
// recommendation rules shared by the client and the reconciliation server.
package crops

import "sort"

// Crop describes a supported crop
type Crop struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameHi string `json:"name_hi"`
	Season string `json:"season"`
	Icon   string `json:"icon"`
}

// Crop ids are stable across the local store and the remote store.
// Gaps in the sequence belong to retired crops and must not be reused.
var catalog = map[int]Crop{
	1:  {ID: 1, Name: "Wheat", NameHi: "गेहूँ", Season: "Rabi (Oct-Mar)", Icon: "🌾"},
	2:  {ID: 2, Name: "Rice", NameHi: "चावल", Season: "Kharif (Jun-Sep)", Icon: "🌾"},
	5:  {ID: 5, Name: "Maize", NameHi: "मक्का", Season: "Kharif/Rabi", Icon: "🌽"},
	6:  {ID: 6, Name: "Banana", NameHi: "केला", Season: "Year-round", Icon: "🍌"},
	7:  {ID: 7, Name: "Coffee", NameHi: "कॉफी", Season: "Year-round", Icon: "☕"},
	9:  {ID: 9, Name: "Eggplant", NameHi: "बैंगन", Season: "Year-round", Icon: "🍆"},
	10: {ID: 10, Name: "Ash Gourd", NameHi: "पेठा", Season: "Kharif", Icon: "🎃"},
	11: {ID: 11, Name: "Bitter Gourd", NameHi: "करेला", Season: "Summer", Icon: "🥬"},
	13: {ID: 13, Name: "Snake Gourd", NameHi: "चिचिंडा", Season: "Summer", Icon: "🥬"},
}

// DefaultID is the crop assumed when a scan does not specify one
const DefaultID = 1

// All returns the catalog ordered by id
func All() []Crop {
	ret := make([]Crop, 0, len(catalog))
	for _, c := range catalog {
		ret = append(ret, c)
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})

	return ret
}

// Find looks up a crop by id
func Find(id int) (Crop, bool) {
	c, ok := catalog[id]
	return c, ok
}

// Valid checks if the given id belongs to a supported crop
func Valid(id int) bool {
	_, ok := catalog[id]
	return ok
}
