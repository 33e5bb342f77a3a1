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

package crops

import (
	"fmt"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/assert"
)

func TestSeverity(t *testing.T) {
	testCases := []struct {
		score    float64
		expected string
	}{
		{score: 0, expected: SeverityHealthy},
		{score: 0.39, expected: SeverityHealthy},
		{score: 0.4, expected: SeverityAttention},
		{score: 0.69, expected: SeverityAttention},
		{score: 0.7, expected: SeverityCritical},
		{score: 1, expected: SeverityCritical},
	}

	for _, tc := range testCases {
		got := Severity(tc.score)
		assert.Equal(t, got, tc.expected, fmt.Sprintf("severity mismatch for score %f", tc.score))
	}
}

func TestRecommend(t *testing.T) {
	testCases := []struct {
		cropID           int
		nScore           float64
		pScore           float64
		kScore           float64
		expectedPriority string
		expectedNNeeded  bool
		expectedPNeeded  bool
		expectedKNeeded  bool
		expectedNUrgency string
	}{
		{
			cropID: 1, nScore: 0.1, pScore: 0.2, kScore: 0.3,
			expectedPriority: SeverityHealthy,
		},
		{
			cropID: 2, nScore: 0.5, pScore: 0.1, kScore: 0.1,
			expectedPriority: SeverityAttention,
			expectedNNeeded:  true,
			expectedNUrgency: "medium",
		},
		{
			cropID: 5, nScore: 0.8, pScore: 0.45, kScore: 0.1,
			expectedPriority: SeverityCritical,
			expectedNNeeded:  true,
			expectedPNeeded:  true,
			expectedNUrgency: "high",
		},
	}

	for idx, tc := range testCases {
		got := Recommend(tc.cropID, tc.nScore, tc.pScore, tc.kScore)

		assert.Equal(t, got.Priority, tc.expectedPriority, fmt.Sprintf("priority mismatch for test case %d", idx))
		assert.Equal(t, got.N.Needed, tc.expectedNNeeded, fmt.Sprintf("n needed mismatch for test case %d", idx))
		assert.Equal(t, got.P.Needed, tc.expectedPNeeded, fmt.Sprintf("p needed mismatch for test case %d", idx))
		assert.Equal(t, got.K.Needed, tc.expectedKNeeded, fmt.Sprintf("k needed mismatch for test case %d", idx))
		assert.Equal(t, got.N.Urgency, tc.expectedNUrgency, fmt.Sprintf("n urgency mismatch for test case %d", idx))

		if tc.expectedNNeeded {
			assert.NotEqual(t, got.N.En, "", fmt.Sprintf("n advice text empty for test case %d", idx))
			assert.NotEqual(t, got.N.Hi, "", fmt.Sprintf("n advice hindi text empty for test case %d", idx))
		}
	}
}

func TestRecommendUnknownCrop(t *testing.T) {
	got := Recommend(999, 0.9, 0, 0)
	expected := Recommend(DefaultID, 0.9, 0, 0)

	assert.DeepEqual(t, got, expected, "unknown crop should fall back to the default crop advice")
}

func TestCatalog(t *testing.T) {
	all := All()
	assert.Equal(t, len(all), 9, "catalog length mismatch")

	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Errorf("catalog not ordered by id: %d before %d", all[i-1].ID, all[i].ID)
		}
	}

	c, ok := Find(2)
	assert.Equal(t, ok, true, "rice should exist")
	assert.Equal(t, c.Name, "Rice", "rice name mismatch")

	assert.Equal(t, Valid(3), false, "retired crop id should be invalid")
}
