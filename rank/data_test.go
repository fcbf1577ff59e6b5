// Copyright 2025 cascade Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/sample"
)

func TestMain(m *testing.M) {
	log.CloseLogger()
	m.Run()
}

func TestFromExamples(t *testing.T) {
	examples := []sample.Example{
		{UserId: "u1", ItemId: "A", Label: 1},
		{UserId: "u1", ItemId: "B", Label: 0},
		{UserId: "u2", ItemId: "C", Label: 1},
		{UserId: "u2", ItemId: "D", Label: 0},
		{UserId: "u2", ItemId: "E", Label: 0},
	}
	dataset := FromExamples(examples)
	assert.Equal(t, 5, dataset.Count())
	assert.Equal(t, []int{2, 3}, dataset.GroupSizes)
	assert.Equal(t, []float32{1, 0, 1, 0, 0}, dataset.Labels)
	assert.Len(t, dataset.Features[0], 5)
}

func TestFilterGroups(t *testing.T) {
	examples := []sample.Example{
		// valid group
		{UserId: "u1", ItemId: "A", Label: 1},
		{UserId: "u1", ItemId: "B", Label: 0},
		// all-positive group
		{UserId: "u2", ItemId: "C", Label: 1},
		{UserId: "u2", ItemId: "D", Label: 1},
		// all-negative group
		{UserId: "u3", ItemId: "E", Label: 0},
		// valid group
		{UserId: "u4", ItemId: "A", Label: 0},
		{UserId: "u4", ItemId: "C", Label: 1},
		{UserId: "u4", ItemId: "E", Label: 0},
	}
	filtered, err := FromExamples(examples).FilterGroups()
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 3}, filtered.GroupSizes)
	assert.Equal(t, 5, filtered.Count())
	assert.Equal(t, []string{"u1", "u1", "u4", "u4", "u4"}, filtered.Users)
	// group sizes partition the rows exactly
	total := 0
	for _, size := range filtered.GroupSizes {
		total += size
	}
	assert.Equal(t, filtered.Count(), total)
}

func TestSplit(t *testing.T) {
	examples := make([]sample.Example, 0)
	for group := 0; group < 10; group++ {
		userId := string(rune('a' + group))
		examples = append(examples,
			sample.Example{UserId: userId, ItemId: "A", Label: 1},
			sample.Example{UserId: userId, ItemId: "B", Label: 0})
	}
	dataset := FromExamples(examples)
	train, valid := dataset.Split(0.2, 0)
	assert.Equal(t, 8, train.GroupCount())
	assert.Equal(t, 2, valid.GroupCount())
	assert.Equal(t, dataset.Count(), train.Count()+valid.Count())
	// groups never straddle the split
	for _, part := range []*Dataset{train, valid} {
		offset := 0
		for _, size := range part.GroupSizes {
			assert.Equal(t, 2, size)
			assert.Equal(t, part.Users[offset], part.Users[offset+size-1])
			offset += size
		}
	}
}
