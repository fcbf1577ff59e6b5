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

package mf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascade-rec/cascade/base"
)

func TestNewDataSet(t *testing.T) {
	interactions := []Interaction{
		{"u1", "i2", 5, 100},
		{"u1", "i1", 3, 200},
		{"u2", "i1", 4, 300},
	}
	dataset := NewDataSet(interactions, []string{"i1", "i2", "i3"}, 0, 0, 40)
	// item index frozen by metadata order, not interaction order
	assert.Equal(t, int32(0), dataset.ItemIndex.ToNumber("i1"))
	assert.Equal(t, int32(1), dataset.ItemIndex.ToNumber("i2"))
	assert.Equal(t, int32(2), dataset.ItemIndex.ToNumber("i3"))
	// users indexed by first appearance
	assert.Equal(t, int32(0), dataset.UserIndex.ToNumber("u1"))
	assert.Equal(t, int32(1), dataset.UserIndex.ToNumber("u2"))
	assert.Equal(t, 3, dataset.Count())
	weight, exist := dataset.Weight(0, 1)
	assert.True(t, exist)
	assert.Equal(t, float32(1+40*5), weight)
	_, exist = dataset.Weight(1, 1)
	assert.False(t, exist)
}

func TestNewDataSet_Pruning(t *testing.T) {
	interactions := []Interaction{
		{"u1", "i1", 5, 0},
		{"u1", "i2", 4, 0},
		{"u2", "i1", 3, 0},
		{"u2", "i2", 2, 0},
		{"u3", "i1", 1, 0}, // u3 has a single interaction
	}
	dataset := NewDataSet(interactions, []string{"i1", "i2"}, 2, 2, 40)
	// a user below the minimum count never enters the row index space
	assert.Equal(t, base.NotId, dataset.UserIndex.ToNumber("u3"))
	assert.Equal(t, 2, dataset.UserCount())
	assert.Equal(t, 4, dataset.Count())
}

func TestNewDataSet_UnknownItem(t *testing.T) {
	interactions := []Interaction{
		{"u1", "i1", 5, 0},
		{"u1", "i9", 5, 0}, // outside the frozen item space
	}
	dataset := NewDataSet(interactions, []string{"i1"}, 0, 0, 40)
	assert.Equal(t, 1, dataset.Count())
}

func TestNewDataSet_DuplicatesSum(t *testing.T) {
	interactions := []Interaction{
		{"u1", "i1", 2, 100},
		{"u1", "i1", 3, 200},
	}
	dataset := NewDataSet(interactions, []string{"i1"}, 0, 0, 10)
	assert.Equal(t, 1, dataset.Count())
	weight, exist := dataset.Weight(0, 0)
	assert.True(t, exist)
	// duplicate coordinates accumulate additively: (1+10*2)+(1+10*3)
	assert.Equal(t, float32(52), weight)
}

func TestLoadInteractionsFromCSV(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "ratings.csv")
	content := "user_id,item_id,rating,timestamp\n" +
		"1,10,4.5,964982703\n" +
		"1,20,3.0,964981247\n" +
		"2,10,5.0,964982224\n"
	assert.NoError(t, os.WriteFile(fileName, []byte(content), 0644))
	interactions, err := LoadInteractionsFromCSV(fileName, ",", true)
	assert.NoError(t, err)
	assert.Equal(t, []Interaction{
		{"1", "10", 4.5, 964982703},
		{"1", "20", 3.0, 964981247},
		{"2", "10", 5.0, 964982224},
	}, interactions)
}
