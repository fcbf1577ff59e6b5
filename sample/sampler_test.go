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

package sample

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/mf"
	"github.com/cascade-rec/cascade/model"
)

func TestMain(m *testing.M) {
	log.CloseLogger()
	m.Run()
}

func metadataTable(itemIds ...string) *Table {
	table := NewTable()
	for i, itemId := range itemIds {
		table.Add(itemId, ItemMetadata{
			RuntimeZ:   float32(i),
			LangIndex:  float32(i % 3),
			Popularity: float32(10 - i),
			VoteAvg:    7,
			VoteCount:  100,
		})
	}
	return table
}

// scenarioInteractions builds u1 with one positive and one low rating, plus
// single-interaction filler users shaping the popularity counts to
// D=5, E=4, C=3, B=2, A=1.
func scenarioInteractions() []mf.Interaction {
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 5, Timestamp: 1},
		{UserId: "u1", ItemId: "B", Rating: 2, Timestamp: 2},
	}
	filler := 0
	addFillers := func(itemId string, n int) {
		for i := 0; i < n; i++ {
			filler++
			interactions = append(interactions, mf.Interaction{
				UserId: fmt.Sprintf("f%02d", filler),
				ItemId: itemId,
				Rating: 1,
			})
		}
	}
	addFillers("B", 1)
	addFillers("C", 3)
	addFillers("D", 5)
	addFillers("E", 4)
	return interactions
}

func TestSampler_Scenario(t *testing.T) {
	table := metadataTable("A", "B", "C", "D", "E")
	candidates := map[string][]string{"u1": {"C", "D"}}
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   1,
		model.NumEasyNeg:   1,
		model.RandomState:  42,
	})
	examples, stats, err := sampler.Sample(scenarioInteractions(), candidates, table)
	assert.NoError(t, err)
	// fillers have no qualifying positives, only u1 contributes
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 13, stats.SkippedNoPositives)
	assert.Len(t, examples, 3)
	// positive first
	assert.Equal(t, "u1", examples[0].UserId)
	assert.Equal(t, "A", examples[0].ItemId)
	assert.Equal(t, int8(1), examples[0].Label)
	// hard negative is the first unseen candidate, order preserved
	assert.Equal(t, "C", examples[1].ItemId)
	assert.Equal(t, int8(0), examples[1].Label)
	// easy negative comes from the unseen remainder of the popularity pool
	assert.Contains(t, []string{"D", "E"}, examples[2].ItemId)
	assert.Equal(t, int8(0), examples[2].Label)
}

func TestSampler_Determinism(t *testing.T) {
	table := metadataTable("A", "B", "C", "D", "E")
	candidates := map[string][]string{"u1": {"C", "D"}}
	params := model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   1,
		model.NumEasyNeg:   2,
		model.RandomState:  109,
	}
	first, _, err := NewSampler(params).Sample(scenarioInteractions(), candidates, table)
	assert.NoError(t, err)
	second, _, err := NewSampler(params).Sample(scenarioInteractions(), candidates, table)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSampler_GroupContiguity(t *testing.T) {
	table := metadataTable("A", "B", "C", "D", "E", "F")
	interactions := []mf.Interaction{
		{UserId: "2", ItemId: "A", Rating: 5, Timestamp: 1},
		{UserId: "10", ItemId: "B", Rating: 5, Timestamp: 1},
		{UserId: "2", ItemId: "C", Rating: 4, Timestamp: 2},
		{UserId: "10", ItemId: "D", Rating: 1, Timestamp: 2},
		{UserId: "3", ItemId: "E", Rating: 5, Timestamp: 1},
	}
	candidates := map[string][]string{
		"2":  {"E", "F"},
		"3":  {"A", "B"},
		"10": {"C", "F"},
	}
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   2,
		model.NumEasyNeg:   0,
		model.RandomState:  0,
	})
	examples, stats, err := sampler.Sample(interactions, candidates, table)
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.Users)
	// numeric-aware ascending user order: 2, 3, 10
	var order []string
	seen := make(map[string]bool)
	for _, example := range examples {
		if !seen[example.UserId] {
			seen[example.UserId] = true
			order = append(order, example.UserId)
		}
	}
	assert.Equal(t, []string{"2", "3", "10"}, order)
	// every group is contiguous with at least one positive and one negative
	groups := make(map[string][]Example)
	last := ""
	for _, example := range examples {
		if example.UserId != last {
			assert.Nil(t, groups[example.UserId], "rows of user %s are interleaved", example.UserId)
			last = example.UserId
		}
		groups[example.UserId] = append(groups[example.UserId], example)
	}
	for userId, group := range groups {
		positives, negatives := 0, 0
		for _, example := range group {
			if example.Label == 1 {
				positives++
			} else {
				negatives++
			}
		}
		assert.GreaterOrEqual(t, positives, 1, "user %s", userId)
		assert.GreaterOrEqual(t, negatives, 1, "user %s", userId)
	}
}

func TestSampler_SkipNoPositives(t *testing.T) {
	table := metadataTable("A", "B")
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 2},
		{UserId: "u1", ItemId: "B", Rating: 3},
	}
	sampler := NewSampler(model.Params{model.PosThreshold: 4})
	examples, stats, err := sampler.Sample(interactions, nil, table)
	assert.NoError(t, err)
	assert.Empty(t, examples)
	assert.Equal(t, 1, stats.SkippedNoPositives)
}

func TestSampler_DropMissingMetadata(t *testing.T) {
	// item B rated positively but absent from the metadata table
	table := metadataTable("A", "C", "D", "E")
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 5, Timestamp: 1},
		{UserId: "u1", ItemId: "B", Rating: 5, Timestamp: 2},
		{UserId: "u2", ItemId: "C", Rating: 1},
		{UserId: "u2", ItemId: "D", Rating: 1},
	}
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   0,
		model.NumEasyNeg:   1,
		model.RandomState:  0,
	})
	examples, stats, err := sampler.Sample(interactions, nil, table)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.DroppedNoMetadata)
	assert.Equal(t, 1, stats.Positives)
	assert.Equal(t, "A", examples[0].ItemId)
}

func TestSampler_PoolExhaustion(t *testing.T) {
	table := metadataTable("A", "B")
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 5},
		{UserId: "u2", ItemId: "B", Rating: 1},
	}
	// u1 needs 5 easy negatives but only B is eligible
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   0,
		model.NumEasyNeg:   5,
		model.RandomState:  0,
	})
	_, _, err := sampler.Sample(interactions, nil, table)
	assert.Error(t, err)
}

func TestSampler_Fallback(t *testing.T) {
	table := metadataTable("A", "B", "C")
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 5},
		{UserId: "u2", ItemId: "B", Rating: 1},
		{UserId: "u2", ItemId: "C", Rating: 1},
	}
	// no hard or easy negatives requested, the fallback must still draw one
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   0,
		model.NumEasyNeg:   0,
		model.RandomState:  0,
	})
	examples, stats, err := sampler.Sample(interactions, nil, table)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.FallbackUsers)
	assert.Len(t, examples, 2)
	assert.Equal(t, int8(1), examples[0].Label)
	assert.Equal(t, int8(0), examples[1].Label)
	assert.Contains(t, []string{"B", "C"}, examples[1].ItemId)
}

func TestSampler_FallbackDrop(t *testing.T) {
	// the only item in the pool is already seen, so the fallback fails and
	// the user is dropped
	table := metadataTable("A")
	interactions := []mf.Interaction{
		{UserId: "u1", ItemId: "A", Rating: 5},
	}
	sampler := NewSampler(model.Params{
		model.PosThreshold: 4,
		model.NumHardNeg:   0,
		model.NumEasyNeg:   0,
		model.RandomState:  0,
	})
	examples, stats, err := sampler.Sample(interactions, nil, table)
	assert.NoError(t, err)
	assert.Empty(t, examples)
	assert.Equal(t, 1, stats.SkippedNoNegatives)
	assert.Zero(t, stats.Users)
}
