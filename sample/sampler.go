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
	"sort"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/mf"
	"github.com/cascade-rec/cascade/model"
)

// Example is one labeled training row. Feature columns come from the item's
// metadata record.
type Example struct {
	UserId     string
	ItemId     string
	Label      int8
	RuntimeZ   float32
	LangIndex  float32
	Popularity float32
	VoteAvg    float32
	VoteCount  float32
}

// Features returns the feature vector of the example.
func (example *Example) Features() []float32 {
	return []float32{
		example.RuntimeZ,
		example.LangIndex,
		example.Popularity,
		example.VoteAvg,
		example.VoteCount,
	}
}

func newExample(userId, itemId string, label int8, record ItemMetadata) Example {
	return Example{
		UserId:     userId,
		ItemId:     itemId,
		Label:      label,
		RuntimeZ:   record.RuntimeZ,
		LangIndex:  record.LangIndex,
		Popularity: record.Popularity,
		VoteAvg:    record.VoteAvg,
		VoteCount:  record.VoteCount,
	}
}

// Stats aggregates per-entity anomalies absorbed during sampling.
type Stats struct {
	Users              int // users that contributed a group
	Positives          int
	HardNegatives      int
	EasyNegatives      int
	SkippedNoPositives int // users with no qualifying positives after the metadata join
	SkippedNoNegatives int // users with no negatives even after the fallback draw
	DroppedNoMetadata  int // positive items missing metadata
	FallbackUsers      int // users rescued by the single-negative fallback
}

// Sampler builds labeled example groups per user: every qualifying positive,
// then hard negatives taken from an external candidate list, then easy
// negatives drawn from the popularity distribution.
//
// Hyper-parameters:
//
//	PosThreshold - The minimum rating of a positive. Default is 4.
//	NumHardNeg   - The number of hard negatives per user. Default is 20.
//	NumEasyNeg   - The number of easy negatives per user. Default is 10.
//	RandomState  - The random seed. Default is 0.
type Sampler struct {
	model.BaseModel
	posThreshold float32
	numHardNeg   int
	numEasyNeg   int
}

// NewSampler creates a Sampler.
func NewSampler(params model.Params) *Sampler {
	sampler := new(Sampler)
	sampler.SetParams(params)
	return sampler
}

// SetParams sets hyper-parameters for the Sampler.
func (sampler *Sampler) SetParams(params model.Params) {
	sampler.BaseModel.SetParams(params)
	sampler.posThreshold = sampler.Params.GetFloat32(model.PosThreshold, 4)
	sampler.numHardNeg = sampler.Params.GetInt(model.NumHardNeg, 20)
	sampler.numEasyNeg = sampler.Params.GetInt(model.NumEasyNeg, 10)
}

// Clear resets nothing: the sampler carries no fitted weights.
func (sampler *Sampler) Clear() {}

// Sample builds labeled examples for every user in the interaction set.
// Users are visited in ascending id order and a single random generator is
// threaded through every draw, so identical seeds and inputs reproduce the
// output byte for byte. Per-user rows are contiguous: positives first, then
// hard negatives, then easy negatives.
func (sampler *Sampler) Sample(interactions []mf.Interaction, candidates map[string][]string, table *Table) ([]Example, Stats, error) {
	var stats Stats
	// Group interactions per user.
	userInteractions := make(map[string][]mf.Interaction)
	for _, interaction := range interactions {
		userInteractions[interaction.UserId] = append(userInteractions[interaction.UserId], interaction)
	}
	userIds := lo.Keys(userInteractions)
	sortIds(userIds)
	// Rank metadata-present items by raw popularity.
	poolIds, poolWeights := popularityPool(interactions, table)
	rng := sampler.GetRandomGenerator()
	examples := make([]Example, 0)
	for _, userId := range userIds {
		rows, userStats, err := sampler.sampleUser(rng, userId, userInteractions[userId], candidates[userId], table, poolIds, poolWeights)
		if err != nil {
			return nil, stats, errors.Trace(err)
		}
		stats.add(userStats)
		examples = append(examples, rows...)
	}
	log.Logger().Info("sample examples",
		zap.Int("users", stats.Users),
		zap.Int("examples", len(examples)),
		zap.Int("positives", stats.Positives),
		zap.Int("hard_negatives", stats.HardNegatives),
		zap.Int("easy_negatives", stats.EasyNegatives),
		zap.Int("skipped_no_positives", stats.SkippedNoPositives),
		zap.Int("skipped_no_negatives", stats.SkippedNoNegatives),
		zap.Int("dropped_no_metadata", stats.DroppedNoMetadata),
		zap.Int("fallback_users", stats.FallbackUsers))
	return examples, stats, nil
}

func (sampler *Sampler) sampleUser(rng base.RandomGenerator, userId string, interactions []mf.Interaction,
	candidates []string, table *Table, poolIds []string, poolWeights []float64) ([]Example, Stats, error) {
	var stats Stats
	// The seen set covers every interaction regardless of rating, then grows
	// with each negative drawn in this pass.
	seen := mapset.NewSet[string]()
	for _, interaction := range interactions {
		seen.Add(interaction.ItemId)
	}
	// Positives: every item rated at or above the threshold, oldest first.
	positives := lo.Filter(interactions, func(interaction mf.Interaction, _ int) bool {
		return interaction.Rating >= sampler.posThreshold
	})
	sort.SliceStable(positives, func(i, j int) bool {
		return positives[i].Timestamp < positives[j].Timestamp
	})
	rows := make([]Example, 0, len(positives)+sampler.numHardNeg+sampler.numEasyNeg)
	for _, positive := range positives {
		record, exist := table.Lookup(positive.ItemId)
		if !exist {
			stats.DroppedNoMetadata++
			continue
		}
		rows = append(rows, newExample(userId, positive.ItemId, 1, record))
		stats.Positives++
	}
	if stats.Positives == 0 {
		stats.SkippedNoPositives = 1
		return nil, stats, nil
	}
	// Hard negatives: the first unseen metadata-present candidates, in the
	// candidate order verbatim.
	for _, itemId := range candidates {
		if stats.HardNegatives >= sampler.numHardNeg {
			break
		}
		if seen.Contains(itemId) {
			continue
		}
		record, exist := table.Lookup(itemId)
		if !exist {
			continue
		}
		rows = append(rows, newExample(userId, itemId, 0, record))
		seen.Add(itemId)
		stats.HardNegatives++
	}
	// Easy negatives: unique unseen items drawn with probability proportional
	// to raw popularity.
	if sampler.numEasyNeg > 0 {
		drawn, err := drawEasyNegatives(rng, userId, seen, poolIds, poolWeights, sampler.numEasyNeg)
		if err != nil {
			return nil, stats, errors.Trace(err)
		}
		for _, itemId := range drawn {
			record, exist := table.Lookup(itemId)
			if !exist {
				return nil, stats, errors.Errorf("popularity pool item %s has no metadata", itemId)
			}
			rows = append(rows, newExample(userId, itemId, 0, record))
			seen.Add(itemId)
			stats.EasyNegatives++
		}
	}
	// Fallback: a group without a negative carries no ranking signal, so draw
	// one more easy negative before giving up on the user.
	if stats.HardNegatives+stats.EasyNegatives == 0 {
		drawn, err := drawEasyNegatives(rng, userId, seen, poolIds, poolWeights, 1)
		if err != nil {
			stats = Stats{SkippedNoNegatives: 1, DroppedNoMetadata: stats.DroppedNoMetadata}
			return nil, stats, nil
		}
		record, exist := table.Lookup(drawn[0])
		if !exist {
			return nil, stats, errors.Errorf("popularity pool item %s has no metadata", drawn[0])
		}
		rows = append(rows, newExample(userId, drawn[0], 0, record))
		stats.EasyNegatives++
		stats.FallbackUsers = 1
	}
	stats.Users = 1
	return rows, stats, nil
}

// drawEasyNegatives draws n unique unseen items by cumulative-weight search.
// A pool with fewer than n eligible items is a structural error: the request
// can never be satisfied, retrying would not terminate.
func drawEasyNegatives(rng base.RandomGenerator, userId string, seen mapset.Set[string],
	poolIds []string, poolWeights []float64, n int) ([]string, error) {
	weights := make([]float64, len(poolWeights))
	for i, itemId := range poolIds {
		if !seen.Contains(itemId) {
			weights[i] = poolWeights[i]
		}
	}
	ws := base.NewWeightedSampler(poolIds, weights)
	if ws.Eligible() < n {
		return nil, errors.Errorf("easy negative pool exhausted for user %s: need %d, have %d",
			userId, n, ws.Eligible())
	}
	drawn := make([]string, 0, n)
	for len(drawn) < n {
		itemId, ok := ws.Draw(rng)
		if !ok {
			return nil, errors.Errorf("easy negative pool exhausted for user %s: need %d, have %d",
				userId, n, len(drawn))
		}
		drawn = append(drawn, itemId)
	}
	return drawn, nil
}

// popularityPool ranks metadata-present items by raw interaction count,
// descending, with ascending id breaking ties. The order is part of the
// reproducibility contract.
func popularityPool(interactions []mf.Interaction, table *Table) ([]string, []float64) {
	counts := make(map[string]int)
	for _, interaction := range interactions {
		if _, exist := table.Lookup(interaction.ItemId); exist {
			counts[interaction.ItemId]++
		}
	}
	ids := lo.Keys(counts)
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return lessId(ids[i], ids[j])
	})
	weights := make([]float64, len(ids))
	for i, itemId := range ids {
		weights[i] = float64(counts[itemId])
	}
	return ids, weights
}

// sortIds sorts ids ascending, comparing numerically when both sides parse as
// integers.
func sortIds(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return lessId(ids[i], ids[j])
	})
}

func lessId(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

func (stats *Stats) add(other Stats) {
	stats.Users += other.Users
	stats.Positives += other.Positives
	stats.HardNegatives += other.HardNegatives
	stats.EasyNegatives += other.EasyNegatives
	stats.SkippedNoPositives += other.SkippedNoPositives
	stats.SkippedNoNegatives += other.SkippedNoNegatives
	stats.DroppedNoMetadata += other.DroppedNoMetadata
	stats.FallbackUsers += other.FallbackUsers
}
