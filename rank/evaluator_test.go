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
)

func singleGroup(labels []float32) *Dataset {
	dataset := &Dataset{
		Labels:     labels,
		GroupSizes: []int{len(labels)},
	}
	for range labels {
		dataset.Users = append(dataset.Users, "u1")
		dataset.Items = append(dataset.Items, "i")
		dataset.Features = append(dataset.Features, nil)
	}
	return dataset
}

func TestEvaluate_Perfect(t *testing.T) {
	// the single positive has the highest score
	dataset := singleGroup([]float32{1, 0, 0, 0})
	score := Evaluate(dataset, []float32{4, 3, 2, 1}, 10)
	assert.Equal(t, float32(1), score.MAP)
	assert.Equal(t, float32(1), score.NDCG)
}

func TestEvaluate_NoPositives(t *testing.T) {
	dataset := singleGroup([]float32{0, 0, 0})
	score := Evaluate(dataset, []float32{3, 2, 1}, 10)
	assert.Zero(t, score.MAP)
	assert.Zero(t, score.NDCG)
}

func TestEvaluate_PositiveLast(t *testing.T) {
	// one positive ranked second of two at k=10
	dataset := singleGroup([]float32{0, 1})
	score := Evaluate(dataset, []float32{2, 1}, 10)
	assert.InDelta(t, 0.5, score.MAP, 1e-6)
	// DCG = 1/log2(3), ideal = 1/log2(2)
	assert.InDelta(t, 0.6309297, score.NDCG, 1e-6)
}

func TestEvaluate_Cutoff(t *testing.T) {
	// the only positive sits below the cutoff
	dataset := singleGroup([]float32{0, 0, 1})
	score := Evaluate(dataset, []float32{3, 2, 1}, 2)
	assert.Zero(t, score.MAP)
	assert.Zero(t, score.NDCG)
}

func TestEvaluate_MAPNormalization(t *testing.T) {
	// three positives but k=2: the normalizer is min(#positives, k)
	dataset := singleGroup([]float32{1, 1, 1, 0})
	score := Evaluate(dataset, []float32{4, 3, 2, 1}, 2)
	assert.InDelta(t, 1.0, score.MAP, 1e-6)
	assert.InDelta(t, 1.0, score.NDCG, 1e-6)
}

func TestEvaluate_TieBreakStable(t *testing.T) {
	// all scores tie, the original row order decides ranks
	dataset := singleGroup([]float32{1, 0, 0})
	a := Evaluate(dataset, []float32{1, 1, 1}, 10)
	b := Evaluate(dataset, []float32{1, 1, 1}, 10)
	assert.Equal(t, a, b)
	assert.Equal(t, float32(1), a.MAP) // the positive is row 0, so it ranks first
}

func TestEvaluate_AveragesAcrossGroups(t *testing.T) {
	// a perfect group and a positive-less group average to 0.5
	dataset := &Dataset{
		Users:      []string{"u1", "u1", "u2", "u2"},
		Items:      []string{"A", "B", "C", "D"},
		Labels:     []float32{1, 0, 0, 0},
		Features:   [][]float32{nil, nil, nil, nil},
		GroupSizes: []int{2, 2},
	}
	score := Evaluate(dataset, []float32{2, 1, 2, 1}, 10)
	assert.InDelta(t, 0.5, score.MAP, 1e-6)
	assert.InDelta(t, 0.5, score.NDCG, 1e-6)
}
