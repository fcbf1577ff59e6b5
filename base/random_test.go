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

package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomGenerator_Determinism(t *testing.T) {
	a := NewRandomGenerator(42)
	b := NewRandomGenerator(42)
	assert.Equal(t, a.NormalVector(10, 0, 1), b.NormalVector(10, 0, 1))
	assert.Equal(t, a.UniformVector(10, -1, 1), b.UniformVector(10, -1, 1))
}

func TestWeightedSampler_Draw(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	weights := []float64{4, 3, 2, 1}
	sampler := NewWeightedSampler(items, weights)
	assert.Equal(t, 4, sampler.Eligible())
	rng := NewRandomGenerator(0)
	drawn := make(map[string]bool)
	for i := 0; i < 4; i++ {
		item, ok := sampler.Draw(rng)
		assert.True(t, ok)
		assert.False(t, drawn[item], "item %v drawn twice", item)
		drawn[item] = true
	}
	// exhausted
	_, ok := sampler.Draw(rng)
	assert.False(t, ok)
	assert.Zero(t, sampler.Eligible())
}

func TestWeightedSampler_Determinism(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	weights := []float64{5, 4, 3, 2, 1}
	drawAll := func() []string {
		sampler := NewWeightedSampler(items, weights)
		rng := NewRandomGenerator(109)
		var drawn []string
		for {
			item, ok := sampler.Draw(rng)
			if !ok {
				break
			}
			drawn = append(drawn, item)
		}
		return drawn
	}
	assert.Equal(t, drawAll(), drawAll())
}

func TestWeightedSampler_ZeroWeight(t *testing.T) {
	items := []string{"a", "b", "c"}
	weights := []float64{0, 7, 0}
	sampler := NewWeightedSampler(items, weights)
	assert.Equal(t, 1, sampler.Eligible())
	rng := NewRandomGenerator(0)
	item, ok := sampler.Draw(rng)
	assert.True(t, ok)
	assert.Equal(t, "b", item)
	_, ok = sampler.Draw(rng)
	assert.False(t, ok)
}
