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
	"math/rand"
	"sort"
)

// RandomGenerator is the random generator for cascade.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// UniformVector makes a vec filled with uniform random floats.
func (rng RandomGenerator) UniformVector(size int, low, high float32) []float32 {
	ret := make([]float32, size)
	scale := high - low
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.Float32()*scale + low
	}
	return ret
}

// NormalVector makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector(size int, mean, stdDev float32) []float32 {
	ret := make([]float32, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = float32(rng.NormFloat64())*stdDev + mean
	}
	return ret
}

// NormalVector64 makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector64(size int, mean, stdDev float64) []float64 {
	ret := make([]float64, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.NormFloat64()*stdDev + mean
	}
	return ret
}

// WeightedSampler draws items without replacement with probability proportional
// to their weights. The draw is a binary search over cumulative weights, so it
// terminates in O(log n) regardless of how many items have been removed, unlike
// rejection sampling.
type WeightedSampler struct {
	items    []string
	weights  []float64
	prefix   []float64
	total    float64
	eligible int
}

// NewWeightedSampler creates a WeightedSampler. Items with non-positive weights
// are never drawn.
func NewWeightedSampler(items []string, weights []float64) *WeightedSampler {
	if len(items) != len(weights) {
		panic("base: items and weights lengths do not match")
	}
	s := &WeightedSampler{
		items:   items,
		weights: make([]float64, len(weights)),
		prefix:  make([]float64, len(weights)),
	}
	sum := float64(0)
	for i, w := range weights {
		if w > 0 {
			s.weights[i] = w
			sum += w
			s.eligible++
		}
		s.prefix[i] = sum
	}
	s.total = sum
	return s
}

// Eligible returns the number of items that can still be drawn.
func (s *WeightedSampler) Eligible() int {
	return s.eligible
}

// Draw samples one item and removes it from the sampler. The second return
// value is false if no item with positive weight remains.
func (s *WeightedSampler) Draw(rng RandomGenerator) (string, bool) {
	if s.eligible == 0 || s.total <= 0 {
		return "", false
	}
	r := rng.Float64() * s.total
	i := sort.Search(len(s.prefix), func(j int) bool { return s.prefix[j] > r })
	// Rounding may land on a removed item. Skip forward to the next one
	// with positive weight.
	for i < len(s.weights) && s.weights[i] <= 0 {
		i++
	}
	if i >= len(s.weights) {
		for i = len(s.weights) - 1; i >= 0 && s.weights[i] <= 0; i-- {
		}
		if i < 0 {
			return "", false
		}
	}
	s.remove(i)
	return s.items[i], true
}

func (s *WeightedSampler) remove(i int) {
	w := s.weights[i]
	s.weights[i] = 0
	for j := i; j < len(s.prefix); j++ {
		s.prefix[j] -= w
	}
	s.total -= w
	s.eligible--
}
