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
	"sort"

	"github.com/chewxy/math32"
)

// Score records ranking quality at a cutoff.
type Score struct {
	MAP  float32
	NDCG float32
}

// Evaluate computes MAP@k and NDCG@k per group and averages them unweighted
// across groups. A group with no positive label scores 0 and stays in the
// denominator.
func Evaluate(dataset *Dataset, predictions []float32, k int) Score {
	if dataset.GroupCount() == 0 {
		return Score{}
	}
	var sumMAP, sumNDCG float32
	offset := 0
	for _, size := range dataset.GroupSizes {
		labels := dataset.Labels[offset : offset+size]
		scores := predictions[offset : offset+size]
		order := rankOrder(scores)
		sumMAP += mapAt(labels, order, k)
		sumNDCG += ndcgAt(labels, order, k)
		offset += size
	}
	return Score{
		MAP:  sumMAP / float32(dataset.GroupCount()),
		NDCG: sumNDCG / float32(dataset.GroupCount()),
	}
}

// rankOrder returns row indices sorted by descending score. The sort is
// stable, so tied scores keep their original row order across runs.
func rankOrder(scores []float32) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}

// mapAt computes average precision over the top-k predicted ordering,
// normalized by min(#positives, k).
func mapAt(labels []float32, order []int, k int) float32 {
	positives := 0
	for _, label := range labels {
		if label > 0 {
			positives++
		}
	}
	if positives == 0 {
		return 0
	}
	if k > len(order) {
		k = len(order)
	}
	var hits, sumPrecision float32
	for rank := 0; rank < k; rank++ {
		if labels[order[rank]] > 0 {
			hits++
			sumPrecision += hits / float32(rank+1)
		}
	}
	norm := positives
	if k < norm {
		norm = k
	}
	return sumPrecision / float32(norm)
}

// ndcgAt computes NDCG over the top-k predicted ordering with binary
// relevance and a log2(rank+1) discount. The ideal DCG comes from the group's
// own label multiset truncated to k.
func ndcgAt(labels []float32, order []int, k int) float32 {
	if k > len(order) {
		k = len(order)
	}
	var dcg float32
	for rank := 0; rank < k; rank++ {
		if labels[order[rank]] > 0 {
			dcg += 1 / math32.Log2(float32(rank)+2)
		}
	}
	ideal := make([]float32, len(labels))
	copy(ideal, labels)
	sort.Slice(ideal, func(i, j int) bool { return ideal[i] > ideal[j] })
	var idcg float32
	for rank := 0; rank < k; rank++ {
		if ideal[rank] > 0 {
			idcg += 1 / math32.Log2(float32(rank)+2)
		}
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
