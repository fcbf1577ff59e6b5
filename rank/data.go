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
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/sample"
)

// Dataset is a groupwise labeled dataset. Rows of one user are contiguous and
// GroupSizes partitions the rows exactly.
type Dataset struct {
	Users      []string
	Items      []string
	Labels     []float32
	Features   [][]float32
	GroupSizes []int
}

// NewDataset creates an empty dataset with capacity.
func NewDataset(capacity int) *Dataset {
	return &Dataset{
		Users:    make([]string, 0, capacity),
		Items:    make([]string, 0, capacity),
		Labels:   make([]float32, 0, capacity),
		Features: make([][]float32, 0, capacity),
	}
}

// Count returns the number of rows.
func (dataset *Dataset) Count() int {
	return len(dataset.Labels)
}

// GroupCount returns the number of groups.
func (dataset *Dataset) GroupCount() int {
	return len(dataset.GroupSizes)
}

// FromExamples converts labeled examples to a dataset. Group boundaries fall
// where the user id changes, so example rows must already be contiguous per
// user.
func FromExamples(examples []sample.Example) *Dataset {
	dataset := NewDataset(len(examples))
	for _, example := range examples {
		if len(dataset.Users) == 0 || dataset.Users[len(dataset.Users)-1] != example.UserId {
			dataset.GroupSizes = append(dataset.GroupSizes, 0)
		}
		dataset.GroupSizes[len(dataset.GroupSizes)-1]++
		dataset.Users = append(dataset.Users, example.UserId)
		dataset.Items = append(dataset.Items, example.ItemId)
		dataset.Labels = append(dataset.Labels, float32(example.Label))
		dataset.Features = append(dataset.Features, example.Features())
	}
	return dataset
}

// LoadDataset reads a labeled example artifact into a dataset.
func LoadDataset(fileName string) (*Dataset, error) {
	examples, err := sample.ReadExamples(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return FromExamples(examples), nil
}

// FilterGroups drops groups that are all-positive or all-negative: a group
// with one label value carries no ranking signal. The recomputed group sizes
// must partition the surviving rows exactly, anything else is a structural
// fault and aborts.
func (dataset *Dataset) FilterGroups() (*Dataset, error) {
	filtered := NewDataset(dataset.Count())
	offset := 0
	for _, size := range dataset.GroupSizes {
		positives := 0
		for i := offset; i < offset+size; i++ {
			if dataset.Labels[i] > 0 {
				positives++
			}
		}
		if positives > 0 && positives < size {
			filtered.Users = append(filtered.Users, dataset.Users[offset:offset+size]...)
			filtered.Items = append(filtered.Items, dataset.Items[offset:offset+size]...)
			filtered.Labels = append(filtered.Labels, dataset.Labels[offset:offset+size]...)
			filtered.Features = append(filtered.Features, dataset.Features[offset:offset+size]...)
			filtered.GroupSizes = append(filtered.GroupSizes, size)
		}
		offset += size
	}
	total := 0
	for _, size := range filtered.GroupSizes {
		total += size
	}
	if total != filtered.Count() {
		return nil, errors.Errorf("group sizes sum to %d but dataset has %d rows", total, filtered.Count())
	}
	log.Logger().Info("filter groups",
		zap.Int("groups", filtered.GroupCount()),
		zap.Int("dropped_groups", dataset.GroupCount()-filtered.GroupCount()),
		zap.Int("rows", filtered.Count()))
	return filtered, nil
}

// Split partitions the dataset into train and valid parts at group
// granularity. Rows of one group never straddle the split.
func (dataset *Dataset) Split(validRatio float64, seed int64) (*Dataset, *Dataset) {
	numValid := int(float64(dataset.GroupCount()) * validRatio)
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(dataset.GroupCount())
	validGroups := make(map[int]bool, numValid)
	for _, group := range perm[:numValid] {
		validGroups[group] = true
	}
	train, valid := NewDataset(dataset.Count()), NewDataset(dataset.Count())
	offset := 0
	for group, size := range dataset.GroupSizes {
		target := train
		if validGroups[group] {
			target = valid
		}
		target.Users = append(target.Users, dataset.Users[offset:offset+size]...)
		target.Items = append(target.Items, dataset.Items[offset:offset+size]...)
		target.Labels = append(target.Labels, dataset.Labels[offset:offset+size]...)
		target.Features = append(target.Features, dataset.Features[offset:offset+size]...)
		target.GroupSizes = append(target.GroupSizes, size)
		offset += size
	}
	return train, valid
}
