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
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/log"
)

// Interaction is a raw implicit feedback fact.
type Interaction struct {
	UserId    string
	ItemId    string
	Rating    float32
	Timestamp int64
}

// DataSet is a sparse confidence-weighted interaction matrix. Cells hold
// confidence weights 1+alpha*rating. Absent cells mean "no evidence", not
// negative evidence.
type DataSet struct {
	UserIndex    *base.Index
	ItemIndex    *base.Index
	UserFeedback [][]int32   // items per user row
	UserWeight   [][]float32 // confidence weights aligned with UserFeedback
	ItemFeedback [][]int32   // users per item column
	ItemWeight   [][]float32 // confidence weights aligned with ItemFeedback
	count        int
}

// NewDataSet builds the confidence matrix from raw interactions.
//
// The item index space is frozen by itemOrder (canonical metadata order)
// before any matrix construction. Users and items are pruned by raw
// interaction counts, computed independently and only once, before dense
// indices exist. Surviving users are indexed in first-appearance order.
// Each surviving interaction contributes weight 1+alpha*rating at its cell;
// duplicate (user,item) coordinates accumulate additively.
func NewDataSet(interactions []Interaction, itemOrder []string, minUserCount, minItemCount int, alpha float32) *DataSet {
	// Count raw interactions per user and per item.
	userCount := make(map[string]int)
	itemCount := make(map[string]int)
	for _, interaction := range interactions {
		userCount[interaction.UserId]++
		itemCount[interaction.ItemId]++
	}
	// Freeze the item index space by metadata order.
	dataset := new(DataSet)
	dataset.ItemIndex = base.NewMapIndex()
	for _, itemId := range itemOrder {
		dataset.ItemIndex.Add(itemId)
	}
	// Drop pruned interactions, index users by first appearance.
	dataset.UserIndex = base.NewMapIndex()
	kept := make([]Interaction, 0, len(interactions))
	for _, interaction := range interactions {
		if minUserCount > 0 && userCount[interaction.UserId] < minUserCount {
			continue
		}
		if minItemCount > 0 && itemCount[interaction.ItemId] < minItemCount {
			continue
		}
		if dataset.ItemIndex.ToNumber(interaction.ItemId) == base.NotId {
			continue
		}
		dataset.UserIndex.Add(interaction.UserId)
		kept = append(kept, interaction)
	}
	dataset.UserFeedback = make([][]int32, dataset.UserIndex.Len())
	dataset.UserWeight = make([][]float32, dataset.UserIndex.Len())
	dataset.ItemFeedback = make([][]int32, dataset.ItemIndex.Len())
	dataset.ItemWeight = make([][]float32, dataset.ItemIndex.Len())
	for _, interaction := range kept {
		userIndex := dataset.UserIndex.ToNumber(interaction.UserId)
		itemIndex := dataset.ItemIndex.ToNumber(interaction.ItemId)
		dataset.addWeight(userIndex, itemIndex, 1+alpha*interaction.Rating)
	}
	log.Logger().Info("build confidence matrix",
		zap.Int("raw_interactions", len(interactions)),
		zap.Int("kept_interactions", len(kept)),
		zap.Int("users", dataset.UserCount()),
		zap.Int("items", dataset.ItemCount()),
		zap.Float32("alpha", alpha))
	return dataset
}

// addWeight accumulates weight at cell (userIndex, itemIndex). Duplicate
// coordinates sum, matching COO to CSR conversion.
func (dataset *DataSet) addWeight(userIndex, itemIndex int32, weight float32) {
	for i, existing := range dataset.UserFeedback[userIndex] {
		if existing == itemIndex {
			dataset.UserWeight[userIndex][i] += weight
			for j, user := range dataset.ItemFeedback[itemIndex] {
				if user == userIndex {
					dataset.ItemWeight[itemIndex][j] += weight
					break
				}
			}
			return
		}
	}
	dataset.UserFeedback[userIndex] = append(dataset.UserFeedback[userIndex], itemIndex)
	dataset.UserWeight[userIndex] = append(dataset.UserWeight[userIndex], weight)
	dataset.ItemFeedback[itemIndex] = append(dataset.ItemFeedback[itemIndex], userIndex)
	dataset.ItemWeight[itemIndex] = append(dataset.ItemWeight[itemIndex], weight)
	dataset.count++
}

// Count returns the number of non-zero cells.
func (dataset *DataSet) Count() int {
	return dataset.count
}

// UserCount returns the number of user rows.
func (dataset *DataSet) UserCount() int {
	return int(dataset.UserIndex.Len())
}

// ItemCount returns the number of item columns.
func (dataset *DataSet) ItemCount() int {
	return int(dataset.ItemIndex.Len())
}

// Weight returns the confidence weight of cell (userIndex, itemIndex) and
// whether the cell is present.
func (dataset *DataSet) Weight(userIndex, itemIndex int32) (float32, bool) {
	for i, existing := range dataset.UserFeedback[userIndex] {
		if existing == itemIndex {
			return dataset.UserWeight[userIndex][i], true
		}
	}
	return 0, false
}

// LoadInteractionsFromCSV loads interactions from a CSV file. The CSV file
// should be:
//
//	[optional header]
//	<userId 1>,<itemId 1>,<rating 1>,<timestamp 1>
//	<userId 2>,<itemId 2>,<rating 2>,<timestamp 2>
//	...
//
// The timestamp column is optional.
func LoadInteractionsFromCSV(fileName, sep string, hasHeader bool) ([]Interaction, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	interactions := make([]Interaction, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		fields := strings.Split(line, sep)
		// Ignore empty line
		if len(fields) < 3 {
			continue
		}
		rating, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return nil, errors.Annotatef(err, "parse rating in line %q", line)
		}
		var timestamp int64
		if len(fields) > 3 {
			timestamp, err = strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, errors.Annotatef(err, "parse timestamp in line %q", line)
			}
		}
		interactions = append(interactions, Interaction{
			UserId:    fields[0],
			ItemId:    fields[1],
			Rating:    float32(rating),
			Timestamp: timestamp,
		})
	}
	return interactions, errors.Trace(scanner.Err())
}
