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
	"encoding/json"
	"os"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/log"
)

// SaveModel saves the factor artifact to a file.
func SaveModel(fileName string, m *ALS) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if err = m.Marshal(file); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save factor model", zap.String("file", fileName))
	return nil
}

// LoadModel loads the factor artifact from a file.
func LoadModel(fileName string) (*ALS, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	m := new(ALS)
	if err = m.Unmarshal(file); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// Mappings is the dense index mapping artifact: user id to factor row, item
// id to factor column, and their inverses.
type Mappings struct {
	UserToRow map[string]int32 `json:"user2row"`
	ItemToCol map[string]int32 `json:"item2col"`
	RowToUser map[int32]string `json:"row2user"`
	ColToItem map[int32]string `json:"col2item"`
}

// NewMappings extracts mappings from user and item indices.
func NewMappings(userIndex, itemIndex *base.Index) *Mappings {
	mappings := &Mappings{
		UserToRow: make(map[string]int32, userIndex.Len()),
		ItemToCol: make(map[string]int32, itemIndex.Len()),
		RowToUser: make(map[int32]string, userIndex.Len()),
		ColToItem: make(map[int32]string, itemIndex.Len()),
	}
	for row, userId := range userIndex.GetNames() {
		mappings.UserToRow[userId] = int32(row)
		mappings.RowToUser[int32(row)] = userId
	}
	for col, itemId := range itemIndex.GetNames() {
		mappings.ItemToCol[itemId] = int32(col)
		mappings.ColToItem[int32(col)] = itemId
	}
	return mappings
}

// SaveMappings saves the mapping artifact as JSON.
func SaveMappings(fileName string, mappings *Mappings) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	return errors.Trace(encoder.Encode(mappings))
}

// LoadMappings loads the mapping artifact from JSON.
func LoadMappings(fileName string) (*Mappings, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	mappings := new(Mappings)
	decoder := json.NewDecoder(file)
	if err = decoder.Decode(mappings); err != nil {
		return nil, errors.Trace(err)
	}
	return mappings, nil
}
