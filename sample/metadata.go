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
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/log"
)

// ItemMetadata is the per-item feature record.
type ItemMetadata struct {
	RuntimeZ   float32
	LangIndex  float32
	Popularity float32
	VoteAvg    float32
	VoteCount  float32
}

// Table holds item metadata keyed by item id. Iteration order over Ids is the
// file order, which freezes the canonical item index space.
type Table struct {
	ids     []string
	records map[string]ItemMetadata
}

// NewTable creates an empty metadata table.
func NewTable() *Table {
	return &Table{records: make(map[string]ItemMetadata)}
}

// Add inserts a record. The first record wins for a duplicate id.
func (table *Table) Add(itemId string, record ItemMetadata) {
	if _, exist := table.records[itemId]; exist {
		return
	}
	table.ids = append(table.ids, itemId)
	table.records[itemId] = record
}

// Ids returns all item ids in insertion order.
func (table *Table) Ids() []string {
	return table.ids
}

// Len returns the number of records.
func (table *Table) Len() int {
	return len(table.ids)
}

// Lookup returns the record for an item id and whether it exists. Absence is
// an expected branch, not an error.
func (table *Table) Lookup(itemId string) (ItemMetadata, bool) {
	record, exist := table.records[itemId]
	return record, exist
}

var metadataColumns = []string{"id", "runtime_z", "lang_idx", "popularity", "vote_average", "vote_count"}

// LoadTableFromCSV loads item metadata from a CSV file with a header line:
//
//	id,runtime_z,lang_idx,popularity,vote_average,vote_count
//
// Extra columns are ignored, missing required columns are a structural error.
func LoadTableFromCSV(fileName, sep string) (*Table, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, errors.Errorf("empty metadata file %s", fileName)
	}
	header := strings.Split(scanner.Text(), sep)
	position := make(map[string]int, len(header))
	for i, name := range header {
		position[strings.TrimSpace(name)] = i
	}
	for _, name := range metadataColumns {
		if _, exist := position[name]; !exist {
			return nil, errors.Errorf("missing column %q in %s", name, fileName)
		}
	}
	table := NewTable()
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), sep)
		if len(fields) < len(header) {
			continue
		}
		values := make([]float32, len(metadataColumns)-1)
		for i, name := range metadataColumns[1:] {
			value, err := strconv.ParseFloat(fields[position[name]], 32)
			if err != nil {
				return nil, errors.Annotatef(err, "parse %s for item %s", name, fields[position["id"]])
			}
			values[i] = float32(value)
		}
		table.Add(fields[position["id"]], ItemMetadata{
			RuntimeZ:   values[0],
			LangIndex:  values[1],
			Popularity: values[2],
			VoteAvg:    values[3],
			VoteCount:  values[4],
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load item metadata",
		zap.String("file", fileName),
		zap.Int("items", table.Len()))
	return table, nil
}
