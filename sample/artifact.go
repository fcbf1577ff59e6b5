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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/log"
)

var exampleColumns = []string{"user_id", "item_id", "label", "runtime_z", "lang_idx", "popularity", "vote_avg", "vote_cnt"}

// WriteExamples writes labeled examples to a CSV file, preserving row order.
func WriteExamples(fileName string, examples []Example) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	defer writer.Flush()
	if _, err = fmt.Fprintln(writer, strings.Join(exampleColumns, ",")); err != nil {
		return errors.Trace(err)
	}
	for _, example := range examples {
		_, err = fmt.Fprintf(writer, "%s,%s,%d,%g,%g,%g,%g,%g\n",
			example.UserId, example.ItemId, example.Label,
			example.RuntimeZ, example.LangIndex, example.Popularity,
			example.VoteAvg, example.VoteCount)
		if err != nil {
			return errors.Trace(err)
		}
	}
	log.Logger().Info("write examples",
		zap.String("file", fileName),
		zap.Int("examples", len(examples)))
	return nil
}

// ReadExamples reads labeled examples written by WriteExamples. A missing
// required column is a structural error.
func ReadExamples(fileName string) ([]Example, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, errors.Errorf("empty example file %s", fileName)
	}
	header := strings.Split(scanner.Text(), ",")
	position := make(map[string]int, len(header))
	for i, name := range header {
		position[strings.TrimSpace(name)] = i
	}
	for _, name := range exampleColumns {
		if _, exist := position[name]; !exist {
			return nil, errors.Errorf("missing column %q in %s", name, fileName)
		}
	}
	examples := make([]Example, 0)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) < len(header) {
			continue
		}
		label, err := strconv.Atoi(fields[position["label"]])
		if err != nil {
			return nil, errors.Annotatef(err, "parse label in line %q", scanner.Text())
		}
		values := make([]float32, 5)
		for i, name := range exampleColumns[3:] {
			value, err := strconv.ParseFloat(fields[position[name]], 32)
			if err != nil {
				return nil, errors.Annotatef(err, "parse %s in line %q", name, scanner.Text())
			}
			values[i] = float32(value)
		}
		examples = append(examples, Example{
			UserId:     fields[position["user_id"]],
			ItemId:     fields[position["item_id"]],
			Label:      int8(label),
			RuntimeZ:   values[0],
			LangIndex:  values[1],
			Popularity: values[2],
			VoteAvg:    values[3],
			VoteCount:  values[4],
		})
	}
	return examples, errors.Trace(scanner.Err())
}

// LoadCandidates loads per-user ordered candidate lists. Each line is a user
// id and a best-first space-separated item id list, separated by a tab:
//
//	<userId>\t<itemId 1> <itemId 2> ...
func LoadCandidates(fileName string) (map[string][]string, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	candidates := make(map[string][]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) < 2 {
			return nil, errors.Errorf("malformed candidate line %q", line)
		}
		candidates[fields[0]] = strings.Fields(fields[1])
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load candidates",
		zap.String("file", fileName),
		zap.Int("users", len(candidates)))
	return candidates, nil
}

// SaveCandidates writes per-user candidate lists in the format LoadCandidates
// reads. Users are written in ascending id order.
func SaveCandidates(fileName string, candidates map[string][]string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	defer writer.Flush()
	userIds := make([]string, 0, len(candidates))
	for userId := range candidates {
		userIds = append(userIds, userId)
	}
	sortIds(userIds)
	for _, userId := range userIds {
		if _, err = fmt.Fprintf(writer, "%s\t%s\n", userId, strings.Join(candidates[userId], " ")); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
