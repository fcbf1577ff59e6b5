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
	"os"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/log"
)

// SaveModel saves the ranking model artifact to a file.
func SaveModel(fileName string, lm *LambdaMART) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if err = lm.Marshal(file); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save ranking model",
		zap.String("file", fileName),
		zap.Int("trees", len(lm.Trees)))
	return nil
}

// LoadModel loads the ranking model artifact from a file.
func LoadModel(fileName string) (*LambdaMART, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	lm := new(LambdaMART)
	if err = lm.Unmarshal(file); err != nil {
		return nil, errors.Trace(err)
	}
	return lm, nil
}
