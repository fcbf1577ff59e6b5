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

package model

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"strconv"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/encoding"
	"github.com/cascade-rec/cascade/base/log"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Alpha        ParamName = "Alpha"        // confidence weight multiplier
	NFactors     ParamName = "NFactors"     // number of latent factors
	NEpochs      ParamName = "NEpochs"      // number of epochs
	Reg          ParamName = "Reg"          // regularization strength
	InitMean     ParamName = "InitMean"     // mean of gaussian initial parameters
	InitStdDev   ParamName = "InitStdDev"   // standard deviation of gaussian initial parameters
	RandomState  ParamName = "RandomState"  // random state (seed)
	MinUserCount ParamName = "MinUserCount" // drop users with fewer interactions
	MinItemCount ParamName = "MinItemCount" // drop items with fewer interactions
	PosThreshold ParamName = "PosThreshold" // rating threshold for positive labels
	NumHardNeg   ParamName = "NumHardNeg"   // number of hard negatives per user
	NumEasyNeg   ParamName = "NumEasyNeg"   // number of easy negatives per user
	NTrees       ParamName = "NTrees"       // number of boosting rounds
	Lr           ParamName = "Lr"           // learning rate
	MaxDepth     ParamName = "MaxDepth"     // maximum tree depth
	MinLeafSize  ParamName = "MinLeafSize"  // minimum rows per leaf
	Patience     ParamName = "Patience"     // early stopping rounds
	EvalK        ParamName = "EvalK"        // cutoff for ranking metrics
)

// Params stores hyper-parameters for a model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for ALS
// are given by:
//
//	model.Params{
//		model.NFactors: 128,
//		model.NEpochs:  20,
//		model.Reg:      0.01,
//		model.Alpha:    40.0,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets an integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetInt64 gets an int64 parameter by name. Returns _default if not exists or type doesn't
// match. The type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat32 gets a float32 parameter by name. Returns _default if not exists or type
// doesn't match. The type will be converted if given float64 or int.
func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float32"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "bool"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// Overwrite merges params into the current params, the later overwriting the former.
func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// WriteParams writes hyper-parameters to a byte stream as JSON.
func WriteParams(w io.Writer, params Params) error {
	data, err := json.Marshal(params)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteBytes(w, data))
}

// ReadParams reads hyper-parameters written by WriteParams. Integral numbers
// decode as int, fractional numbers as float64.
func ReadParams(r io.Reader) (Params, error) {
	data, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	raw := make(map[string]interface{})
	if err = decoder.Decode(&raw); err != nil {
		return nil, errors.Trace(err)
	}
	params := make(Params, len(raw))
	for name, value := range raw {
		if number, ok := value.(json.Number); ok {
			if integer, err := strconv.Atoi(number.String()); err == nil {
				params[ParamName(name)] = integer
			} else if float, err := number.Float64(); err == nil {
				params[ParamName(name)] = float
			} else {
				return nil, errors.Errorf("unrecognized number %v for %v", number, name)
			}
		} else {
			params[ParamName(name)] = value
		}
	}
	return params, nil
}
