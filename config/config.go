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

package config

import (
	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/model"
)

// Config is the configuration of the training pipeline.
type Config struct {
	Seed   int64        `toml:"seed"`
	Jobs   int          `toml:"jobs"`
	MF     MFConfig     `toml:"mf"`
	Sample SampleConfig `toml:"sample"`
	Rank   RankConfig   `toml:"rank"`
}

// MFConfig is the configuration of the factorization stage.
type MFConfig struct {
	Alpha        float32 `toml:"alpha"`
	NFactors     int     `toml:"n_factors"`
	NEpochs      int     `toml:"n_epochs"`
	Reg          float32 `toml:"reg"`
	MinUserCount int     `toml:"min_user_count"`
	MinItemCount int     `toml:"min_item_count"`
}

// SampleConfig is the configuration of the example sampling stage.
type SampleConfig struct {
	PosThreshold float32 `toml:"pos_threshold"`
	NumHardNeg   int     `toml:"num_hard_neg"`
	NumEasyNeg   int     `toml:"num_easy_neg"`
}

// RankConfig is the configuration of the ranking stage.
type RankConfig struct {
	NTrees      int     `toml:"n_trees"`
	Lr          float32 `toml:"lr"`
	MaxDepth    int     `toml:"max_depth"`
	MinLeafSize int     `toml:"min_leaf_size"`
	Patience    int     `toml:"patience"`
	EvalK       int     `toml:"eval_k"`
	ValidRatio  float64 `toml:"valid_ratio"`
}

// LoadDefaultIfNil loads default settings if config is nil.
func (config *Config) LoadDefaultIfNil() *Config {
	if config == nil {
		return &Config{
			Seed: 42,
			Jobs: 1,
			MF: MFConfig{
				Alpha:        40,
				NFactors:     128,
				NEpochs:      20,
				Reg:          0.01,
				MinUserCount: 5,
				MinItemCount: 5,
			},
			Sample: SampleConfig{
				PosThreshold: 4,
				NumHardNeg:   20,
				NumEasyNeg:   10,
			},
			Rank: RankConfig{
				NTrees:      500,
				Lr:          0.05,
				MaxDepth:    6,
				MinLeafSize: 1,
				Patience:    50,
				EvalK:       10,
				ValidRatio:  0.2,
			},
		}
	}
	return config
}

// LoadConfig loads configuration from a toml file. Missing keys keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	config := (*Config)(nil).LoadDefaultIfNil()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load config", zap.String("path", path))
	return config, nil
}

// MFParams converts the factorization section to model hyper-parameters.
func (config *Config) MFParams() model.Params {
	return model.Params{
		model.Alpha:        config.MF.Alpha,
		model.NFactors:     config.MF.NFactors,
		model.NEpochs:      config.MF.NEpochs,
		model.Reg:          config.MF.Reg,
		model.MinUserCount: config.MF.MinUserCount,
		model.MinItemCount: config.MF.MinItemCount,
		model.RandomState:  config.Seed,
	}
}

// SampleParams converts the sampling section to model hyper-parameters.
func (config *Config) SampleParams() model.Params {
	return model.Params{
		model.PosThreshold: config.Sample.PosThreshold,
		model.NumHardNeg:   config.Sample.NumHardNeg,
		model.NumEasyNeg:   config.Sample.NumEasyNeg,
		model.RandomState:  config.Seed,
	}
}

// RankParams converts the ranking section to model hyper-parameters.
func (config *Config) RankParams() model.Params {
	return model.Params{
		model.NTrees:      config.Rank.NTrees,
		model.Lr:          config.Rank.Lr,
		model.MaxDepth:    config.Rank.MaxDepth,
		model.MinLeafSize: config.Rank.MinLeafSize,
		model.Patience:    config.Rank.Patience,
		model.EvalK:       config.Rank.EvalK,
		model.RandomState: config.Seed,
	}
}
