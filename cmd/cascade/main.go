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

package main

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/config"
	"github.com/cascade-rec/cascade/mf"
	"github.com/cascade-rec/cascade/rank"
	"github.com/cascade-rec/cascade/sample"
)

// langIndexFeature is the position of lang_idx in the feature vector. It is
// an unordered category, not an ordinal.
const langIndexFeature = 1

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Offline training pipeline for a two-stage recommender.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var mfCmd = &cobra.Command{
	Use:   "mf",
	Short: "Train latent factors from implicit feedback.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		interactions := loadInteractions(cmd)
		table := loadMetadata(cmd)
		trainSet := mf.NewDataSet(interactions, table.Ids(),
			cfg.MF.MinUserCount, cfg.MF.MinItemCount, cfg.MF.Alpha)
		als := mf.NewALS(cfg.MFParams())
		if err := als.Fit(trainSet, mf.NewFitConfig().SetJobs(cfg.Jobs)); err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		modelOut, _ := cmd.Flags().GetString("model-out")
		if err := mf.SaveModel(modelOut, als); err != nil {
			log.Logger().Fatal("failed to save model", zap.Error(err))
		}
		mappingsOut, _ := cmd.Flags().GetString("mappings-out")
		if err := mf.SaveMappings(mappingsOut, mf.NewMappings(trainSet.UserIndex, trainSet.ItemIndex)); err != nil {
			log.Logger().Fatal("failed to save mappings", zap.Error(err))
		}
		if candidatesOut, _ := cmd.Flags().GetString("candidates-out"); candidatesOut != "" {
			numCandidates, _ := cmd.Flags().GetInt("num-candidates")
			candidates := retrieveCandidates(als, trainSet, numCandidates)
			if err := sample.SaveCandidates(candidatesOut, candidates); err != nil {
				log.Logger().Fatal("failed to save candidates", zap.Error(err))
			}
		}
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Build labeled example groups from candidates and metadata.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		interactions := loadInteractions(cmd)
		table := loadMetadata(cmd)
		candidatesIn, _ := cmd.Flags().GetString("candidates")
		candidates, err := sample.LoadCandidates(candidatesIn)
		if err != nil {
			log.Logger().Fatal("failed to load candidates", zap.Error(err))
		}
		sampler := sample.NewSampler(cfg.SampleParams())
		examples, _, err := sampler.Sample(interactions, candidates, table)
		if err != nil {
			log.Logger().Fatal("failed to sample examples", zap.Error(err))
		}
		examplesOut, _ := cmd.Flags().GetString("examples-out")
		if err = sample.WriteExamples(examplesOut, examples); err != nil {
			log.Logger().Fatal("failed to write examples", zap.Error(err))
		}
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Train and evaluate the ranking model.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		examplesIn, _ := cmd.Flags().GetString("examples")
		dataset, err := rank.LoadDataset(examplesIn)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		filtered, err := dataset.FilterGroups()
		if err != nil {
			log.Logger().Fatal("failed to filter groups", zap.Error(err))
		}
		trainSet, validSet := filtered.Split(cfg.Rank.ValidRatio, cfg.Seed)
		lm := rank.NewLambdaMART(cfg.RankParams())
		fitConfig := rank.NewFitConfig().SetJobs(cfg.Jobs).SetCategorical(langIndexFeature)
		score, err := lm.Fit(trainSet, validSet, fitConfig)
		if err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		log.Logger().Info("evaluation",
			zap.Int("k", cfg.Rank.EvalK),
			zap.Float32("map", score.MAP),
			zap.Float32("ndcg", score.NDCG))
		modelOut, _ := cmd.Flags().GetString("model-out")
		if err = rank.SaveModel(modelOut, lm); err != nil {
			log.Logger().Fatal("failed to save model", zap.Error(err))
		}
	},
}

// retrieveCandidates scores every unseen item for every user and keeps the
// top n, best first.
func retrieveCandidates(als *mf.ALS, trainSet *mf.DataSet, n int) map[string][]string {
	candidates := make(map[string][]string, trainSet.UserCount())
	for userIndex := int32(0); userIndex < int32(trainSet.UserCount()); userIndex++ {
		seen := mapset.NewSet[int32](trainSet.UserFeedback[userIndex]...)
		items, _ := als.Recommend(userIndex, seen, n)
		candidates[trainSet.UserIndex.ToName(userIndex)] = items
	}
	return candidates
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return (*config.Config)(nil).LoadDefaultIfNil()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return cfg
}

func loadInteractions(cmd *cobra.Command) []mf.Interaction {
	path, _ := cmd.Flags().GetString("interactions")
	interactions, err := mf.LoadInteractionsFromCSV(path, ",", true)
	if err != nil {
		log.Logger().Fatal("failed to load interactions", zap.Error(err))
	}
	return interactions
}

func loadMetadata(cmd *cobra.Command) *sample.Table {
	path, _ := cmd.Flags().GetString("metadata")
	table, err := sample.LoadTableFromCSV(path, ",")
	if err != nil {
		log.Logger().Fatal("failed to load metadata", zap.Error(err))
	}
	return table
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path of configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCmd.PersistentFlags())

	mfCmd.Flags().String("interactions", "", "path of interaction CSV file")
	mfCmd.Flags().String("metadata", "", "path of item metadata CSV file")
	mfCmd.Flags().String("model-out", "mf.bin", "path of factor artifact")
	mfCmd.Flags().String("mappings-out", "mappings.json", "path of mapping artifact")
	mfCmd.Flags().String("candidates-out", "", "path of candidate artifact (skipped if empty)")
	mfCmd.Flags().Int("num-candidates", 100, "number of candidates per user")

	sampleCmd.Flags().String("interactions", "", "path of interaction CSV file")
	sampleCmd.Flags().String("metadata", "", "path of item metadata CSV file")
	sampleCmd.Flags().String("candidates", "", "path of candidate artifact")
	sampleCmd.Flags().String("examples-out", "examples.csv", "path of labeled example artifact")

	rankCmd.Flags().String("examples", "", "path of labeled example artifact")
	rankCmd.Flags().String("model-out", "rank.bin", "path of ranking model artifact")

	rootCmd.AddCommand(mfCmd, sampleCmd, rankCmd)
}
