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
	"io"
	"math"
	"sort"
	"time"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/encoding"
	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/model"
)

const hessianEps = 1e-10

// FitConfig holds runtime options for fitting.
type FitConfig struct {
	Jobs        int
	Verbose     int
	Categorical []int // feature indices treated as unordered categories
}

// NewFitConfig creates the default fit config.
func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

// SetJobs sets the number of executors.
func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// SetCategorical marks feature indices as categorical.
func (config *FitConfig) SetCategorical(indices ...int) *FitConfig {
	config.Categorical = indices
	return config
}

// LoadDefaultIfNil loads default settings if config is nil.
func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// TreeNode is one node of a regression tree in flat array form. A node with
// Left < 0 is a leaf holding Value. An inner node with Categories routes rows
// whose feature value is in Categories to the left child, otherwise rows with
// feature value <= Threshold go left.
type TreeNode struct {
	Feature    int32
	Threshold  float32
	Categories []float32
	Left       int32
	Right      int32
	Value      float32
}

// Tree is a regression tree over feature vectors.
type Tree struct {
	Nodes []TreeNode
}

// Predict routes a feature vector to its leaf value.
func (tree *Tree) Predict(features []float32) float32 {
	index := int32(0)
	for {
		node := &tree.Nodes[index]
		if node.Left < 0 {
			return node.Value
		}
		value := features[node.Feature]
		left := false
		if node.Categories != nil {
			for _, category := range node.Categories {
				if value == category {
					left = true
					break
				}
			}
		} else {
			left = value <= node.Threshold
		}
		if left {
			index = node.Left
		} else {
			index = node.Right
		}
	}
}

// LambdaMART trains a gradient-boosted ranking ensemble with a listwise
// objective: pairwise lambda gradients weighted by the NDCG change of swapping
// the pair, regression trees fitted by Newton steps on those lambdas.
//
// Hyper-parameters:
//
//	NTrees      - The number of boosting rounds. Default is 500.
//	Lr          - The learning rate. Default is 0.05.
//	MaxDepth    - The maximum tree depth. Default is 6.
//	MinLeafSize - The minimum number of rows per leaf. Default is 1.
//	Patience    - Early stopping rounds without improvement. Default is 50.
//	EvalK       - The cutoff for validation metrics. Default is 10.
type LambdaMART struct {
	model.BaseModel
	Trees []Tree
	// Hyper parameters
	nTrees      int
	lr          float32
	maxDepth    int
	minLeafSize int
	patience    int
	evalK       int
}

// NewLambdaMART creates a LambdaMART model.
func NewLambdaMART(params model.Params) *LambdaMART {
	lm := new(LambdaMART)
	lm.SetParams(params)
	return lm
}

// SetParams sets hyper-parameters for the LambdaMART model.
func (lm *LambdaMART) SetParams(params model.Params) {
	lm.BaseModel.SetParams(params)
	lm.nTrees = lm.Params.GetInt(model.NTrees, 500)
	lm.lr = lm.Params.GetFloat32(model.Lr, 0.05)
	lm.maxDepth = lm.Params.GetInt(model.MaxDepth, 6)
	lm.minLeafSize = lm.Params.GetInt(model.MinLeafSize, 1)
	lm.patience = lm.Params.GetInt(model.Patience, 50)
	lm.evalK = lm.Params.GetInt(model.EvalK, 10)
}

// Clear model weights.
func (lm *LambdaMART) Clear() {
	lm.Trees = nil
}

// Invalid returns true if the model has no trees.
func (lm *LambdaMART) Invalid() bool {
	return lm == nil || lm.Trees == nil
}

// Predict scores a feature vector. Higher means ranked earlier.
func (lm *LambdaMART) Predict(features []float32) float32 {
	var score float32
	for i := range lm.Trees {
		score += lm.lr * lm.Trees[i].Predict(features)
	}
	return score
}

// PredictDataset scores every row of a dataset.
func (lm *LambdaMART) PredictDataset(dataset *Dataset) []float32 {
	predictions := make([]float32, dataset.Count())
	for i, features := range dataset.Features {
		predictions[i] = lm.Predict(features)
	}
	return predictions
}

// Fit trains the ensemble on trainSet and early-stops on validSet. Training
// runs for the full boosting budget unless Patience rounds pass without the
// validation NDCG improving, in which case the ensemble is truncated to its
// best round. Both outcomes are success states.
func (lm *LambdaMART) Fit(trainSet, validSet *Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if validSet == nil {
		validSet = NewDataset(0)
	}
	log.Logger().Info("fit lambdamart",
		zap.Int("train_rows", trainSet.Count()),
		zap.Int("train_groups", trainSet.GroupCount()),
		zap.Int("valid_rows", validSet.Count()),
		zap.Int("valid_groups", validSet.GroupCount()),
		zap.Any("params", lm.GetParams()),
		zap.Any("config", config))
	categorical := make(map[int]bool, len(config.Categorical))
	for _, index := range config.Categorical {
		categorical[index] = true
	}
	groupOffsets := make([]int, trainSet.GroupCount())
	offset := 0
	for group, size := range trainSet.GroupSizes {
		groupOffsets[group] = offset
		offset += size
	}
	lm.Trees = make([]Tree, 0, lm.nTrees)
	trainScores := make([]float32, trainSet.Count())
	validScores := make([]float32, validSet.Count())
	gradients := make([]float64, trainSet.Count())
	hessians := make([]float64, trainSet.Count())
	var bestScore Score
	bestRound := 0
	for round := 1; round <= lm.nTrees; round++ {
		fitStart := time.Now()
		for i := range gradients {
			gradients[i] = 0
			hessians[i] = 0
		}
		err := base.Parallel(trainSet.GroupCount(), config.Jobs, func(_, group int) error {
			begin := groupOffsets[group]
			end := begin + trainSet.GroupSizes[group]
			groupLambdas(trainSet.Labels[begin:end], trainScores[begin:end],
				gradients[begin:end], hessians[begin:end])
			return nil
		})
		if err != nil {
			return Score{}, errors.Trace(err)
		}
		builder := &treeBuilder{
			features:    trainSet.Features,
			gradients:   gradients,
			hessians:    hessians,
			maxDepth:    lm.maxDepth,
			minLeafSize: lm.minLeafSize,
			categorical: categorical,
		}
		tree := builder.buildTree()
		lm.Trees = append(lm.Trees, tree)
		for i, features := range trainSet.Features {
			trainScores[i] += lm.lr * tree.Predict(features)
		}
		if validSet.Count() == 0 {
			bestRound = round
			continue
		}
		for i, features := range validSet.Features {
			validScores[i] += lm.lr * tree.Predict(features)
		}
		score := Evaluate(validSet, validScores, lm.evalK)
		if round == 1 || score.NDCG > bestScore.NDCG {
			bestScore = score
			bestRound = round
		}
		if config.Verbose > 0 && round%config.Verbose == 0 {
			log.Logger().Debug("boosting round",
				zap.Int("round", round),
				zap.Float32("ndcg", score.NDCG),
				zap.Float32("map", score.MAP),
				zap.Duration("time", time.Since(fitStart)))
		}
		if round-bestRound >= lm.patience {
			log.Logger().Info("early stop",
				zap.Int("round", round),
				zap.Int("best_round", bestRound),
				zap.Float32("best_ndcg", bestScore.NDCG))
			break
		}
	}
	lm.Trees = lm.Trees[:bestRound]
	if validSet.Count() == 0 {
		bestScore = Evaluate(trainSet, trainScores, lm.evalK)
	}
	log.Logger().Info("fit lambdamart complete",
		zap.Int("trees", len(lm.Trees)),
		zap.Float32("ndcg", bestScore.NDCG),
		zap.Float32("map", bestScore.MAP))
	return bestScore, nil
}

// groupLambdas accumulates pairwise lambda gradients and hessians for one
// group. For every (higher label, lower label) pair, the lambda magnitude is
// the sigmoid of the score margin times the NDCG change of swapping the pair
// in the current predicted ranking.
func groupLambdas(labels, scores []float32, gradients, hessians []float64) {
	order := rankOrder(scores)
	rankOf := make([]int, len(order))
	for rank, row := range order {
		rankOf[row] = rank
	}
	var maxDCG float32
	positives := 0
	for _, label := range labels {
		if label > 0 {
			positives++
		}
	}
	for rank := 0; rank < positives; rank++ {
		maxDCG += 1 / math32.Log2(float32(rank)+2)
	}
	if maxDCG == 0 {
		return
	}
	for i := range labels {
		for j := range labels {
			if labels[i] <= labels[j] {
				continue
			}
			// i is the preferred row
			margin := float64(scores[i] - scores[j])
			rho := 1.0 / (1.0 + math.Exp(margin))
			discountI := 1 / math32.Log2(float32(rankOf[i])+2)
			discountJ := 1 / math32.Log2(float32(rankOf[j])+2)
			deltaNDCG := float64(math32.Abs(discountI-discountJ) / maxDCG)
			gradients[i] += rho * deltaNDCG
			gradients[j] -= rho * deltaNDCG
			curvature := rho * (1 - rho) * deltaNDCG
			hessians[i] += curvature
			hessians[j] += curvature
		}
	}
}

type treeBuilder struct {
	features    [][]float32
	gradients   []float64
	hessians    []float64
	maxDepth    int
	minLeafSize int
	categorical map[int]bool
	nodes       []TreeNode
}

type split struct {
	feature    int
	threshold  float32
	categories []float32
	gain       float64
	left       []int
	right      []int
}

func (builder *treeBuilder) buildTree() Tree {
	builder.buildNode(base.RangeInt(len(builder.features)), 0)
	return Tree{Nodes: builder.nodes}
}

func (builder *treeBuilder) buildNode(rows []int, depth int) int32 {
	index := int32(len(builder.nodes))
	builder.nodes = append(builder.nodes, TreeNode{Left: -1, Right: -1})
	if depth >= builder.maxDepth || len(rows) < 2*builder.minLeafSize {
		builder.nodes[index].Value = builder.leafValue(rows)
		return index
	}
	best := builder.bestSplit(rows)
	if best == nil {
		builder.nodes[index].Value = builder.leafValue(rows)
		return index
	}
	builder.nodes[index].Feature = int32(best.feature)
	builder.nodes[index].Threshold = best.threshold
	builder.nodes[index].Categories = best.categories
	left := builder.buildNode(best.left, depth+1)
	right := builder.buildNode(best.right, depth+1)
	builder.nodes[index].Left = left
	builder.nodes[index].Right = right
	return index
}

// leafValue is the Newton step for the rows in a leaf.
func (builder *treeBuilder) leafValue(rows []int) float32 {
	var gradient, hessian float64
	for _, row := range rows {
		gradient += builder.gradients[row]
		hessian += builder.hessians[row]
	}
	return float32(gradient / (hessian + hessianEps))
}

func (builder *treeBuilder) bestSplit(rows []int) *split {
	var gradient, hessian float64
	for _, row := range rows {
		gradient += builder.gradients[row]
		hessian += builder.hessians[row]
	}
	parentGain := gradient * gradient / (hessian + hessianEps)
	var best *split
	for feature := range builder.features[rows[0]] {
		var candidate *split
		if builder.categorical[feature] {
			candidate = builder.bestCategoricalSplit(rows, feature, parentGain)
		} else {
			candidate = builder.bestNumericSplit(rows, feature, parentGain)
		}
		if candidate != nil && (best == nil || candidate.gain > best.gain) {
			best = candidate
		}
	}
	return best
}

// bestNumericSplit scans ordered thresholds between distinct feature values.
func (builder *treeBuilder) bestNumericSplit(rows []int, feature int, parentGain float64) *split {
	sorted := make([]int, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return builder.features[sorted[i]][feature] < builder.features[sorted[j]][feature]
	})
	var gradient, hessian float64
	for _, row := range sorted {
		gradient += builder.gradients[row]
		hessian += builder.hessians[row]
	}
	var best *split
	var leftGradient, leftHessian float64
	for i := 0; i < len(sorted)-1; i++ {
		leftGradient += builder.gradients[sorted[i]]
		leftHessian += builder.hessians[sorted[i]]
		value := builder.features[sorted[i]][feature]
		next := builder.features[sorted[i+1]][feature]
		if value == next {
			continue
		}
		if i+1 < builder.minLeafSize || len(sorted)-i-1 < builder.minLeafSize {
			continue
		}
		rightGradient := gradient - leftGradient
		rightHessian := hessian - leftHessian
		gain := leftGradient*leftGradient/(leftHessian+hessianEps) +
			rightGradient*rightGradient/(rightHessian+hessianEps) - parentGain
		if gain <= 0 || (best != nil && gain <= best.gain) {
			continue
		}
		best = &split{
			feature:   feature,
			threshold: (value + next) / 2,
			gain:      gain,
			left:      append([]int(nil), sorted[:i+1]...),
			right:     append([]int(nil), sorted[i+1:]...),
		}
	}
	return best
}

// bestCategoricalSplit orders categories by their gradient-to-hessian ratio
// and scans prefix subsets, the standard one-dimensional reduction for
// unordered categories.
func (builder *treeBuilder) bestCategoricalSplit(rows []int, feature int, parentGain float64) *split {
	type categoryStat struct {
		value    float32
		gradient float64
		hessian  float64
		rows     []int
	}
	index := make(map[float32]int)
	stats := make([]categoryStat, 0)
	for _, row := range rows {
		value := builder.features[row][feature]
		position, exist := index[value]
		if !exist {
			position = len(stats)
			index[value] = position
			stats = append(stats, categoryStat{value: value})
		}
		stats[position].gradient += builder.gradients[row]
		stats[position].hessian += builder.hessians[row]
		stats[position].rows = append(stats[position].rows, row)
	}
	if len(stats) < 2 {
		return nil
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].gradient/(stats[i].hessian+hessianEps) <
			stats[j].gradient/(stats[j].hessian+hessianEps)
	})
	var gradient, hessian float64
	for _, stat := range stats {
		gradient += stat.gradient
		hessian += stat.hessian
	}
	var best *split
	var leftGradient, leftHessian float64
	leftRows := 0
	for i := 0; i < len(stats)-1; i++ {
		leftGradient += stats[i].gradient
		leftHessian += stats[i].hessian
		leftRows += len(stats[i].rows)
		if leftRows < builder.minLeafSize || len(rows)-leftRows < builder.minLeafSize {
			continue
		}
		rightGradient := gradient - leftGradient
		rightHessian := hessian - leftHessian
		gain := leftGradient*leftGradient/(leftHessian+hessianEps) +
			rightGradient*rightGradient/(rightHessian+hessianEps) - parentGain
		if gain <= 0 || (best != nil && gain <= best.gain) {
			continue
		}
		candidate := &split{feature: feature, gain: gain}
		for j := 0; j <= i; j++ {
			candidate.categories = append(candidate.categories, stats[j].value)
			candidate.left = append(candidate.left, stats[j].rows...)
		}
		for j := i + 1; j < len(stats); j++ {
			candidate.right = append(candidate.right, stats[j].rows...)
		}
		best = candidate
	}
	return best
}

// Marshal model into byte stream.
func (lm *LambdaMART) Marshal(w io.Writer) error {
	if err := model.WriteParams(w, lm.Params); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteGob(w, lm.Trees))
}

// Unmarshal model from byte stream.
func (lm *LambdaMART) Unmarshal(r io.Reader) error {
	params, err := model.ReadParams(r)
	if err != nil {
		return errors.Trace(err)
	}
	lm.SetParams(params)
	return errors.Trace(encoding.ReadGob(r, &lm.Trees))
}
