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
	"encoding/binary"
	"io"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/cascade-rec/cascade/base"
	"github.com/cascade-rec/cascade/base/log"
	"github.com/cascade-rec/cascade/model"
)

// FitConfig holds runtime options for fitting.
type FitConfig struct {
	Jobs    int
	Verbose int
}

// NewFitConfig creates the default fit config.
func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 5,
	}
}

// SetJobs sets the number of executors.
func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// LoadDefaultIfNil loads default settings if config is nil.
func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// ALS is the weighted regularized matrix factorization for implicit feedback
// (Hu et al. 2008). Observed cells carry confidence weights 1+alpha*rating and
// preference 1, unobserved cells carry confidence 1 and preference 0. User and
// item factors are recomputed alternately by closed-form regularized
// least-squares solves for a fixed number of epochs.
//
// Hyper-parameters:
//
//	NFactors    - The number of latent factors. Default is 128.
//	NEpochs     - The number of training epochs. Default is 20.
//	Reg         - The strength of regularization. Default is 0.01.
//	InitMean    - The mean of initial latent factors. Default is 0.
//	InitStdDev  - The standard deviation of initial latent factors. Default is 0.1.
type ALS struct {
	model.BaseModel
	// Model parameters
	UserIndex  *base.Index
	ItemIndex  *base.Index
	UserFactor *mat.Dense // p_u
	ItemFactor *mat.Dense // q_i
	// Hyper parameters
	nFactors   int
	nEpochs    int
	reg        float64
	initMean   float64
	initStdDev float64
}

// NewALS creates an ALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseModel.SetParams(params)
	als.nFactors = als.Params.GetInt(model.NFactors, 128)
	als.nEpochs = als.Params.GetInt(model.NEpochs, 20)
	als.reg = float64(als.Params.GetFloat32(model.Reg, 0.01))
	als.initMean = float64(als.Params.GetFloat32(model.InitMean, 0))
	als.initStdDev = float64(als.Params.GetFloat32(model.InitStdDev, 0.1))
}

// Clear model weights.
func (als *ALS) Clear() {
	als.UserIndex = nil
	als.ItemIndex = nil
	als.UserFactor = nil
	als.ItemFactor = nil
}

// Invalid returns true if the model has no weights.
func (als *ALS) Invalid() bool {
	return als == nil ||
		als.UserIndex == nil ||
		als.ItemIndex == nil ||
		als.UserFactor == nil ||
		als.ItemFactor == nil
}

// NFactors returns the number of latent factors.
func (als *ALS) NFactors() int {
	return als.nFactors
}

// Predict the preference of a user (userId) for an item (itemId).
func (als *ALS) Predict(userId, itemId string) float32 {
	userIndex := als.UserIndex.ToNumber(userId)
	itemIndex := als.ItemIndex.ToNumber(itemId)
	if userIndex == base.NotId {
		log.Logger().Info("unknown user", zap.String("user_id", userId))
		return 0
	}
	if itemIndex == base.NotId {
		log.Logger().Info("unknown item", zap.String("item_id", itemId))
		return 0
	}
	return als.internalPredict(userIndex, itemIndex)
}

func (als *ALS) internalPredict(userIndex, itemIndex int32) float32 {
	return float32(mat.Dot(als.UserFactor.RowView(int(userIndex)),
		als.ItemFactor.RowView(int(itemIndex))))
}

// GetUserFactor returns the latent factor of a user.
func (als *ALS) GetUserFactor(userIndex int32) []float64 {
	return als.UserFactor.RawRowView(int(userIndex))
}

// GetItemFactor returns the latent factor of an item.
func (als *ALS) GetItemFactor(itemIndex int32) []float64 {
	return als.ItemFactor.RawRowView(int(itemIndex))
}

// Init initializes factors from the seeded random generator.
func (als *ALS) Init(trainSet *DataSet) {
	als.UserFactor = mat.NewDense(trainSet.UserCount(), als.nFactors,
		als.GetRandomGenerator().NormalVector64(trainSet.UserCount()*als.nFactors, als.initMean, als.initStdDev))
	als.ItemFactor = mat.NewDense(trainSet.ItemCount(), als.nFactors,
		als.GetRandomGenerator().NormalVector64(trainSet.ItemCount()*als.nFactors, als.initMean, als.initStdDev))
	als.UserIndex = trainSet.UserIndex
	als.ItemIndex = trainSet.ItemIndex
}

// Fit the ALS model. The iteration budget is fixed; there is no separate
// convergence test. A degenerate normal-equation solve aborts fitting.
func (als *ALS) Fit(trainSet *DataSet, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit als",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("users", trainSet.UserCount()),
		zap.Int("items", trainSet.ItemCount()),
		zap.Any("params", als.GetParams()),
		zap.Any("config", config))
	als.Init(trainSet)
	// Create temporary matrices
	temp1 := make([]*mat.Dense, config.Jobs)
	temp2 := make([]*mat.VecDense, config.Jobs)
	a := make([]*mat.Dense, config.Jobs)
	for i := 0; i < config.Jobs; i++ {
		temp1[i] = mat.NewDense(als.nFactors, als.nFactors, nil)
		temp2[i] = mat.NewVecDense(als.nFactors, nil)
		a[i] = mat.NewDense(als.nFactors, als.nFactors, nil)
	}
	c := mat.NewDense(als.nFactors, als.nFactors, nil)
	// Create regularization matrix
	regs := make([]float64, als.nFactors)
	for i := range regs {
		regs[i] = als.reg
	}
	regI := mat.NewDiagDense(als.nFactors, regs)
	for ep := 1; ep <= als.nEpochs; ep++ {
		fitStart := time.Now()
		// Recompute all user factors: x_u = (Y^T C^u Y + \lambda I)^{-1} Y^T C^u p(u)
		// Y^T C^u Y = Y^T Y + Y^T (C^u-I) Y over observed cells
		c.Mul(als.ItemFactor.T(), als.ItemFactor)
		err := base.Parallel(trainSet.UserCount(), config.Jobs, func(workerId, userIndex int) error {
			a[workerId].Copy(c)
			b := mat.NewVecDense(als.nFactors, nil)
			for position, itemIndex := range trainSet.UserFeedback[userIndex] {
				weight := float64(trainSet.UserWeight[userIndex][position])
				// Y^T (C^u-I) Y
				temp1[workerId].Outer(weight-1, als.ItemFactor.RowView(int(itemIndex)), als.ItemFactor.RowView(int(itemIndex)))
				a[workerId].Add(a[workerId], temp1[workerId])
				// Y^T C^u p(u)
				temp2[workerId].ScaleVec(weight, als.ItemFactor.RowView(int(itemIndex)))
				b.AddVec(b, temp2[workerId])
			}
			a[workerId].Add(a[workerId], regI)
			if err := temp1[workerId].Inverse(a[workerId]); err != nil {
				return errors.Annotatef(err, "degenerate user solve (row %d)", userIndex)
			}
			temp2[workerId].MulVec(temp1[workerId], b)
			als.UserFactor.SetRow(userIndex, temp2[workerId].RawVector().Data)
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		// Recompute all item factors: y_i = (X^T C^i X + \lambda I)^{-1} X^T C^i p(i)
		c.Mul(als.UserFactor.T(), als.UserFactor)
		err = base.Parallel(trainSet.ItemCount(), config.Jobs, func(workerId, itemIndex int) error {
			a[workerId].Copy(c)
			b := mat.NewVecDense(als.nFactors, nil)
			for position, userIndex := range trainSet.ItemFeedback[itemIndex] {
				weight := float64(trainSet.ItemWeight[itemIndex][position])
				// X^T (C^i-I) X
				temp1[workerId].Outer(weight-1, als.UserFactor.RowView(int(userIndex)), als.UserFactor.RowView(int(userIndex)))
				a[workerId].Add(a[workerId], temp1[workerId])
				// X^T C^i p(i)
				temp2[workerId].ScaleVec(weight, als.UserFactor.RowView(int(userIndex)))
				b.AddVec(b, temp2[workerId])
			}
			a[workerId].Add(a[workerId], regI)
			if err := temp1[workerId].Inverse(a[workerId]); err != nil {
				return errors.Annotatef(err, "degenerate item solve (col %d)", itemIndex)
			}
			temp2[workerId].MulVec(temp1[workerId], b)
			als.ItemFactor.SetRow(itemIndex, temp2[workerId].RawVector().Data)
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		if ep%config.Verbose == 0 || ep == als.nEpochs {
			log.Logger().Debug("fit als",
				zap.Int("epoch", ep),
				zap.Int("n_epochs", als.nEpochs),
				zap.String("fit_time", time.Since(fitStart).String()))
		}
	}
	log.Logger().Info("fit als complete")
	return nil
}

// Recommend returns the top-n unseen items for a user, best-first, with their
// scores.
func (als *ALS) Recommend(userIndex int32, seen mapset.Set[int32], n int) ([]string, []float32) {
	filter := base.NewTopKFilter(n)
	for itemIndex := int32(0); itemIndex < als.ItemIndex.Len(); itemIndex++ {
		if seen != nil && seen.Contains(itemIndex) {
			continue
		}
		filter.Push(itemIndex, als.internalPredict(userIndex, itemIndex))
	}
	indices, scores := filter.PopAll()
	items := make([]string, len(indices))
	for i, itemIndex := range indices {
		items[i] = als.ItemIndex.ToName(itemIndex)
	}
	return items, scores
}

// Marshal model into byte stream.
func (als *ALS) Marshal(w io.Writer) error {
	if err := model.WriteParams(w, als.Params); err != nil {
		return errors.Trace(err)
	}
	if err := als.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := als.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := writeDense(w, als.UserFactor); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(writeDense(w, als.ItemFactor))
}

// Unmarshal model from byte stream.
func (als *ALS) Unmarshal(r io.Reader) error {
	params, err := model.ReadParams(r)
	if err != nil {
		return errors.Trace(err)
	}
	als.SetParams(params)
	als.UserIndex = new(base.Index)
	if err = als.UserIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	als.ItemIndex = new(base.Index)
	if err = als.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if als.UserFactor, err = readDense(r); err != nil {
		return errors.Trace(err)
	}
	als.ItemFactor, err = readDense(r)
	return errors.Trace(err)
}

// writeDense writes a dense matrix as dimensions followed by row-major data.
func writeDense(w io.Writer, m *mat.Dense) error {
	rows, cols := m.Dims()
	if err := binary.Write(w, binary.LittleEndian, int32(rows)); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(cols)); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < rows; i++ {
		if err := binary.Write(w, binary.LittleEndian, m.RawRowView(i)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// readDense reads a dense matrix written by writeDense.
func readDense(r io.Reader) (*mat.Dense, error) {
	var rows, cols int32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, errors.Trace(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, errors.Trace(err)
	}
	data := make([]float64, rows*cols)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, errors.Trace(err)
	}
	return mat.NewDense(int(rows), int(cols), data), nil
}
