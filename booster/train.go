package booster

import (
	"fmt"
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/crispml/drover/internal/pkg/drocluster"
)

// Params holds boosting hyperparameters. Field names mirror the
// conventional gradient boosting parameter set.
type Params struct {
	Verbosity      int
	LearningRate   float64
	MaxDepth       int
	Objective      string
	Subsample      float64
	Gamma          float64
	Lambda         float64
	MinChildWeight float64
	TreeMethod     string
	Threads        int
	Seed           int64
}

// DefaultParams returns the baseline parameter set: squared-error
// regression with the histogram tree method.
func DefaultParams() Params {
	return Params{
		Verbosity:      1,
		LearningRate:   0.3,
		MaxDepth:       6,
		Objective:      ObjectiveSquaredError,
		Subsample:      1.0,
		Gamma:          0,
		Lambda:         1,
		MinChildWeight: 1,
		TreeMethod:     TreeMethodHist,
		Threads:        1,
	}
}

// Supported objective and tree method names.
const (
	ObjectiveSquaredError = "reg:squarederror"
	TreeMethodHist        = "hist"

	baseScore = 0.5
)

// EvalSet names a matrix whose per-round metric is recorded in the
// training history.
type EvalSet struct {
	Matrix *QuantileDMatrix
	Name   string
}

// History maps an evaluation name ("train-rmse") to its per-round metric
// values, indexed by boosting round.
type History map[string][]float64

// TrainOutput bundles the trained model with its evaluation history.
type TrainOutput struct {
	Booster *Booster
	History History
}

// Train runs numRounds boosting rounds against the quantized matrix and
// returns the final model plus a round-by-round evaluation history.
// Training always runs the full round count: there is no early stopping
// and no checkpointing. Histogram accumulation is distributed over the
// client's cluster; each task runs single-threaded.
func Train(client *drocluster.Client, params Params, dtrain *QuantileDMatrix, numRounds int, evals []EvalSet) (*TrainOutput, error) {
	if params.Objective != ObjectiveSquaredError {
		return nil, fmt.Errorf("unsupported objective %q", params.Objective)
	}
	if params.TreeMethod != TreeMethodHist {
		return nil, fmt.Errorf("unsupported tree method %q (the quantized matrix only serves %q)",
			params.TreeMethod, TreeMethodHist)
	}
	if dtrain.NumRow() == 0 {
		return nil, fmt.Errorf("training matrix is empty")
	}
	if numRounds < 1 {
		return nil, fmt.Errorf("invalid round count: %d", numRounds)
	}

	model := &Booster{
		BaseScore:   baseScore,
		NumFeatures: dtrain.NumCol(),
		Cuts:        dtrain.cuts,
	}
	history := History{}

	// Cached per-row predictions for the training matrix and each
	// evaluation matrix, updated incrementally as trees are added.
	preds := newPredictions(dtrain)
	evalPreds := make([]*predictions, len(evals))
	for i, eval := range evals {
		if eval.Matrix == dtrain {
			evalPreds[i] = preds
		} else {
			evalPreds[i] = newPredictions(eval.Matrix)
		}
	}

	rng := rand.New(rand.NewSource(params.Seed))
	grad := make([]float64, dtrain.NumRow())
	hess := make([]float64, dtrain.NumRow())

	var bar *pb.ProgressBar
	if params.Verbosity >= 1 {
		bar = pb.New(numRounds).Prefix("Boost").Start()
	}

	for round := 0; round < numRounds; round++ {
		labels := dtrain.Labels()
		for r := range grad {
			grad[r] = preds.values[r] - float64(labels[r])
			hess[r] = 1
		}

		rows := sampleRows(dtrain.NumRow(), params.Subsample, rng)
		tree := growTree(client, dtrain, grad, hess, rows, params)
		model.Trees = append(model.Trees, tree)

		preds.update(tree)
		for i, eval := range evals {
			if evalPreds[i] != preds {
				evalPreds[i].update(tree)
			}
			metric := fmt.Sprintf("%s-rmse", eval.Name)
			rmse := evalPreds[i].rmse(eval.Matrix.Labels())
			history[metric] = append(history[metric], rmse)

			if params.Verbosity >= 2 {
				log.Debugf("[%d] %s:%f", round, metric, rmse)
			}
		}

		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return &TrainOutput{Booster: model, History: history}, nil
}

// predictions caches the running model output for each row of a matrix.
type predictions struct {
	matrix *QuantileDMatrix
	values []float64
}

func newPredictions(m *QuantileDMatrix) *predictions {
	values := make([]float64, m.NumRow())
	for i := range values {
		values[i] = baseScore
	}
	return &predictions{matrix: m, values: values}
}

func (p *predictions) update(tree *Tree) {
	for r := range p.values {
		p.values[r] += tree.PredictBinned(p.matrix, r)
	}
}

func (p *predictions) rmse(labels []float32) float64 {
	sum := 0.0
	for r, pred := range p.values {
		diff := pred - float64(labels[r])
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(p.values)))
}

// sampleRows picks each row with probability subsample for one tree's
// growth. The full row set is used when subsample >= 1.
func sampleRows(numRow int, subsample float64, rng *rand.Rand) []int32 {
	rows := make([]int32, 0, numRow)
	if subsample >= 1 {
		for r := 0; r < numRow; r++ {
			rows = append(rows, int32(r))
		}
		return rows
	}

	for r := 0; r < numRow; r++ {
		if rng.Float64() < subsample {
			rows = append(rows, int32(r))
		}
	}
	// Degenerate draw on tiny inputs: fall back to the full row set
	if len(rows) == 0 {
		for r := 0; r < numRow; r++ {
			rows = append(rows, int32(r))
		}
	}
	return rows
}
