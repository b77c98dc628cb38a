package booster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stepData is a regression target perfectly separable by one split on the
// first feature.
func stepData() ([][]float32, []float32) {
	feature := []float32{1, 2, 3, 4, 11, 12, 13, 14}
	noise := []float32{5, 3, 8, 1, 9, 2, 7, 4}
	labels := make([]float32, len(feature))
	for i, v := range feature {
		if v < 10 {
			labels[i] = 0
		} else {
			labels[i] = 10
		}
	}
	return [][]float32{feature, noise}, labels
}

func testParams() Params {
	p := DefaultParams()
	p.LearningRate = 0.3
	p.MaxDepth = 3
	p.Verbosity = 0
	return p
}

func TestTrainReducesError(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	output, err := Train(client, testParams(), dtrain, 50,
		[]EvalSet{{Matrix: dtrain, Name: "train"}})
	assert.Nil(t, err)

	history := output.History["train-rmse"]
	assert.Len(t, history, 50)
	assert.True(t, history[49] < history[0])
	assert.True(t, history[49] < 0.1)
	assert.Len(t, output.Booster.Trees, 50)
}

func TestTrainedModelPredicts(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	output, err := Train(client, testParams(), dtrain, 60, nil)
	assert.Nil(t, err)

	low, err := output.Booster.Predict([]float32{2, 5})
	assert.Nil(t, err)
	assert.InDelta(t, 0, low, 0.5)

	high, err := output.Booster.Predict([]float32{13, 5})
	assert.Nil(t, err)
	assert.InDelta(t, 10, high, 0.5)
}

func TestTrainWithSubsample(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	params := testParams()
	params.Subsample = 0.5
	params.Seed = 7

	output, err := Train(client, params, dtrain, 80,
		[]EvalSet{{Matrix: dtrain, Name: "train"}})
	assert.Nil(t, err)

	history := output.History["train-rmse"]
	assert.True(t, history[79] < history[0])
}

func TestTrainHighGammaSuppressesSplits(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	params := testParams()
	params.Gamma = 1e9

	output, err := Train(client, params, dtrain, 5, nil)
	assert.Nil(t, err)

	// Every tree collapses to its root leaf
	for _, tree := range output.Booster.Trees {
		assert.Len(t, tree.Nodes, 1)
		assert.True(t, tree.Nodes[0].IsLeaf)
	}
}

func TestTrainRejectsUnknownObjective(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	dtrain := newTestMatrix([][]float32{{1, 2}}, []float32{0, 1})

	params := testParams()
	params.Objective = "binary:logistic"

	_, err := Train(client, params, dtrain, 1, nil)
	assert.NotNil(t, err)
}

func TestTrainRejectsUnknownTreeMethod(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	dtrain := newTestMatrix([][]float32{{1, 2}}, []float32{0, 1})

	params := testParams()
	params.TreeMethod = "exact"

	_, err := Train(client, params, dtrain, 1, nil)
	assert.NotNil(t, err)
}

func TestTrainRunsFullRoundCount(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	// No early stopping: rounds keep running after the fit converges
	output, err := Train(client, testParams(), dtrain, 120,
		[]EvalSet{{Matrix: dtrain, Name: "train"}})
	assert.Nil(t, err)
	assert.Len(t, output.Booster.Trees, 120)
	assert.Len(t, output.History["train-rmse"], 120)
}
