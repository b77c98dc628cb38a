package booster

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaveAndLoadModel(t *testing.T) {
	cluster, client := testCluster(t)
	defer cluster.Close()

	cols, labels := stepData()
	dtrain := newTestMatrix(cols, labels)

	output, err := Train(client, testParams(), dtrain, 20, nil)
	assert.Nil(t, err)

	tmpdir, _ := ioutil.TempDir("", "model")
	defer os.RemoveAll(tmpdir)
	modelPath := filepath.Join(tmpdir, "tmp.model")

	assert.Nil(t, output.Booster.SaveModel(modelPath))

	stat, err := os.Stat(modelPath)
	assert.Nil(t, err)
	assert.True(t, stat.Size() > 0)

	loaded, err := LoadModel(modelPath)
	assert.Nil(t, err)
	assert.Equal(t, output.Booster.NumFeatures, loaded.NumFeatures)
	assert.Len(t, loaded.Trees, 20)

	for _, features := range [][]float32{{2, 5}, {13, 5}, {7, 1}} {
		want, err := output.Booster.Predict(features)
		assert.Nil(t, err)
		got, err := loaded.Predict(features)
		assert.Nil(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPredictRejectsWrongWidth(t *testing.T) {
	model := &Booster{NumFeatures: 28}

	_, err := model.Predict([]float32{1, 2, 3})
	assert.NotNil(t, err)
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel("/nonexistent/tmp.model")
	assert.NotNil(t, err)
}
