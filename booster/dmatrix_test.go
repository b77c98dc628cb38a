package booster

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crispml/drover/internal/pkg/drocluster"
	"github.com/crispml/drover/internal/pkg/drofs"
	"github.com/crispml/drover/internal/pkg/droframe"
)

func testCluster(t *testing.T) (*drocluster.Cluster, *drocluster.Client) {
	t.Helper()
	cluster, err := drocluster.Start("127.0.0.1:0", 2, 2)
	assert.Nil(t, err)
	return cluster, drocluster.NewClient(cluster)
}

// newTestMatrix builds a quantized matrix directly from column-major
// feature data, bypassing the frame layer.
func newTestMatrix(cols [][]float32, labels []float32) *QuantileDMatrix {
	m := &QuantileDMatrix{
		numRow:  len(labels),
		numFeat: len(cols),
		cuts:    make([][]float32, len(cols)),
		binned:  make([][]uint8, len(cols)),
		labels:  labels,
	}
	for f, values := range cols {
		m.cuts[f] = quantileCuts(values, MaxBins)
		m.binned[f] = make([]uint8, len(values))
		for i, v := range values {
			m.binned[f][i] = binIndex(m.cuts[f], v)
		}
	}
	return m
}

func TestQuantileCutsSmallInput(t *testing.T) {
	cuts := quantileCuts([]float32{2.5, 0.5, 1.5}, MaxBins)
	assert.Equal(t, []float32{0.5, 1.5, 2.5}, cuts)
}

func TestQuantileCutsConstantFeature(t *testing.T) {
	cuts := quantileCuts([]float32{7, 7, 7, 7}, MaxBins)
	assert.Equal(t, []float32{7}, cuts)
}

func TestQuantileCutsBounded(t *testing.T) {
	values := make([]float32, 10000)
	for i := range values {
		values[i] = float32(i)
	}
	cuts := quantileCuts(values, MaxBins)
	assert.True(t, len(cuts) <= MaxBins)

	for i := 1; i < len(cuts); i++ {
		assert.True(t, cuts[i] > cuts[i-1])
	}
}

func TestBinIndexRouting(t *testing.T) {
	cuts := []float32{0.5, 1.5, 2.5}

	assert.Equal(t, uint8(0), binIndex(cuts, 0.25))
	assert.Equal(t, uint8(0), binIndex(cuts, 0.5))
	assert.Equal(t, uint8(1), binIndex(cuts, 1.0))
	assert.Equal(t, uint8(2), binIndex(cuts, 2.5))
	assert.Equal(t, uint8(3), binIndex(cuts, 99))
}

func TestNewQuantileDMatrixFromFrame(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "dmatrix")
	defer os.RemoveAll(tmpdir)

	contents := "1,0.5,2.5\n0,1.5,3.5\n1,2.5,4.5\n"
	assert.Nil(t, ioutil.WriteFile(filepath.Join(tmpdir, "part-0.csv"), []byte(contents), 0644))

	cluster, client := testCluster(t)
	defer cluster.Close()

	schema := droframe.Schema{
		Columns:     []string{"label", "feature-01", "feature-02"},
		LabelColumn: "label",
	}
	fs := &drofs.LocalFileSystem{}
	frame, err := droframe.ReadCSV(fs, filepath.Join(tmpdir, "*.csv"), schema)
	assert.Nil(t, err)

	m, err := NewQuantileDMatrix(client, frame.Features(), frame.Label())
	assert.Nil(t, err)

	assert.Equal(t, 3, m.NumRow())
	assert.Equal(t, 2, m.NumCol())
	assert.Equal(t, []float32{1, 0, 1}, m.Labels())

	// Construction forces the source frame resident
	assert.True(t, frame.Materialized())

	// Rows are binned in ascending feature order
	assert.Equal(t, []uint8{0, 1, 2}, m.binned[0])
	assert.Equal(t, []uint8{0, 1, 2}, m.binned[1])
}

func TestNewQuantileDMatrixRejectsWideLabel(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "dmatrix")
	defer os.RemoveAll(tmpdir)

	contents := "1,0.5,2.5\n"
	assert.Nil(t, ioutil.WriteFile(filepath.Join(tmpdir, "part-0.csv"), []byte(contents), 0644))

	cluster, client := testCluster(t)
	defer cluster.Close()

	schema := droframe.Schema{
		Columns:     []string{"label", "feature-01", "feature-02"},
		LabelColumn: "label",
	}
	fs := &drofs.LocalFileSystem{}
	frame, err := droframe.ReadCSV(fs, filepath.Join(tmpdir, "*.csv"), schema)
	assert.Nil(t, err)

	_, err = NewQuantileDMatrix(client, frame.Features(), frame.Features())
	assert.NotNil(t, err)
}

func TestQuantileDMatrixRelease(t *testing.T) {
	m := newTestMatrix([][]float32{{1, 2, 3}}, []float32{0, 1, 0})
	assert.Equal(t, 3, m.NumRow())

	m.Release()
	assert.Equal(t, 0, m.NumRow())
	assert.Nil(t, m.Labels())
}
