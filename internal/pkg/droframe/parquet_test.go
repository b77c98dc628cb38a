package droframe

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"

	"github.com/crispml/drover/internal/pkg/drofs"
)

type parquetRow struct {
	Label     float32 `parquet:"label"`
	Feature01 float32 `parquet:"feature-01"`
	Feature02 float32 `parquet:"feature-02"`
	Extra     float32 `parquet:"extra"`
}

func writeParquetFixture(t *testing.T, dir, name string, rows []parquetRow) string {
	t.Helper()
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	assert.Nil(t, err)
	defer file.Close()

	writer := parquet.NewGenericWriter[parquetRow](file)
	_, err = writer.Write(rows)
	assert.Nil(t, err)
	assert.Nil(t, writer.Close())

	return path
}

func TestReadParquetSelectsColumnsByName(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "parquet")
	defer os.RemoveAll(tmpdir)
	writeParquetFixture(t, tmpdir, "part-0.parquet", []parquetRow{
		{Label: 1, Feature01: 0.5, Feature02: 2.5, Extra: 9},
		{Label: 0, Feature01: 1.5, Feature02: 3.5, Extra: 9},
	})

	cluster, client := testCluster(t)
	defer cluster.Close()

	fs := &drofs.LocalFileSystem{}
	frame, err := ReadParquet(fs, filepath.Join(tmpdir, "*.parquet"), testSchema())
	assert.Nil(t, err)
	assert.Nil(t, frame.Materialize(client))

	assert.Equal(t, 2, frame.Rows())

	labels, err := frame.Label().BlockColumns()
	assert.Nil(t, err)
	assert.Equal(t, []float32{1, 0}, labels[0][0])

	features, err := frame.Features().BlockColumns()
	assert.Nil(t, err)
	assert.Equal(t, []float32{0.5, 1.5}, features[0][0])
	assert.Equal(t, []float32{2.5, 3.5}, features[0][1])
}

func TestReadParquetMissingColumn(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "parquet")
	defer os.RemoveAll(tmpdir)
	writeParquetFixture(t, tmpdir, "part-0.parquet", []parquetRow{
		{Label: 1, Feature01: 0.5, Feature02: 2.5},
	})

	cluster, client := testCluster(t)
	defer cluster.Close()

	schema := Schema{
		Columns:     []string{"label", "feature-01", "feature-07"},
		LabelColumn: "label",
	}

	fs := &drofs.LocalFileSystem{}
	frame, err := ReadParquet(fs, filepath.Join(tmpdir, "*.parquet"), schema)
	assert.Nil(t, err)

	err = frame.Materialize(client)
	assert.NotNil(t, err)
}
