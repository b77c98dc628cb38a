package droframe

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crispml/drover/internal/pkg/drofs"
)

func TestCalculateInputSplits(t *testing.T) {
	var calculateSplitTests = []struct {
		fileSize            int64
		maxSplitSize        int64
		expectedSplitStarts []int64
		expectedSplitEnds   []int64
	}{
		{3, 3, []int64{0}, []int64{2}},
		{10, 3, []int64{0, 3, 6, 9}, []int64{2, 5, 8, 9}},
		{5, 10, []int64{0}, []int64{4}},
	}

	for _, test := range calculateSplitTests {
		fInfo := drofs.FileInfo{
			Size: test.fileSize,
		}

		splits := splitInputFile(fInfo, test.maxSplitSize)

		assert.Equal(t, len(test.expectedSplitStarts), len(splits), fmt.Sprintln(splits))
		for i, split := range splits {
			assert.Equal(t, test.expectedSplitStarts[i], split.StartOffset)
			assert.Equal(t, test.expectedSplitEnds[i], split.EndOffset)
		}
	}
}

func TestSplitSize(t *testing.T) {
	var splitSizeTests = []struct {
		startOffset  int64
		endOffset    int64
		expectedSize int64
	}{
		{0, 9, 10},
		{100, 999, 900},
		{1000, 1000, 1},
	}

	for _, test := range splitSizeTests {
		split := inputSplit{
			StartOffset: test.startOffset,
			EndOffset:   test.endOffset,
		}
		assert.Equal(t, test.expectedSize, split.Size())
	}
}

// Rows must land in exactly one partition regardless of where split
// boundaries fall inside them.
func TestSplitCSVReadsEachRowOnce(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "split")
	defer os.RemoveAll(tmpdir)

	contents := ""
	for r := 0; r < 100; r++ {
		contents += fmt.Sprintf("%d,%d.5,%d.25\n", r%2, r, r)
	}
	path := filepath.Join(tmpdir, "part-0.csv")
	assert.Nil(t, ioutil.WriteFile(path, []byte(contents), 0644))

	cluster, client := testCluster(t)
	defer cluster.Close()

	fs := &drofs.LocalFileSystem{}
	for _, splitSize := range []int64{7, 64, 1024, defaultSplitSize} {
		frame, err := readCSV(fs, path, testSchema(), splitSize)
		assert.Nil(t, err)

		assert.Nil(t, frame.Materialize(client))
		assert.Equal(t, 100, frame.Rows(), "split size %d", splitSize)
	}
}

func TestSplitCSVPreservesRowOrder(t *testing.T) {
	tmpdir, _ := ioutil.TempDir("", "split")
	defer os.RemoveAll(tmpdir)

	contents := ""
	for r := 0; r < 20; r++ {
		contents += fmt.Sprintf("1,%d,0\n", r)
	}
	path := filepath.Join(tmpdir, "part-0.csv")
	assert.Nil(t, ioutil.WriteFile(path, []byte(contents), 0644))

	cluster, client := testCluster(t)
	defer cluster.Close()

	fs := &drofs.LocalFileSystem{}
	frame, err := readCSV(fs, path, testSchema(), 16)
	assert.Nil(t, err)
	assert.Nil(t, frame.Materialize(client))

	blocks, err := frame.Features().BlockColumns()
	assert.Nil(t, err)

	got := make([]float32, 0, 20)
	for _, blockCols := range blocks {
		got = append(got, blockCols[0]...)
	}

	assert.Len(t, got, 20)
	for r, v := range got {
		assert.Equal(t, float32(r), v)
	}
}
