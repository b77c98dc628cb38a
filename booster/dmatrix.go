package booster

import (
	"fmt"
	"sort"

	"github.com/crispml/drover/internal/pkg/drocluster"
	"github.com/crispml/drover/internal/pkg/droframe"
)

// MaxBins is the number of histogram buckets each feature is quantized
// into.
const MaxBins = 256

// QuantileDMatrix is a quantized training matrix specialized for the
// histogram tree method. Feature values are replaced by per-feature bin
// ordinals over quantile cut points, reducing memory to one byte per value.
// The matrix is write-once and valid only for training; it cannot be
// queried or mutated afterwards.
type QuantileDMatrix struct {
	numRow  int
	numFeat int
	cuts    [][]float32 // per feature: ascending bin upper-bound cut points
	binned  [][]uint8   // per feature: bin ordinal for each row
	labels  []float32
}

// NewQuantileDMatrix builds a quantized matrix from a feature view and a
// label view of the same frame. Quantile sketching and row binning run as
// per-feature tasks on the cluster. The source views are forced resident
// if they are not already.
func NewQuantileDMatrix(client *drocluster.Client, X, y *droframe.View) (*QuantileDMatrix, error) {
	if y.NumColumns() != 1 {
		return nil, fmt.Errorf("label view must have exactly one column, got %d", y.NumColumns())
	}

	if err := X.Materialize(client); err != nil {
		return nil, err
	}
	if err := y.Materialize(client); err != nil {
		return nil, err
	}

	numRow := X.Rows()
	if numRow == 0 {
		return nil, fmt.Errorf("no rows in feature view")
	}
	if y.Rows() != numRow {
		return nil, fmt.Errorf("feature view has %d rows but label view has %d", numRow, y.Rows())
	}

	xBlocks, err := X.BlockColumns()
	if err != nil {
		return nil, err
	}
	yBlocks, err := y.BlockColumns()
	if err != nil {
		return nil, err
	}

	labels := make([]float32, 0, numRow)
	for _, blockCols := range yBlocks {
		labels = append(labels, blockCols[0]...)
	}

	numFeat := X.NumColumns()
	m := &QuantileDMatrix{
		numRow:  numRow,
		numFeat: numFeat,
		cuts:    make([][]float32, numFeat),
		binned:  make([][]uint8, numFeat),
		labels:  labels,
	}

	futures := make([]*drocluster.Future, numFeat)
	for f := 0; f < numFeat; f++ {
		f := f
		futures[f] = client.Submit(func(dev drocluster.Device) (interface{}, error) {
			values := make([]float32, 0, numRow)
			for _, blockCols := range xBlocks {
				values = append(values, blockCols[f]...)
			}

			cuts := quantileCuts(values, MaxBins)
			binned := make([]uint8, numRow)
			for i, v := range values {
				binned[i] = binIndex(cuts, v)
			}

			// Features write to disjoint slots, so no lock is needed
			m.cuts[f] = cuts
			m.binned[f] = binned
			return nil, nil
		})
	}
	if _, err := client.Gather(futures); err != nil {
		return nil, err
	}

	return m, nil
}

// NumRow returns the matrix's row count.
func (m *QuantileDMatrix) NumRow() int {
	return m.numRow
}

// NumCol returns the matrix's feature count.
func (m *QuantileDMatrix) NumCol() int {
	return m.numFeat
}

// Labels returns the matrix's label vector.
func (m *QuantileDMatrix) Labels() []float32 {
	return m.labels
}

// MemSize returns the approximate resident size of the matrix in bytes.
func (m *QuantileDMatrix) MemSize() uint64 {
	return uint64(m.numRow*m.numFeat) + uint64(4*len(m.labels))
}

// Release discards the matrix's contents. The matrix is unusable
// afterwards.
func (m *QuantileDMatrix) Release() {
	m.cuts = nil
	m.binned = nil
	m.labels = nil
	m.numRow = 0
}

// binIndex returns the bucket a value falls into: the smallest bin whose
// upper-bound cut is >= the value, or the overflow bin past the last cut.
func binIndex(cuts []float32, value float32) uint8 {
	return uint8(sort.Search(len(cuts), func(i int) bool {
		return value <= cuts[i]
	}))
}

// quantileCuts computes up to maxBins-1 ascending cut points at even
// quantiles of the given values. Duplicate quantile values collapse, so
// low-cardinality features get one bin per distinct value.
func quantileCuts(values []float32, maxBins int) []float32 {
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	cuts := make([]float32, 0, maxBins-1)
	for i := 1; i < maxBins; i++ {
		idx := i * len(sorted) / maxBins
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		v := sorted[idx]
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}

	// Ensure the maximum value lands in a real bucket rather than the
	// overflow bin, keeping bin ordinals dense for small inputs.
	max := sorted[len(sorted)-1]
	if len(cuts) == 0 || max > cuts[len(cuts)-1] {
		cuts = append(cuts, max)
	}

	return cuts
}
