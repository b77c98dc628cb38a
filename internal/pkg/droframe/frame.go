package droframe

import (
	"fmt"
	"sync"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/crispml/drover/internal/pkg/drocluster"
)

// block holds a materialized partition's data, column-major.
type block struct {
	cols [][]float32
	rows int
}

// Partition is one input file's slice of a Frame. Partitions start lazy;
// their data is read by a cluster task on first materialization.
type Partition struct {
	File string
	read func() (*block, error)

	mut   sync.Mutex
	block *block
}

// Materialized reports whether the partition's data is resident.
func (p *Partition) Materialized() bool {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.block != nil
}

// materialize reads the partition's file if it has not been read already.
func (p *Partition) materialize() error {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.block != nil {
		return nil
	}

	b, err := p.read()
	if err != nil {
		return fmt.Errorf("loading partition %s: %w", p.File, err)
	}
	p.block = b

	log.Debugf("Partition %s materialized: %d rows (%s)", p.File, b.rows,
		humanize.Bytes(uint64(b.rows*len(b.cols)*4)))
	return nil
}

// Rows returns the partition's row count. Zero until materialized.
func (p *Partition) Rows() int {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.block == nil {
		return 0
	}
	return p.block.rows
}

// Column returns the partition's values for the given schema column index.
// Only valid once the partition is materialized.
func (p *Partition) Column(i int) []float32 {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.block == nil {
		return nil
	}
	return p.block.cols[i]
}

func (p *Partition) release() {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.block = nil
}

// Frame is a table partitioned across input files. The frame owns only
// partition handles; partition data lives on the cluster's workers and is
// read on demand.
type Frame struct {
	schema Schema
	parts  []*Partition
}

// Schema returns the frame's column layout.
func (f *Frame) Schema() Schema {
	return f.schema
}

// Partitions returns the frame's partitions.
func (f *Frame) Partitions() []*Partition {
	return f.parts
}

// NumPartitions returns the number of partitions in the frame.
func (f *Frame) NumPartitions() int {
	return len(f.parts)
}

// Materialized reports whether every partition of the frame is resident.
func (f *Frame) Materialized() bool {
	for _, p := range f.parts {
		if !p.Materialized() {
			return false
		}
	}
	return true
}

// Persist submits materialization tasks for every partition to the cluster
// and returns the pending futures. Callers block on the futures with Wait.
func (f *Frame) Persist(client *drocluster.Client) []*drocluster.Future {
	futures := make([]*drocluster.Future, len(f.parts))
	for i, p := range f.parts {
		p := p
		futures[i] = client.Submit(func(dev drocluster.Device) (interface{}, error) {
			return nil, p.materialize()
		})
	}
	return futures
}

// Wait blocks until the given persist futures complete, returning the
// first load error encountered.
func Wait(client *drocluster.Client, futures []*drocluster.Future) error {
	_, err := client.Gather(futures)
	return err
}

// Materialize forces every partition of the frame resident, blocking until
// all loads complete.
func (f *Frame) Materialize(client *drocluster.Client) error {
	return Wait(client, f.Persist(client))
}

// Rows returns the frame's total row count across materialized partitions.
func (f *Frame) Rows() int {
	rows := 0
	for _, p := range f.parts {
		rows += p.Rows()
	}
	return rows
}

// Release discards all partition data so the runtime can reclaim the
// memory. The frame and its views are unusable afterwards.
func (f *Frame) Release() {
	for _, p := range f.parts {
		p.release()
	}
}

// Features returns a view over the frame's feature columns.
func (f *Frame) Features() *View {
	return &View{
		frame:   f,
		columns: f.schema.FeatureColumns(),
	}
}

// Label returns a view over the frame's label column.
func (f *Frame) Label() *View {
	return &View{
		frame:   f,
		columns: []string{f.schema.LabelColumn},
	}
}

// View is a column-subset of a Frame. Views share the frame's partitions;
// persisting or releasing the frame affects all of its views.
type View struct {
	frame   *Frame
	columns []string
}

// Columns returns the names of the view's columns.
func (v *View) Columns() []string {
	return v.columns
}

// NumColumns returns the view's column count.
func (v *View) NumColumns() int {
	return len(v.columns)
}

// Materialized reports whether the view's backing partitions are resident.
func (v *View) Materialized() bool {
	return v.frame.Materialized()
}

// Persist submits materialization tasks for the view's backing partitions.
func (v *View) Persist(client *drocluster.Client) []*drocluster.Future {
	return v.frame.Persist(client)
}

// Materialize forces the view's backing partitions resident.
func (v *View) Materialize(client *drocluster.Client) error {
	return v.frame.Materialize(client)
}

// Rows returns the view's total row count across materialized partitions.
func (v *View) Rows() int {
	return v.frame.Rows()
}

// BlockColumns returns, for each partition, the view's columns as slices.
// The frame must be materialized.
func (v *View) BlockColumns() ([][][]float32, error) {
	if !v.frame.Materialized() {
		return nil, fmt.Errorf("view over %d columns is not materialized", len(v.columns))
	}

	indices := make([]int, len(v.columns))
	for i, name := range v.columns {
		idx := v.frame.schema.ColumnIndex(name)
		if idx == -1 {
			return nil, fmt.Errorf("no column %q in frame", name)
		}
		indices[i] = idx
	}

	blocks := make([][][]float32, len(v.frame.parts))
	for pi, p := range v.frame.parts {
		cols := make([][]float32, len(indices))
		for ci, idx := range indices {
			cols[ci] = p.Column(idx)
		}
		blocks[pi] = cols
	}
	return blocks, nil
}
