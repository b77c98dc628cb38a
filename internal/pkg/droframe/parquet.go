package droframe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"

	"github.com/crispml/drover/internal/pkg/drofs"
)

// ReadParquet builds a lazy Frame over the columnar files matching
// pathGlob. Columns are selected by name; every schema column must be
// present in each file.
func ReadParquet(fs drofs.FileSystem, pathGlob string, schema Schema) (*Frame, error) {
	files, err := fs.ListFiles(pathGlob)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files match %s", pathGlob)
	}
	log.Debugf("Frame over %d parquet file(s) from %s", len(files), pathGlob)

	frame := &Frame{schema: schema}
	for _, file := range files {
		file := file
		frame.parts = append(frame.parts, &Partition{
			File: file.Name,
			read: func() (*block, error) {
				return readParquetBlock(fs, file, schema)
			},
		})
	}
	return frame, nil
}

func readParquetBlock(fs drofs.FileSystem, fInfo drofs.FileInfo, schema Schema) (*block, error) {
	reader, err := fs.OpenReader(fInfo.Name, 0)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	// Parquet footers require random access, so the file is staged in
	// memory before decoding.
	contents, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	file, err := parquet.OpenFile(bytes.NewReader(contents), fInfo.Size)
	if err != nil {
		return nil, err
	}

	// Map each schema column name to its leaf column index in the file
	columnFor := make(map[int]int)
	for i, name := range schema.Columns {
		leaf, ok := file.Schema().Lookup(name)
		if !ok {
			return nil, fmt.Errorf("no column %q in %s", name, fInfo.Name)
		}
		columnFor[leaf.ColumnIndex] = i
	}

	numCols := schema.NumColumns()
	cols := make([][]float32, numCols)
	totalRows := 0

	for _, rowGroup := range file.RowGroups() {
		rows := rowGroup.Rows()
		buf := make([]parquet.Row, 64)
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, value := range row {
					i, wanted := columnFor[value.Column()]
					if !wanted {
						continue
					}
					cols[i] = append(cols[i], asFloat32(value))
				}
				totalRows++
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, err
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	for i, col := range cols {
		if len(col) != totalRows {
			return nil, fmt.Errorf("column %q has %d values for %d rows in %s",
				schema.Columns[i], len(col), totalRows, fInfo.Name)
		}
	}

	return &block{cols: cols, rows: totalRows}, nil
}

func asFloat32(value parquet.Value) float32 {
	switch value.Kind() {
	case parquet.Float:
		return value.Float()
	case parquet.Double:
		return float32(value.Double())
	case parquet.Int32:
		return float32(value.Int32())
	case parquet.Int64:
		return float32(value.Int64())
	default:
		log.Warnf("Unsupported parquet value kind %s treated as zero", value.Kind())
		return 0
	}
}
