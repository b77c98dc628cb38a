package droframe

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/crispml/drover/internal/pkg/drofs"
)

// defaultSplitSize bounds how many bytes of one input file a single
// partition covers. Files larger than this are split so their rows load
// in parallel across workers.
const defaultSplitSize = 128 * 1024 * 1024

// ReadCSV builds a lazy Frame over the headerless delimited-text files
// matching pathGlob. Columns are positional and must match the schema's
// column count exactly. Large files are divided into byte-range splits,
// one partition each.
func ReadCSV(fs drofs.FileSystem, pathGlob string, schema Schema) (*Frame, error) {
	return readCSV(fs, pathGlob, schema, defaultSplitSize)
}

func readCSV(fs drofs.FileSystem, pathGlob string, schema Schema, maxSplitSize int64) (*Frame, error) {
	files, err := fs.ListFiles(pathGlob)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files match %s", pathGlob)
	}

	splits := splitInputFiles(files, maxSplitSize)
	log.Debugf("Frame over %d csv file(s) in %d split(s) from %s", len(files), len(splits), pathGlob)

	frame := &Frame{schema: schema}
	for _, split := range splits {
		split := split
		frame.parts = append(frame.parts, &Partition{
			File: split.Filename,
			read: func() (*block, error) {
				return readCSVSplit(fs, split, schema)
			},
		})
	}
	return frame, nil
}

// readCSVSplit reads the rows owned by one byte-range split. A split owns
// every row starting within its range; a row that begins before the range
// belongs to the preceding split and is skipped.
func readCSVSplit(fs drofs.FileSystem, split inputSplit, schema Schema) (*block, error) {
	reader, err := fs.OpenReader(split.Filename, split.StartOffset)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	numCols := schema.NumColumns()
	cols := make([][]float32, numCols)

	buffered := bufio.NewReader(reader)
	pos := split.StartOffset

	if split.StartOffset > 0 {
		partial, err := buffered.ReadString('\n')
		pos += int64(len(partial))
		if err == io.EOF {
			return &block{cols: cols, rows: 0}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	// A row starting exactly one byte past EndOffset still belongs to this
	// split: the next split always discards its first (possibly partial)
	// line, so this reader covers it.
	rows := 0
	for pos <= split.EndOffset+1 {
		line, err := buffered.ReadString('\n')
		pos += int64(len(line))

		record := strings.TrimRight(line, "\r\n")
		if record != "" {
			if err := parseCSVRow(record, schema, cols, rows); err != nil {
				return nil, err
			}
			rows++
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return &block{cols: cols, rows: rows}, nil
}

func parseCSVRow(record string, schema Schema, cols [][]float32, row int) error {
	fields := strings.Split(record, ",")
	if len(fields) != schema.NumColumns() {
		return fmt.Errorf("row %d has %d columns, want %d", row, len(fields), schema.NumColumns())
	}

	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return fmt.Errorf("row %d column %q: %w", row, schema.Columns[i], err)
		}
		cols[i] = append(cols[i], float32(value))
	}
	return nil
}
