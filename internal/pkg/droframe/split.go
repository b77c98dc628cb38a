package droframe

import (
	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/crispml/drover/internal/pkg/drofs"
)

// inputSplit contains the information about a contiguous chunk of an input
// file. startOffset and endOffset are inclusive. A split owns every row
// that starts within its byte range, so the last row of a split may extend
// past endOffset.
type inputSplit struct {
	Filename    string // The file that the input split operates on
	StartOffset int64  // The starting byte index of the split in the file
	EndOffset   int64  // The ending byte index (inclusive) of the split in the file
}

// Size returns the number of bytes that the inputSplit spans
func (i inputSplit) Size() int64 {
	return i.EndOffset - i.StartOffset + 1
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func splitInputFile(file drofs.FileInfo, maxSplitSize int64) []inputSplit {
	splits := make([]inputSplit, 0)

	for startOffset := int64(0); startOffset < file.Size; startOffset += maxSplitSize {
		endOffset := min64(startOffset+maxSplitSize-1, file.Size-1)
		newSplit := inputSplit{
			Filename:    file.Name,
			StartOffset: startOffset,
			EndOffset:   endOffset,
		}
		splits = append(splits, newSplit)
	}

	return splits
}

func splitInputFiles(files []drofs.FileInfo, maxSplitSize int64) []inputSplit {
	splits := make([]inputSplit, 0, len(files))
	totalSize := int64(0)
	for _, file := range files {
		totalSize += file.Size
		splits = append(splits, splitInputFile(file, maxSplitSize)...)
	}

	if len(splits) > 0 {
		log.Debugf("Average input split size: %s",
			humanize.Bytes(uint64(totalSize/int64(len(splits)))))
	}
	return splits
}
