package decoder

import (
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// DataBlock is one Reed-Solomon block: NumDataCodewords data codewords
// followed by the block's check codewords.
type DataBlock struct {
	NumDataCodewords int
	Codewords        []byte
}

// DataBlocks de-interleaves the raw codewords of a symbol into its blocks.
func DataBlocks(rawCodewords []byte, version *symbol.Version, ecLevel symbol.ECLevel) ([]DataBlock, error) {
	if len(rawCodewords) != version.TotalCodewords() {
		return nil, qrerr.Format("data blocks", "%d codewords for version %d, want %d", len(rawCodewords), version.Number(), version.TotalCodewords())
	}

	ecBlocks := version.ECBlocksForLevel(ecLevel)
	result := make([]DataBlock, 0, ecBlocks.NumBlocks())
	for _, ecBlock := range ecBlocks.Blocks {
		for range ecBlock.Count {
			numDataCodewords := ecBlock.DataCodewords
			numBlockCodewords := ecBlocks.ECCodewordsPerBlock + numDataCodewords
			result = append(result, DataBlock{
				NumDataCodewords: numDataCodewords,
				Codewords:        make([]byte, numBlockCodewords),
			})
		}
	}

	// Blocks are either all the same length, or the trailing ones hold one
	// more data codeword. Find where the longer ones start.
	shorterBlocksTotalCodewords := len(result[0].Codewords)
	longerBlocksStartAt := len(result) - 1
	for longerBlocksStartAt >= 0 {
		if len(result[longerBlocksStartAt].Codewords) == shorterBlocksTotalCodewords {
			break
		}
		longerBlocksStartAt--
	}
	longerBlocksStartAt++

	shorterBlocksNumDataCodewords := shorterBlocksTotalCodewords - ecBlocks.ECCodewordsPerBlock
	rawCodewordsOffset := 0
	for i := range shorterBlocksNumDataCodewords {
		for j := range result {
			result[j].Codewords[i] = rawCodewords[rawCodewordsOffset]
			rawCodewordsOffset++
		}
	}
	for j := longerBlocksStartAt; j < len(result); j++ {
		result[j].Codewords[shorterBlocksNumDataCodewords] = rawCodewords[rawCodewordsOffset]
		rawCodewordsOffset++
	}
	// Check codewords sit one position later in the longer blocks.
	maxLen := len(result[0].Codewords)
	for i := shorterBlocksNumDataCodewords; i < maxLen; i++ {
		for j := range result {
			iOffset := i
			if j >= longerBlocksStartAt {
				iOffset = i + 1
			}
			result[j].Codewords[iOffset] = rawCodewords[rawCodewordsOffset]
			rawCodewordsOffset++
		}
	}
	return result, nil
}
