package symbol

import (
	"math/bits"

	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

const (
	formatInfoMaskQR = 0x5412
	// maxFormatBitErrors is the largest Hamming distance a read may have
	// from a legal codeword and still be accepted.
	maxFormatBitErrors = 3
)

// formatInfoCodewords holds the BCH(15,5) codeword for every 5-bit data value
// (2 bits EC level, 3 bits mask), before masking with formatInfoMaskQR.
var formatInfoCodewords = [32]int{
	0x0000, 0x0537, 0x0A6E, 0x0F59, 0x11EB, 0x14DC, 0x1B85, 0x1EB2,
	0x23D6, 0x26E1, 0x29B8, 0x2C8F, 0x323D, 0x370A, 0x3853, 0x3D64,
	0x429B, 0x47AC, 0x48F5, 0x4DC2, 0x5370, 0x5647, 0x591E, 0x5C29,
	0x614D, 0x647A, 0x6B23, 0x6E14, 0x70A6, 0x7591, 0x7AC8, 0x7FFF,
}

// FormatInformation is the decoded 15-bit format field.
type FormatInformation struct {
	ECLevel  ECLevel
	DataMask int
}

// DecodeFormatInformation decodes one raw 15-bit format field as read from
// the symbol, tolerating up to three bit errors.
func DecodeFormatInformation(raw int) (FormatInformation, error) {
	unmasked := raw ^ formatInfoMaskQR
	bestDifference := maxFormatBitErrors + 1
	bestData := -1
	for data, codeword := range formatInfoCodewords {
		if codeword == unmasked {
			bestData = data
			bestDifference = 0
			break
		}
		if d := NumBitsDiffering(unmasked, codeword); d < bestDifference {
			bestDifference = d
			bestData = data
		}
	}
	if bestData < 0 {
		return FormatInformation{}, qrerr.Format("format info", "0x%04X is not within %d bits of a legal codeword", raw, maxFormatBitErrors)
	}
	level, err := ECLevelForBits((bestData >> 3) & 0x03)
	if err != nil {
		return FormatInformation{}, err
	}
	return FormatInformation{ECLevel: level, DataMask: bestData & 0x07}, nil
}

// EncodeFormatInformation returns the masked 15-bit field for info.
func EncodeFormatInformation(info FormatInformation) int {
	data := info.ECLevel.Bits()<<3 | info.DataMask&0x07
	return formatInfoCodewords[data] ^ formatInfoMaskQR
}

// NumBitsDiffering returns the Hamming distance between a and b.
func NumBitsDiffering(a, b int) int {
	return bits.OnesCount32(uint32(a ^ b))
}
