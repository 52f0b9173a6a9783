package decoder

import (
	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// BitGridParser reads structural fields and codewords from a sampled
// symbol. It takes ownership of the grid: reading codewords unmasks it in
// place.
type BitGridParser struct {
	bits       *bitgrid.BitGrid
	dimension  int
	version    *symbol.Version
	formatInfo *symbol.FormatInformation
}

// NewBitGridParser validates the grid shape.
func NewBitGridParser(bits *bitgrid.BitGrid) (*BitGridParser, error) {
	dimension, err := bits.Dimension()
	if err != nil {
		return nil, err
	}
	if dimension < 21 || dimension&0x03 != 1 {
		return nil, qrerr.Format("parse", "invalid symbol dimension %d", dimension)
	}
	return &BitGridParser{bits: bits, dimension: dimension}, nil
}

// ReadFormatInformation reads the copy around the top-left finder pattern
// and falls back to the split copy along the top-right and bottom-left
// finder patterns when the first does not decode.
func (p *BitGridParser) ReadFormatInformation() (symbol.FormatInformation, error) {
	if p.formatInfo != nil {
		return *p.formatInfo, nil
	}

	formatInfoBits1 := 0
	for i := range 6 {
		formatInfoBits1 = p.copyBit(i, 8, formatInfoBits1)
	}
	// Skip the timing pattern at row and column 6.
	formatInfoBits1 = p.copyBit(7, 8, formatInfoBits1)
	formatInfoBits1 = p.copyBit(8, 8, formatInfoBits1)
	formatInfoBits1 = p.copyBit(8, 7, formatInfoBits1)
	for j := 5; j >= 0; j-- {
		formatInfoBits1 = p.copyBit(8, j, formatInfoBits1)
	}
	info, err := symbol.DecodeFormatInformation(formatInfoBits1)
	if err == nil {
		p.formatInfo = &info
		return info, nil
	}

	dimension := p.dimension
	formatInfoBits2 := 0
	jMin := dimension - 7
	for j := dimension - 1; j >= jMin; j-- {
		formatInfoBits2 = p.copyBit(8, j, formatInfoBits2)
	}
	for i := dimension - 8; i < dimension; i++ {
		formatInfoBits2 = p.copyBit(i, 8, formatInfoBits2)
	}
	info, err = symbol.DecodeFormatInformation(formatInfoBits2)
	if err != nil {
		return symbol.FormatInformation{}, qrerr.Format("parse", "neither format information copy decodes (0x%04X, 0x%04X)", formatInfoBits1, formatInfoBits2)
	}
	p.formatInfo = &info
	return info, nil
}

// ReadVersion derives the version from the dimension for small symbols and
// decodes one of the two version blocks for larger ones.
func (p *BitGridParser) ReadVersion() (*symbol.Version, error) {
	if p.version != nil {
		return p.version, nil
	}
	dimension := p.dimension
	provisionalVersion := (dimension - 17) / 4
	if provisionalVersion <= 6 {
		v, err := symbol.VersionForNumber(provisionalVersion)
		if err != nil {
			return nil, err
		}
		p.version = v
		return v, nil
	}

	// Top-right block: 3 wide by 6 tall.
	versionBits := 0
	ijMin := dimension - 11
	for j := 5; j >= 0; j-- {
		for i := dimension - 9; i >= ijMin; i-- {
			versionBits = p.copyBit(i, j, versionBits)
		}
	}
	if v, err := symbol.DecodeVersionInformation(versionBits); err == nil && v.Dimension() == dimension {
		p.version = v
		return v, nil
	}

	// Bottom-left block: 6 wide by 3 tall.
	versionBits = 0
	for i := 5; i >= 0; i-- {
		for j := dimension - 9; j >= ijMin; j-- {
			versionBits = p.copyBit(i, j, versionBits)
		}
	}
	if v, err := symbol.DecodeVersionInformation(versionBits); err == nil && v.Dimension() == dimension {
		p.version = v
		return v, nil
	}
	return nil, qrerr.Format("parse", "no version information matches dimension %d", dimension)
}

func (p *BitGridParser) copyBit(i, j, versionBits int) int {
	if p.bits.Get(i, j) {
		return versionBits<<1 | 0x1
	}
	return versionBits << 1
}

// ReadCodewords unmasks the grid and reads the codewords in placement order:
// column pairs from the right edge leftwards, skipping the vertical timing
// column, alternating upward and downward, most significant bit first.
func (p *BitGridParser) ReadCodewords() ([]byte, error) {
	formatInfo, err := p.ReadFormatInformation()
	if err != nil {
		return nil, err
	}
	version, err := p.ReadVersion()
	if err != nil {
		return nil, err
	}
	dataMask, err := symbol.DataMaskForID(formatInfo.DataMask)
	if err != nil {
		return nil, err
	}
	dimension := p.dimension
	functionPattern := version.BuildFunctionPattern()
	dataMask.Unmask(p.bits, dimension, functionPattern)

	result := make([]byte, version.TotalCodewords())
	resultOffset := 0
	currentByte := 0
	bitsRead := 0
	readingUp := true
	for j := dimension - 1; j > 0; j -= 2 {
		if j == 6 {
			j--
		}
		for count := range dimension {
			i := count
			if readingUp {
				i = dimension - 1 - count
			}
			for col := range 2 {
				if functionPattern.Get(j-col, i) {
					continue
				}
				bitsRead++
				currentByte <<= 1
				if p.bits.Get(j-col, i) {
					currentByte |= 1
				}
				if bitsRead == 8 {
					if resultOffset < len(result) {
						result[resultOffset] = byte(currentByte)
					}
					resultOffset++
					bitsRead = 0
					currentByte = 0
				}
			}
		}
		readingUp = !readingUp
	}
	if resultOffset != version.TotalCodewords() {
		return nil, qrerr.Format("parse", "read %d codewords, version %d holds %d", resultOffset, version.Number(), version.TotalCodewords())
	}
	return result, nil
}
