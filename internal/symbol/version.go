package symbol

import (
	"strconv"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// ECB is a group of identically sized blocks.
type ECB struct {
	Count         int
	DataCodewords int
}

// ECBlocks describes the block structure for one version and EC level.
// Every block carries ECCodewordsPerBlock check codewords.
type ECBlocks struct {
	ECCodewordsPerBlock int
	Blocks              []ECB
}

// NumBlocks returns the total number of blocks across all groups.
func (e ECBlocks) NumBlocks() int {
	total := 0
	for _, b := range e.Blocks {
		total += b.Count
	}
	return total
}

// TotalECCodewords returns the check codewords across all blocks.
func (e ECBlocks) TotalECCodewords() int {
	return e.ECCodewordsPerBlock * e.NumBlocks()
}

// Version is one of the 40 QR symbol sizes.
type Version struct {
	number                  int
	alignmentPatternCenters []int
	ecBlocks                [4]ECBlocks
	totalCodewords          int
}

func ecb(ecCodewordsPerBlock int, groups ...int) ECBlocks {
	blocks := make([]ECB, 0, len(groups)/2)
	for i := 0; i+1 < len(groups); i += 2 {
		blocks = append(blocks, ECB{Count: groups[i], DataCodewords: groups[i+1]})
	}
	return ECBlocks{ECCodewordsPerBlock: ecCodewordsPerBlock, Blocks: blocks}
}

func newVersion(number int, alignmentPatternCenters []int, l, m, q, h ECBlocks) *Version {
	total := 0
	for _, b := range l.Blocks {
		total += b.Count * (b.DataCodewords + l.ECCodewordsPerBlock)
	}
	return &Version{
		number:                  number,
		alignmentPatternCenters: alignmentPatternCenters,
		ecBlocks:                [4]ECBlocks{l, m, q, h},
		totalCodewords:          total,
	}
}

// Number returns the version number, 1 through 40.
func (v *Version) Number() int { return v.number }

// Dimension returns the side length in modules.
func (v *Version) Dimension() int { return 17 + 4*v.number }

// TotalCodewords returns the data plus check codewords in the symbol.
func (v *Version) TotalCodewords() int { return v.totalCodewords }

// AlignmentPatternCenters returns the row/column coordinates of alignment
// pattern centers. The slice must not be modified.
func (v *Version) AlignmentPatternCenters() []int { return v.alignmentPatternCenters }

// ECBlocksForLevel returns the block layout for level.
func (v *Version) ECBlocksForLevel(level ECLevel) ECBlocks { return v.ecBlocks[level] }

// DataCodewords returns the number of data codewords at level.
func (v *Version) DataCodewords(level ECLevel) int {
	return v.totalCodewords - v.ecBlocks[level].TotalECCodewords()
}

func (v *Version) String() string { return "Version " + strconv.Itoa(v.number) }

// VersionForNumber looks up a version by number.
func VersionForNumber(number int) (*Version, error) {
	if number < 1 || number > len(versions) {
		return nil, qrerr.Format("version", "no version %d", number)
	}
	return versions[number-1], nil
}

// ProvisionalVersionForDimension derives the version a square symbol of the
// given side length must be.
func ProvisionalVersionForDimension(dimension int) (*Version, error) {
	if dimension%4 != 1 {
		return nil, qrerr.Format("version", "dimension %d is not 1 mod 4", dimension)
	}
	return VersionForNumber((dimension - 17) / 4)
}

const maxVersionBitErrors = 3

// versionDecodeInfo holds the 18-bit BCH codewords for versions 7 to 40.
var versionDecodeInfo = [...]int{
	0x07C94, 0x085BC, 0x09A99, 0x0A4D3, 0x0BBF6, 0x0C762, 0x0D847, 0x0E60D,
	0x0F928, 0x10B78, 0x1145D, 0x12A17, 0x13532, 0x149A6, 0x15683, 0x168C9,
	0x177EC, 0x18EC4, 0x191E1, 0x1AFAB, 0x1B08E, 0x1CC1A, 0x1D33F, 0x1ED75,
	0x1F250, 0x209D5, 0x216F0, 0x228BA, 0x2379F, 0x24B0B, 0x2542E, 0x26A64,
	0x27541, 0x28C69,
}

// DecodeVersionInformation decodes an 18-bit version field, tolerating up to
// three bit errors.
func DecodeVersionInformation(versionBits int) (*Version, error) {
	bestDifference := maxVersionBitErrors + 1
	bestVersion := 0
	for i, target := range versionDecodeInfo {
		if target == versionBits {
			return VersionForNumber(i + 7)
		}
		if d := NumBitsDiffering(versionBits, target); d < bestDifference {
			bestVersion = i + 7
			bestDifference = d
		}
	}
	if bestVersion == 0 {
		return nil, qrerr.Format("version info", "0x%05X is not within %d bits of a legal codeword", versionBits, maxVersionBitErrors)
	}
	return VersionForNumber(bestVersion)
}

// EncodeVersionInformation returns the 18-bit field for versions 7 and up.
func EncodeVersionInformation(v *Version) (int, bool) {
	if v.number < 7 {
		return 0, false
	}
	return versionDecodeInfo[v.number-7], true
}

// BuildFunctionPattern marks every module that is not available for data:
// finder patterns with separators and format information, timing patterns,
// alignment patterns, the dark module and version information.
func (v *Version) BuildFunctionPattern() *bitgrid.BitGrid {
	dimension := v.Dimension()
	grid := bitgrid.NewSquare(dimension)
	// All regions below lie inside the grid for every version, so SetRegion
	// cannot fail here.
	set := func(left, top, width, height int) { _ = grid.SetRegion(left, top, width, height) }

	set(0, 0, 9, 9)
	set(dimension-8, 0, 8, 9)
	set(0, dimension-8, 9, 8)

	centers := v.alignmentPatternCenters
	last := len(centers) - 1
	for x, cx := range centers {
		top := cx - 2
		for y, cy := range centers {
			if (x == 0 && (y == 0 || y == last)) || (x == last && y == 0) {
				continue
			}
			set(cy-2, top, 5, 5)
		}
	}

	set(6, 9, 1, dimension-17)
	set(9, 6, dimension-17, 1)

	if v.number > 6 {
		set(dimension-11, 0, 3, 6)
		set(0, dimension-11, 6, 3)
	}
	return grid
}

var versions = [...]*Version{
	newVersion(1, nil,
		ecb(7, 1, 19),
		ecb(10, 1, 16),
		ecb(13, 1, 13),
		ecb(17, 1, 9)),
	newVersion(2, []int{6, 18},
		ecb(10, 1, 34),
		ecb(16, 1, 28),
		ecb(22, 1, 22),
		ecb(28, 1, 16)),
	newVersion(3, []int{6, 22},
		ecb(15, 1, 55),
		ecb(26, 1, 44),
		ecb(18, 2, 17),
		ecb(22, 2, 13)),
	newVersion(4, []int{6, 26},
		ecb(20, 1, 80),
		ecb(18, 2, 32),
		ecb(26, 2, 24),
		ecb(16, 4, 9)),
	newVersion(5, []int{6, 30},
		ecb(26, 1, 108),
		ecb(24, 2, 43),
		ecb(18, 2, 15, 2, 16),
		ecb(22, 2, 11, 2, 12)),
	newVersion(6, []int{6, 34},
		ecb(18, 2, 68),
		ecb(16, 4, 27),
		ecb(24, 4, 19),
		ecb(28, 4, 15)),
	newVersion(7, []int{6, 22, 38},
		ecb(20, 2, 78),
		ecb(18, 4, 31),
		ecb(18, 2, 14, 4, 15),
		ecb(26, 4, 13, 1, 14)),
	newVersion(8, []int{6, 24, 42},
		ecb(24, 2, 97),
		ecb(22, 2, 38, 2, 39),
		ecb(22, 4, 18, 2, 19),
		ecb(26, 4, 14, 2, 15)),
	newVersion(9, []int{6, 26, 46},
		ecb(30, 2, 116),
		ecb(22, 3, 36, 2, 37),
		ecb(20, 4, 16, 4, 17),
		ecb(24, 4, 12, 4, 13)),
	newVersion(10, []int{6, 28, 50},
		ecb(18, 2, 68, 2, 69),
		ecb(26, 4, 43, 1, 44),
		ecb(24, 6, 19, 2, 20),
		ecb(28, 6, 15, 2, 16)),
	newVersion(11, []int{6, 30, 54},
		ecb(20, 4, 81),
		ecb(30, 1, 50, 4, 51),
		ecb(28, 4, 22, 4, 23),
		ecb(24, 3, 12, 8, 13)),
	newVersion(12, []int{6, 32, 58},
		ecb(24, 2, 92, 2, 93),
		ecb(22, 6, 36, 2, 37),
		ecb(26, 4, 20, 6, 21),
		ecb(28, 7, 14, 4, 15)),
	newVersion(13, []int{6, 34, 62},
		ecb(26, 4, 107),
		ecb(22, 8, 37, 1, 38),
		ecb(24, 8, 20, 4, 21),
		ecb(22, 12, 11, 4, 12)),
	newVersion(14, []int{6, 26, 46, 66},
		ecb(30, 3, 115, 1, 116),
		ecb(24, 4, 40, 5, 41),
		ecb(20, 11, 16, 5, 17),
		ecb(24, 11, 12, 5, 13)),
	newVersion(15, []int{6, 26, 48, 70},
		ecb(22, 5, 87, 1, 88),
		ecb(24, 5, 41, 5, 42),
		ecb(30, 5, 24, 7, 25),
		ecb(24, 11, 12, 7, 13)),
	newVersion(16, []int{6, 26, 50, 74},
		ecb(24, 5, 98, 1, 99),
		ecb(28, 7, 45, 3, 46),
		ecb(24, 15, 19, 2, 20),
		ecb(30, 3, 15, 13, 16)),
	newVersion(17, []int{6, 30, 54, 78},
		ecb(28, 1, 107, 5, 108),
		ecb(28, 10, 46, 1, 47),
		ecb(28, 1, 22, 15, 23),
		ecb(28, 2, 14, 17, 15)),
	newVersion(18, []int{6, 30, 56, 82},
		ecb(30, 5, 120, 1, 121),
		ecb(26, 9, 43, 4, 44),
		ecb(28, 17, 22, 1, 23),
		ecb(28, 2, 14, 19, 15)),
	newVersion(19, []int{6, 30, 58, 86},
		ecb(28, 3, 113, 4, 114),
		ecb(26, 3, 44, 11, 45),
		ecb(26, 17, 21, 4, 22),
		ecb(26, 9, 13, 16, 14)),
	newVersion(20, []int{6, 34, 62, 90},
		ecb(28, 3, 107, 5, 108),
		ecb(26, 3, 41, 13, 42),
		ecb(30, 15, 24, 5, 25),
		ecb(28, 15, 15, 10, 16)),
	newVersion(21, []int{6, 28, 50, 72, 94},
		ecb(28, 4, 116, 4, 117),
		ecb(26, 17, 42),
		ecb(28, 17, 22, 6, 23),
		ecb(30, 19, 16, 6, 17)),
	newVersion(22, []int{6, 26, 50, 74, 98},
		ecb(28, 2, 111, 7, 112),
		ecb(28, 17, 46),
		ecb(30, 7, 24, 16, 25),
		ecb(24, 34, 13)),
	newVersion(23, []int{6, 30, 54, 78, 102},
		ecb(30, 4, 121, 5, 122),
		ecb(28, 4, 47, 14, 48),
		ecb(30, 11, 24, 14, 25),
		ecb(30, 16, 15, 14, 16)),
	newVersion(24, []int{6, 28, 54, 80, 106},
		ecb(30, 6, 117, 4, 118),
		ecb(28, 6, 45, 14, 46),
		ecb(30, 11, 24, 16, 25),
		ecb(30, 30, 16, 2, 17)),
	newVersion(25, []int{6, 32, 58, 84, 110},
		ecb(26, 8, 106, 4, 107),
		ecb(28, 8, 47, 13, 48),
		ecb(30, 7, 24, 22, 25),
		ecb(30, 22, 15, 13, 16)),
	newVersion(26, []int{6, 30, 58, 86, 114},
		ecb(28, 10, 114, 2, 115),
		ecb(28, 19, 46, 4, 47),
		ecb(28, 28, 22, 6, 23),
		ecb(30, 33, 16, 4, 17)),
	newVersion(27, []int{6, 34, 62, 90, 118},
		ecb(30, 8, 122, 4, 123),
		ecb(28, 22, 45, 3, 46),
		ecb(30, 8, 23, 26, 24),
		ecb(30, 12, 15, 28, 16)),
	newVersion(28, []int{6, 26, 50, 74, 98, 122},
		ecb(30, 3, 117, 10, 118),
		ecb(28, 3, 45, 23, 46),
		ecb(30, 4, 24, 31, 25),
		ecb(30, 11, 15, 31, 16)),
	newVersion(29, []int{6, 30, 54, 78, 102, 126},
		ecb(30, 7, 116, 7, 117),
		ecb(28, 21, 45, 7, 46),
		ecb(30, 1, 23, 37, 24),
		ecb(30, 19, 15, 26, 16)),
	newVersion(30, []int{6, 26, 52, 78, 104, 130},
		ecb(30, 5, 115, 10, 116),
		ecb(28, 19, 47, 10, 48),
		ecb(30, 15, 24, 25, 25),
		ecb(30, 23, 15, 25, 16)),
	newVersion(31, []int{6, 30, 56, 82, 108, 134},
		ecb(30, 13, 115, 3, 116),
		ecb(28, 2, 46, 29, 47),
		ecb(30, 42, 24, 1, 25),
		ecb(30, 23, 15, 28, 16)),
	newVersion(32, []int{6, 34, 60, 86, 112, 138},
		ecb(30, 17, 115),
		ecb(28, 10, 46, 23, 47),
		ecb(30, 10, 24, 35, 25),
		ecb(30, 19, 15, 35, 16)),
	newVersion(33, []int{6, 30, 58, 86, 114, 142},
		ecb(30, 17, 115, 1, 116),
		ecb(28, 14, 46, 21, 47),
		ecb(30, 29, 24, 19, 25),
		ecb(30, 11, 15, 46, 16)),
	newVersion(34, []int{6, 34, 62, 90, 118, 146},
		ecb(30, 13, 115, 6, 116),
		ecb(28, 14, 46, 23, 47),
		ecb(30, 44, 24, 7, 25),
		ecb(30, 59, 16, 1, 17)),
	newVersion(35, []int{6, 30, 54, 78, 102, 126, 150},
		ecb(30, 12, 121, 7, 122),
		ecb(28, 12, 47, 26, 48),
		ecb(30, 39, 24, 14, 25),
		ecb(30, 22, 15, 41, 16)),
	newVersion(36, []int{6, 24, 50, 76, 102, 128, 154},
		ecb(30, 6, 121, 14, 122),
		ecb(28, 6, 47, 34, 48),
		ecb(30, 46, 24, 10, 25),
		ecb(30, 2, 15, 64, 16)),
	newVersion(37, []int{6, 28, 54, 80, 106, 132, 158},
		ecb(30, 17, 122, 4, 123),
		ecb(28, 29, 46, 14, 47),
		ecb(30, 49, 24, 10, 25),
		ecb(30, 24, 15, 46, 16)),
	newVersion(38, []int{6, 32, 58, 84, 110, 136, 162},
		ecb(30, 4, 122, 18, 123),
		ecb(28, 13, 46, 32, 47),
		ecb(30, 48, 24, 14, 25),
		ecb(30, 42, 15, 32, 16)),
	newVersion(39, []int{6, 26, 54, 82, 110, 138, 166},
		ecb(30, 20, 117, 4, 118),
		ecb(28, 40, 47, 7, 48),
		ecb(30, 43, 24, 22, 25),
		ecb(30, 10, 15, 67, 16)),
	newVersion(40, []int{6, 30, 58, 86, 114, 142, 170},
		ecb(30, 19, 118, 6, 119),
		ecb(28, 18, 47, 31, 48),
		ecb(30, 34, 24, 34, 25),
		ecb(30, 20, 15, 61, 16)),
}
