package decoder

import (
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// Mode is a 4-bit segment mode indicator.
type Mode int

const (
	ModeTerminator       Mode = 0x0
	ModeNumeric          Mode = 0x1
	ModeAlphanumeric     Mode = 0x2
	ModeStructuredAppend Mode = 0x3
	ModeByte             Mode = 0x4
	ModeFNC1FirstPos     Mode = 0x5
	ModeECI              Mode = 0x7
	ModeKanji            Mode = 0x8
	ModeFNC1SecondPos    Mode = 0x9
)

var modeNames = map[Mode]string{
	ModeTerminator:       "terminator",
	ModeNumeric:          "numeric",
	ModeAlphanumeric:     "alphanumeric",
	ModeStructuredAppend: "structured_append",
	ModeByte:             "byte",
	ModeFNC1FirstPos:     "fnc1_first",
	ModeECI:              "eci",
	ModeKanji:            "kanji",
	ModeFNC1SecondPos:    "fnc1_second",
}

// characterCountBits per mode for versions 1-9, 10-26 and 27-40.
var characterCountBits = map[Mode][3]int{
	ModeNumeric:      {10, 12, 14},
	ModeAlphanumeric: {9, 11, 13},
	ModeByte:         {8, 16, 16},
	ModeKanji:        {8, 10, 12},
}

// ModeForBits maps a mode indicator to its Mode.
func ModeForBits(bits int) (Mode, error) {
	m := Mode(bits)
	if _, ok := modeNames[m]; !ok {
		return 0, qrerr.Format("mode", "unsupported mode indicator 0x%X", bits)
	}
	return m, nil
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// CharacterCountBits is the width of the count field following the mode
// indicator, or 0 for modes that carry no character count.
func (m Mode) CharacterCountBits(version *symbol.Version) int {
	widths, ok := characterCountBits[m]
	if !ok {
		return 0
	}
	number := version.Number()
	switch {
	case number <= 9:
		return widths[0]
	case number <= 26:
		return widths[1]
	default:
		return widths[2]
	}
}
