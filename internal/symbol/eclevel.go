package symbol

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// ECLevel is one of the four error correction strengths. The ordinal order
// L, M, Q, H indexes the per-version block tables.
type ECLevel int

const (
	ECLevelL ECLevel = iota // ~7% recovery
	ECLevelM                // ~15%
	ECLevelQ                // ~25%
	ECLevelH                // ~30%
)

// forBits maps the 2-bit format field to a level.
var forBits = [4]ECLevel{ECLevelM, ECLevelL, ECLevelH, ECLevelQ}

// ECLevelForBits decodes the 2-bit level field of the format information.
func ECLevelForBits(bits int) (ECLevel, error) {
	if bits < 0 || bits >= len(forBits) {
		return 0, qrerr.Format("ec level", "invalid bits %d", bits)
	}
	return forBits[bits], nil
}

// Bits returns the 2-bit format field encoding of the level.
func (l ECLevel) Bits() int {
	switch l {
	case ECLevelL:
		return 0x01
	case ECLevelM:
		return 0x00
	case ECLevelQ:
		return 0x03
	case ECLevelH:
		return 0x02
	}
	return -1
}

func (l ECLevel) String() string {
	switch l {
	case ECLevelL:
		return "L"
	case ECLevelM:
		return "M"
	case ECLevelQ:
		return "Q"
	case ECLevelH:
		return "H"
	}
	return fmt.Sprintf("ECLevel(%d)", int(l))
}

// ParseECLevel parses "L", "M", "Q" or "H", case-insensitively.
func ParseECLevel(s string) (ECLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L":
		return ECLevelL, nil
	case "M":
		return ECLevelM, nil
	case "Q":
		return ECLevelQ, nil
	case "H":
		return ECLevelH, nil
	}
	return 0, fmt.Errorf("unknown error correction level %q", s)
}

// MarshalText implements encoding.TextMarshaler so levels serialize as letters.
func (l ECLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ECLevel) UnmarshalText(text []byte) error {
	v, err := ParseECLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
