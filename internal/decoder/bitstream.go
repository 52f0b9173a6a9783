package decoder

import (
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// NoECI marks a segment that no ECI designator applies to.
const NoECI = -1

// groupSeparator replaces a lone '%' in alphanumeric segments under FNC1.
const groupSeparator = 0x1D

var alphanumericChars = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:")

// Segment is the raw output of one data segment. Numeric and alphanumeric
// segments hold ASCII, byte segments the bytes as encoded, kanji segments
// Shift_JIS byte pairs.
type Segment struct {
	Mode  Mode   `json:"mode"`
	Count int    `json:"count"`
	ECI   int    `json:"eci"`
	Bytes []byte `json:"bytes"`
}

// StructuredAppend is the header of a symbol that is part of a sequence.
type StructuredAppend struct {
	Index  int `json:"index"`
	Total  int `json:"total"`
	Parity int `json:"parity"`
}

// FNC1 describes the FNC1 flag carried by a symbol, if any.
type FNC1 struct {
	Mode         Mode `json:"mode"`
	AppIndicator int  `json:"app_indicator,omitempty"`
}

// Payload is everything read from the data codewords.
type Payload struct {
	Segments         []Segment
	StructuredAppend *StructuredAppend
	FNC1             *FNC1
}

// Bytes concatenates the raw bytes of all segments.
func (p *Payload) Bytes() []byte {
	n := 0
	for _, s := range p.Segments {
		n += len(s.Bytes)
	}
	out := make([]byte, 0, n)
	for _, s := range p.Segments {
		out = append(out, s.Bytes...)
	}
	return out
}

// ReadPayload parses the corrected data codewords of a symbol into segments.
// A stream that runs out before a full mode indicator ends there.
func ReadPayload(data []byte, version *symbol.Version) (*Payload, error) {
	bits := NewBitSource(data)
	payload := &Payload{}
	currentECI := NoECI
	fc1InEffect := false

	for {
		mode := ModeTerminator
		if bits.Available() >= 4 {
			indicator, err := bits.ReadBits(4)
			if err != nil {
				return nil, err
			}
			if mode, err = ModeForBits(indicator); err != nil {
				return nil, err
			}
		}

		switch mode {
		case ModeTerminator:
			return payload, nil

		case ModeFNC1FirstPos:
			fc1InEffect = true
			payload.FNC1 = &FNC1{Mode: mode}

		case ModeFNC1SecondPos:
			fc1InEffect = true
			appIndicator, err := bits.ReadBits(8)
			if err != nil {
				return nil, err
			}
			payload.FNC1 = &FNC1{Mode: mode, AppIndicator: appIndicator}

		case ModeStructuredAppend:
			if bits.Available() < 16 {
				return nil, qrerr.Format("bitstream", "structured append header needs 16 bits, %d available", bits.Available())
			}
			sequence, _ := bits.ReadBits(8)
			parity, _ := bits.ReadBits(8)
			payload.StructuredAppend = &StructuredAppend{
				Index:  sequence >> 4,
				Total:  (sequence & 0x0F) + 1,
				Parity: parity,
			}

		case ModeECI:
			value, err := parseECIValue(bits)
			if err != nil {
				return nil, err
			}
			currentECI = value

		default:
			count, err := bits.ReadBits(mode.CharacterCountBits(version))
			if err != nil {
				return nil, err
			}
			var out []byte
			switch mode {
			case ModeNumeric:
				out, err = decodeNumericSegment(bits, count)
			case ModeAlphanumeric:
				out, err = decodeAlphanumericSegment(bits, count, fc1InEffect)
			case ModeByte:
				out, err = decodeByteSegment(bits, count)
			case ModeKanji:
				out, err = decodeKanjiSegment(bits, count)
			}
			if err != nil {
				return nil, err
			}
			payload.Segments = append(payload.Segments, Segment{
				Mode:  mode,
				Count: count,
				ECI:   currentECI,
				Bytes: out,
			})
		}
	}
}

func decodeNumericSegment(bits *BitSource, count int) ([]byte, error) {
	out := make([]byte, 0, count)
	for count >= 3 {
		if bits.Available() < 10 {
			return nil, qrerr.Format("bitstream", "numeric segment truncated")
		}
		threeDigits, _ := bits.ReadBits(10)
		if threeDigits >= 1000 {
			return nil, qrerr.Format("bitstream", "numeric group %d out of range", threeDigits)
		}
		out = append(out, byte('0'+threeDigits/100), byte('0'+(threeDigits/10)%10), byte('0'+threeDigits%10))
		count -= 3
	}
	switch count {
	case 2:
		if bits.Available() < 7 {
			return nil, qrerr.Format("bitstream", "numeric segment truncated")
		}
		twoDigits, _ := bits.ReadBits(7)
		if twoDigits >= 100 {
			return nil, qrerr.Format("bitstream", "numeric group %d out of range", twoDigits)
		}
		out = append(out, byte('0'+twoDigits/10), byte('0'+twoDigits%10))
	case 1:
		if bits.Available() < 4 {
			return nil, qrerr.Format("bitstream", "numeric segment truncated")
		}
		digit, _ := bits.ReadBits(4)
		if digit >= 10 {
			return nil, qrerr.Format("bitstream", "numeric digit %d out of range", digit)
		}
		out = append(out, byte('0'+digit))
	}
	return out, nil
}

func alphanumericChar(value int) (byte, error) {
	if value >= len(alphanumericChars) {
		return 0, qrerr.Format("bitstream", "alphanumeric value %d out of range", value)
	}
	return alphanumericChars[value], nil
}

func decodeAlphanumericSegment(bits *BitSource, count int, fc1InEffect bool) ([]byte, error) {
	out := make([]byte, 0, count)
	for count > 1 {
		if bits.Available() < 11 {
			return nil, qrerr.Format("bitstream", "alphanumeric segment truncated")
		}
		nextTwo, _ := bits.ReadBits(11)
		c1, err := alphanumericChar(nextTwo / 45)
		if err != nil {
			return nil, err
		}
		c2, _ := alphanumericChar(nextTwo % 45)
		out = append(out, c1, c2)
		count -= 2
	}
	if count == 1 {
		if bits.Available() < 6 {
			return nil, qrerr.Format("bitstream", "alphanumeric segment truncated")
		}
		v, _ := bits.ReadBits(6)
		c, err := alphanumericChar(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if !fc1InEffect {
		return out, nil
	}

	// Under FNC1 "%%" encodes a literal '%' and a single '%' encodes GS.
	result := make([]byte, 0, len(out))
	for i := 0; i < len(out); i++ {
		if out[i] != '%' {
			result = append(result, out[i])
			continue
		}
		if i+1 < len(out) && out[i+1] == '%' {
			result = append(result, '%')
			i++
		} else {
			result = append(result, groupSeparator)
		}
	}
	return result, nil
}

func decodeByteSegment(bits *BitSource, count int) ([]byte, error) {
	if 8*count > bits.Available() {
		return nil, qrerr.Format("bitstream", "byte segment of %d bytes exceeds %d available bits", count, bits.Available())
	}
	out := make([]byte, count)
	for i := range out {
		b, _ := bits.ReadBits(8)
		out[i] = byte(b)
	}
	return out, nil
}

func decodeKanjiSegment(bits *BitSource, count int) ([]byte, error) {
	if count*13 > bits.Available() {
		return nil, qrerr.Format("bitstream", "kanji segment of %d characters exceeds %d available bits", count, bits.Available())
	}
	out := make([]byte, 0, 2*count)
	for range count {
		twoBytes, _ := bits.ReadBits(13)
		assembled := ((twoBytes / 0x0C0) << 8) | (twoBytes % 0x0C0)
		if assembled < 0x01F00 {
			// In the 0x8140 to 0x9FFC range.
			assembled += 0x08140
		} else {
			// In the 0xE040 to 0xEBBF range.
			assembled += 0x0C140
		}
		out = append(out, byte(assembled>>8), byte(assembled))
	}
	return out, nil
}

// parseECIValue reads a 1, 2 or 3 byte ECI designator.
func parseECIValue(bits *BitSource) (int, error) {
	firstByte, err := bits.ReadBits(8)
	if err != nil {
		return 0, err
	}
	switch {
	case firstByte&0x80 == 0:
		return firstByte & 0x7F, nil
	case firstByte&0xC0 == 0x80:
		secondByte, err := bits.ReadBits(8)
		if err != nil {
			return 0, err
		}
		return ((firstByte & 0x3F) << 8) | secondByte, nil
	case firstByte&0xE0 == 0xC0:
		secondThirdBytes, err := bits.ReadBits(16)
		if err != nil {
			return 0, err
		}
		return ((firstByte & 0x1F) << 16) | secondThirdBytes, nil
	}
	return 0, qrerr.Format("bitstream", "invalid ECI designator 0x%02X", firstByte)
}
