package decoder

import "github.com/MeKo-Tech/qrscan/internal/qrerr"

// BitSource reads bits most significant first from a byte slice.
type BitSource struct {
	bytes      []byte
	byteOffset int
	bitOffset  int
}

// NewBitSource wraps b; the slice is not copied.
func NewBitSource(b []byte) *BitSource {
	return &BitSource{bytes: b}
}

// BitOffset is the index of the next bit within the current byte.
func (s *BitSource) BitOffset() int { return s.bitOffset }

// ByteOffset is the index of the current byte.
func (s *BitSource) ByteOffset() int { return s.byteOffset }

// ReadBits reads numBits (1..32) bits as an unsigned value.
func (s *BitSource) ReadBits(numBits int) (int, error) {
	if numBits < 1 || numBits > 32 || numBits > s.Available() {
		return 0, qrerr.Format("bit source", "cannot read %d bits, %d available", numBits, s.Available())
	}

	result := 0
	if s.bitOffset > 0 {
		bitsLeft := 8 - s.bitOffset
		toRead := min(numBits, bitsLeft)
		bitsToNotRead := bitsLeft - toRead
		mask := (0xFF >> (8 - toRead)) << bitsToNotRead
		result = (int(s.bytes[s.byteOffset]) & mask) >> bitsToNotRead
		numBits -= toRead
		s.bitOffset += toRead
		if s.bitOffset == 8 {
			s.bitOffset = 0
			s.byteOffset++
		}
	}

	if numBits > 0 {
		for numBits >= 8 {
			result = (result << 8) | int(s.bytes[s.byteOffset])
			s.byteOffset++
			numBits -= 8
		}
		if numBits > 0 {
			bitsToNotRead := 8 - numBits
			mask := (0xFF >> bitsToNotRead) << bitsToNotRead
			result = (result << numBits) | ((int(s.bytes[s.byteOffset]) & mask) >> bitsToNotRead)
			s.bitOffset += numBits
		}
	}
	return result, nil
}

// Available reports how many bits remain.
func (s *BitSource) Available() int {
	return 8*(len(s.bytes)-s.byteOffset) - s.bitOffset
}
