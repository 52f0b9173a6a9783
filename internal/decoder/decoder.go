// Package decoder turns a sampled QR symbol grid into its payload segments.
//
// The flow is: parse format and version information, unmask and read the
// codewords, split them into Reed-Solomon blocks, correct each block, and
// parse the concatenated data codewords as a segment bitstream.
package decoder

import (
	"fmt"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/gf256"
	"github.com/MeKo-Tech/qrscan/internal/reedsolomon"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// Result is a decoded symbol.
type Result struct {
	Segments         []Segment
	Version          int
	ECLevel          symbol.ECLevel
	DataMask         int
	ErrorsCorrected  int
	StructuredAppend *StructuredAppend
	FNC1             *FNC1
	// DataBytes are the corrected data codewords of all blocks in order.
	DataBytes []byte
}

// Bytes concatenates the raw bytes of every segment.
func (r *Result) Bytes() []byte {
	p := Payload{Segments: r.Segments}
	return p.Bytes()
}

// Decoder decodes sampled symbol grids. It is safe for concurrent use.
type Decoder struct {
	rs *reedsolomon.Decoder
}

// New returns a Decoder over the QR code field.
func New() *Decoder {
	return &Decoder{rs: reedsolomon.NewDecoder(gf256.QRCodeField)}
}

// Decode reads the symbol in bits. The grid is unmasked in place, so callers
// that need it afterwards must pass a clone.
func (d *Decoder) Decode(bits *bitgrid.BitGrid) (*Result, error) {
	parser, err := NewBitGridParser(bits)
	if err != nil {
		return nil, err
	}
	codewords, err := parser.ReadCodewords()
	if err != nil {
		return nil, err
	}
	version, _ := parser.ReadVersion()
	formatInfo, _ := parser.ReadFormatInformation()

	dataBlocks, err := DataBlocks(codewords, version, formatInfo.ECLevel)
	if err != nil {
		return nil, err
	}

	totalBytes := 0
	for _, block := range dataBlocks {
		totalBytes += block.NumDataCodewords
	}
	resultBytes := make([]byte, 0, totalBytes)
	errorsCorrected := 0
	for i, block := range dataBlocks {
		n, err := d.correctErrors(block.Codewords, block.NumDataCodewords)
		if err != nil {
			return nil, fmt.Errorf("block %d of %d: %w", i+1, len(dataBlocks), err)
		}
		errorsCorrected += n
		resultBytes = append(resultBytes, block.Codewords[:block.NumDataCodewords]...)
	}

	payload, err := ReadPayload(resultBytes, version)
	if err != nil {
		return nil, err
	}
	return &Result{
		Segments:         payload.Segments,
		Version:          version.Number(),
		ECLevel:          formatInfo.ECLevel,
		DataMask:         formatInfo.DataMask,
		ErrorsCorrected:  errorsCorrected,
		StructuredAppend: payload.StructuredAppend,
		FNC1:             payload.FNC1,
		DataBytes:        resultBytes,
	}, nil
}

// correctErrors runs Reed-Solomon over one block in place.
func (d *Decoder) correctErrors(codewordBytes []byte, numDataCodewords int) (int, error) {
	codewordsInts := make([]int, len(codewordBytes))
	for i, b := range codewordBytes {
		codewordsInts[i] = int(b)
	}
	corrected, err := d.rs.Decode(codewordsInts, len(codewordBytes)-numDataCodewords)
	if err != nil {
		return 0, err
	}
	for i := range numDataCodewords {
		codewordBytes[i] = byte(codewordsInts[i])
	}
	return corrected, nil
}
