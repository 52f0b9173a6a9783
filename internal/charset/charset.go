// Package charset turns decoded QR segments into text. The decoder core
// hands out raw bytes per segment; this package applies ECI designators,
// Shift_JIS for kanji and a UTF-8 check with a configurable fallback.
package charset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/MeKo-Tech/qrscan/internal/decoder"
)

// Names reported for the encodings chosen without an ECI designator.
const (
	NameASCII    = "US-ASCII"
	NameUTF8     = "UTF-8"
	NameShiftJIS = "Shift_JIS"
	// DefaultFallback is the encoding QR readers assume for byte segments
	// that are not valid UTF-8.
	DefaultFallback = "ISO-8859-1"
)

type eciCharset struct {
	name string
	enc  encoding.Encoding
}

// eciCharsets maps ECI assignment values to encodings. Values with no
// x/text encoding (ISO-8859-11, -12) are absent and rejected.
var eciCharsets = map[int]eciCharset{
	0:  {"Cp437", charmap.CodePage437},
	1:  {"ISO-8859-1", charmap.ISO8859_1},
	2:  {"Cp437", charmap.CodePage437},
	3:  {"ISO-8859-1", charmap.ISO8859_1},
	4:  {"ISO-8859-2", charmap.ISO8859_2},
	5:  {"ISO-8859-3", charmap.ISO8859_3},
	6:  {"ISO-8859-4", charmap.ISO8859_4},
	7:  {"ISO-8859-5", charmap.ISO8859_5},
	8:  {"ISO-8859-6", charmap.ISO8859_6},
	9:  {"ISO-8859-7", charmap.ISO8859_7},
	10: {"ISO-8859-8", charmap.ISO8859_8},
	11: {"ISO-8859-9", charmap.ISO8859_9},
	12: {"ISO-8859-10", charmap.ISO8859_10},
	15: {"ISO-8859-13", charmap.ISO8859_13},
	16: {"ISO-8859-14", charmap.ISO8859_14},
	17: {"ISO-8859-15", charmap.ISO8859_15},
	18: {"ISO-8859-16", charmap.ISO8859_16},
	20: {"Shift_JIS", japanese.ShiftJIS},
	21: {"windows-1250", charmap.Windows1250},
	22: {"windows-1251", charmap.Windows1251},
	23: {"windows-1252", charmap.Windows1252},
	24: {"windows-1256", charmap.Windows1256},
	25: {"UTF-16BE", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	26: {"UTF-8", unicode.UTF8},
	27: {"US-ASCII", charmap.ISO8859_1},
	28: {"Big5", traditionalchinese.Big5},
	29: {"GB18030", simplifiedchinese.GB18030},
	30: {"EUC-KR", korean.EUCKR},
}

// ForECI returns the encoding and its name for an ECI value.
func ForECI(eci int) (encoding.Encoding, string, error) {
	cs, ok := eciCharsets[eci]
	if !ok {
		return nil, "", fmt.Errorf("unsupported ECI %d", eci)
	}
	return cs.enc, cs.name, nil
}

// Lookup resolves an IANA charset name such as "ISO-8859-1" or "Shift_JIS".
func Lookup(name string) (encoding.Encoding, error) {
	if strings.EqualFold(name, NameUTF8) {
		return unicode.UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", name)
	}
	return enc, nil
}

// DecodeSegments converts segments to a string. fallback names the
// encoding for byte segments that carry no ECI and are not valid UTF-8;
// empty means ISO-8859-1. The returned name is the charset of the first
// byte or kanji segment, or US-ASCII when there is none.
func DecodeSegments(segments []decoder.Segment, fallback string) (string, string, error) {
	if fallback == "" {
		fallback = DefaultFallback
	}
	var sb strings.Builder
	used := ""
	for i, seg := range segments {
		text, name, err := decodeSegment(seg, fallback)
		if err != nil {
			return "", "", fmt.Errorf("segment %d (%s): %w", i, seg.Mode, err)
		}
		sb.WriteString(text)
		if used == "" && name != NameASCII {
			used = name
		}
	}
	if used == "" {
		used = NameASCII
	}
	return sb.String(), used, nil
}

func decodeSegment(seg decoder.Segment, fallback string) (string, string, error) {
	switch seg.Mode {
	case decoder.ModeNumeric, decoder.ModeAlphanumeric:
		return string(seg.Bytes), NameASCII, nil
	case decoder.ModeKanji:
		return decodeWith(japanese.ShiftJIS, NameShiftJIS, seg.Bytes)
	}

	if seg.ECI != decoder.NoECI {
		enc, name, err := ForECI(seg.ECI)
		if err != nil {
			return "", "", err
		}
		return decodeWith(enc, name, seg.Bytes)
	}
	if utf8.Valid(seg.Bytes) {
		return string(seg.Bytes), NameUTF8, nil
	}
	enc, err := Lookup(fallback)
	if err != nil {
		return "", "", err
	}
	return decodeWith(enc, fallback, seg.Bytes)
}

func decodeWith(enc encoding.Encoding, name string, b []byte) (string, string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), name, nil
}
