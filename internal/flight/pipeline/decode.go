package pipeline

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Detector guesses the charset name of raw bytes.
type Detector interface {
	Detect(raw []byte) (string, error)
}

// Candidate is one encoding the decoder may try. A nil Encoding means strict
// UTF-8.
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

var (
	UTF8     = Candidate{Name: "utf-8"}
	UTF16    = Candidate{Name: "utf-16", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)}
	UTF16LE  = Candidate{Name: "utf-16le", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
	UTF16BE  = Candidate{Name: "utf-16be", Encoding: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
	CP949    = Candidate{Name: "cp949", Encoding: korean.EUCKR}
	ShiftJIS = Candidate{Name: "shift_jis", Encoding: japanese.ShiftJIS}
	GBK      = Candidate{Name: "gbk", Encoding: simplifiedchinese.GBK}
	Big5     = Candidate{Name: "big5", Encoding: traditionalchinese.Big5}
)

// DefaultCandidates is the fallback order tried after the detected encoding.
func DefaultCandidates() []Candidate {
	return []Candidate{UTF8, UTF16, UTF16LE, UTF16BE, CP949, ShiftJIS, GBK, Big5}
}

// Decoded is text together with the encoding that produced it.
type Decoded struct {
	Text     string
	Encoding string
}

type Decoder struct {
	Detector   Detector
	Default    Candidate
	Candidates []Candidate
}

// NewDecoder returns a decoder that asks the chardet detector first and then
// walks DefaultCandidates.
func NewDecoder() *Decoder {
	return &Decoder{
		Detector:   CharsetDetector{MinConfidence: DefaultMinConfidence},
		Default:    UTF8,
		Candidates: DefaultCandidates(),
	}
}

// Decode turns raw into text. It never returns a partial decode: either one
// candidate decodes the whole payload strictly or a *DecodeError is returned.
func (d *Decoder) Decode(raw []byte) (Decoded, error) {
	order := make([]Candidate, 0, len(d.Candidates)+1)
	order = append(order, d.first(raw))
	order = append(order, d.Candidates...)

	wideHint := hasUTF16BOM(raw) || bytes.IndexByte(raw, 0) >= 0

	tried := make([]string, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, c := range order {
		if c.Name == "" {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		if c.wide() && !wideHint {
			continue
		}
		tried = append(tried, c.Name)

		if text, ok := c.decode(raw); ok {
			return Decoded{Text: text, Encoding: c.Name}, nil
		}
	}

	return Decoded{}, &DecodeError{Tried: tried}
}

func (d *Decoder) first(raw []byte) Candidate {
	if d.Detector == nil {
		return d.Default
	}

	name, err := d.Detector.Detect(raw)
	if err != nil || name == "" {
		return d.Default
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return d.Default
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}
	if canonical == UTF8.Name {
		return UTF8
	}

	return Candidate{Name: canonical, Encoding: enc}
}

// wide reports whether c reads two-byte code units. Delimited text in such an
// encoding always carries a BOM or NUL bytes, so other payloads skip it.
func (c Candidate) wide() bool {
	return strings.HasPrefix(c.Name, "utf-16")
}

func hasUTF16BOM(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte{0xff, 0xfe}) || bytes.HasPrefix(raw, []byte{0xfe, 0xff})
}

func (c Candidate) decode(raw []byte) (string, bool) {
	var out []byte
	if c.Encoding == nil {
		if !utf8.Valid(raw) {
			return "", false
		}
		out = raw
	} else {
		var err error
		out, err = c.Encoding.NewDecoder().Bytes(raw)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			return "", false
		}
	}

	// Delimited text never carries NUL; seeing one means the bytes were
	// read with the wrong code unit width.
	if bytes.IndexByte(out, 0) >= 0 {
		return "", false
	}

	return strings.TrimPrefix(string(out), "\ufeff"), true
}

// DefaultMinConfidence is the chardet confidence below which a guess is ignored.
const DefaultMinConfidence = 50

// CharsetDetector guesses encodings with chardet's text detector. Guesses
// below MinConfidence are reported as no guess.
type CharsetDetector struct {
	MinConfidence int
}

func (d CharsetDetector) Detect(raw []byte) (string, error) {
	results, err := chardet.NewTextDetector().DetectAll(raw)
	if err != nil {
		return "", err
	}

	minConfidence := d.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	best := chardet.Result{}
	for _, res := range results {
		if res.Confidence > best.Confidence {
			best = res
		}
	}
	if best.Confidence < minConfidence {
		return "", nil
	}
	return best.Charset, nil
}
