package pkguid

import "strconv"

// StringID generates unique string identifiers.
type StringID interface {
	// Generate generates a unique identifier as a string.
	Generate() string
}

// NumberID generates unique numeric identifiers.
type NumberID interface {
	// Generate generates a unique identifier as a int64 number.
	Generate() int64
}

// Decimal exposes a NumberID as a StringID using base 10.
type Decimal struct {
	NumberID
}

// Generate returns the next numeric ID formatted as a decimal string.
func (d Decimal) Generate() string {
	return strconv.FormatInt(d.NumberID.Generate(), 10)
}
