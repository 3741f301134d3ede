package numfmt

import (
	"math"
	"strconv"
	"strings"

	"ab-analyzer/internal/models"
)

// DecimalStyle tells Normalize how to read a lone separator. It is a
// mandatory caller-supplied hint, never inferred from the value itself:
// "1,234" is ambiguous on its own.
type DecimalStyle int

const (
	// DotDecimal reads "1,234.56" style input (comma groups thousands).
	DotDecimal DecimalStyle = iota
	// CommaDecimal reads "1.234,56" style input (fr-FR, pt-BR).
	CommaDecimal
)

// symbolStripper removes currency symbols and every space variant seen in
// exported data, including the non-breaking spaces Intl formatters emit.
var symbolStripper = strings.NewReplacer(
	"R$", "",
	"€", "",
	"$", "",
	"£", "",
	" ", "",
	" ", "",
	" ", "",
	"\t", "",
)

// Normalize parses locale-formatted numeric text into a canonical float.
// When both separators appear, the one appearing later in the string is the
// decimal point and the earlier one is dropped as a thousands separator.
// Unparseable input yields (0, false); it never errors. Negative and
// non-finite results coerce to 0 so normalized revenue is always a finite,
// non-negative real.
func Normalize(text string, style DecimalStyle) (float64, bool) {
	s := symbolStripper.Replace(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}

	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')

	switch {
	case dot >= 0 && comma >= 0:
		if dot > comma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		if style == CommaDecimal {
			// All commas but the last are grouping.
			if n := strings.Count(s, ","); n > 1 {
				s = strings.Replace(s, ",", "", n-1)
			}
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dot >= 0:
		if style == CommaDecimal {
			// Comma-decimal exports use the dot for grouping: "1.234" is
			// one thousand two hundred thirty-four.
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 {
		return 0, true
	}
	return v, true
}

// NormalizeAmount resolves an uploaded number-or-string value. Numeric
// input passes through untouched apart from the non-negative/finite
// coercion, which keeps the operation idempotent.
func NormalizeAmount(a models.Amount, style DecimalStyle) (float64, bool) {
	if a.IsText {
		return Normalize(a.Text, style)
	}
	if math.IsNaN(a.Number) || math.IsInf(a.Number, 0) {
		return 0, false
	}
	if a.Number < 0 {
		return 0, true
	}
	return a.Number, true
}
