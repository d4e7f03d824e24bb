package grid

import (
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Display formats understood by FormatCell.
const (
	FormatText = "text"
	FormatEnum = "enum"
	FormatBool = "bool"
	FormatABV  = "abv"
	FormatML   = "ml"
	FormatOz   = "oz"
	FormatUSD  = "usd"
	FormatUSD3 = "usd3"
	FormatInt  = "int"
	FormatNum  = "num"
)

// FormatCell renders a committed value for display.
func FormatCell(val any, format string) string {
	if val == nil {
		return ""
	}
	f, isNum := toFloat(val)
	switch format {
	case FormatBool:
		if truthy(val) {
			return "[x]"
		}
		return "[ ]"
	case FormatABV:
		if !isNum {
			break
		}
		if f == 0 {
			return "—"
		}
		return strconv.FormatFloat(f, 'f', 1, 64) + " %"
	case FormatML:
		if isNum {
			return strconv.FormatFloat(math.Round(f), 'f', 0, 64) + " mL"
		}
	case FormatOz:
		if isNum {
			return strconv.FormatFloat(f, 'f', 1, 64) + " oz"
		}
	case FormatUSD:
		if isNum {
			return "$ " + groupThousands(strconv.FormatFloat(f, 'f', 2, 64))
		}
	case FormatUSD3:
		if isNum {
			return "$ " + groupThousands(strconv.FormatFloat(f, 'f', 3, 64))
		}
	case FormatInt:
		if isNum {
			return strconv.FormatInt(int64(f), 10)
		}
	case FormatNum:
		if isNum {
			if f == math.Trunc(f) {
				return strconv.FormatInt(int64(f), 10)
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return ValueString(val)
}

func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

// Numeric reports whether a format is right-aligned.
func Numeric(format string) bool {
	switch format {
	case FormatABV, FormatML, FormatOz, FormatUSD, FormatUSD3, FormatInt, FormatNum:
		return true
	}
	return false
}

// AlignCell pads or truncates s to width display cells.
func AlignCell(s string, format string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, ".")
	}
	if Numeric(format) {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

// ParseCell converts edited text back into a typed value for a format.
// Text that does not parse is kept as a string.
func ParseCell(s string, format string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch format {
	case FormatInt:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
		return s
	case FormatNum, FormatABV, FormatML, FormatOz, FormatUSD, FormatUSD3:
		cleaned := strings.TrimPrefix(s, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "%"))
		if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return v
		}
		return s
	case FormatBool:
		return truthy(s)
	default:
		return s
	}
}
