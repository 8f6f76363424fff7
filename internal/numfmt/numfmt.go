// Package numfmt renders counts, rates and elapsed times for progress lines.
package numfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GroupSeparator is placed between each group of three integer digits.
const GroupSeparator = '_'

// PP renders v rounded to the given number of decimals, with the integer part
// grouped in thousands and the result left-padded with spaces to at least width.
// A value wider than width is returned unpadded.
//
//	PP(1000, 8, 0)    => "   1_000"
//	PP(1.678, 0, 2)   => "1.68"
//	PP(1000.9, 0, 0)  => "1_001"
func PP(v float64, width, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	scale := math.Pow(10, float64(decimals))
	rounded := math.Round(v*scale) / scale

	raw := strconv.FormatFloat(math.Abs(rounded), 'f', decimals, 64)
	intPart, fracPart, _ := strings.Cut(raw, ".")

	var b strings.Builder
	if rounded < 0 {
		b.WriteByte('-')
	}
	b.WriteString(group(intPart))
	if decimals > 0 {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}

	out := b.String()
	if pad := width - len(out); pad > 0 {
		out = strings.Repeat(" ", pad) + out
	}
	return out
}

// Int is PP for integer counts.
func Int(n int64, width int) string {
	return PP(float64(n), width, 0)
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(GroupSeparator)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Duration renders elapsed seconds as "HHh MMm SSs". Each field is zero-padded
// to two digits; hours widen past 99.
func Duration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	hours := total / 3600
	leftover := total % 3600
	minutes := leftover / 60
	secs := leftover % 60
	return fmt.Sprintf("%02dh %02dm %02ds", hours, minutes, secs)
}
