package core

// convert.go infers typed values from CSV cells and back.
//
// Rules, applied to the cell trimmed of surrounding whitespace:
//   - empty → nil
//   - true/false in any letter case → bool
//   - a decimal or scientific literal → int64 when integral and within
//     ±2^53, float64 otherwise; integral literals beyond ±2^53 stay text
//   - anything else → the original, untrimmed text

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// MaxSafeInteger is the largest integer that survives a round trip through a
// JSON number without losing precision.
const MaxSafeInteger = 1 << 53

// InferValue converts a raw CSV cell into nil, bool, int64, float64 or string.
func InferValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if !numericRegex.MatchString(s) {
		return raw
	}

	if integerRegex.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n > MaxSafeInteger || n < -MaxSafeInteger {
			return raw
		}
		return n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return raw
	}
	return f
}

// FormatValue returns the textual form of an inferred value, the same form
// search matches against. nil formats as the empty string.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// NormalizeNumbers rewrites json.Number values decoded from storage into the
// int64/float64 the parser would have produced. Fields is modified in place.
func NormalizeNumbers(f Fields) Fields {
	for k, v := range f {
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		if n, err := num.Int64(); err == nil && n <= MaxSafeInteger && n >= -MaxSafeInteger {
			f[k] = n
			continue
		}
		if fl, err := num.Float64(); err == nil {
			f[k] = fl
			continue
		}
		f[k] = num.String()
	}
	return f
}

// CleanHeader normalizes a header cell.
func CleanHeader(s string) string {
	return strings.TrimSpace(s)
}
