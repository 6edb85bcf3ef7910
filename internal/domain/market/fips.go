package market

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeFIPS converts a county_fips_code property into a 5-digit FIPS
// code. Strings are trimmed; numbers lose their leading zero upstream, so
// they are formatted as integers and left-padded. ok is false for anything
// that does not end up as exactly five ASCII digits.
func NormalizeFIPS(v interface{}) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if t < 0 || t != math.Trunc(t) || t >= 1e5 {
			return "", false
		}
		s = padFIPS(strconv.FormatInt(int64(t), 10))
	case int:
		s = padFIPS(strconv.Itoa(t))
	case int64:
		s = padFIPS(strconv.FormatInt(t, 10))
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return "", false
		}
		s = padFIPS(strconv.FormatInt(i, 10))
	default:
		return "", false
	}
	if len(s) != 5 {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s, true
}

func padFIPS(s string) string {
	if len(s) >= 5 {
		return s
	}
	return strings.Repeat("0", 5-len(s)) + s
}

func marshalCodes(codes []string) ([]byte, error) {
	if codes == nil {
		codes = []string{}
	}
	return json.Marshal(codes)
}
