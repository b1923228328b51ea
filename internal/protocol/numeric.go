package protocol

import "strconv"

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseUint parses s as a base-10 unsigned 32-bit value.
// It returns false for non-numeric text and for values that overflow.
func ParseUint(s string) (uint32, bool) {
	if !IsNumeric(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
