package protocol

import "strings"

// IsKeepAlive reports whether line is an idle frame: either form produced by
// EncodeKeepAlive, an empty object, or an array frame with code 2.
func IsKeepAlive(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	for _, enc := range []Encoding{EncodingArray, EncodingObject} {
		if t == strings.TrimSpace(EncodeKeepAlive(enc)) {
			return true
		}
	}

	switch t[0] {
	case '{':
		fields, end, ok := scanObject(t, 0)
		return ok && end == len(t) && len(fields) == 0 && t[end-1] == '}'
	case '[':
		elems, _, ok := scanArray(t, 0)
		return ok && elems[0].text == "2"
	}
	return false
}
