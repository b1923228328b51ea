package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names of JSON-object frames.
const (
	fieldCmd     = "cmd"
	fieldTopic   = "topic"
	fieldMessage = "message"
)

// maxArrayCode bounds the digits accepted for an array frame code.
const maxArrayCode = 3

// Decoder decodes inbound frames.
//
// The zero value is lenient: any text before or after the first frame is
// ignored. With Strict set, the whole blob (ignoring surrounding whitespace)
// must be enclosed in braces or brackets.
type Decoder struct {
	Strict bool
}

// Decode decodes the first command in blob using a lenient Decoder.
func Decode(blob string) (Command, error) {
	return Decoder{}.Decode(blob)
}

// value is a scanned field or array element.
type value struct {
	text   string
	quoted bool
}

// Decode locates and decodes the first command in blob.
//
// Returns:
//   - Command: the decoded command, Kind is KindNone on error
//   - error: ErrNoCommand, ErrMalformedFrame or ErrInvalidFrame
func (d Decoder) Decode(blob string) (Command, error) {
	if d.Strict && !enclosed(blob) {
		return Command{}, fmt.Errorf("%w: not enclosed in braces or brackets", ErrInvalidFrame)
	}

	for i := 0; i < len(blob); i++ {
		switch blob[i] {
		case '{':
			fields, end, ok := scanObject(blob, i)
			if !ok {
				continue
			}
			cmd, ok := fields[fieldCmd]
			if !ok || !cmd.quoted {
				i = end - 1
				continue
			}
			return objectCommand(cmd.text, fields, end)
		case '[':
			elems, end, ok := scanArray(blob, i)
			if !ok {
				continue
			}
			c, ok := arrayCommand(elems, end)
			if !ok {
				i = end - 1
				continue
			}
			return c, nil
		}
	}

	return Command{}, ErrNoCommand
}

// objectCommand interprets the fields of a JSON-object frame.
func objectCommand(name string, fields map[string]value, end int) (Command, error) {
	c := Command{Name: name, End: end}

	switch name {
	case CmdPublish:
		topic, okTopic := fields[fieldTopic]
		message, okMessage := fields[fieldMessage]
		if !okTopic || !okMessage || !topic.quoted || !message.quoted {
			return Command{Name: name, End: end}, fmt.Errorf("%w: %s without topic and message", ErrMalformedFrame, name)
		}
		c.Kind = KindPublish
		c.Topic = topic.text
		c.Message = message.text
	case CmdSubscribe:
		topic, ok := fields[fieldTopic]
		if !ok || !topic.quoted {
			return Command{Name: name, End: end}, fmt.Errorf("%w: %s without topic", ErrMalformedFrame, name)
		}
		c.Kind = KindSubscribe
		c.Topic = topic.text
	case CmdConnect:
		c.Kind = KindConnect
	default:
		c.Kind = KindUnknown
	}

	return c, nil
}

// arrayCommand interprets the elements of a JSON-array frame. Keep-alive
// and incomplete frames report false so scanning continues.
func arrayCommand(elems []value, end int) (Command, bool) {
	if len(elems) == 0 || elems[0].quoted {
		return Command{}, false
	}
	code, err := strconv.Atoi(elems[0].text)
	if err != nil {
		return Command{}, false
	}

	c := Command{Name: elems[0].text, End: end}
	switch code {
	case codeSubscribe:
		if len(elems) < 2 || !elems[1].quoted {
			return Command{}, false
		}
		c.Kind = KindSubscribe
		c.Topic = elems[1].text
	case codePublish:
		if len(elems) < 3 || !elems[1].quoted || !elems[2].quoted {
			return Command{}, false
		}
		c.Kind = KindPublish
		c.Topic = elems[1].text
		c.Message = elems[2].text
	case codeKeepAlive:
		return Command{}, false
	default:
		c.Kind = KindUnknown
	}
	return c, true
}

// scanObject scans an object starting at s[start] == '{'. Nested values
// are skipped.
// End of input where a separator is expected counts as a truncated but
// acceptable frame; an unterminated string does not. The first occurrence
// of a key wins.
func scanObject(s string, start int) (map[string]value, int, bool) {
	fields := make(map[string]value)
	i := start + 1

	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return fields, i, true
		}
		if s[i] == '}' {
			return fields, i + 1, true
		}
		if s[i] != '"' {
			return nil, 0, false
		}

		key, next, ok := scanString(s, i)
		if !ok {
			return nil, 0, false
		}
		i = skipSpace(s, next)
		if i >= len(s) {
			return fields, i, true
		}
		if s[i] != ':' {
			return nil, 0, false
		}

		i = skipSpace(s, i+1)
		if i >= len(s) {
			return fields, i, true
		}
		v, next, ok := scanValue(s, i)
		if !ok {
			return nil, 0, false
		}
		if _, seen := fields[key]; !seen {
			fields[key] = v
		}

		i = skipSpace(s, next)
		if i >= len(s) {
			return fields, i, true
		}
		switch s[i] {
		case ',':
			i++
		case '}':
			return fields, i + 1, true
		default:
			return nil, 0, false
		}
	}
}

// scanArray scans an array starting at s[start] == '['. The first element
// must be a bare integer code.
func scanArray(s string, start int) ([]value, int, bool) {
	i := skipSpace(s, start+1)
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j == i || j-i > maxArrayCode {
		return nil, 0, false
	}
	elems := []value{{text: s[i:j]}}
	i = skipSpace(s, j)

	for {
		if i >= len(s) {
			return elems, i, true
		}
		if s[i] == ']' {
			return elems, i + 1, true
		}
		if s[i] != ',' {
			return nil, 0, false
		}
		i = skipSpace(s, i+1)
		if i >= len(s) {
			return elems, i, true
		}
		v, next, ok := scanValue(s, i)
		if !ok {
			return nil, 0, false
		}
		elems = append(elems, v)
		i = skipSpace(s, next)
	}
}

// scanValue scans a quoted string, a bare token, or a nested object or
// array starting at s[i]. Nested values are kept as raw text.
func scanValue(s string, i int) (value, int, bool) {
	if s[i] == '{' || s[i] == '[' {
		j, ok := skipNested(s, i)
		if !ok {
			return value{}, 0, false
		}
		return value{text: s[i:j]}, j, true
	}
	if s[i] == '"' {
		text, next, ok := scanString(s, i)
		if !ok {
			return value{}, 0, false
		}
		return value{text: text, quoted: true}, next, true
	}

	j := i
	for j < len(s) && isTokenByte(s[j]) {
		j++
	}
	if j == i {
		return value{}, 0, false
	}
	return value{text: s[i:j]}, j, true
}

// skipNested returns the index just past the bracket closing the one at
// s[i], or len(s) when the blob ends first. Quoted runs are skipped whole;
// an unterminated one fails like any other unterminated string.
func skipNested(s string, i int) (int, bool) {
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"':
			n := strings.IndexByte(s[i+1:], '"')
			if n < 0 {
				return 0, false
			}
			i += n + 1
		}
	}
	return len(s), true
}

// scanString returns the text between s[i] == '"' and the next quote.
func scanString(s string, i int) (string, int, bool) {
	n := strings.IndexByte(s[i+1:], '"')
	if n < 0 {
		return "", 0, false
	}
	return s[i+1 : i+1+n], i + n + 2, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

// enclosed reports whether the trimmed blob starts with '{' or '[' and ends
// with '}' or ']'.
func enclosed(blob string) bool {
	t := strings.TrimSpace(blob)
	if len(t) < 2 {
		return false
	}
	first, last := t[0], t[len(t)-1]
	return (first == '{' || first == '[') && (last == '}' || last == ']')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isTokenByte(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '.' || b == '-' || b == '+'
}
