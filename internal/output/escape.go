package output

import (
	"strconv"
	"strings"
)

// copyNull is the COPY text-format NULL marker.
const copyNull = `\N`

// appendCopyInt appends an integer field. Integers never need escaping.
func appendCopyInt(b []byte, v int) []byte {
	return strconv.AppendInt(b, int64(v), 10)
}

// appendCopyText appends a text field, escaping the characters COPY treats
// specially. An empty name is written as NULL.
func appendCopyText(b []byte, s string) []byte {
	if s == "" {
		return append(b, copyNull...)
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b = append(b, `\\`...)
		case '\n':
			b = append(b, `\n`...)
		case '\r':
			b = append(b, `\r`...)
		case '\t':
			b = append(b, `\t`...)
		default:
			b = append(b, c)
		}
	}
	return b
}

// copyColumns lists the COPY target columns.
func copyColumns(named bool) string {
	cols := []string{"vertex", "component"}
	if named {
		cols = append(cols, "name")
	}
	return strings.Join(cols, ", ")
}
