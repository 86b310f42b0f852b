package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// sniffLen is how many leading bytes are checked for NUL when detecting binaries.
const sniffLen = 8000

// extractPlain returns content as a string. Invalid UTF-8 is replaced with U+FFFD and
// CRLF line endings are normalized to LF.
func extractPlain(content []byte) (string, error) {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return "", ErrBinary
	}
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.ReplaceAll(s, "\r\n", "\n"), nil
}
