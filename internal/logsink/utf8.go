package logsink

import "unicode/utf8"

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character instead of failing, so a log file written by an arbitrary child
// process never breaks tailing or storage of its last_output slice.
func sanitizeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
