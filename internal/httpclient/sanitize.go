package httpclient

import "bytes"

// SanitizeNonFinite rewrites the bare NaN, Infinity and -Infinity tokens some backends emit
// into null. String contents are left untouched. Input without such tokens is returned as is.
func SanitizeNonFinite(raw []byte) []byte {
	if !bytes.Contains(raw, []byte("NaN")) && !bytes.Contains(raw, []byte("Infinity")) {
		return raw
	}

	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		if n := nonFiniteToken(raw[i:]); n > 0 {
			out = append(out, "null"...)
			i += n - 1
			continue
		}

		out = append(out, c)
	}

	return out
}

func nonFiniteToken(b []byte) int {
	for _, tok := range [][]byte{[]byte("NaN"), []byte("-NaN"), []byte("Infinity"), []byte("-Infinity"), []byte("+Infinity")} {
		if bytes.HasPrefix(b, tok) {
			return len(tok)
		}
	}
	return 0
}
