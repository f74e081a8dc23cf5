package helpers

import "unicode/utf8"

const hexChars = "0123456789ABCDEF"

func canPrintWithoutEscape(c rune, quoteChar byte, asciiOnly bool) bool {
	if c <= 0x7E {
		return c >= 0x20 && c != '\\' && c != rune(quoteChar)
	}
	return !asciiOnly && c != '\uFEFF' && c != '\u2028' && c != '\u2029'
}

// Double-quoted output is valid both as JSON and as a JavaScript string
// literal, so the same function serves source maps and generated code.
func QuoteForJSON(text string, asciiOnly bool) []byte {
	return quote(text, '"', asciiOnly)
}

func quote(text string, quoteChar byte, asciiOnly bool) []byte {
	bytes := make([]byte, 0, len(text)+2)
	bytes = append(bytes, quoteChar)

	for i := 0; i < len(text); {
		c, width := utf8.DecodeRuneInString(text[i:])
		i += width

		if canPrintWithoutEscape(c, quoteChar, asciiOnly) {
			bytes = utf8.AppendRune(bytes, c)
			continue
		}

		switch c {
		case '\b':
			bytes = append(bytes, "\\b"...)
		case '\f':
			bytes = append(bytes, "\\f"...)
		case '\n':
			bytes = append(bytes, "\\n"...)
		case '\r':
			bytes = append(bytes, "\\r"...)
		case '\t':
			bytes = append(bytes, "\\t"...)
		case '\\':
			bytes = append(bytes, "\\\\"...)
		case rune(quoteChar):
			bytes = append(bytes, '\\', quoteChar)
		default:
			if c <= 0xFFFF {
				bytes = append(bytes, '\\', 'u', hexChars[c>>12], hexChars[(c>>8)&15], hexChars[(c>>4)&15], hexChars[c&15])
			} else {
				c -= 0x10000
				lo := 0xD800 + ((c >> 10) & 0x3FF)
				hi := 0xDC00 + (c & 0x3FF)
				bytes = append(bytes,
					'\\', 'u', hexChars[lo>>12], hexChars[(lo>>8)&15], hexChars[(lo>>4)&15], hexChars[lo&15],
					'\\', 'u', hexChars[hi>>12], hexChars[(hi>>8)&15], hexChars[(hi>>4)&15], hexChars[hi&15])
			}
		}
	}

	return append(bytes, quoteChar)
}
