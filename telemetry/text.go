package telemetry

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

// fixedText decodes a NUL/space padded ISO-8859-1 field.
func fixedText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	b = bytes.TrimRight(b, " ")
	return latin1(b)
}

func latin1(b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				return string(b)
			}
			return string(s)
		}
	}
	return string(b)
}
