package model

import (
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
)

var filenameDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeFilename turns an RFC 2047 encoded attachment name into display
// text. Names that are not encoded, or that fail to decode, are returned
// unchanged.
func DecodeFilename(name string) string {
	if !strings.Contains(name, "=?") {
		return name
	}
	decoded, err := filenameDecoder.DecodeHeader(name)
	if err != nil {
		return name
	}
	return decoded
}
