// Package requestfile prepares request files before they reach the analytical engine:
// content is normalised to UTF-8 without a byte order mark and validated against a JSON
// schema supplied by the actor.
package requestfile

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	// sniffLen is the number of bytes used by http.DetectContentType.
	sniffLen = 512
	// checkLen bounds the null byte scan.
	checkLen = 1024
	// nullThreshold is the share of null bytes above which content is treated as binary.
	nullThreshold = 0.15
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalizer converts request file content to plain UTF-8.
type Normalizer struct {
	defaultEncoding string
}

// NewNormalizer creates a Normalizer. defaultEncoding (an IANA name such as "windows-1252")
// is used when content is neither valid UTF-8 nor marked with a byte order mark; empty means
// the charset package's own guess is used.
func NewNormalizer(defaultEncoding string) *Normalizer {
	return &Normalizer{defaultEncoding: defaultEncoding}
}

// ValidEncoding reports whether name is an encoding label the normalizer can decode.
func ValidEncoding(name string) bool {
	enc, _ := charset.Lookup(name)
	return enc != nil
}

// Normalize returns content as UTF-8 without a leading BOM, plus the name of the encoding
// it was decoded from. Content that is already BOM-less UTF-8 is returned unchanged.
func (n *Normalizer) Normalize(content []byte) ([]byte, string, error) {
	if looksBinary(content) {
		return content, "", ErrBinaryContent
	}

	enc, name, certain := charset.DetermineEncoding(content, "application/json")
	if !certain {
		if utf8.Valid(content) {
			return content, "utf-8", nil
		}
		if n.defaultEncoding != "" {
			if fallback, fallbackName := charset.Lookup(n.defaultEncoding); fallback != nil {
				enc, name = fallback, fallbackName
			}
		}
	}
	if enc == nil {
		return bytes.TrimPrefix(content, utf8BOM), "utf-8", nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), enc.NewDecoder()))
	if err != nil {
		return content, name, fmt.Errorf("%w: from %q: %w", ErrEncoding, name, err)
	}
	return bytes.TrimPrefix(decoded, utf8BOM), name, nil
}

func looksBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	// UTF-16 request files legitimately contain many null bytes.
	if bytes.HasPrefix(content, []byte{0xFF, 0xFE}) || bytes.HasPrefix(content, []byte{0xFE, 0xFF}) {
		return false
	}
	sniff := content
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if !isTextMIME(http.DetectContentType(sniff)) {
		return true
	}
	scan := content
	if len(scan) > checkLen {
		scan = scan[:checkLen]
	}
	return float64(bytes.Count(scan, []byte{0x00}))/float64(len(scan)) > nullThreshold
}

func isTextMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		strings.HasSuffix(mimeType, "+json"),
		mimeType == "application/octet-stream":
		return true
	}
	return false
}
