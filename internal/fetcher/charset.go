package fetcher

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var (
	metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([^"'\s/>;]+)`)
	// http-equiv form, either attribute order
	metaContentTypeRe = regexp.MustCompile(`(?i)<meta[^>]+content=["']?[^"']*charset=([^"'\s;>]+)`)
)

// decodeHTML converts a page body to UTF-8. The charset is taken from the
// Content-Type header, then from a <meta> declaration; anything else is
// assumed to be UTF-8 already.
func decodeHTML(body []byte, contentType string) string {
	if bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		return string(body[3:])
	}

	enc := encodingFromContentType(contentType)
	if enc == nil {
		enc = encodingFromMeta(body)
	}
	if enc == nil {
		return string(body)
	}

	decoded, err := decodeWithEncoding(body, enc)
	if err != nil || !utf8.ValidString(decoded) {
		return string(body)
	}
	return decoded
}

func encodingFromContentType(contentType string) encoding.Encoding {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	return lookupEncoding(params["charset"])
}

// encodingFromMeta scans the raw bytes, which works for any ASCII-compatible
// encoding without decoding the page first.
func encodingFromMeta(body []byte) encoding.Encoding {
	for _, re := range []*regexp.Regexp{metaCharsetRe, metaContentTypeRe} {
		if m := re.FindSubmatch(body); len(m) > 1 {
			if enc := lookupEncoding(string(m[1])); enc != nil {
				return enc
			}
		}
	}
	return nil
}

// lookupEncoding returns nil for UTF-8 and unknown labels.
func lookupEncoding(label string) encoding.Encoding {
	if label == "" {
		return nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil
	}
	return enc
}

func decodeWithEncoding(body []byte, enc encoding.Encoding) (string, error) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
