package shoutcast

import (
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var (
	streamTitleRe = regexp.MustCompile(`(?i)StreamTitle='([^']+)';`)
	streamURLRe   = regexp.MustCompile(`(?i)StreamUrl='([^']*)';`)
)

// DecodeText decodes ICY metadata bytes as ISO-8859-1 and removes NUL padding.
func DecodeText(b []byte) string {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO-8859-1 maps every byte, so this only guards against decoder changes.
		text = b
	}
	return strings.ReplaceAll(string(text), "\x00", "")
}

// MatchStreamTitle returns the trimmed value of the first StreamTitle='...'; field in text.
func MatchStreamTitle(text string) (string, bool) {
	m := streamTitleRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	return title, title != ""
}

func matchStreamURL(text string) string {
	m := streamURLRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
