// Package sources expands configured stream URLs into the ordered list of
// concrete variants the tuner tries.
package sources

import (
	"net/http"
	"strings"
)

const (
	// DefaultStreamURL is used when no stream URL is configured.
	DefaultStreamURL = "https://server1.easystreaming.pro:8443/95.5"
	// UserAgent identifies the client to stream servers.
	UserAgent = "TODOFMClassic/1.0"
	// FormatMP3 asks the engine to treat the stream as MP3 regardless of what
	// the server or the URL says.
	FormatMP3 = "mp3"
)

// Source is one candidate a playback engine can be pointed at. The position
// in the resolved list is its fallback priority.
type Source struct {
	URI        string            `json:"uri"`
	Headers    map[string]string `json:"headers"`
	FormatHint string            `json:"format_hint,omitempty"`
}

// Header returns the request headers in net/http form.
func (s Source) Header() http.Header {
	h := make(http.Header, len(s.Headers))
	for k, v := range s.Headers {
		h.Set(k, v)
	}
	return h
}

func (s Source) String() string {
	if s.FormatHint == "" {
		return s.URI
	}
	return s.URI + " (" + s.FormatHint + ")"
}

// Resolver builds sources for a fixed client identity.
type Resolver struct {
	UserAgent string
}

// Resolve expands each base URL into four variants, in this order: bare,
// with a trailing slash, bare with the mp3 hint, trailing slash with the mp3
// hint. Some servers only answer one of these shapes. Blank bases are
// skipped and an empty list falls back to DefaultStreamURL.
func (r Resolver) Resolve(bases []string) []Source {
	clean := make([]string, 0, len(bases))
	for _, b := range bases {
		if b = strings.TrimSpace(b); b != "" {
			clean = append(clean, b)
		}
	}
	if len(clean) == 0 {
		clean = []string{DefaultStreamURL}
	}

	ua := r.UserAgent
	if ua == "" {
		ua = UserAgent
	}

	out := make([]Source, 0, len(clean)*4)
	for _, base := range clean {
		bare := strings.TrimSuffix(base, "/")
		slashed := bare + "/"
		for _, v := range []struct{ uri, hint string }{
			{bare, ""},
			{slashed, ""},
			{bare, FormatMP3},
			{slashed, FormatMP3},
		} {
			out = append(out, Source{
				URI:        v.uri,
				Headers:    map[string]string{"Accept": "*/*", "User-Agent": ua},
				FormatHint: v.hint,
			})
		}
	}
	return out
}

// Resolve uses the default client identity.
func Resolve(bases []string) []Source {
	return Resolver{}.Resolve(bases)
}

// ParseList splits a comma separated list of URLs, dropping blanks.
func ParseList(csv string) []string {
	var out []string
	for _, v := range strings.Split(csv, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
