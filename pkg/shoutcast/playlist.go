package shoutcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxPlaylistBytes caps how much of a playlist response is read.
const maxPlaylistBytes = 64 * 1024

// PlaylistResolver turns .pls and .m3u URLs into stream URLs.
type PlaylistResolver struct {
	client *retryablehttp.Client
}

// NewPlaylistResolver returns a resolver that retries transient failures a
// couple of times. The logger may be nil; *slog.Logger satisfies it.
func NewPlaylistResolver(logger retryablehttp.LeveledLogger) *PlaylistResolver {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil
	if logger != nil {
		c.Logger = logger
	}
	return &PlaylistResolver{client: c}
}

// parsePLS parses a PLS playlist file and returns the first stream URL
func parsePLS(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "file") {
			continue
		}
		if _, u, ok := strings.Cut(line, "="); ok {
			if u = strings.TrimSpace(u); u != "" {
				return u, nil
			}
		}
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U parses an M3U playlist file and returns the first stream URL
func parseM3U(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

// isPlaylistURL reports whether the path names a playlist file. Anything else
// is assumed to be a stream and never fetched here, since reading a live body
// to sniff it would not terminate.
func isPlaylistURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pls", ".m3u", ".m3u8":
		return true
	}
	return false
}

// Resolve returns the stream URL behind a playlist URL, or the URL unchanged
// when it is not a playlist.
func (p *PlaylistResolver) Resolve(ctx context.Context, rawURL string, header http.Header) (string, error) {
	if !isPlaylistURL(rawURL) {
		return rawURL, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("icy-metaint") != "" {
		// It's already a stream, return as-is
		return rawURL, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	content := string(data)
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	lowerURL := strings.ToLower(rawURL)

	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(lowerURL, ".pls") ||
		strings.Contains(content, "[playlist]")

	if isPLS {
		streamURL, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return streamURL, nil
	}

	streamURL, err := parseM3U(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
	}
	return streamURL, nil
}
