package shoutcast

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePLS(t *testing.T) {
	got, err := parsePLS(strings.NewReader("[playlist]\nNumberOfEntries=1\nFile1=http://example.com/live\nTitle1=Live\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/live", got)

	_, err = parsePLS(strings.NewReader("[playlist]\n"))
	assert.Error(t, err)
}

func TestParseM3U(t *testing.T) {
	got, err := parseM3U(strings.NewReader("#EXTM3U\n#EXTINF:-1,Live\n\nhttps://example.com/live.mp3\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/live.mp3", got)

	_, err = parseM3U(strings.NewReader("#EXTM3U\n"))
	assert.Error(t, err)
}

func TestResolvePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/radio.pls":
			w.Header().Set("Content-Type", "audio/x-scpls")
			io.WriteString(w, "[playlist]\nFile1=http://stream.example/pls\n")
		case "/radio.m3u":
			io.WriteString(w, "#EXTM3U\nhttp://stream.example/m3u\n")
		default:
			t.Errorf("unexpected fetch of %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	r := NewPlaylistResolver(nil)
	ctx := context.Background()

	got, err := r.Resolve(ctx, srv.URL+"/radio.pls", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://stream.example/pls", got)

	got, err = r.Resolve(ctx, srv.URL+"/radio.m3u", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://stream.example/m3u", got)

	// plain streams are never fetched
	got, err = r.Resolve(ctx, srv.URL+"/live", nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/live", got)
}
