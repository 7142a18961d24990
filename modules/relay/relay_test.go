package relay

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/onair/pkg/playback"
	"github.com/zachfi/onair/pkg/sources"
)

const testMetaint = 512

var mp3Frame = []byte{0xFF, 0xFB, 0x90, 0x64}

type icyServer struct {
	*httptest.Server
	connections atomic.Int32
}

// newICYServer streams audio with a StreamTitle block every testMetaint
// bytes. blocks limits the number of intervals sent, zero means forever.
func newICYServer(t *testing.T, contentType string, prefix []byte, title string, blocks int) *icyServer {
	t.Helper()

	s := &icyServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.connections.Add(1)
		if r.Header.Get("Icy-MetaData") != "1" {
			http.Error(w, "metadata not requested", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("icy-name", "test radio")
		w.Header().Set("icy-br", "128")
		w.Header().Set("icy-metaint", strconv.Itoa(testMetaint))

		meta := "StreamTitle='" + title + "';"
		n := (len(meta) + 15) / 16
		block := make([]byte, 1+n*16)
		block[0] = byte(n)
		copy(block[1:], meta)

		audio := bytes.Repeat(mp3Frame, testMetaint/len(mp3Frame))
		first := append(append([]byte(nil), prefix...), audio...)[:testMetaint]

		flusher, _ := w.(http.Flusher)
		for i := 0; blocks == 0 || i < blocks; i++ {
			chunk := audio
			if i == 0 {
				chunk = first
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if _, err := w.Write(block); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []playback.Event
	titles []string
}

func (r *recorder) onStatus(ev playback.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) onMetadata(raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, raw)
}

func (r *recorder) Events() []playback.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playback.Event(nil), r.events...)
}

func (r *recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func (r *recorder) options() playback.Options {
	return playback.Options{ShouldPlay: true, ProgressInterval: 10 * time.Millisecond, OnMetadata: r.onMetadata}
}

func newTestRelay(t *testing.T) (*Relay, string) {
	t.Helper()

	out := filepath.Join(t.TempDir(), "out.mp3")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := New(Config{Output: out, WriteBufferSize: minWriteBufSize}, logger, nil)
	require.NoError(t, err)

	require.NoError(t, services.StartAndAwaitRunning(context.Background(), r))
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), r)
	})
	return r, out
}

func source(uri, hint string) sources.Source {
	return sources.Source{
		URI:        uri,
		Headers:    map[string]string{"Accept": "*/*", "User-Agent": sources.UserAgent},
		FormatHint: hint,
	}
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func TestCreateRelaysAudio(t *testing.T) {
	srv := newICYServer(t, "audio/mpeg", nil, "Miles Davis - So What", 0)
	r, out := newTestRelay(t)
	rec := &recorder{}

	h, err := r.Create(context.Background(), source(srv.URL, ""), rec.options(), rec.onStatus)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fileSize(out) > 4*testMetaint }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.Events()) >= 3 }, 2*time.Second, 10*time.Millisecond)

	st, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, playback.HandleStatus{Loaded: true, Playing: true}, st)

	events := rec.Events()
	assert.Equal(t, playback.Event{Loaded: true, Buffering: true}, events[0])
	assert.Equal(t, playback.Event{Loaded: true, Playing: true}, events[1])
	assert.Equal(t, []string{"Miles Davis - So What"}, rec.Titles(), "callback fires on change only")

	require.NoError(t, h.Unload(context.Background()))
	count := len(rec.Events())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.Events(), count, "no events after unload")

	st, err = h.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Loaded)

	// metadata blocks never reach the output
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "StreamTitle")
	assert.True(t, bytes.HasPrefix(data, mp3Frame))
}

func TestCreateRejectsNonAudio(t *testing.T) {
	srv := newICYServer(t, "text/html", []byte("<!DOCTYPE html><html><body>"), "x - y", 2)
	r, _ := newTestRelay(t)
	rec := &recorder{}

	_, err := r.Create(context.Background(), source(srv.URL, ""), rec.options(), rec.onStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an audio stream")
	assert.Contains(t, err.Error(), srv.URL)
	assert.Empty(t, rec.Events(), "a rejected source never reports buffering")
}

func TestCreateMP3HintAligns(t *testing.T) {
	srv := newICYServer(t, "text/plain", []byte("garbage!"), "a - b", 0)
	r, out := newTestRelay(t)
	rec := &recorder{}

	h, err := r.Create(context.Background(), source(srv.URL, sources.FormatMP3), rec.options(), rec.onStatus)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fileSize(out) > testMetaint }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.Unload(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, mp3Frame), "output starts at a frame sync")
}

func TestCreateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r, _ := newTestRelay(t)
	rec := &recorder{}

	_, err := r.Create(context.Background(), source(srv.URL, ""), rec.options(), rec.onStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, rec.Events())
}

func TestPauseAndPlayReconnect(t *testing.T) {
	srv := newICYServer(t, "audio/mpeg", nil, "a - b", 0)
	r, _ := newTestRelay(t)
	rec := &recorder{}

	h, err := r.Create(context.Background(), source(srv.URL, ""), rec.options(), rec.onStatus)
	require.NoError(t, err)

	require.NoError(t, h.Pause(context.Background()))
	st, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, playback.HandleStatus{Loaded: true}, st)

	events := rec.Events()
	assert.Equal(t, playback.Event{Loaded: true}, events[len(events)-1])

	require.NoError(t, h.Play(context.Background()))
	st, err = h.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.Equal(t, int32(2), srv.connections.Load())

	require.NoError(t, h.Unload(context.Background()))
	assert.Error(t, h.Play(context.Background()))
}

func TestStreamEndReportsError(t *testing.T) {
	srv := newICYServer(t, "audio/mpeg", nil, "a - b", 3)
	r, _ := newTestRelay(t)
	rec := &recorder{}

	h, err := r.Create(context.Background(), source(srv.URL, ""), rec.options(), rec.onStatus)
	require.NoError(t, err)
	defer h.Unload(context.Background())

	require.Eventually(t, func() bool {
		events := rec.Events()
		last := events[len(events)-1]
		return !last.Loaded && last.Err != nil
	}, 2*time.Second, 10*time.Millisecond)

	st, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Playing)

	// the failed stream was released, not left for Play to overwrite
	hd := h.(*handle)
	hd.mu.Lock()
	assert.Nil(t, hd.stream)
	assert.Nil(t, hd.cancel)
	assert.Nil(t, hd.done)
	hd.mu.Unlock()

	errs := func() int {
		n := 0
		for _, ev := range rec.Events() {
			if ev.Err != nil {
				n++
			}
		}
		return n
	}
	require.Equal(t, 1, errs())

	require.NoError(t, h.Play(context.Background()))
	assert.Equal(t, int32(2), srv.connections.Load())
	require.Eventually(t, func() bool { return errs() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestCreateWithoutPlay(t *testing.T) {
	srv := newICYServer(t, "audio/mpeg", nil, "a - b", 0)
	r, _ := newTestRelay(t)
	rec := &recorder{}

	opts := rec.options()
	opts.ShouldPlay = false
	h, err := r.Create(context.Background(), source(srv.URL, ""), opts, rec.onStatus)
	require.NoError(t, err)
	defer h.Unload(context.Background())

	assert.Equal(t, []playback.Event{{Loaded: true}}, rec.Events())
	assert.Zero(t, srv.connections.Load())
}
