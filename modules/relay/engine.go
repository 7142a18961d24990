package relay

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"

	"github.com/zachfi/onair/pkg/playback"
	"github.com/zachfi/onair/pkg/shoutcast"
	"github.com/zachfi/onair/pkg/sources"
)

// sniffBytes is enough for every filetype audio matcher.
const sniffBytes = 262

var errNotAudio = errors.New("not an audio stream")

// Create connects to src and, when opts.ShouldPlay is set, starts relaying.
// ctx bounds the connection only; the stream lives until the handle is
// paused or unloaded.
func (r *Relay) Create(ctx context.Context, src sources.Source, opts playback.Options, onStatus func(playback.Event)) (playback.Handle, error) {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 2 * time.Second
	}

	h := &handle{
		relay:    r,
		logger:   r.logger.With("source", src.String()),
		src:      src,
		opts:     opts,
		onStatus: onStatus,
	}

	streamURL, err := r.playlists.Resolve(ctx, src.URI, src.Header())
	if err != nil {
		return nil, errors.Wrap(err, src.URI)
	}
	h.streamURL = streamURL

	if !opts.ShouldPlay {
		// loaded but idle, the stream is opened by Play
		h.loaded = true
		onStatus(playback.Event{Loaded: true})
		return h, nil
	}

	if err := h.start(ctx); err != nil {
		return nil, errors.Wrap(err, src.URI)
	}
	return h, nil
}

type handle struct {
	relay     *Relay
	logger    *slog.Logger
	src       sources.Source
	streamURL string
	opts      playback.Options
	onStatus  func(playback.Event)

	mu       sync.Mutex
	loaded   bool
	playing  bool
	unloaded bool
	stream   *shoutcast.Stream
	cancel   context.CancelFunc
	done     chan struct{}
}

// start opens the stream, checks it carries audio and starts the pump.
func (h *handle) start(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s, err := shoutcast.Open(streamCtx, h.relay.client, h.streamURL, h.src.Header())
	if err != nil {
		cancel()
		return err
	}

	s.MetadataCallbackFunc = func(m *shoutcast.Metadata) {
		h.logger.Info("now listening to", "title", m.StreamTitle)
		if h.opts.OnMetadata != nil && m.StreamTitle != "" {
			h.opts.OnMetadata(m.StreamTitle)
		}
	}

	head, err := h.sniff(s)
	if err != nil {
		_ = s.Close()
		cancel()
		return err
	}

	// only a source that passed the audio check is reported
	h.onStatus(playback.Event{Loaded: true, Buffering: true})

	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		_ = s.Close()
		cancel()
		return errors.New("handle unloaded")
	}
	done := make(chan struct{})
	h.stream, h.cancel, h.done = s, cancel, done
	h.loaded, h.playing = true, true
	h.mu.Unlock()

	if len(head) > 0 {
		if _, err := h.relay.w.Write(head); err != nil {
			h.logger.Debug("output closed", "err", err)
		}
	}

	metricStreams.Inc()
	go h.pump(streamCtx, s, cancel, done)

	h.onStatus(playback.Event{Loaded: true, Playing: true})
	h.logger.Debug("streaming", "url", h.streamURL, "name", s.Name, "bitrate", s.Bitrate, "content_type", s.ContentType)
	return nil
}

// sniff reads the first bytes of s. Without a format hint they must look
// like audio. With the mp3 hint they are aligned to a frame sync instead.
func (h *handle) sniff(s *shoutcast.Stream) ([]byte, error) {
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(s, head)
	head = head[:n]
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && n > 0) {
		return nil, errors.Wrap(err, "failed to read stream")
	}

	if h.src.FormatHint == sources.FormatMP3 {
		aligned, err := alignMP3(s, head)
		if err != nil && len(aligned) == 0 {
			return nil, errors.Wrap(err, "failed to read stream")
		}
		return aligned, nil
	}

	if !isAudio(head, s.ContentType) {
		return nil, errNotAudio
	}
	return head, nil
}

func isAudio(head []byte, contentType string) bool {
	if filetype.IsAudio(head) {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "audio/") || mt == "application/ogg"
}

// pump copies audio to the relay output and reports progress until ctx is
// cancelled or the stream fails. A failed stream is closed and forgotten so
// Play can start over.
func (h *handle) pump(ctx context.Context, s *shoutcast.Stream, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer metricStreams.Dec()

	ticker := time.NewTicker(h.opts.ProgressInterval)
	defer ticker.Stop()

	var copied int64
	buf := make([]byte, 16*1024)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			if _, werr := h.relay.w.Write(buf[:n]); werr != nil {
				err = werr
			}
			copied += int64(n)
		}
		if err != nil {
			if ctx.Err() != nil {
				h.logger.Debug("stream closed", "copied", ByteCountIEC(copied))
				return
			}
			h.logger.Error("error reading stream", "err", err, "copied", ByteCountIEC(copied))
			metricStreamErrors.Inc()

			h.mu.Lock()
			if h.stream == s {
				h.stream, h.cancel, h.done = nil, nil, nil
				h.playing = false
			}
			h.mu.Unlock()
			_ = s.Close()
			cancel()

			h.onStatus(playback.Event{Err: err})
			return
		}

		select {
		case <-ticker.C:
			h.onStatus(playback.Event{Loaded: true, Playing: true})
		default:
		}
	}
}

// halt stops the pump and closes the stream, waiting for the pump to exit.
func (h *handle) halt() {
	h.mu.Lock()
	s, cancel, done := h.stream, h.cancel, h.done
	h.stream, h.cancel, h.done = nil, nil, nil
	h.playing = false
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s != nil {
		_ = s.Close()
	}
	if done != nil {
		<-done
	}
}

func (h *handle) Play(ctx context.Context) error {
	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		return errors.New("handle unloaded")
	}
	playing := h.playing
	h.mu.Unlock()

	if playing {
		return nil
	}
	return h.start(ctx)
}

// Pause closes the network stream since a live broadcast cannot be held.
// Play reconnects.
func (h *handle) Pause(_ context.Context) error {
	h.mu.Lock()
	unloaded := h.unloaded
	h.mu.Unlock()
	if unloaded {
		return errors.New("handle unloaded")
	}

	h.halt()
	h.onStatus(playback.Event{Loaded: true})
	return nil
}

func (h *handle) Status(_ context.Context) (playback.HandleStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return playback.HandleStatus{Loaded: h.loaded && !h.unloaded, Playing: h.playing}, nil
}

func (h *handle) Unload(_ context.Context) error {
	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		return nil
	}
	h.unloaded = true
	h.mu.Unlock()

	h.halt()
	return nil
}
