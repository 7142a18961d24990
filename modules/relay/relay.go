package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachfi/onair/pkg/shoutcast"
)

const module = "relay"

var (
	metricBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onair",
		Subsystem: module,
		Name:      "bytes_total",
		Help:      "Audio bytes written to the output.",
	})

	metricStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "onair",
		Subsystem: module,
		Name:      "open_streams",
		Help:      "Network streams currently being read.",
	})

	metricStreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onair",
		Subsystem: module,
		Name:      "stream_errors_total",
		Help:      "Streams that ended with a read error.",
	})
)

// Relay is a playback engine that copies the audio of the playing source to
// an output, leaving decoding to whatever reads it.
type Relay struct {
	services.Service
	cfg       *Config
	logger    *slog.Logger
	client    *http.Client
	playlists *shoutcast.PlaylistResolver

	out    io.Writer
	closer io.Closer
	w      *ChannelWriter
}

// New creates a relay. A nil client uses shoutcast.NewClient.
func New(cfg Config, logger *slog.Logger, client *http.Client) (*Relay, error) {
	if client == nil {
		client = shoutcast.NewClient()
	}

	r := &Relay{
		cfg:       &cfg,
		logger:    logger.With("module", module),
		client:    client,
		playlists: shoutcast.NewPlaylistResolver(logger.With("module", module, "component", "playlist")),
		w:         NewChannelWriter(),
	}

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)

	return r, nil
}

func (r *Relay) starting(_ context.Context) error {
	switch r.cfg.Output {
	case "":
		r.out = io.Discard
	case "-":
		r.out = os.Stdout
	default:
		f, err := os.OpenFile(r.cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			r.logger.Error("error opening output", "err", err, "path", r.cfg.Output)
			return err
		}
		r.out = f
		r.closer = f
	}

	r.logger.Info("relaying audio", "output", r.outputName())
	return nil
}

func (r *Relay) outputName() string {
	switch r.cfg.Output {
	case "":
		return "discard"
	case "-":
		return "stdout"
	}
	return r.cfg.Output
}

func (r *Relay) running(ctx context.Context) error {
	writeBufSize := r.cfg.writeBufSize()
	writeBuf := make([]byte, 0, writeBufSize)
	var written int64

	flush := func() {
		if len(writeBuf) == 0 {
			return
		}
		n, err := r.out.Write(writeBuf)
		written += int64(n)
		metricBytes.Add(float64(n))
		if err != nil {
			r.logger.Error("error writing output", "err", err)
		}
		writeBuf = writeBuf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			r.logger.Debug("output done", "written", ByteCountIEC(written))
			return nil
		case b, ok := <-r.w.dataChan:
			if !ok {
				flush()
				return nil
			}
			writeBuf = append(writeBuf, b...)

			// combine whatever else is already queued, without waiting for more
		drain:
			for len(writeBuf) < writeBufSize {
				select {
				case b, ok := <-r.w.dataChan:
					if !ok {
						break drain
					}
					writeBuf = append(writeBuf, b...)
				default:
					break drain
				}
			}
			flush()
		}
	}
}

func (r *Relay) stopping(_ error) error {
	r.logger.Info("stopping")

	var errs []error
	// Handles still writing get io.ErrClosedPipe from here on.
	if err := r.w.Close(); err != nil {
		errs = append(errs, err)
	}

	if r.closer != nil {
		if f, ok := r.closer.(*os.File); ok {
			if err := f.Sync(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
