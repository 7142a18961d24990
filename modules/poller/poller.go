package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/onair/pkg/nowplaying"
	"github.com/zachfi/onair/pkg/spans"
)

const module = "poller"

var metricRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "onair",
	Subsystem: module,
	Name:      "refresh_total",
	Help:      "Now playing refreshes by result.",
}, []string{"result"})

var errNoUpdate = errors.New("no usable now playing data")

// Poller refreshes the now playing store from an out-of-band endpoint while
// nothing is playing.
type Poller struct {
	services.Service
	cfg    *Config
	logger *slog.Logger
	tracer trace.Tracer
	client *http.Client
	store  *nowplaying.Store
	live   func() bool
}

// New creates a poller. live reports whether in-band metadata is flowing, in
// which case refreshes are skipped. A nil client uses http.DefaultClient.
func New(cfg Config, logger *slog.Logger, client *http.Client, store *nowplaying.Store, live func() bool) (*Poller, error) {
	if store == nil {
		return nil, errors.New("now playing store is required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	if live == nil {
		live = func() bool { return false }
	}

	p := &Poller{
		cfg:    &cfg,
		logger: logger.With("module", module),
		tracer: otel.Tracer(module),
		client: client,
		store:  store,
		live:   live,
	}

	p.Service = services.NewTimerService(cfg.Interval, p.starting, p.iteration, nil)

	return p, nil
}

func (p *Poller) starting(ctx context.Context) error {
	p.Refresh(ctx)
	return nil
}

func (p *Poller) iteration(ctx context.Context) error {
	p.Refresh(ctx)
	return nil
}

// Refresh performs one poll. Failures are logged and leave the store as it
// was.
func (p *Poller) Refresh(ctx context.Context) {
	if p.live() {
		metricRefresh.WithLabelValues("skipped").Inc()
		return
	}

	ctx, span := p.tracer.Start(ctx, "poller.refresh", trace.WithAttributes(attribute.String("url", p.cfg.URL)))

	np, err := p.fetch(ctx)
	switch {
	case errors.Is(err, errNoUpdate):
		metricRefresh.WithLabelValues("no_update").Inc()
		p.logger.Debug("no update", "url", p.cfg.URL)
		_ = spans.End(span, nil)
		return
	case err != nil:
		metricRefresh.WithLabelValues("failed").Inc()
		p.logger.Debug("refresh failed", "url", p.cfg.URL, "err", err)
		_ = spans.End(span, err)
		return
	}

	metricRefresh.WithLabelValues("updated").Inc()
	span.SetAttributes(attribute.String("title", np.Title), attribute.String("artist", np.Artist))
	_ = spans.End(span, nil)
	if p.store.Set(np) {
		p.logger.Debug("now playing", "title", np.Title, "artist", np.Artist)
	}
}

func (p *Poller) fetch(ctx context.Context) (nowplaying.NowPlaying, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", maxBodyBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nowplaying.NowPlaying{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		return fromJSON(resp.Body)
	}
	return fromICY(resp.Body, resp.Header.Get("icy-metaint"))
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func fromJSON(body io.Reader) (nowplaying.NowPlaying, error) {
	var payload any
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&payload); err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to decode json")
	}
	np, ok := nowplaying.Extract(payload)
	if !ok {
		return nowplaying.NowPlaying{}, errNoUpdate
	}
	return np, nil
}

func fromICY(body io.Reader, rawMetaint string) (nowplaying.NowPlaying, error) {
	buf, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil && len(buf) == 0 {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to read body")
	}

	metaint, convErr := strconv.Atoi(strings.TrimSpace(rawMetaint))
	if convErr != nil {
		metaint = 0
	}

	np, ok := nowplaying.ParseICY(buf, metaint)
	if !ok {
		return nowplaying.NowPlaying{}, errNoUpdate
	}
	return np, nil
}
