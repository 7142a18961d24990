package tuner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/onair/pkg/nowplaying"
	"github.com/zachfi/onair/pkg/playback"
	"github.com/zachfi/onair/pkg/sources"
	"github.com/zachfi/onair/pkg/spans"
)

const module = "tuner"

// Tuner owns at most one playback handle and turns the single toggle action
// into connect, pause and resume.
type Tuner struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	engine  playback.Engine
	machine *playback.Machine
	store   *nowplaying.Store
	sources []sources.Source

	events chan statusEvent
	quit   chan struct{}

	mu       sync.Mutex
	handle   playback.Handle
	handleID uint64
	timer    *time.Timer
	armed    uint64 // identifies the pending connect deadline
	gen      uint64 // bumped whenever the connection is failed or torn down
	seq      atomic.Uint64

	alertMu sync.Mutex
	alerts  []func(Alert)
}

type statusEvent struct {
	gen uint64
	id  uint64
	ev  playback.Event
}

// New creates a tuner. The machine and store are shared with the rest of the
// application; the tuner is the only writer of the machine.
func New(cfg Config, logger *slog.Logger, engine playback.Engine, machine *playback.Machine, store *nowplaying.Store) (*Tuner, error) {
	if engine == nil {
		return nil, errors.New("playback engine is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}

	t := &Tuner{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		tracer:  otel.Tracer(module),
		engine:  engine,
		machine: machine,
		store:   store,
		sources: sources.Resolver{UserAgent: cfg.UserAgent}.Resolve(cfg.StreamURLs),
		events:  make(chan statusEvent, 64),
		quit:    make(chan struct{}),
	}

	machine.Subscribe(func(s playback.State) {
		metricTransitions.WithLabelValues(s.Status.String()).Inc()
		if s.Live {
			metricLive.Set(1)
		} else {
			metricLive.Set(0)
		}
	})

	t.Service = services.NewBasicService(nil, t.running, t.stopping)

	return t, nil
}

// Sources returns the ordered candidates tried on a fresh connection.
func (t *Tuner) Sources() []sources.Source {
	return t.sources
}

// Live reports whether audio is currently playing.
func (t *Tuner) Live() bool {
	return t.machine.Live()
}

// SubscribeAlerts registers fn for connection failures that should reach the
// listener.
func (t *Tuner) SubscribeAlerts(fn func(Alert)) {
	t.alertMu.Lock()
	defer t.alertMu.Unlock()
	t.alerts = append(t.alerts, fn)
}

func (t *Tuner) running(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case se := <-t.events:
			t.apply(se)
		}
	}
}

func (t *Tuner) stopping(_ error) error {
	close(t.quit)
	t.teardown(context.Background())
	return nil
}

// apply holds mu so an event cannot land after a concurrent teardown has
// failed the machine. Once a handle is adopted only its own events count.
func (t *Tuner) apply(se statusEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if se.gen != t.gen || (t.handle != nil && se.id != t.handleID) {
		return
	}

	t.machine.Apply(se.ev)
	if se.ev.StartsPlayback() {
		t.stopTimerLocked()
	}
}

// onStatus returns the engine callback for handle id created in generation
// gen.
func (t *Tuner) onStatus(gen, id uint64) func(playback.Event) {
	return func(ev playback.Event) {
		select {
		case t.events <- statusEvent{gen: gen, id: id, ev: ev}:
		case <-t.quit:
		}
	}
}

// onMetadata stores in-band titles while live, ahead of the poller.
func (t *Tuner) onMetadata(raw string) {
	if !t.machine.Live() || t.store == nil {
		return
	}
	np, ok := nowplaying.Split(raw)
	if !ok {
		t.logger.Debug("unusable stream title", "title", raw)
		return
	}
	if t.store.Set(np) {
		t.logger.Debug("in-band title", "title", np.Title, "artist", np.Artist)
	}
}

// Toggle pauses a playing handle, resumes a paused one, or starts a fresh
// connection when nothing is loaded. Connection failures move the player to
// the error state and are returned. A toggle overtaken by a concurrent one
// returns nil.
func (t *Tuner) Toggle(ctx context.Context) error {
	t.mu.Lock()
	h, gen := t.handle, t.gen
	t.mu.Unlock()

	if h != nil {
		st, err := h.Status(ctx)
		if err != nil {
			return superseded(t.fault(ctx, gen, h, errors.Wrap(err, "failed to query playback status"), "fault"))
		}

		if st.Loaded && st.Playing {
			if err := h.Pause(ctx); err != nil {
				return superseded(t.fault(ctx, gen, h, errors.Wrap(err, "failed to pause"), "fault"))
			}
			t.pause()
			t.logger.Info("paused")
			return nil
		}

		t.begin(true)
		if err := h.Play(ctx); err != nil {
			return superseded(t.fault(ctx, gen, h, errors.Wrap(err, "failed to resume"), "fault"))
		}
		t.logger.Info("resumed")
		return nil
	}

	gen = t.begin(false)

	err := t.connect(ctx, gen)
	if err == nil || errors.Is(err, ErrConnectTimeout) {
		return err
	}

	reason := "fault"
	var exhausted *ConnectionExhaustedError
	if errors.As(err, &exhausted) {
		reason = "exhausted"
	}
	if err := t.fault(ctx, gen, nil, err, reason); !errors.Is(err, errSuperseded) {
		return err
	}
	if t.abandoned(gen) {
		return ErrConnectTimeout
	}
	return nil
}

// connect walks the sources in order and adopts the first handle that loads.
func (t *Tuner) connect(ctx context.Context, gen uint64) error {
	attempt := uuid.NewString()
	logger := t.logger.With("attempt", attempt)

	ctx, span := t.tracer.Start(ctx, "tuner.connect", trace.WithAttributes(
		attribute.String("attempt", attempt),
		attribute.Int("sources", len(t.sources)),
	))

	opts := playback.Options{
		ShouldPlay:       true,
		ProgressInterval: t.cfg.ProgressInterval,
		OnMetadata:       t.onMetadata,
	}

	var details []string
	for i, src := range t.sources {
		if t.abandoned(gen) {
			logger.Warn("connect abandoned", "tried", i)
			return spans.End(span, ErrConnectTimeout)
		}

		logger.Debug("trying source", "source", src.String(), "index", i)
		id := t.seq.Add(1)
		h, err := t.engine.Create(ctx, src, opts, t.onStatus(gen, id))
		if err != nil {
			metricSourceAttempts.WithLabelValues("failed").Inc()
			logger.Debug("source failed", "source", src.String(), "err", err)
			details = append(details, err.Error())
			continue
		}
		metricSourceAttempts.WithLabelValues("loaded").Inc()

		switch err := t.adopt(gen, id, h); {
		case errors.Is(err, errSuperseded):
			logger.Info("another toggle connected first", "source", src.String())
			t.release(ctx, h)
			return spans.End(span, nil)
		case err != nil:
			logger.Warn("discarding late handle", "source", src.String())
			t.release(ctx, h)
			return spans.End(span, err)
		}

		logger.Info("connected", "source", src.String())
		span.SetAttributes(attribute.String("source", src.URI))
		return spans.End(span, nil)
	}

	if t.abandoned(gen) {
		return spans.End(span, ErrConnectTimeout)
	}

	return spans.End(span, &ConnectionExhaustedError{Details: details})
}

func (t *Tuner) abandoned(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen != gen
}

// adopt makes h the current handle. It fails with ErrConnectTimeout when the
// attempt was abandoned and errSuperseded when a concurrent toggle already
// connected in the same generation.
func (t *Tuner) adopt(gen, id uint64, h playback.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.gen != gen:
		return ErrConnectTimeout
	case t.handle != nil:
		return errSuperseded
	}
	t.handle = h
	t.handleID = id
	return nil
}

// begin moves to connecting and arms a fresh deadline in one step, returning
// the current generation.
func (t *Tuner) begin(live bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.machine.Transition(playback.Connecting, live && t.machine.Live())
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armed++
	armed, gen := t.armed, t.gen
	t.timer = time.AfterFunc(t.cfg.ConnectTimeout, func() { t.onTimeout(armed, gen) })
	return gen
}

func (t *Tuner) pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	t.machine.Transition(playback.Paused, false)
}

func (t *Tuner) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed++
}

func (t *Tuner) onTimeout(armed, gen uint64) {
	t.mu.Lock()
	if t.armed != armed || t.gen != gen {
		t.mu.Unlock()
		return
	}
	h := t.failLocked()
	t.mu.Unlock()

	t.logger.Warn("connect timed out", "detail", timeoutDetail(t.cfg.ConnectTimeout))
	metricConnectFailures.WithLabelValues("timeout").Inc()
	if h != nil {
		t.release(context.Background(), h)
	}
}

// fault runs the failure path and alerts the listener. It only acts while gen
// and h still describe the current connection, otherwise it returns
// errSuperseded.
func (t *Tuner) fault(ctx context.Context, gen uint64, h playback.Handle, err error, reason string) error {
	t.mu.Lock()
	if t.gen != gen || t.handle != h {
		t.mu.Unlock()
		t.logger.Debug("ignoring stale failure", "reason", reason, "err", err)
		return errSuperseded
	}
	old := t.failLocked()
	t.mu.Unlock()

	if old != nil {
		t.release(ctx, old)
	}
	metricConnectFailures.WithLabelValues(reason).Inc()
	t.logger.Error("connection failed", "reason", reason, "err", err)

	t.raise(Alert{Title: "audio error", Detail: err.Error(), Time: time.Now()})
	return err
}

func (t *Tuner) raise(a Alert) {
	t.alertMu.Lock()
	alerts := t.alerts
	t.alertMu.Unlock()

	for _, fn := range alerts {
		fn(a)
	}
}

// teardown cancels the deadline, forgets the handle and releases it. Events
// already queued from the old handle are dropped.
func (t *Tuner) teardown(ctx context.Context) {
	t.mu.Lock()
	h := t.detachLocked()
	t.mu.Unlock()

	if h != nil {
		t.release(ctx, h)
	}
}

// failLocked detaches the connection and moves to the error state without
// releasing mu in between, so no toggle or event can land in the gap. The
// caller releases the returned handle after unlocking.
func (t *Tuner) failLocked() playback.Handle {
	h := t.detachLocked()
	t.machine.Fail()
	return h
}

func (t *Tuner) detachLocked() playback.Handle {
	t.stopTimerLocked()
	h := t.handle
	t.handle = nil
	t.handleID = 0
	t.gen++
	return h
}

// release unloads h, discarding any error.
func (t *Tuner) release(ctx context.Context, h playback.Handle) {
	if err := h.Unload(ctx); err != nil {
		t.logger.Debug("unload failed", "err", err)
	}
}
