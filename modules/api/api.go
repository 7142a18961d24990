package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"

	"github.com/zachfi/onair/modules/tuner"
	"github.com/zachfi/onair/pkg/nowplaying"
	"github.com/zachfi/onair/pkg/playback"
	"github.com/zachfi/onair/pkg/sources"
)

const (
	module = "api"

	// PlayerStream is the event stream id, eg. /api/v1/events?stream=player.
	PlayerStream = "player"
)

// Player is the single user action plus the sources it walks through.
type Player interface {
	Toggle(ctx context.Context) error
	Sources() []sources.Source
}

// API exposes the player to a UI over HTTP.
type API struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	player  Player
	machine *playback.Machine
	store   *nowplaying.Store
	events  *sse.Server
}

// StatusResponse is returned by the status and toggle endpoints.
type StatusResponse struct {
	Status     playback.Status       `json:"status"`
	Live       bool                  `json:"live"`
	NowPlaying nowplaying.NowPlaying `json:"now_playing"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New registers the API routes on router and subscribes to the machine and
// store so changes are pushed to event stream clients.
func New(cfg Config, logger *slog.Logger, router *mux.Router, player Player, machine *playback.Machine, store *nowplaying.Store) (*API, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}

	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(PlayerStream)

	a := &API{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		player:  player,
		machine: machine,
		store:   store,
		events:  events,
	}

	routes := mux.NewRouter()
	v1 := routes.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", a.status).Methods(http.MethodGet)
	v1.HandleFunc("/toggle", a.toggle).Methods(http.MethodPost)
	v1.HandleFunc("/sources", a.sources).Methods(http.MethodGet)
	v1.HandleFunc("/events", a.events.ServeHTTP).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	router.PathPrefix("/api/").Handler(c.Handler(routes))

	machine.Subscribe(func(s playback.State) {
		a.publish("status", StatusResponse{Status: s.Status, Live: s.Live, NowPlaying: a.store.Get()})
	})
	store.Subscribe(func(np nowplaying.NowPlaying) {
		a.publish("now_playing", np)
	})

	a.Service = services.NewIdleService(nil, a.stopping)

	return a, nil
}

// PublishAlert pushes a connection failure to event stream clients.
func (a *API) PublishAlert(al tuner.Alert) {
	a.publish("alert", al)
}

func (a *API) stopping(_ error) error {
	a.events.Close()
	return nil
}

func (a *API) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode event", "event", event, "err", err)
		return
	}
	a.events.Publish(PlayerStream, &sse.Event{Event: []byte(event), Data: data})
}

func (a *API) current() StatusResponse {
	s := a.machine.State()
	return StatusResponse{Status: s.Status, Live: s.Live, NowPlaying: a.store.Get()}
}

func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.current())
}

func (a *API) toggle(w http.ResponseWriter, r *http.Request) {
	// the attempt outlives a client that goes away, the failure path still
	// has to run
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), time.Minute)
	defer cancel()

	if err := a.player.Toggle(ctx); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a.current())
}

// sources lists the candidates a fresh connection tries, in order.
func (a *API) sources(w http.ResponseWriter, _ *http.Request) {
	list := a.player.Sources()
	if list == nil {
		list = []sources.Source{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
