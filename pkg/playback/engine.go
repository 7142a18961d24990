package playback

import (
	"context"
	"time"

	"github.com/zachfi/onair/pkg/sources"
)

// Options are passed to Engine.Create.
type Options struct {
	// ShouldPlay starts playback as soon as the source is loaded.
	ShouldPlay bool
	// ProgressInterval is how often a playing handle repeats its status.
	ProgressInterval time.Duration
	// OnMetadata receives in-band stream titles as they change.
	OnMetadata func(raw string)
}

// HandleStatus is the result of querying a handle directly.
type HandleStatus struct {
	Loaded  bool
	Playing bool
}

// Handle is one loaded source.
type Handle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Status(ctx context.Context) (HandleStatus, error)
	// Unload releases the handle. No status callbacks are delivered after it
	// returns.
	Unload(ctx context.Context) error
}

// Engine turns a source into a playing handle. onStatus receives events
// from any goroutine until the handle is unloaded.
type Engine interface {
	Create(ctx context.Context, src sources.Source, opts Options, onStatus func(Event)) (Handle, error)
}
