package playback

// Event is a status report from a playback engine.
type Event struct {
	Loaded    bool
	Buffering bool
	Playing   bool
	Err       error
}

// Reduce folds one engine event into the previous state. Rules apply in
// priority order; fields that would not change are left alone so repeated
// identical events produce an identical state.
func Reduce(prev State, ev Event) State {
	next := prev

	switch {
	case !ev.Loaded && ev.Err != nil:
		next.Live = false
		next.Connecting = false
		next.Status = Error
	case !ev.Loaded:
		// nothing loaded yet and nothing wrong
	case ev.Buffering:
		next.Status = Buffering
	default:
		next.Connecting = false
		next.Live = ev.Playing
		if ev.Playing {
			next.Status = Playing
		} else {
			next.Status = Paused
		}
	}

	return next
}

// StartsPlayback reports whether the event moves the player into playing,
// which is when a pending connect deadline is no longer needed.
func (ev Event) StartsPlayback() bool {
	return ev.Loaded && !ev.Buffering && ev.Playing
}
