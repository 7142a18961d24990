package nowplaying

import "strings"

// Extract finds a track in a decoded JSON payload of unknown shape. The
// first shape that yields both fields wins:
//
//	{"title": "...", "artist": "..."}
//	{"song": {"title": "...", "artist": "..."}}
//	{"now_playing": {"song": {"title": "...", "artist": "..."}}}
//	{"now_playing": "Artist - Title"}
//	{"current": "Artist - Title"}
//
// Anything else yields no result.
func Extract(payload any) (NowPlaying, bool) {
	data, ok := payload.(map[string]any)
	if !ok {
		return NowPlaying{}, false
	}

	if np, ok := fromFields(data); ok {
		return np, true
	}

	if song, ok := data["song"].(map[string]any); ok {
		if np, ok := fromFields(song); ok {
			return np, true
		}
	}

	if current, ok := data["now_playing"].(map[string]any); ok {
		if song, ok := current["song"].(map[string]any); ok {
			if np, ok := fromFields(song); ok {
				return np, true
			}
		}
	}

	if raw := stringField(data, "now_playing"); raw != "" {
		return Split(raw)
	}

	if raw := stringField(data, "current"); raw != "" {
		return Split(raw)
	}

	return NowPlaying{}, false
}

func fromFields(data map[string]any) (NowPlaying, bool) {
	np := NowPlaying{
		Title:  stringField(data, "title"),
		Artist: stringField(data, "artist"),
	}
	return np, np.Title != "" && np.Artist != ""
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}
