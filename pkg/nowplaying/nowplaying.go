// Package nowplaying turns the different shapes station backends publish
// into a single artist/title pair.
package nowplaying

import "strings"

// separator splits "Artist - Title" strings.
const separator = " - "

// NowPlaying is the track currently on air.
type NowPlaying struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Valid reports whether both fields carry text.
func (np NowPlaying) Valid() bool {
	return strings.TrimSpace(np.Title) != "" && strings.TrimSpace(np.Artist) != ""
}

func (np NowPlaying) String() string {
	return np.Artist + separator + np.Title
}

// Split parses "<artist> - <title>". The first segment is the artist and the
// rest, rejoined with the separator, is the title, so titles that contain
// " - " survive intact.
func Split(s string) (NowPlaying, bool) {
	parts := strings.Split(s, separator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return NowPlaying{}, false
	}
	return NowPlaying{
		Artist: parts[0],
		Title:  strings.Join(parts[1:], separator),
	}, true
}
