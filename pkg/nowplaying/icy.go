package nowplaying

import "github.com/zachfi/onair/pkg/shoutcast"

// ParseICY extracts the track from a buffer of interleaved audio and ICY
// metadata. With a usable metaint the block at that offset is tried first
// and its title, splittable or not, is final. Only when it carries no title
// is the whole buffer searched, which covers servers that embed StreamTitle
// without announcing icy-metaint.
func ParseICY(buf []byte, metaint int) (NowPlaying, bool) {
	if title, ok := blockTitle(buf, metaint); ok {
		return Split(title)
	}

	title, ok := shoutcast.MatchStreamTitle(shoutcast.DecodeText(buf))
	if !ok {
		return NowPlaying{}, false
	}
	return Split(title)
}

func blockTitle(buf []byte, metaint int) (string, bool) {
	if metaint <= 0 || len(buf) <= metaint {
		return "", false
	}

	length := int(buf[metaint]) * 16
	start := metaint + 1
	end := start + length
	if length == 0 || end > len(buf) {
		return "", false
	}

	return shoutcast.MatchStreamTitle(shoutcast.DecodeText(buf[start:end]))
}
