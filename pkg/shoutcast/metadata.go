package shoutcast

// Metadata is one decoded in-band metadata block.
type Metadata struct {
	// The title of the currently playing track, usually "Artist - Title"
	StreamTitle string

	// Optional URL advertised next to the title
	StreamURL string
}

// NewMetadata decodes a raw metadata block, without its length byte.
func NewMetadata(block []byte) *Metadata {
	text := DecodeText(block)
	title, _ := MatchStreamTitle(text)
	return &Metadata{
		StreamTitle: title,
		StreamURL:   matchStreamURL(text),
	}
}

// Equals reports whether both blocks carry the same fields. A nil receiver
// or argument only equals another nil.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.StreamTitle == other.StreamTitle && m.StreamURL == other.StreamURL
}
