package nowplaying

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// icyBuffer lays out metaint bytes of audio, the length byte and the NUL
// padded metadata block.
func icyBuffer(metaint int, meta string) []byte {
	blocks := (len(meta) + 15) / 16
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xFF}, metaint))
	buf.WriteByte(byte(blocks))
	buf.WriteString(meta)
	buf.Write(make([]byte, blocks*16-len(meta)))
	buf.Write(bytes.Repeat([]byte{0xFB}, 64))
	return buf.Bytes()
}

func TestParseICYBlock(t *testing.T) {
	buf := icyBuffer(100, "StreamTitle='Artist X - Song Y';")
	got, ok := ParseICY(buf, 100)
	assert.True(t, ok)
	assert.Equal(t, NowPlaying{Artist: "Artist X", Title: "Song Y"}, got)
}

func TestParseICYCaseInsensitive(t *testing.T) {
	buf := icyBuffer(16, "streamtitle='A - B';StreamUrl='';")
	got, ok := ParseICY(buf, 16)
	assert.True(t, ok)
	assert.Equal(t, NowPlaying{Artist: "A", Title: "B"}, got)
}

func TestParseICYLatin1(t *testing.T) {
	buf := icyBuffer(4, "StreamTitle='Jorge S\xe1nchez - Canci\xf3n';")
	got, ok := ParseICY(buf, 4)
	assert.True(t, ok)
	assert.Equal(t, NowPlaying{Artist: "Jorge Sánchez", Title: "Canción"}, got)
}

func TestParseICYFallback(t *testing.T) {
	buf := append(bytes.Repeat([]byte{0x00, 0x11}, 40), []byte("junkStreamTitle='A - B';junk")...)

	for _, metaint := range []int{0, -1, 10, 10000} {
		got, ok := ParseICY(buf, metaint)
		assert.True(t, ok, "metaint %d", metaint)
		assert.Equal(t, NowPlaying{Artist: "A", Title: "B"}, got, "metaint %d", metaint)
	}
}

func TestParseICYBlockOverrunsBuffer(t *testing.T) {
	buf := icyBuffer(20, "StreamTitle='A - B';")
	// cut inside the block: the primary path fails, the fallback has no terminator
	got, ok := ParseICY(buf[:30], 20)
	assert.False(t, ok)
	assert.Equal(t, NowPlaying{}, got)
}

func TestParseICYNoMetadata(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF, 0xFB}, 200)
	buf[100] = 0
	_, ok := ParseICY(buf, 100)
	assert.False(t, ok)

	_, ok = ParseICY(nil, 0)
	assert.False(t, ok)
}

func TestParseICYUnsplittableTitle(t *testing.T) {
	buf := icyBuffer(8, "StreamTitle='Station ID';")
	_, ok := ParseICY(buf, 8)
	assert.False(t, ok)
}

// A title found in the block is final even when it cannot be split; stale
// text elsewhere in the buffer must not win.
func TestParseICYBlockTitleIsFinal(t *testing.T) {
	audio := []byte("StreamTitle='Old - Track';")
	audio = append(audio, bytes.Repeat([]byte{0xFF}, 64-len(audio))...)
	buf := append(audio, icyBuffer(0, "StreamTitle='Station ID';")...)

	_, ok := ParseICY(buf, 64)
	assert.False(t, ok)
}
