package nowplaying

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want NowPlaying
		ok   bool
	}{
		{name: "simple", in: "Artist X - Song Y", want: NowPlaying{Artist: "Artist X", Title: "Song Y"}, ok: true},
		{name: "separator kept in title", in: "Pink Floyd - Time - The Dark Side", want: NowPlaying{Artist: "Pink Floyd", Title: "Time - The Dark Side"}, ok: true},
		{name: "segments trimmed", in: "  A   -   B  ", want: NowPlaying{Artist: "A", Title: "B"}, ok: true},
		{name: "no separator", in: "Station jingle", ok: false},
		{name: "hyphen without spaces", in: "Jay-Z", ok: false},
		{name: "empty artist", in: " - Title", ok: false},
		{name: "empty title", in: "Artist - ", ok: false},
		{name: "empty", in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Split(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    NowPlaying
		ok      bool
	}{
		{name: "top level", payload: `{"title":" T ","artist":" A "}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "song", payload: `{"song":{"title":"T","artist":"A"}}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "now_playing song", payload: `{"now_playing":{"song":{"title":"T","artist":"A"}}}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "now_playing text", payload: `{"now_playing":"A - T"}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "current text", payload: `{"current":"A - T"}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "partial top level falls through", payload: `{"title":"X","song":{"title":"T","artist":"A"}}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "wrong types skipped", payload: `{"title":1,"artist":true,"current":"A - T"}`, want: NowPlaying{Title: "T", Artist: "A"}, ok: true},
		{name: "empty object", payload: `{}`, ok: false},
		{name: "array", payload: `[{"title":"T","artist":"A"}]`, ok: false},
		{name: "string", payload: `"A - T"`, ok: false},
		{name: "null", payload: `null`, ok: false},
		{name: "unsplittable current", payload: `{"current":"Live"}`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload any
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &payload))
			got, ok := Extract(payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoreKeepsLastValid(t *testing.T) {
	def := NowPlaying{Title: "Default", Artist: "Station"}
	s := NewStore(def)
	assert.Equal(t, def, s.Get())

	var seen []NowPlaying
	s.Subscribe(func(np NowPlaying) { seen = append(seen, np) })

	assert.False(t, s.Set(NowPlaying{Title: "only title"}))
	assert.Equal(t, def, s.Get())

	next := NowPlaying{Title: "T", Artist: "A"}
	assert.True(t, s.Set(next))
	assert.True(t, s.Set(next))
	assert.Equal(t, next, s.Get())
	assert.Equal(t, []NowPlaying{next}, seen)
}

func TestStoreSubscribeDuringNotify(t *testing.T) {
	s := NewStore(NowPlaying{Title: "Default", Artist: "Station"})

	var first, late []NowPlaying
	s.Subscribe(func(np NowPlaying) {
		first = append(first, np)
		if len(first) == 1 {
			s.Subscribe(func(np NowPlaying) { late = append(late, np) })
		}
	})

	a := NowPlaying{Title: "A", Artist: "X"}
	b := NowPlaying{Title: "B", Artist: "Y"}
	s.Set(a)
	s.Set(b)

	assert.Equal(t, []NowPlaying{a, b}, first)
	assert.Equal(t, []NowPlaying{b}, late, "observers added mid-notify start with the next change")
}
