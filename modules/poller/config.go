package poller

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	DefaultURL    = "https://stream.motivafm.com/listen/motiva/motiva.mp3"
	DefaultTitle  = "TODO FM Classic"
	DefaultArtist = "Jorge Sánchez"

	defaultInterval = 60 * time.Second
	defaultTimeout  = 5 * time.Second
	maxBodyBytes    = 32 * 1024
)

type Config struct {
	URL           string        `yaml:"url,omitempty"`
	Interval      time.Duration `yaml:"interval,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	DefaultTitle  string        `yaml:"default-title,omitempty"`
	DefaultArtist string        `yaml:"default-artist,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), DefaultURL, "Endpoint queried for the current track, JSON or an ICY stream")
	f.DurationVar(&cfg.Interval, util.PrefixConfig(prefix, "interval"), defaultInterval, "How often to refresh the current track")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), defaultTimeout, "Deadline for a single refresh")
	f.StringVar(&cfg.DefaultTitle, util.PrefixConfig(prefix, "default-title"), DefaultTitle, "Title shown until a track is known")
	f.StringVar(&cfg.DefaultArtist, util.PrefixConfig(prefix, "default-artist"), DefaultArtist, "Artist shown until a track is known")
}
