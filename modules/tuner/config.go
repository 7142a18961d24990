package tuner

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/onair/pkg/sources"
)

const (
	defaultConnectTimeout   = 12 * time.Second
	defaultProgressInterval = 2 * time.Second
)

type Config struct {
	StreamURLs       flagext.StringSliceCSV `yaml:"stream-urls,omitempty"`
	UserAgent        string                 `yaml:"user-agent,omitempty"`
	ConnectTimeout   time.Duration          `yaml:"connect-timeout,omitempty"`   // deadline for a connect or resume to reach playing
	ProgressInterval time.Duration          `yaml:"progress-interval,omitempty"` // how often a playing handle reports status
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.Var(&cfg.StreamURLs, util.PrefixConfig(prefix, "stream-urls"),
		"Comma separated base stream URLs, tried in order. Each is expanded into four variants. Defaults to "+sources.DefaultStreamURL)
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), sources.UserAgent, "User-Agent sent to stream servers")
	f.DurationVar(&cfg.ConnectTimeout, util.PrefixConfig(prefix, "connect-timeout"), defaultConnectTimeout,
		"How long a connect or resume may take to reach playing before it is failed.")
	f.DurationVar(&cfg.ProgressInterval, util.PrefixConfig(prefix, "progress-interval"), defaultProgressInterval,
		"Interval at which the engine repeats the playback status.")
}
