package app

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/onair/modules/api"
	"github.com/zachfi/onair/modules/poller"
	"github.com/zachfi/onair/modules/relay"
	"github.com/zachfi/onair/modules/tuner"
	"github.com/zachfi/onair/pkg/sources"
)

// Environment variables that override the file and defaults. Command line
// flags still win.
const (
	EnvStreamURLs    = "ONAIR_STREAM_URLS"
	EnvNowPlayingURL = "ONAIR_NOWPLAYING_URL"
)

type Config struct {
	Target   string         `yaml:"target"`
	LogLevel string         `yaml:"log-level,omitempty"`
	Tracing  tracing.Config `yaml:"tracing,omitempty"`
	Server   server.Config  `yaml:"server,omitempty"`
	Tuner    tuner.Config   `yaml:"tuner,omitempty"`
	Poller   poller.Config  `yaml:"poller,omitempty"`
	Relay    relay.Config   `yaml:"relay,omitempty"`
	API      api.Config     `yaml:"api,omitempty"`
}

// LoadConfig receives a file path for a configuration to load.
func LoadConfig(file string) (Config, error) {
	filename, _ := filepath.Abs(file)

	config := Config{}
	err := loadYamlFile(filename, &config)
	if err != nil {
		return config, errors.Wrap(err, "failed to load yaml file")
	}

	return config, nil
}

// loadYamlFile unmarshals a YAML file into the received interface{} or returns an error.
func loadYamlFile(filename string, d interface{}) error {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	err = yaml.UnmarshalStrict(yamlFile, d)
	if err != nil {
		return err
	}

	return nil
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 3030, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9090, "gRPC server listen port.")
	f.StringVar(&c.Target, "target", All, "The module to run.")
	f.StringVar(&c.LogLevel, "log.level", "info", "Log level: debug, info, warn or error.")

	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)
	c.Tuner.RegisterFlagsAndApplyDefaults("tuner", f)
	c.Poller.RegisterFlagsAndApplyDefaults("poller", f)
	c.Relay.RegisterFlagsAndApplyDefaults("relay", f)
	c.API.RegisterFlagsAndApplyDefaults("api", f)
}

// ApplyEnv overlays the stream and now playing endpoints from the
// environment. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvStreamURLs); ok {
		if urls := sources.ParseList(v); len(urls) > 0 {
			c.Tuner.StreamURLs = urls
		}
	}
	if v, ok := lookup(EnvNowPlayingURL); ok {
		if v = strings.TrimSpace(v); v != "" {
			c.Poller.URL = v
		}
	}
}
