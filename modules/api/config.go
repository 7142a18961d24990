package api

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	AllowedOrigins flagext.StringSliceCSV `yaml:"allowed-origins,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.AllowedOrigins = []string{"*"}
	f.Var(&cfg.AllowedOrigins, util.PrefixConfig(prefix, "allowed-origins"), "Comma separated origins allowed to call the API from a browser")
}
