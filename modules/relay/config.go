package relay

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultWriteBufferSize = 64 * 1024 // 64 KiB
	minWriteBufSize        = 4 * 1024
	maxWriteBufSize        = 4 * 1024 * 1024
)

type Config struct {
	Output          string `yaml:"output,omitempty"`            // "-" for stdout, a file path, or empty to discard
	WriteBufferSize int    `yaml:"write-buffer-size,omitempty"` // upper bound on bytes batched into one write
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Output, util.PrefixConfig(prefix, "output"), "",
		`Where to send the audio: "-" for stdout (eg. pipe into mpv -), a file path to append to, or empty to discard.`)
	f.IntVar(&cfg.WriteBufferSize, util.PrefixConfig(prefix, "write-buffer-size"), defaultWriteBufferSize,
		"Most bytes already queued that are combined into one write to the output.")
}

func (cfg *Config) writeBufSize() int {
	switch {
	case cfg.WriteBufferSize < minWriteBufSize:
		return minWriteBufSize
	case cfg.WriteBufferSize > maxWriteBufSize:
		return maxWriteBufSize
	}
	return cfg.WriteBufferSize
}
