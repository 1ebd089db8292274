// Package config loads the SDK's boot-time configuration from a TOML
// file, the way dh-cli loads config.toml: read the file, unmarshal with
// go-toml/v2, fall back to defaults for anything unset.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/interfaces"
)

// Config is the full set of SDK boot parameters (SPEC_FULL.md §3-FULL.1).
type Config struct {
	DeviceSerial string `toml:"device_serial"`
	ProjectKey   string `toml:"project_key"`
	APIHost      string `toml:"api_host,omitempty"`

	EventStorageLen uint32 `toml:"event_storage_len,omitempty"`
	LogRingLen      uint32 `toml:"log_ring_len,omitempty"`
	SingleChunkLen  uint32 `toml:"single_chunk_len,omitempty"`

	EnableMultiCallChunk bool `toml:"enable_multi_call_chunk,omitempty"`
	EnableCompression    bool `toml:"enable_compression,omitempty"`

	MinLogLevel interfaces.LogLevel `toml:"-"`
}

// Default returns the programmatic default configuration. DeviceSerial
// and ProjectKey are intentionally left blank — every deployment must
// supply its own.
func Default() Config {
	return Config{
		APIHost:         constants.DefaultAPIHost,
		EventStorageLen: constants.DefaultEventStorageLen,
		LogRingLen:      constants.DefaultLogRingLen,
		SingleChunkLen:  constants.DefaultSingleChunkLen,
		MinLogLevel:     interfaces.LogLevelInfo,
	}
}

// Load reads a TOML file at path and overlays it onto Default(). A
// missing file is not an error: it returns the defaults unchanged, the
// way a platform with no override file still boots.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.APIHost == "" {
		cfg.APIHost = constants.DefaultAPIHost
	}
	if cfg.EventStorageLen == 0 {
		cfg.EventStorageLen = constants.DefaultEventStorageLen
	}
	if cfg.LogRingLen == 0 {
		cfg.LogRingLen = constants.DefaultLogRingLen
	}
	if cfg.SingleChunkLen == 0 {
		cfg.SingleChunkLen = constants.DefaultSingleChunkLen
	}
	return cfg, nil
}
