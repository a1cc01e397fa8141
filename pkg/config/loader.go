package config

import (
	"os"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for configuration environment variables.
// MODMAN_SHADERS_DIR sets shaders.dir.
const EnvPrefix = "MODMAN_"

// Default returns the embedded defaults without consulting disk or environment.
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(err)
	}
	return cfg
}

// Load layers the embedded defaults, the user file at configPath (when it
// exists) and MODMAN_ environment variables.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

func load(configPath string, withEnv bool) (*Config, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. User config
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", configPath)
			}
			logger.Debug().Str("path", configPath).Msg("Loaded user config")
		}
	}

	// 3. Environment
	if withEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	normalizeLists(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// normalizeLists lowercases list entries and strips leading dots from extensions.
func normalizeLists(cfg *Config) {
	lower := func(in []string, trimDot bool) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			s = strings.ToLower(strings.TrimSpace(s))
			if trimDot {
				s = strings.TrimPrefix(s, ".")
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	cfg.Archive.NonArchive = lower(cfg.Archive.NonArchive, true)
	cfg.Archive.Plugins = lower(cfg.Archive.Plugins, true)
	cfg.Archive.StopFolders = lower(cfg.Archive.StopFolders, false)
}
