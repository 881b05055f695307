package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"github.com/chenBenjamin97/robot-scout/pkg/video"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	resolverStreamlink = "streamlink"
	resolverStatic     = "static"
)

type sourceConfig struct {
	URL  string `mapstructure:"url"`
	Live bool   `mapstructure:"live"`
	//Resolver is "streamlink" (stream pages) or "static" (already playable URLs)
	Resolver           string        `mapstructure:"resolver"`
	StreamlinkPath     string        `mapstructure:"streamlink_path"`
	StreamlinkArgs     []string      `mapstructure:"streamlink_args"`
	ResolveTimeout     time.Duration `mapstructure:"resolve_timeout"`
	PreferredQualities []string      `mapstructure:"preferred_qualities"`
}

type httpConfig struct {
	Addr string `mapstructure:"addr"`
}

type recorderConfig struct {
	Path string `mapstructure:"path"`
}

type config struct {
	Source     sourceConfig           `mapstructure:"source"`
	Tracker    video.TrackerConfig    `mapstructure:"tracker"`
	Classifier video.ClassifierConfig `mapstructure:"classifier"`
	Scout      video.ScoutConfig      `mapstructure:"scout"`
	HTTP       httpConfig             `mapstructure:"http"`
	Recorder   recorderConfig         `mapstructure:"recorder"`
}

func defaultConfig() config {
	return config{
		Source: sourceConfig{
			Resolver:           resolverStreamlink,
			ResolveTimeout:     30 * time.Second,
			PreferredQualities: utils.PreferredQualities,
		},
		Tracker: video.TrackerConfig{
			Command:       "python3",
			Args:          []string{"tracker.py", "--model", "robots.pt"},
			MinConfidence: 0.5,
			Classes:       []int{utils.TeamAClass},
		},
		Classifier: video.DefaultClassifierConfig(),
		Scout:      video.DefaultScoutConfig(),
	}
}

//loadConfig reads config.yaml (working directory, or the file given by --config), SCOUT_* environment variables
//and the bound flags, on top of the defaults
func loadConfig(configFile string, args []string) (config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("loadConfig: could not read config file, got '%w'", err)
		}
	}

	//ZeroFields makes configured lists replace the default ones instead of being merged into them
	cfg := defaultConfig()
	if err := viper.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) { c.ZeroFields = true }); err != nil {
		return config{}, fmt.Errorf("loadConfig: invalid configuration: %w", err)
	}

	if len(args) > 0 {
		cfg.Source.URL = args[0]
	}
	if cfg.Source.URL == "" {
		return config{}, errors.New("loadConfig: no source given (argument or 'source.url')")
	}
	if cfg.Source.Resolver != resolverStreamlink && cfg.Source.Resolver != resolverStatic {
		return config{}, fmt.Errorf("loadConfig: unknown resolver '%s'", cfg.Source.Resolver)
	}

	return cfg, nil
}

//sourceOptions builds the FrameSource options for cfg
func (cfg sourceConfig) sourceOptions() []video.SourceOption {
	opts := []video.SourceOption{
		video.WithResolveTimeout(cfg.ResolveTimeout),
	}
	if len(cfg.PreferredQualities) > 0 {
		opts = append(opts, video.WithPreferredQualities(cfg.PreferredQualities...))
	}

	if cfg.Resolver == resolverStreamlink {
		opts = append(opts, video.WithResolver(video.StreamlinkResolver{Path: cfg.StreamlinkPath, Args: cfg.StreamlinkArgs}))
	} else {
		opts = append(opts, video.WithResolver(video.StaticResolver{}))
	}
	return opts
}
