package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/playkit/dtg/internal/domain"
)

// Config is the root configuration tree, loaded the way the teacher's
// config package loads it: viper defaults, a YAML file, then environment
// overrides.
type Config struct {
	Download  DownloadConfig  `mapstructure:"download" yaml:"download"`
	Selection SelectionConfig `mapstructure:"selection" yaml:"selection"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Playback  PlaybackConfig  `mapstructure:"playback" yaml:"playback"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DownloadConfig tunes the Download Worker (spec §4.6).
type DownloadConfig struct {
	RootDir          string `mapstructure:"root_dir" yaml:"root_dir"`
	Concurrency      int    `mapstructure:"concurrency" yaml:"concurrency"`
	MaxRetries       int    `mapstructure:"max_retries" yaml:"max_retries"`
	RequestTimeoutMS int    `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms"`
	UserAgentSuffix  string `mapstructure:"user_agent_suffix" yaml:"user_agent_suffix"`
	AudioBitrateKbps int    `mapstructure:"audio_bitrate_fallback_kbps" yaml:"audio_bitrate_fallback_kbps"`
}

// SelectionConfig carries the default domain.SelectionOptions (spec §3).
type SelectionConfig struct {
	MinVideoWidth          int      `mapstructure:"min_video_width" yaml:"min_video_width"`
	MinVideoHeight         int      `mapstructure:"min_video_height" yaml:"min_video_height"`
	MinBitrateH264         int      `mapstructure:"min_bitrate_h264" yaml:"min_bitrate_h264"`
	MinBitrateHEVC         int      `mapstructure:"min_bitrate_hevc" yaml:"min_bitrate_hevc"`
	PreferredVideoCodecs   []string `mapstructure:"preferred_video_codecs" yaml:"preferred_video_codecs"`
	AllowInefficientCodecs bool     `mapstructure:"allow_inefficient_codecs" yaml:"allow_inefficient_codecs"`
	AudioLanguagePolicy    string   `mapstructure:"audio_language_policy" yaml:"audio_language_policy"` // "all", "none", or comma list of tags
	TextLanguagePolicy     string   `mapstructure:"text_language_policy" yaml:"text_language_policy"`
}

// DeviceConfig carries the default domain.DeviceCapabilities (spec §4.2).
type DeviceConfig struct {
	HardwareHEVC bool `mapstructure:"hardware_hevc" yaml:"hardware_hevc"`
	SoftwareHEVC bool `mapstructure:"software_hevc" yaml:"software_hevc"`
	AC3          bool `mapstructure:"ac3" yaml:"ac3"`
	EAC3         bool `mapstructure:"eac3" yaml:"eac3"`
}

// StoreConfig locates the Task Store's sqlite database (spec §4.5).
type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// PlaybackConfig tunes the loopback playback server.
type PlaybackConfig struct {
	Port int `mapstructure:"port" yaml:"port"` // 0 = pick a free port
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// Load reads config from path (default "config.yaml"), falling back to
// /config/config.yaml the way the teacher's Docker deployment does, then
// applies DTG_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			}
		}
	}

	v := viper.New()

	v.SetDefault("download.root_dir", "./downloads")
	v.SetDefault("download.concurrency", 6)
	v.SetDefault("download.max_retries", 5)
	v.SetDefault("download.request_timeout_ms", 15000)
	v.SetDefault("download.user_agent_suffix", "dtg/1.0")
	v.SetDefault("download.audio_bitrate_fallback_kbps", 128)

	v.SetDefault("selection.min_bitrate_h264", 180000)
	v.SetDefault("selection.min_bitrate_hevc", 120000)
	v.SetDefault("selection.audio_language_policy", "all")
	v.SetDefault("selection.text_language_policy", "none")

	v.SetDefault("device.hardware_hevc", false)
	v.SetDefault("device.software_hevc", true)
	v.SetDefault("device.ac3", true)
	v.SetDefault("device.eac3", true)

	v.SetDefault("store.sqlite_path", "./dtg.db")

	v.SetDefault("playback.port", 0)

	v.SetDefault("log.path", "dtg.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("DTG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Download.RootDir == "" {
		c.Download.RootDir = "./downloads"
	}
	if c.Download.Concurrency <= 0 {
		c.Download.Concurrency = 6
	}
	if c.Download.MaxRetries <= 0 {
		c.Download.MaxRetries = 5
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "./dtg.db"
	}
}

// SelectionOptions builds the domain.SelectionOptions this config
// describes.
func (c *Config) SelectionOptions() domain.SelectionOptions {
	opts := domain.SelectionOptions{
		MinVideoWidth:          c.Selection.MinVideoWidth,
		MinVideoHeight:         c.Selection.MinVideoHeight,
		AllowInefficientCodecs: c.Selection.AllowInefficientCodecs,
		MinBitrate:             map[domain.VideoCodec]int{},
		AudioLanguages:         parseLanguagePolicy(c.Selection.AudioLanguagePolicy),
		TextLanguages:          parseLanguagePolicy(c.Selection.TextLanguagePolicy),
	}
	if c.Selection.MinBitrateH264 > 0 {
		opts.MinBitrate[domain.CodecH264] = c.Selection.MinBitrateH264
	}
	if c.Selection.MinBitrateHEVC > 0 {
		opts.MinBitrate[domain.CodecHEVC] = c.Selection.MinBitrateHEVC
	}
	for _, c := range c.Selection.PreferredVideoCodecs {
		switch strings.ToLower(c) {
		case "h264", "avc1", "avc":
			opts.PreferredVideoCodecs = append(opts.PreferredVideoCodecs, domain.CodecH264)
		case "hevc", "h265", "hvc1", "hev1":
			opts.PreferredVideoCodecs = append(opts.PreferredVideoCodecs, domain.CodecHEVC)
		}
	}
	return opts
}

func parseLanguagePolicy(raw string) domain.LanguagePolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return domain.LanguagePolicy{Kind: domain.LanguageAll}
	case "none":
		return domain.LanguagePolicy{Kind: domain.LanguageNone}
	default:
		var tags []string
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return domain.LanguagePolicy{Kind: domain.LanguageList, Tags: tags}
	}
}

// DeviceCapabilities builds the domain.DeviceCapabilities this config
// describes.
func (c *Config) DeviceCapabilities() domain.DeviceCapabilities {
	return domain.DeviceCapabilities{
		HardwareHEVC: c.Device.HardwareHEVC,
		SoftwareHEVC: c.Device.SoftwareHEVC,
		AC3:          c.Device.AC3,
		EAC3:         c.Device.EAC3,
	}
}
