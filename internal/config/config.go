// Package config provides configuration management for pseudotv using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort         = 5004
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultHorizonDays        = 2
	defaultRefreshIntervalHrs = 12
	defaultMaxVideosPerSource = 50
	defaultCacheTTLHours      = 6
	defaultQuality            = "best"
	defaultGroupTitle         = "Other"
	defaultResolution         = "1280x720"
	defaultFramerate          = 30
	defaultVideoBitrate       = "4M"
	defaultAudioBitrate       = "192k"
	defaultEPGOutputFile      = "epg.xml"
)

// MixingAlgorithm selects how per-source video lists combine into one
// program sequence.
type MixingAlgorithm string

// Supported mixing algorithms.
const (
	MixConcatenate MixingAlgorithm = "concatenate"
	MixInterleave  MixingAlgorithm = "interleave"
)

// SortOrder selects the ordering of a filtered video list.
type SortOrder string

// Supported sort orders.
const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortRandom SortOrder = "random"
)

// RefreshStrategy selects how a channel's schedule is regenerated.
type RefreshStrategy string

// Supported refresh strategies.
const (
	// RefreshRoll preserves not-yet-aired entries and appends after them.
	RefreshRoll RefreshStrategy = "roll"
	// RefreshRebuild discards the whole schedule and regenerates from now.
	RefreshRebuild RefreshStrategy = "rebuild"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Logging   LoggingConfig            `mapstructure:"logging"`
	EPG       EPGConfig                `mapstructure:"epg"`
	Cache     CacheConfig              `mapstructure:"cache"`
	Binaries  BinariesConfig           `mapstructure:"binaries"`
	Channels  []ChannelConfig          `mapstructure:"channels"`
	Publicity map[string]PublicityPool `mapstructure:"publicity"`
}

// BinariesConfig holds external tool paths. Empty values resolve from PATH.
type BinariesConfig struct {
	FFmpeg string `mapstructure:"ffmpeg"`
	Ytdlp  string `mapstructure:"ytdlp"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// BaseURL overrides the externally visible URL used in the M3U playlist.
	// Empty means derive from the request Host header.
	BaseURL string `mapstructure:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	TimeFormat string `mapstructure:"time_format"`
}

// EPGConfig holds schedule generation configuration.
type EPGConfig struct {
	// HorizonDays is how many days ahead every schedule must cover.
	HorizonDays int `mapstructure:"days"`

	// OutputFile is the path of the generated XMLTV document.
	OutputFile string `mapstructure:"output_file"`

	// RefreshIntervalHours is the background refresh period.
	RefreshIntervalHours int `mapstructure:"refresh_interval_hours"`

	// RefreshCron optionally replaces the interval with a cron expression.
	RefreshCron string `mapstructure:"refresh_cron"`
}

// CacheConfig holds metadata cache configuration.
type CacheConfig struct {
	// TTLHours is the default catalog cache TTL. Zero disables caching.
	TTLHours int `mapstructure:"ttl_hours"`
}

// OutputProfile holds transcoder output parameters. The values are opaque to
// the core and passed straight to ffmpeg.
type OutputProfile struct {
	Resolution   string `mapstructure:"resolution"`
	Framerate    int    `mapstructure:"framerate"`
	VideoBitrate string `mapstructure:"video_bitrate"`
	AudioBitrate string `mapstructure:"audio_bitrate"`
}

// ChannelConfig holds per-channel configuration. Loaded once per process
// generation and treated as read-only afterwards.
type ChannelConfig struct {
	ID         string `mapstructure:"id"`
	Name       string `mapstructure:"name"`
	GroupTitle string `mapstructure:"group_title"`

	// Quality is the format selector passed to the media resolver.
	Quality string `mapstructure:"quality"`

	MixingAlgorithm MixingAlgorithm `mapstructure:"mixing_algorithm"`
	SortOrder       SortOrder       `mapstructure:"sort_order"`
	RefreshStrategy RefreshStrategy `mapstructure:"epg_refresh_strategy"`

	// MinDuration/MaxDuration bound video length in seconds. A nil bound is
	// unconstrained on that side.
	MinDuration *int `mapstructure:"min_duration"`
	MaxDuration *int `mapstructure:"max_duration"`

	// TitlePattern is a case-insensitive regular expression videos must
	// match. Empty means no title filtering.
	TitlePattern string `mapstructure:"title_pattern"`

	// DateAfter/DateBefore bound the publish date window. Each accepts an
	// absolute date ("2024-01-15") or a relative expression ("3 months ago").
	DateAfter  string `mapstructure:"date_after"`
	DateBefore string `mapstructure:"date_before"`

	MaxVideosPerSource   int    `mapstructure:"max_videos_per_source"`
	ProgramsPerPublicity int    `mapstructure:"programs_per_publicity"`
	PublicityPool        string `mapstructure:"publicity_pool"`

	// CacheTTLHours overrides the global cache TTL for this channel's
	// sources. Nil means use the global default.
	CacheTTLHours *int `mapstructure:"cache_ttl_hours"`

	Output OutputProfile `mapstructure:"output"`

	// Sources is the ordered list of catalog URLs feeding the channel.
	Sources []string `mapstructure:"youtube_channels"`
}

// PublicityPool is a named group of sources supplying interstitial entries,
// with its own duration filters independent of any one channel.
type PublicityPool struct {
	Sources            []string `mapstructure:"youtube_channels"`
	MinDuration        *int     `mapstructure:"min_duration"`
	MaxDuration        *int     `mapstructure:"max_duration"`
	MaxVideosPerSource int      `mapstructure:"max_videos_per_source"`
	CacheTTLHours      *int     `mapstructure:"cache_ttl_hours"`
}

// CacheTTL returns the effective catalog TTL for the channel.
func (c *ChannelConfig) CacheTTL(global CacheConfig) time.Duration {
	if c.CacheTTLHours != nil {
		return time.Duration(*c.CacheTTLHours) * time.Hour
	}
	return time.Duration(global.TTLHours) * time.Hour
}

// CacheTTL returns the effective catalog TTL for the pool.
func (p *PublicityPool) CacheTTL(global CacheConfig) time.Duration {
	if p.CacheTTLHours != nil {
		return time.Duration(*p.CacheTTLHours) * time.Hour
	}
	return time.Duration(global.TTLHours) * time.Hour
}

// Channel returns the channel with the given id, or nil.
func (c *Config) Channel(id string) *ChannelConfig {
	for i := range c.Channels {
		if c.Channels[i].ID == id {
			return &c.Channels[i]
		}
	}
	return nil
}

// Pool returns the publicity pool referenced by the channel, or nil when the
// channel has no pool configured or the reference is unknown.
func (c *Config) Pool(ch *ChannelConfig) *PublicityPool {
	if ch.PublicityPool == "" {
		return nil
	}
	if pool, ok := c.Publicity[ch.PublicityPool]; ok {
		return &pool
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables are prefixed with PSEUDOTV_ and use underscores for
// nesting, e.g. PSEUDOTV_SERVER_PORT=5004.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pseudotv")
		v.AddConfigPath("$HOME/.pseudotv")
	}

	v.SetEnvPrefix("PSEUDOTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK; defaults and env vars still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyChannelDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("epg.days", defaultHorizonDays)
	v.SetDefault("epg.output_file", defaultEPGOutputFile)
	v.SetDefault("epg.refresh_interval_hours", defaultRefreshIntervalHrs)

	v.SetDefault("cache.ttl_hours", defaultCacheTTLHours)
}

// applyChannelDefaults fills per-channel and per-pool zero values with
// their documented defaults.
func (c *Config) applyChannelDefaults() {
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.GroupTitle == "" {
			ch.GroupTitle = defaultGroupTitle
		}
		if ch.Quality == "" {
			ch.Quality = defaultQuality
		}
		if ch.MixingAlgorithm == "" {
			ch.MixingAlgorithm = MixConcatenate
		}
		if ch.SortOrder == "" {
			ch.SortOrder = SortNewest
		}
		if ch.RefreshStrategy == "" {
			ch.RefreshStrategy = RefreshRoll
		}
		if ch.MaxVideosPerSource == 0 {
			ch.MaxVideosPerSource = defaultMaxVideosPerSource
		}
		if ch.Output.Resolution == "" {
			ch.Output.Resolution = defaultResolution
		}
		if ch.Output.Framerate == 0 {
			ch.Output.Framerate = defaultFramerate
		}
		if ch.Output.VideoBitrate == "" {
			ch.Output.VideoBitrate = defaultVideoBitrate
		}
		if ch.Output.AudioBitrate == "" {
			ch.Output.AudioBitrate = defaultAudioBitrate
		}
	}
	for name, pool := range c.Publicity {
		if pool.MaxVideosPerSource == 0 {
			pool.MaxVideosPerSource = defaultMaxVideosPerSource
			c.Publicity[name] = pool
		}
	}
}

// Validate checks the configuration for errors. Any failure here is fatal at
// load time: the process must not start with a partially valid fleet.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.EPG.HorizonDays < 1 {
		return fmt.Errorf("epg.days must be at least 1")
	}
	if c.EPG.OutputFile == "" {
		return fmt.Errorf("epg.output_file is required")
	}
	if c.EPG.RefreshIntervalHours < 1 && c.EPG.RefreshCron == "" {
		return fmt.Errorf("epg.refresh_interval_hours must be at least 1")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative")
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}

	seen := make(map[string]bool, len(c.Channels))
	for i := range c.Channels {
		if err := c.validateChannel(&c.Channels[i], seen); err != nil {
			return err
		}
	}

	for name, pool := range c.Publicity {
		if len(pool.Sources) == 0 {
			return fmt.Errorf("publicity pool %q: youtube_channels is required", name)
		}
		if err := validateDurationBounds(pool.MinDuration, pool.MaxDuration); err != nil {
			return fmt.Errorf("publicity pool %q: %w", name, err)
		}
	}

	return nil
}

func (c *Config) validateChannel(ch *ChannelConfig, seen map[string]bool) error {
	if ch.ID == "" {
		return fmt.Errorf("channel id is required")
	}
	if seen[ch.ID] {
		return fmt.Errorf("channel %q: duplicate id", ch.ID)
	}
	seen[ch.ID] = true

	if ch.Name == "" {
		return fmt.Errorf("channel %q: name is required", ch.ID)
	}
	if len(ch.Sources) == 0 {
		return fmt.Errorf("channel %q: youtube_channels is required", ch.ID)
	}

	switch ch.MixingAlgorithm {
	case MixConcatenate, MixInterleave:
	default:
		return fmt.Errorf("channel %q: mixing_algorithm must be one of: concatenate, interleave", ch.ID)
	}
	switch ch.SortOrder {
	case SortNewest, SortOldest, SortRandom:
	default:
		return fmt.Errorf("channel %q: sort_order must be one of: newest, oldest, random", ch.ID)
	}
	switch ch.RefreshStrategy {
	case RefreshRoll, RefreshRebuild:
	default:
		return fmt.Errorf("channel %q: epg_refresh_strategy must be one of: roll, rebuild", ch.ID)
	}

	if err := validateDurationBounds(ch.MinDuration, ch.MaxDuration); err != nil {
		return fmt.Errorf("channel %q: %w", ch.ID, err)
	}
	if ch.ProgramsPerPublicity < 0 {
		return fmt.Errorf("channel %q: programs_per_publicity must not be negative", ch.ID)
	}
	if ch.MaxVideosPerSource < 1 {
		return fmt.Errorf("channel %q: max_videos_per_source must be at least 1", ch.ID)
	}
	if ch.CacheTTLHours != nil && *ch.CacheTTLHours < 0 {
		return fmt.Errorf("channel %q: cache_ttl_hours must not be negative", ch.ID)
	}

	if ch.PublicityPool != "" {
		if _, ok := c.Publicity[ch.PublicityPool]; !ok {
			return fmt.Errorf("channel %q: unknown publicity_pool %q", ch.ID, ch.PublicityPool)
		}
	}

	if ch.TitlePattern != "" {
		if _, err := CompileTitlePattern(ch.TitlePattern); err != nil {
			return fmt.Errorf("channel %q: title_pattern: %w", ch.ID, err)
		}
	}

	now := time.Now()
	if ch.DateAfter != "" {
		if _, err := ResolveDateExpr(ch.DateAfter, now); err != nil {
			return fmt.Errorf("channel %q: date_after: %w", ch.ID, err)
		}
	}
	if ch.DateBefore != "" {
		if _, err := ResolveDateExpr(ch.DateBefore, now); err != nil {
			return fmt.Errorf("channel %q: date_before: %w", ch.ID, err)
		}
	}

	return nil
}

func validateDurationBounds(min, max *int) error {
	if min != nil && *min < 0 {
		return fmt.Errorf("min_duration must not be negative")
	}
	if max != nil && *max < 0 {
		return fmt.Errorf("max_duration must not be negative")
	}
	if min != nil && max != nil && *min > *max {
		return fmt.Errorf("min_duration must not exceed max_duration")
	}
	return nil
}

// CompileTitlePattern compiles a case-insensitive title pattern. A plain
// substring is a valid pattern since it is a valid regular expression.
func CompileTitlePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
