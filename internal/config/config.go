package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/slidefeed/internal/audio"
	"github.com/ivlev/slidefeed/internal/caption"
	"github.com/ivlev/slidefeed/internal/playback"
	"github.com/ivlev/slidefeed/internal/source"
)

var ErrInvalid = errors.New("invalid config")

const envPrefix = "SLIDEFEED_"

type Config struct {
	App       AppConfig           `yaml:"app"`
	Source    SourceConfig        `yaml:"source"`
	Feed      FeedConfig          `yaml:"feed"`
	Captions  CaptionConfig       `yaml:"captions"`
	Playback  PlaybackConfig      `yaml:"playback"`
	Prefetch  PrefetchConfig      `yaml:"prefetch"`
	Storage   audio.StorageConfig `yaml:"storage"`
	Server    ServerConfig        `yaml:"server"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
}

type AppConfig struct {
	Environment  string `yaml:"environment"`
	LogFile      string `yaml:"log_file"`
	BuildVersion string `yaml:"-"`
}

type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	Path     string        `yaml:"path"`
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`

	// PDF decks
	RenderDir    string `yaml:"render_dir"`
	AudioPattern string `yaml:"audio_pattern"`
	DPI          int    `yaml:"dpi"`
	Workers      int    `yaml:"workers"`

	// image directories
	ImagePrefix string `yaml:"image_prefix"`
	AudioPrefix string `yaml:"audio_prefix"`
}

type FeedConfig struct {
	SwipeThreshold float64 `yaml:"swipe_threshold"`
	Height         float64 `yaml:"height"`
	Terminal       string  `yaml:"terminal"`
}

type CaptionConfig struct {
	Paging       string  `yaml:"paging"`
	EndPolicy    string  `yaml:"end_policy"`
	FitFraction  float64 `yaml:"fit_fraction"`
	CharsPerLine int     `yaml:"chars_per_line"`
	LineHeight   float64 `yaml:"line_height"`
}

type PlaybackConfig struct {
	SilentDwell time.Duration `yaml:"silent_dwell"`
	Tick        time.Duration `yaml:"tick"`
	// Fallback is the assumed stream length when ffprobe cannot measure it.
	Fallback  time.Duration `yaml:"fallback"`
	MediaRoot string        `yaml:"media_root"`
}

type PrefetchConfig struct {
	Lookahead    int           `yaml:"lookahead"`
	VideoPoolCap int           `yaml:"video_pool_cap"`
	SwipeBurst   int           `yaml:"swipe_burst"`
	SwipeIdle    time.Duration `yaml:"swipe_idle"`
	Timeout      time.Duration `yaml:"timeout"`
	Videos       []string      `yaml:"videos"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	ImagesDir string `yaml:"images_dir"`
	AudioDir  string `yaml:"audio_dir"`
	VideosDir string `yaml:"videos_dir"`
	PublicURL string `yaml:"public_url"`
}

type TelemetryConfig struct {
	// Publish sends slide changes through the in-process pub/sub instead of
	// only logging them.
	Publish bool `yaml:"publish"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{Environment: "development", LogFile: "logs/slidefeed.log"},
		Source: SourceConfig{
			Kind:        string(source.KindFile),
			Path:        "slides.yaml",
			Timeout:     source.DefaultTimeout,
			MaxBytes:    source.DefaultMaxBytes,
			RenderDir:   "public/images",
			DPI:         source.DefaultDPI,
			Workers:     4,
			ImagePrefix: "/images",
			AudioPrefix: "/audio",
		},
		Feed: FeedConfig{SwipeThreshold: 50, Height: 800, Terminal: "loop"},
		Captions: CaptionConfig{
			Paging:       "word",
			EndPolicy:    "reset",
			FitFraction:  0.3,
			CharsPerLine: 32,
			LineHeight:   28,
		},
		Playback: PlaybackConfig{
			SilentDwell: playback.DefaultSilentDwell,
			Tick:        250 * time.Millisecond,
			Fallback:    5 * time.Second,
			MediaRoot:   "public",
		},
		Prefetch: PrefetchConfig{
			Lookahead:    3,
			VideoPoolCap: 2,
			SwipeBurst:   5,
			SwipeIdle:    10 * time.Second,
			Timeout:      30 * time.Second,
		},
		Storage: audio.StorageConfig{Expiry: audio.DefaultSignExpiry, SitePrefix: "/audio"},
		Server: ServerConfig{
			Addr:      ":3000",
			ImagesDir: "public/images",
			AudioDir:  "public/audio",
			VideosDir: "public/videos",
		},
	}
}

// Load reads .env (when present) and the YAML file at path over the
// defaults, then applies SLIDEFEED_* environment overrides. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	str("ENV", &c.App.Environment)
	str("LOG_FILE", &c.App.LogFile)
	str("SOURCE_KIND", &c.Source.Kind)
	str("SOURCE_PATH", &c.Source.Path)
	str("SOURCE_URL", &c.Source.URL)
	str("TERMINAL", &c.Feed.Terminal)
	str("PAGING", &c.Captions.Paging)
	str("SERVER_ADDR", &c.Server.Addr)
	str("STORAGE_ENDPOINT", &c.Storage.Endpoint)
	str("STORAGE_BUCKET", &c.Storage.Bucket)
	str("STORAGE_REGION", &c.Storage.Region)
	// secrets are never read from the config file
	str("STORAGE_ACCESS_KEY", &c.Storage.AccessKey)
	str("STORAGE_SECRET_KEY", &c.Storage.SecretKey)

	var errs []error
	if v, ok := os.LookupEnv(envPrefix + "STORAGE_SIGNED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %sSTORAGE_SIGNED: %v", ErrInvalid, envPrefix, err))
		}
		c.Storage.Signed = b
	}
	if v, ok := os.LookupEnv(envPrefix + "SWIPE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %sSWIPE_THRESHOLD: %v", ErrInvalid, envPrefix, err))
		}
		c.Feed.SwipeThreshold = f
	}
	if v, ok := os.LookupEnv(envPrefix + "SILENT_DWELL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %sSILENT_DWELL: %v", ErrInvalid, envPrefix, err))
		}
		c.Playback.SilentDwell = d
	}
	return errors.Join(errs...)
}

// IsProduction switches the console log encoder to JSON.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

// Validate reports every problem at once; each wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if _, err := caption.ParseStrategy(c.Captions.Paging); err != nil {
		bad("captions.paging: %v", err)
	}
	if _, err := caption.ParseEndPolicy(c.Captions.EndPolicy); err != nil {
		bad("captions.end_policy: %v", err)
	}
	if _, err := playback.ParseTerminal(c.Feed.Terminal); err != nil {
		bad("feed.terminal: %v", err)
	}
	kind, err := source.ParseKind(c.Source.Kind)
	if err != nil {
		bad("source.kind: %v", err)
	}
	switch {
	case kind == source.KindHTTP && c.Source.URL == "":
		bad("source.url is required for kind %q", kind)
	case kind != source.KindHTTP && err == nil && c.Source.Path == "":
		bad("source.path is required for kind %q", kind)
	}

	if c.Feed.SwipeThreshold <= 0 {
		bad("feed.swipe_threshold must be positive, got %v", c.Feed.SwipeThreshold)
	}
	if c.Feed.Height <= 0 {
		bad("feed.height must be positive, got %v", c.Feed.Height)
	}
	if c.Captions.FitFraction <= 0 || c.Captions.FitFraction > 1 {
		bad("captions.fit_fraction must be in (0, 1], got %v", c.Captions.FitFraction)
	}
	if c.Prefetch.Lookahead <= 0 {
		bad("prefetch.lookahead must be positive, got %d", c.Prefetch.Lookahead)
	}
	if c.Prefetch.VideoPoolCap <= 0 {
		bad("prefetch.video_pool_cap must be positive, got %d", c.Prefetch.VideoPoolCap)
	}
	if c.Prefetch.SwipeBurst <= 0 {
		bad("prefetch.swipe_burst must be positive, got %d", c.Prefetch.SwipeBurst)
	}
	if c.Prefetch.SwipeIdle <= 0 {
		bad("prefetch.swipe_idle must be positive, got %v", c.Prefetch.SwipeIdle)
	}
	if c.Playback.SilentDwell < 0 {
		bad("playback.silent_dwell must not be negative, got %v", c.Playback.SilentDwell)
	}
	if c.Storage.Signed && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		bad("storage.signed needs %sSTORAGE_ACCESS_KEY and %sSTORAGE_SECRET_KEY", envPrefix, envPrefix)
	}
	return errors.Join(errs...)
}

// The accessors below assume Validate has passed.

func (c *Config) Kind() source.Kind {
	k, _ := source.ParseKind(c.Source.Kind)
	return k
}

func (c *Config) Terminal() playback.Terminal {
	t, _ := playback.ParseTerminal(c.Feed.Terminal)
	return t
}

func (c *Config) EndPolicy() caption.EndPolicy {
	p, _ := caption.ParseEndPolicy(c.Captions.EndPolicy)
	return p
}

// Pager builds the caption pager for the configured feed height.
func (c *Config) Pager() caption.Pager {
	s, _ := caption.ParseStrategy(c.Captions.Paging)
	if s == caption.StrategyFit {
		return caption.FitPager{
			Measurer:       caption.EstimateMeasurer{CharsPerLine: c.Captions.CharsPerLine, LineHeight: c.Captions.LineHeight},
			ViewportHeight: c.Feed.Height,
			Fraction:       c.Captions.FitFraction,
		}
	}
	return caption.WordPager{}
}
