package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load
const (
	EnvHeadless    = "SCRAPING_TOOLS_HEADLESS_MODE"
	EnvYouTubeKey  = "YOUTUBE_API_KEY"
	EnvUserAgent   = "SCRAPE_USER_AGENT"
	EnvChromeMajor = "CHROME_MAJOR"
	EnvLogLevel    = "LOG_LEVEL"
)

type Config struct {
	Browser  BrowserConfig `yaml:"browser"`
	HTTP     HTTPConfig    `yaml:"http"`
	Poll     PollConfig    `yaml:"poll"`
	YouTube  YouTubeConfig `yaml:"youtube"`
	LogLevel string        `yaml:"log_level"`
}

// BrowserConfig contains headless Chrome settings
type BrowserConfig struct {
	Headless     *bool  `yaml:"headless"`
	LoadImages   bool   `yaml:"load_images"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	UserAgent    string `yaml:"user_agent"`
	ChromeMajor  int    `yaml:"chrome_major"`
}

// IsHeadless reports whether Chrome runs without a window. Default true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// HTTPConfig contains settings for feed and API requests
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	SizeLimitBytes int           `yaml:"size_limit_bytes"`
	UserAgent      string        `yaml:"user_agent"`
}

// PollConfig bounds every wait on a page
type PollConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	Interval           time.Duration `yaml:"interval"`
	PaginationAttempts int           `yaml:"pagination_attempts"`
	DetailInterval     time.Duration `yaml:"detail_interval"`
}

type YouTubeConfig struct {
	APIKey string `yaml:"api_key"`
}

// Default returns the configuration used when no file is given, with
// environment overrides applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg
}

// Load reads .env (if present) and the YAML file at path (if path is not
// empty), then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if env := os.Getenv(EnvHeadless); env != "" {
		if parsed, err := strconv.ParseBool(env); err == nil {
			c.Browser.Headless = &parsed
		}
	}
	if env := os.Getenv(EnvYouTubeKey); env != "" {
		c.YouTube.APIKey = env
	}
	if env := os.Getenv(EnvUserAgent); env != "" {
		c.Browser.UserAgent = env
		c.HTTP.UserAgent = env
	}
	if env := os.Getenv(EnvChromeMajor); env != "" {
		if parsed, err := strconv.Atoi(env); err == nil {
			c.Browser.ChromeMajor = parsed
		}
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		c.LogLevel = env
	}
}

func (c *Config) setDefaults() {
	if c.Browser.ChromeMajor == 0 {
		c.Browser.ChromeMajor = 133
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = fmt.Sprintf("Mozilla/5.0 (Windows NT 10; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.6943.126 Safari/537.36", c.Browser.ChromeMajor)
	}
	if c.Browser.WindowWidth == 0 {
		c.Browser.WindowWidth = 1920
	}
	if c.Browser.WindowHeight == 0 {
		c.Browser.WindowHeight = 1080
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = c.Browser.UserAgent
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 15 * time.Second
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 2
	}
	if c.HTTP.SizeLimitBytes == 0 {
		c.HTTP.SizeLimitBytes = 6_000_000
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = 10 * time.Second
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 250 * time.Millisecond
	}
	if c.Poll.PaginationAttempts == 0 {
		c.Poll.PaginationAttempts = 30
	}
	if c.Poll.DetailInterval == 0 {
		c.Poll.DetailInterval = 2 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
