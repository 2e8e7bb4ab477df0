package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"forumscraper/pkg/errors"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory and environment prefix
const AppName = "forumscraper"

const (
	// MaxWorkers is the largest accepted pool size
	MaxWorkers = 64

	// DefaultUserAgent is sent when http.user_agent is empty
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Config holds all configuration options for a scrape run
type Config struct {
	Forum     ForumConfig     `yaml:"forum" json:"forum"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ForumConfig describes which threads to scrape and how their pages are addressed.
// Page N of a thread is thread + PageAppenderBefore + N*PageValueMultiply + PageAppenderAfter.
type ForumConfig struct {
	Threads            []string `yaml:"threads" json:"threads"`
	PageAppenderBefore string   `yaml:"page_appender_before" json:"page_appender_before"`
	PageAppenderAfter  string   `yaml:"page_appender_after" json:"page_appender_after"`
	StartPage          int      `yaml:"start_page" json:"start_page"`
	// EndPage 0 (or below StartPage) keeps paginating until a page repeats
	EndPage           int  `yaml:"end_page" json:"end_page"`
	PageValueMultiply int  `yaml:"page_value_multiply" json:"page_value_multiply"`
	UsePagination     bool `yaml:"use_pagination" json:"use_pagination"`
}

// DownloadConfig holds worker pool and image filter settings
type DownloadConfig struct {
	Workers      int           `yaml:"workers" json:"workers"`
	MinWidth     int           `yaml:"min_width" json:"min_width"`
	MinHeight    int           `yaml:"min_height" json:"min_height"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	// MinBytes rejects image bodies of at most this many bytes; 0 accepts any size
	MinBytes     int           `yaml:"min_bytes" json:"min_bytes"`
	SkipExisting bool          `yaml:"skip_existing" json:"skip_existing"`
}

// RetryConfig bounds the retries of transient network failures
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// RateLimitConfig holds rate limiting configuration. Zero means unlimited.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	WriteReport   bool   `yaml:"write_report" json:"write_report"`
}

// HTTPConfig holds request settings
type HTTPConfig struct {
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Forum: ForumConfig{
			StartPage:         1,
			EndPage:           1,
			PageValueMultiply: 1,
			UsePagination:     true,
		},
		Download: DownloadConfig{
			Workers:      10,
			Timeout:      30 * time.Second,
			SkipExisting: true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			WriteReport:   true,
		},
		HTTP: HTTPConfig{
			UserAgent: DefaultUserAgent,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv applies FORUMSCRAPER_* environment overrides
func (c *Config) LoadFromEnv() error {
	var errs []error

	if threads := os.Getenv("FORUMSCRAPER_THREADS"); threads != "" {
		c.Forum.Threads = SplitList(threads)
	}
	if outputDir := os.Getenv("FORUMSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if userAgent := os.Getenv("FORUMSCRAPER_USER_AGENT"); userAgent != "" {
		c.HTTP.UserAgent = userAgent
	}
	if logLevel := os.Getenv("FORUMSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"FORUMSCRAPER_WORKERS", &c.Download.Workers},
		{"FORUMSCRAPER_MIN_WIDTH", &c.Download.MinWidth},
		{"FORUMSCRAPER_MIN_HEIGHT", &c.Download.MinHeight},
		{"FORUMSCRAPER_START_PAGE", &c.Forum.StartPage},
		{"FORUMSCRAPER_END_PAGE", &c.Forum.EndPage},
		{"FORUMSCRAPER_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute},
	}
	for _, v := range ints {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", v.name, raw))
			continue
		}
		*v.dst = n
	}

	if len(errs) > 0 {
		return errors.Wrap(errors.ErrorTypeConfiguration, stderrors.Join(errs...), "invalid environment")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. With an empty path the
// standard locations are searched and a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to parse config file %s", path)
	}

	return nil
}

// SearchPaths lists the config file locations in order of precedence
func SearchPaths() []string {
	return []string{
		"forumscraper.yaml",
		".forumscraper.yaml",
		filepath.Join(xdg.ConfigHome, AppName, "config.yaml"),
		filepath.Join(xdg.Home, ".forumscraper.yaml"),
	}
}

// FindConfigFile returns the first existing file from SearchPaths, or ""
func FindConfigFile() string {
	for _, loc := range SearchPaths() {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() {
			return loc
		}
	}
	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Validate checks if the configuration is valid. Every problem is reported
// at once as a single configuration error.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Forum.Threads) == 0 {
		errs = append(errs, stderrors.New("at least one forum thread is required"))
	}
	for _, thread := range c.Forum.Threads {
		if err := validateThreadURL(thread); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Forum.StartPage < 1 {
		errs = append(errs, stderrors.New("start page must be at least 1"))
	}
	if c.Forum.EndPage < 0 {
		errs = append(errs, stderrors.New("end page cannot be negative"))
	}
	if c.Forum.PageValueMultiply < 1 {
		errs = append(errs, stderrors.New("page value multiply must be at least 1"))
	}

	if c.Download.Workers < 1 || c.Download.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d", MaxWorkers))
	}
	if c.Download.MinWidth < 0 || c.Download.MinHeight < 0 {
		errs = append(errs, stderrors.New("minimum dimensions cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, stderrors.New("download timeout must be positive"))
	}
	if c.Download.MinBytes < 0 {
		errs = append(errs, stderrors.New("min bytes cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, stderrors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, stderrors.New("retry delays cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, stderrors.New("requests per minute cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, stderrors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"": true, "debug": true, "info": true, "warn": true, "warning": true,
		"error": true, "fatal": true, "disabled": true, "off": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Wrap(errors.ErrorTypeConfiguration, stderrors.Join(errs...), "invalid configuration")
	}
	return nil
}

func validateThreadURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("thread %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("thread %q must be an absolute http(s) URL", raw)
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flag values on top of the configuration.
// Callers pass only flags the user actually set, so zero values are honoured.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if threads, ok := flags["threads"].([]string); ok && len(threads) > 0 {
		c.Forum.Threads = threads
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if workers, ok := flags["workers"].(int); ok {
		c.Download.Workers = workers
	}
	if minWidth, ok := flags["min-width"].(int); ok {
		c.Download.MinWidth = minWidth
	}
	if minHeight, ok := flags["min-height"].(int); ok {
		c.Download.MinHeight = minHeight
	}
	if start, ok := flags["start-page"].(int); ok {
		c.Forum.StartPage = start
	}
	if end, ok := flags["end-page"].(int); ok {
		c.Forum.EndPage = end
	}
	if before, ok := flags["page-before"].(string); ok {
		c.Forum.PageAppenderBefore = before
	}
	if after, ok := flags["page-after"].(string); ok {
		c.Forum.PageAppenderAfter = after
	}
	if multiply, ok := flags["page-multiply"].(int); ok {
		c.Forum.PageValueMultiply = multiply
	}
	if noPagination, ok := flags["no-pagination"].(bool); ok && noPagination {
		c.Forum.UsePagination = false
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok {
		c.Download.Timeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if noReport, ok := flags["no-report"].(bool); ok && noReport {
		c.Output.WriteReport = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadUnvalidated resolves the configuration from every source without validating it.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env never overrides variables already set in the environment
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(xdg.ConfigHome, AppName, ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, err
	}
	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}
	config.MergeCommandLineFlags(flags)

	return config, nil
}

// Load resolves and validates the configuration
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
