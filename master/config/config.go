// Package config loads the master configuration from flags, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full master configuration.
type Config struct {
	HTTPAddr     string   `yaml:"http_addr"`
	RPCAddr      string   `yaml:"rpc_addr"`
	MaxIntervals int      `yaml:"max_intervals"` // presentation cap on n
	Digits       int      `yaml:"digits"`        // decimals in text reports
	Defaults     Defaults `yaml:"defaults"`
	Log          Log      `yaml:"log"`
	Plot         Plot     `yaml:"plot"`
	Telegram     Telegram `yaml:"telegram"`
}

// Defaults fill fields a request leaves out.
type Defaults struct {
	Function  string  `yaml:"function"`
	Lower     float64 `yaml:"lower"`
	Upper     float64 `yaml:"upper"`
	Intervals int     `yaml:"intervals"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Plot sizes are in centimetres.
type Plot struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type Telegram struct {
	Token string `yaml:"token"`
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:     ":8080",
		RPCAddr:      ":3410",
		MaxIntervals: 100,
		Digits:       6,
		Defaults: Defaults{
			Function:  "sin(x)",
			Lower:     2,
			Upper:     14,
			Intervals: 24,
		},
		Log:  Log{Level: "info", Format: "text"},
		Plot: Plot{Width: 16, Height: 10},
	}
}

// Load builds the configuration. Later sources win: built-in defaults, the
// YAML file named by -config, the environment (PORT, TELEGRAM_BOT_TOKEN),
// then flags set explicitly on the command line.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("master", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML configuration file")
	httpAddr := fs.String("http", cfg.HTTPAddr, "HTTP API listen address")
	rpcAddr := fs.String("rpc", cfg.RPCAddr, "RPC listen address")
	function := fs.String("function", cfg.Defaults.Function, "default function of x")
	lower := fs.Float64("lower", cfg.Defaults.Lower, "default lower limit of integration")
	upper := fs.Float64("upper", cfg.Defaults.Upper, "default upper limit of integration")
	intervals := fs.Int("intervals", cfg.Defaults.Intervals, "default number of sub-intervals")
	maxIntervals := fs.Int("max-intervals", cfg.MaxIntervals, "largest number of sub-intervals accepted")
	logLevel := fs.String("log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", cfg.Log.Format, "log format (text, json)")
	token := fs.String("telegram-token", "", "Telegram bot token; the bot is disabled when empty")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "rpc":
			cfg.RPCAddr = *rpcAddr
		case "function":
			cfg.Defaults.Function = *function
		case "lower":
			cfg.Defaults.Lower = *lower
		case "upper":
			cfg.Defaults.Upper = *upper
		case "intervals":
			cfg.Defaults.Intervals = *intervals
		case "max-intervals":
			cfg.MaxIntervals = *maxIntervals
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "telegram-token":
			cfg.Telegram.Token = *token
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + strings.TrimPrefix(port, ":")
	}
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxIntervals < 1 {
		errs = append(errs, fmt.Errorf("max_intervals must be at least 1, got %d", c.MaxIntervals))
	}
	if c.Defaults.Intervals < 1 || c.Defaults.Intervals > c.MaxIntervals {
		errs = append(errs, fmt.Errorf("default intervals must be in [1, %d], got %d", c.MaxIntervals, c.Defaults.Intervals))
	}
	if !(c.Defaults.Lower < c.Defaults.Upper) {
		errs = append(errs, fmt.Errorf("default lower limit (%g) must be less than upper limit (%g)", c.Defaults.Lower, c.Defaults.Upper))
	}
	if strings.TrimSpace(c.Defaults.Function) == "" {
		errs = append(errs, errors.New("default function must not be empty"))
	}
	if c.Digits < 0 || c.Digits > 15 {
		errs = append(errs, fmt.Errorf("digits must be in [0, 15], got %d", c.Digits))
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		errs = append(errs, fmt.Errorf("plot size must be positive, got %gx%g", c.Plot.Width, c.Plot.Height))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
