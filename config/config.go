package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Mode selects what the process does after loading the portfolio.
const (
	ModeTotal = "total" // one-shot valuation, print and exit
	ModeWatch = "watch" // live terminal view
	ModeServe = "serve" // websocket server with portfolio upload
)

// Config is the resolved application configuration.
type Config struct {
	Mode          string
	PortfolioPath string

	Cycle             time.Duration
	TickPolicy        string
	BroadcastInterval time.Duration

	Listen         string
	TargetCurrency string

	PushProvider       string // "pyth" or "binance-ws"
	PythFeeds          map[string]string
	ExchangeRateAPIKey string
}

type yamlConfig struct {
	Portfolio          string            `yaml:"portfolio"`
	Cycle              string            `yaml:"cycle"`
	TickPolicy         string            `yaml:"tick_policy"`
	BroadcastInterval  string            `yaml:"broadcast_interval"`
	Listen             string            `yaml:"listen"`
	TargetCurrency     string            `yaml:"target_currency"`
	PushProvider       string            `yaml:"push_provider"`
	PythFeeds          map[string]string `yaml:"pyth_feeds"`
	ExchangeRateAPIKey string            `yaml:"exchangerate_api_key"`
}

func defaults() Config {
	return Config{
		Mode:              ModeWatch,
		PortfolioPath:     "config/portfolio.yaml",
		Cycle:             10 * time.Second,
		TickPolicy:        "fixed_rate",
		BroadcastInterval: time.Second,
		Listen:            "127.0.0.1:3030",
		TargetCurrency:    "TWD",
		PushProvider:      "pyth",
	}
}

// Get builds the configuration from flags, the optional YAML file, and the
// environment.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	mode := flag.String("mode", ModeWatch, "total, watch or serve")
	portfolioPath := flag.String("portfolio", "", "path to portfolio yaml (overrides config)")
	flag.Parse()

	cfg := defaults()
	cfg.Mode = *mode

	if *configPath != "" {
		if err := mergeYaml(&cfg, *configPath); err != nil {
			return Config{}, err
		}
	}
	if *portfolioPath != "" {
		cfg.PortfolioPath = *portfolioPath
	}
	if key := os.Getenv("EXCHANGERATE_API_KEY"); key != "" {
		cfg.ExchangeRateAPIKey = key
	}

	return cfg, cfg.validate()
}

func mergeYaml(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config")
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return errors.Wrap(err, "failed to parse config yaml")
	}

	if yc.Portfolio != "" {
		cfg.PortfolioPath = yc.Portfolio
	}
	if yc.Cycle != "" {
		cfg.Cycle, err = time.ParseDuration(yc.Cycle)
		if err != nil {
			return errors.Wrap(err, "invalid cycle")
		}
	}
	if yc.TickPolicy != "" {
		cfg.TickPolicy = yc.TickPolicy
	}
	if yc.BroadcastInterval != "" {
		cfg.BroadcastInterval, err = time.ParseDuration(yc.BroadcastInterval)
		if err != nil {
			return errors.Wrap(err, "invalid broadcast_interval")
		}
	}
	if yc.Listen != "" {
		cfg.Listen = yc.Listen
	}
	if yc.TargetCurrency != "" {
		cfg.TargetCurrency = yc.TargetCurrency
	}
	if yc.PushProvider != "" {
		cfg.PushProvider = yc.PushProvider
	}
	if len(yc.PythFeeds) > 0 {
		cfg.PythFeeds = yc.PythFeeds
	}
	if yc.ExchangeRateAPIKey != "" {
		cfg.ExchangeRateAPIKey = yc.ExchangeRateAPIKey
	}
	return nil
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeTotal, ModeWatch, ModeServe:
	default:
		return errors.Errorf("invalid --mode provided, --mode=%s", c.Mode)
	}
	switch c.TickPolicy {
	case "fixed_rate", "fixed_delay":
	default:
		return errors.Errorf("invalid tick_policy %q, want fixed_rate or fixed_delay", c.TickPolicy)
	}
	switch c.PushProvider {
	case "pyth", "binance-ws":
	default:
		return errors.Errorf("invalid push_provider %q, want pyth or binance-ws", c.PushProvider)
	}
	return nil
}
