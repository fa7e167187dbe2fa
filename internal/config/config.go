// Package config loads service settings from defaults, an optional YAML file
// and RIKSBANK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // Embed zone data for the cutoff location

	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/scraper/riksbank"
)

const envPrefix = "RIKSBANK"

type Config struct {
	Port       string
	DBPath     string
	Workers    int
	Timezone   string
	Currencies []string
	Log        Log
	Riksbank   Riksbank
}

type Log struct {
	Level  string
	Format string
}

type Riksbank struct {
	Endpoint string
	Timeout  time.Duration
	Retries  int
	Backoff  time.Duration
	RPS      float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "riksbank.db")
	v.SetDefault("workers", 1)
	v.SetDefault("timezone", "Europe/Stockholm")
	v.SetDefault("currencies", []string{"EUR", "USD"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("riksbank.endpoint", riksbank.DefaultEndpoint)
	v.SetDefault("riksbank.timeout", 30*time.Second)
	v.SetDefault("riksbank.retries", 3)
	v.SetDefault("riksbank.backoff", 500*time.Millisecond)
	v.SetDefault("riksbank.rps", 1.0)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:       v.GetString("port"),
		DBPath:     v.GetString("db_path"),
		Workers:    v.GetInt("workers"),
		Timezone:   v.GetString("timezone"),
		Currencies: v.GetStringSlice("currencies"),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Riksbank: Riksbank{
			Endpoint: v.GetString("riksbank.endpoint"),
			Timeout:  v.GetDuration("riksbank.timeout"),
			Retries:  v.GetInt("riksbank.retries"),
			Backoff:  v.GetDuration("riksbank.backoff"),
			RPS:      v.GetFloat64("riksbank.rps"),
		},
	}
	// A comma-separated env value arrives as one element.
	if len(cfg.Currencies) == 1 && strings.Contains(cfg.Currencies[0], ",") {
		cfg.Currencies = strings.Split(cfg.Currencies[0], ",")
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RateCurrencies(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}
	if c.Riksbank.Retries < 0 {
		errs = append(errs, fmt.Errorf("riksbank.retries cannot be negative"))
	}
	return errors.Join(errs...)
}

// Location is the zone the publication cutoff is evaluated in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

func (c Config) RateCurrencies() ([]rate.Currency, error) {
	if len(c.Currencies) == 0 {
		return nil, errors.New("currencies cannot be empty")
	}
	out := make([]rate.Currency, 0, len(c.Currencies))
	for _, s := range c.Currencies {
		cur, err := rate.ParseCurrency(s)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	return out, nil
}

func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
