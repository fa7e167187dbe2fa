package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/riksbank-cache/internal/config"
	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/metrics"
	"github.com/ahmethakanbesel/riksbank-cache/internal/scraper/riksbank"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

type app struct {
	configFile string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "riksbank-cache",
		Short:         "Cache daily Riksbank EUR/USD to SEK exchange rates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return a.setupLogging(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(a.serveCmd(), a.fetchCmd(), a.rateCmd())
	return root
}

func (a *app) setupLogging(w io.Writer) error {
	level, err := a.cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if a.cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func (a *app) newClient() *riksbank.Client {
	return riksbank.New(
		riksbank.WithEndpoint(a.cfg.Riksbank.Endpoint),
		riksbank.WithTimeout(a.cfg.Riksbank.Timeout),
		riksbank.WithRetries(a.cfg.Riksbank.Retries, a.cfg.Riksbank.Backoff),
		riksbank.WithRate(a.cfg.Riksbank.RPS),
	)
}

// fetcherOptions are the options every command builds its fetcher with.
func (a *app) fetcherOptions(m *metrics.Metrics) ([]fetcher.Option, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	cs, err := a.cfg.RateCurrencies()
	if err != nil {
		return nil, err
	}
	opts := []fetcher.Option{
		fetcher.WithLocation(loc),
		fetcher.WithCurrencies(cs...),
	}
	if m != nil {
		opts = append(opts, fetcher.WithMetrics(m))
	}
	return opts, nil
}

func parseDateFlag(flag, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	d, err := series.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, v)
	}
	return d, nil
}
