package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/platform/sqlite"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/repository/cache"
)

func (a *app) fetchCmd() *cobra.Command {
	var from, to string
	var memory bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and cache every configured currency over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			end, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := a.openStore(memory)
			if err != nil {
				return err
			}
			defer closeStore()

			opts, err := a.fetcherOptions(nil)
			if err != nil {
				return err
			}
			svc := fetcher.NewService(store, a.newClient(), opts...)

			res, err := svc.FetchRange(ctx, start, end)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&memory, "memory", false, "cache in memory only, for trying out the source")
	return cmd
}

func (a *app) openStore(memory bool) (rate.Store, func(), error) {
	if memory {
		return cache.NewMemory(), func() {}, nil
	}
	db, err := sqlite.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cache.NewSQLite(db.DB), func() { _ = db.Close() }, nil
}

func printResult(w io.Writer, res *fetcher.Result) {
	if res.AlreadyCached {
		_, _ = fmt.Fprintf(w, "%s: already cached, skipping\n", res.RangeKey)
		return
	}
	for _, s := range res.Summaries {
		_, _ = fmt.Fprintf(w, "%s: cached %d days", s.Currency, s.Cached)
		if len(s.Unpublished) > 0 {
			_, _ = fmt.Fprintf(w, ", not yet published: %s", strings.Join(s.Unpublished, ", "))
		}
		if len(s.Faults) > 0 {
			_, _ = fmt.Fprintf(w, ", without a rate: %s", strings.Join(s.Faults, ", "))
		}
		_, _ = fmt.Fprintln(w)
	}
	if res.Pending() {
		_, _ = fmt.Fprintf(w, "%s: left unmarked until every day is published\n", res.RangeKey)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: done\n", res.RangeKey)
}

