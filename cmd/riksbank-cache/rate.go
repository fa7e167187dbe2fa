package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/riksbank-cache/internal/fetcher"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
)

func (a *app) rateCmd() *cobra.Command {
	var date, currency string

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Print a cached SEK rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			c, err := rate.ParseCurrency(currency)
			if err != nil {
				return err
			}

			store, closeStore, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer closeStore()

			opts, err := a.fetcherOptions(nil)
			if err != nil {
				return err
			}
			resp, err := fetcher.NewService(store, nil, opts...).
				Rate(cmd.Context(), fetcher.RateRequest{Currency: c, Date: d})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s-%s %s %s\n", resp.Currency, resp.Quote, resp.Date, resp.Rate)
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD")
	cmd.Flags().StringVar(&currency, "currency", string(rate.CurrencyEUR), "EUR or USD")
	return cmd
}
