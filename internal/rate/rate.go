package rate

import (
	"fmt"
	"strings"
)

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencySEK Currency = "SEK"
)

// Quote is the currency every cached rate is expressed in.
const Quote = CurrencySEK

// Supported lists the currencies the source is queried for, in fetch order.
var Supported = []Currency{CurrencyEUR, CurrencyUSD}

func (c Currency) String() string { return string(c) }

func (c Currency) IsSupported() bool {
	for _, s := range Supported {
		if c == s {
			return true
		}
	}
	return false
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsSupported() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// Key returns the cache key of a single day's rate, "{FROM}-{TO}_{date}".
func Key(from, to Currency, date string) string {
	return fmt.Sprintf("%s-%s_%s", from, to, date)
}

// RangeKey returns the marker key recording that every currency in cs has
// been fetched for [from, to], "{CUR1}+{CUR2}_{from}_{to}".
func RangeKey(cs []Currency, from, to string) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s_%s_%s", strings.Join(names, "+"), from, to)
}
