package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const eurExport = "Datum;Grupp;Serie;Värde\n2023-01-02;;SEKEURPMI;11.12\n2023-01-04;;SEKEURPMI;11.20\n2023-01-05;;SEKEURPMI;\n"
const usdExport = "Datum;Grupp;Serie;Värde\n2023-01-02;;SEKUSDPMI;10.40\n2023-01-05;;SEKUSDPMI;10.51\n"

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("g130-SEKEURPMI") == "on":
			_, _ = w.Write([]byte(eurExport))
		case r.URL.Query().Get("g130-SEKUSDPMI") == "on":
			_, _ = w.Write([]byte(usdExport))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func setEnv(t *testing.T, ts *httptest.Server) {
	t.Helper()
	t.Setenv("RIKSBANK_DB_PATH", filepath.Join(t.TempDir(), "rates.db"))
	t.Setenv("RIKSBANK_RIKSBANK_ENDPOINT", ts.URL)
	t.Setenv("RIKSBANK_RIKSBANK_RPS", "0")
	t.Setenv("RIKSBANK_RIKSBANK_RETRIES", "0")
	t.Setenv("RIKSBANK_LOG_LEVEL", "error")
}

func TestFetchThenRate(t *testing.T) {
	setEnv(t, upstream(t))

	out, err := run(t, "fetch", "--from", "2023-01-02", "--to", "2023-01-05")
	require.NoError(t, err)
	require.Contains(t, out, "EUR: cached 4 days")
	require.Contains(t, out, "USD: cached 4 days")
	require.Contains(t, out, "EUR+USD_2023-01-02_2023-01-05: done")

	out, err = run(t, "fetch", "--from", "2023-01-02", "--to", "2023-01-05")
	require.NoError(t, err)
	require.Equal(t, "EUR+USD_2023-01-02_2023-01-05: already cached, skipping\n", out)

	tests := []struct {
		currency, date, want string
	}{
		{"EUR", "2023-01-03", "EUR-SEK 2023-01-03 11.12\n"},
		{"EUR", "2023-01-05", "EUR-SEK 2023-01-05 11.20\n"},
		{"usd", "2023-01-04", "USD-SEK 2023-01-04 10.40\n"},
	}
	for _, tt := range tests {
		out, err := run(t, "rate", "--currency", tt.currency, "--date", tt.date)
		require.NoError(t, err)
		require.Equal(t, tt.want, out)
	}

	_, err = run(t, "rate", "--date", "2023-01-06")
	require.Error(t, err)
}

func TestFetch_Memory(t *testing.T) {
	setEnv(t, upstream(t))

	out, err := run(t, "fetch", "--memory", "--from", "2023-01-02", "--to", "2023-01-05")
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(out, "\n"))

	// Nothing reached the database.
	_, err = run(t, "rate", "--date", "2023-01-03")
	require.Error(t, err)
}

func TestFetch_FlagErrors(t *testing.T) {
	setEnv(t, upstream(t))

	_, err := run(t, "fetch", "--to", "2023-01-05")
	require.ErrorContains(t, err, "--from is required")

	_, err = run(t, "fetch", "--from", "2023/01/02", "--to", "2023-01-05")
	require.ErrorContains(t, err, "expected YYYY-MM-DD")

	_, err = run(t, "rate", "--currency", "GBP", "--date", "2023-01-05")
	require.ErrorContains(t, err, "unsupported currency")
}

func TestFetch_RejectsFutureRange(t *testing.T) {
	setEnv(t, upstream(t))

	today := time.Now()
	_, err := run(t, "fetch", "--memory",
		"--from", today.AddDate(0, 0, -5).Format(time.DateOnly),
		"--to", today.AddDate(0, 0, 2).Format(time.DateOnly))
	require.ErrorContains(t, err, "to cannot be in the future")
}

func TestConfigError(t *testing.T) {
	t.Setenv("RIKSBANK_WORKERS", "0")
	_, err := run(t, "rate", "--date", "2023-01-05")
	require.ErrorContains(t, err, "workers must be positive")
}
