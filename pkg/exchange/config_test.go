package exchange_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/exchange"
	_ "cascade-agent/pkg/exchange/sim"
	_ "cascade-agent/pkg/exchange/venue"
)

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("TEST_VENUE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	cfg, err := exchange.LoadConfigFromReader(strings.NewReader(`
default: paper
providers:
  paper:
    type: sim
    fee_bps: 30
    initial_balances:
      USDC: 1000
  live:
    type: venue
    base_url: https://venue.example
    private_key: ${TEST_VENUE_KEY}
    timeout: 5s
`))
	require.NoError(t, err)
	require.Equal(t, "paper", cfg.Default)
	require.Equal(t, "5s", cfg.Providers["live"].Timeout.String())
	require.True(t, strings.HasPrefix(cfg.Providers["live"].PrivateKey, "0x4c08"))

	prov, err := cfg.BuildDefault()
	require.NoError(t, err)
	bal, err := prov.Balances(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1000.0, bal["USDC"], 1e-9)

	all, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestLoadConfigSingleProviderBecomesDefault(t *testing.T) {
	cfg, err := exchange.LoadConfigFromReader(strings.NewReader("providers:\n  only:\n    type: sim\n"))
	require.NoError(t, err)
	require.Equal(t, "only", cfg.Default)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"empty":           "providers: {}\n",
		"unknown type":    "providers:\n  x:\n    type: nope\n",
		"missing default": "default: y\nproviders:\n  x:\n    type: sim\n",
		"venue no key":    "providers:\n  x:\n    type: venue\n    base_url: http://v\n",
		"venue no url":    "providers:\n  x:\n    type: venue\n    private_key: abc\n",
		"negative fee":    "providers:\n  x:\n    type: sim\n    fee_bps: -1\n",
		"bad timeout":     "providers:\n  x:\n    type: sim\n    timeout: soon\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := exchange.LoadConfigFromReader(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestGetProviderUnknownType(t *testing.T) {
	_, err := exchange.GetProvider("nope", nil)
	require.Error(t, err)
}
