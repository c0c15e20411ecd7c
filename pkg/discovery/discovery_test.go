package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `{"tokens":[
 {"address":"0x4200000000000000000000000000000000000042","symbol":"OP","price_usd":1.8,"liquidity_usd":900000,"market_cap_usd":2000000000},
 {"address":"","symbol":"tiny","price_usd":0.01,"liquidity_usd":1000,"market_cap_usd":50000},
 {"address":"0x912CE59144191C1204E64559FE8253a0e49E6548","symbol":"ARB","price_usd":0.9,"liquidity_usd":2500000,"market_cap_usd":3000000000}
]}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/candidates", r.URL.Path)
		assert.Equal(t, "base", r.URL.Query().Get("chain"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listing))
	}))
}

func TestCandidatesRankedByLiquidity(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL, Chain: "base", Limit: 10})
	cands, err := c.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "ARB", cands[0].Symbol)
	assert.Equal(t, "TINY", cands[2].Instrument)
}

func TestDiscoverAppliesFilters(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(&Config{BaseURL: srv.URL, Chain: "base", Limit: 10})

	got, err := c.Discover(context.Background(), Filters{MinLiquidityUSD: 50_000, MinMarketCapUSD: 1_000_000})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ARB", got.Symbol)

	got, err = c.Discover(context.Background(), Filters{MinLiquidityUSD: 50_000, Exclude: []string{"arb"}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "OP", got.Symbol)

	got, err = c.Discover(context.Background(), Filters{MinLiquidityUSD: 10_000_000})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDiscoverStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(&Config{BaseURL: srv.URL}).Discover(context.Background(), Filters{})
	assert.ErrorContains(t, err, "status 503")
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("DISCOVERY_TEST_KEY", "secret")
	cfg, err := LoadConfigFromReader(strings.NewReader("base_url: https://tokens.example\napi_key: ${DISCOVERY_TEST_KEY}\ntimeout: 3s\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "base", cfg.Chain)
	assert.Equal(t, 50, cfg.Limit)

	_, err = LoadConfigFromReader(strings.NewReader("chain: base\n"))
	assert.ErrorContains(t, err, "base_url")
}

// Replays a recorded listing call. Skips when the cassette is absent unless
// RECORD_CASSETTES=1 and DISCOVERY_BASE_URL point at a live endpoint.
func TestDiscoverRecorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "candidates")
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" || os.Getenv("DISCOVERY_BASE_URL") == "" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 and DISCOVERY_BASE_URL to record: %s", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	c := New(&Config{BaseURL: os.Getenv("DISCOVERY_BASE_URL"), Chain: "base", Limit: 20},
		WithHTTPClient(&http.Client{Transport: r}))
	cands, err := c.Candidates(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cands)
}
