package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/trade"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testNow = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

type fakeVenue struct {
	t       *testing.T
	chainID int64

	mu       sync.Mutex
	swaps    []SignedRequest
	signers  []string
	reply    string
	status   int
	balances string
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/swap":
		var req SignedRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		addr, err := RecoverSigner(&req, f.chainID)
		require.NoError(f.t, err)
		f.mu.Lock()
		f.swaps = append(f.swaps, req)
		f.signers = append(f.signers, addr)
		f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.reply))
	case r.Method == http.MethodGet && r.URL.Path == "/v1/balances":
		_, _ = w.Write([]byte(f.balances))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fv *fakeVenue) *Client {
	t.Helper()
	srv := httptest.NewServer(fv)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, testKey, WithChainID(fv.chainID), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return c
}

func TestExecuteSignsAndMapsFill(t *testing.T) {
	fv := &fakeVenue{t: t, chainID: 8453, reply: `{"status":"ok","response":{
		"txId":"0xabc","state":"filled","amountIn":"100","amountOut":"0.05",
		"priceIn":"1","priceOut":"2000","feeUsd":"0.3"}}`}
	c := newTestClient(t, fv)

	instr := trade.NewInstruction("trend", trade.ActionBuy, "usdc", "weth", 100.123456789, 0.7, "test")
	res, err := c.Execute(context.Background(), instr)
	require.NoError(t, err)

	assert.Equal(t, "0xabc", res.TxID)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	assert.Equal(t, instr.ID, res.InstructionID)
	assert.InDelta(t, 0.05, res.AmountOut, 1e-12)
	assert.InDelta(t, 100.0, res.ValueUSD, 1e-9)
	assert.InDelta(t, 0.3, res.FeeUSD, 1e-12)
	assert.Equal(t, testNow, res.ExecutedAt)

	require.Len(t, fv.swaps, 1)
	sent := fv.swaps[0]
	assert.Equal(t, "swap", sent.Action.Type)
	assert.Equal(t, "USDC", sent.Action.From)
	assert.Equal(t, "WETH", sent.Action.To)
	assert.Equal(t, "100.12345678", sent.Action.AmountIn)
	assert.Equal(t, instr.ID, sent.Action.ClientID)
	assert.Equal(t, testNow.UnixMilli(), sent.Nonce)
	assert.Equal(t, c.Address(), sent.Account)
	assert.Equal(t, c.Address(), fv.signers[0], "signature recovers to the client key")
}

func TestExecuteSubmittedState(t *testing.T) {
	fv := &fakeVenue{t: t, chainID: 8453, reply: `{"status":"ok","response":{"txId":"0x1","state":"submitted"}}`}
	c := newTestClient(t, fv)

	res, err := c.Execute(context.Background(), trade.NewInstruction("x", trade.ActionSell, "WETH", "USDC", 0.5, 0.5, ""))
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusSubmitted, res.Status)
	assert.InDelta(t, 0.5, res.AmountIn, 1e-12, "falls back to the requested amount")
}

func TestExecuteRejections(t *testing.T) {
	fv := &fakeVenue{t: t, chainID: 8453, reply: `{"status":"err","error":"slippage"}`}
	c := newTestClient(t, fv)
	_, err := c.Execute(context.Background(), trade.NewInstruction("x", trade.ActionBuy, "USDC", "WETH", 10, 0.5, ""))
	require.ErrorContains(t, err, "slippage")

	fv.reply, fv.status = `{"status":"err"}`, http.StatusBadGateway
	_, err = c.Execute(context.Background(), trade.NewInstruction("x", trade.ActionBuy, "USDC", "WETH", 10, 0.5, ""))
	require.ErrorContains(t, err, "502")
	assert.Len(t, fv.swaps, 2, "swaps are not retried")

	_, err = c.Execute(context.Background(), trade.NewInstruction("x", trade.ActionBuy, "USDC", "WETH", 1e-10, 0.5, ""))
	require.ErrorIs(t, err, exchange.ErrInvalidInstruction)
}

func TestBalances(t *testing.T) {
	fv := &fakeVenue{t: t, chainID: 8453, balances: `{"balances":{"usdc":"125.5","weth":0.25,"dai":"0"}}`}
	c := newTestClient(t, fv)

	bal, err := c.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USDC": 125.5, "WETH": 0.25}, bal)
}

func TestNewValidates(t *testing.T) {
	_, err := New("", testKey)
	require.Error(t, err)
	_, err = New("http://venue", "")
	require.Error(t, err)
	_, err = New("http://venue", "0xnothex")
	require.Error(t, err)
}

func TestRegisteredInExchangeRegistry(t *testing.T) {
	prov, err := exchange.GetProvider("venue", &exchange.ProviderConfig{BaseURL: "http://venue", PrivateKey: testKey})
	require.NoError(t, err)
	_, ok := prov.(*Client)
	assert.True(t, ok)

	_, err = exchange.GetProvider("venue", &exchange.ProviderConfig{BaseURL: "http://venue"})
	require.ErrorContains(t, err, "private_key")
}
