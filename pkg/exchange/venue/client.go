// Package venue is the signed HTTP client for the live swap venue. Every
// swap is msgpack-encoded, hashed together with the account and a
// millisecond nonce, and signed with the agent's key.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/token"
	"cascade-agent/pkg/trade"
)

const (
	defaultTimeout = 15 * time.Second
	defaultChainID = 8453
	amountPlaces   = 8
)

func init() {
	exchange.RegisterProvider("venue", func(_ string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		opts := []Option{WithTimeout(cfg.Timeout), WithRetries(cfg.MaxRetries)}
		if cfg.ChainID > 0 {
			opts = append(opts, WithChainID(cfg.ChainID))
		}
		if cfg.Account != "" {
			opts = append(opts, WithAccount(cfg.Account))
		}
		return New(cfg.BaseURL, cfg.PrivateKey, opts...)
	})
}

// SwapAction is the signed payload. Field order is fixed by the msgpack
// encoding and must not change.
type SwapAction struct {
	Type     string `msgpack:"type" json:"type"`
	From     string `msgpack:"from" json:"from"`
	To       string `msgpack:"to" json:"to"`
	AmountIn string `msgpack:"amountIn" json:"amountIn"`
	ClientID string `msgpack:"cid" json:"cid"`
}

// SignedRequest is the body posted to the swap endpoint.
type SignedRequest struct {
	Action    SwapAction `json:"action"`
	Account   string     `json:"account"`
	Nonce     int64      `json:"nonce"`
	Signature Signature  `json:"signature"`
}

type swapResponse struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Response struct {
		TxID      string          `json:"txId"`
		State     string          `json:"state"`
		AmountIn  decimal.Decimal `json:"amountIn"`
		AmountOut decimal.Decimal `json:"amountOut"`
		PriceIn   decimal.Decimal `json:"priceIn"`
		PriceOut  decimal.Decimal `json:"priceOut"`
		FeeUSD    decimal.Decimal `json:"feeUsd"`
	} `json:"response"`
}

type balancesResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

// Client talks to the venue.
type Client struct {
	http    *resty.Client
	signer  *Signer
	account string
	chainID int64
	now     func() time.Time
}

var _ exchange.Provider = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		base := c.http.BaseURL
		c.http = newResty(resty.NewWithClient(hc)).SetBaseURL(base)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRetries retries balance reads. Swaps are never retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.SetRetryCount(n)
		}
	}
}

func WithChainID(id int64) Option {
	return func(c *Client) { c.chainID = id }
}

// WithAccount trades on behalf of account instead of the signer's own
// address.
func WithAccount(account string) Option {
	return func(c *Client) { c.account = token.Canonical(account) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func newResty(r *resty.Client) *resty.Client {
	return r.
		SetTimeout(defaultTimeout).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
}

// New constructs a client for baseURL signing with privateKeyHex.
func New(baseURL, privateKeyHex string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("venue: base url is required")
	}
	signer, err := NewSigner(privateKeyHex)
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:    newResty(resty.New()).SetBaseURL(strings.TrimRight(baseURL, "/")),
		signer:  signer,
		account: signer.Address(),
		chainID: defaultChainID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the signer address.
func (c *Client) Address() string {
	return c.signer.Address()
}

// Execute signs and submits the swap. A venue that accepts but has not yet
// settled the swap reports StatusSubmitted.
func (c *Client) Execute(ctx context.Context, instr *trade.Instruction) (*exchange.ExecutionResult, error) {
	if err := exchange.ValidateInstruction(instr); err != nil {
		return nil, err
	}
	action := SwapAction{
		Type:     "swap",
		From:     token.Canonical(instr.From),
		To:       token.Canonical(instr.To),
		AmountIn: decimal.NewFromFloat(instr.Amount).Truncate(amountPlaces).String(),
		ClientID: instr.ID,
	}
	if action.AmountIn == "0" {
		return nil, fmt.Errorf("%w: amount rounds to zero", exchange.ErrInvalidInstruction)
	}
	req, err := c.sign(action)
	if err != nil {
		return nil, err
	}

	var out swapResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/swap")
	if err != nil {
		return nil, fmt.Errorf("venue: submit swap: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("venue: swap status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("venue: decode swap response: %w", err)
	}
	if out.Status != "ok" {
		return nil, fmt.Errorf("venue: swap rejected: %s", out.Error)
	}

	r := out.Response
	status := exchange.StatusFilled
	if r.State == string(exchange.StatusSubmitted) {
		status = exchange.StatusSubmitted
	}
	amountIn := r.AmountIn
	if amountIn.IsZero() {
		amountIn, _ = decimal.NewFromString(action.AmountIn)
	}
	res := &exchange.ExecutionResult{
		TxID:          r.TxID,
		InstructionID: instr.ID,
		Status:        status,
		From:          action.From,
		To:            action.To,
		AmountIn:      amountIn.InexactFloat64(),
		AmountOut:     r.AmountOut.InexactFloat64(),
		PriceIn:       r.PriceIn.InexactFloat64(),
		PriceOut:      r.PriceOut.InexactFloat64(),
		ValueUSD:      amountIn.Mul(r.PriceIn).InexactFloat64(),
		FeeUSD:        r.FeeUSD.InexactFloat64(),
		ExecutedAt:    c.now().UTC(),
	}
	logx.WithContext(ctx).Infof("venue: %s %s %s->%s tx=%s", status, action.AmountIn, action.From, action.To, res.TxID)
	return res, nil
}

// Balances returns the account's holdings.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	var out balancesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("account", c.account).
		Get("/v1/balances")
	if err != nil {
		return nil, fmt.Errorf("venue: balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("venue: balances status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("venue: decode balances: %w", err)
	}
	balances := make(map[string]float64, len(out.Balances))
	for id, amt := range out.Balances {
		if amt.IsPositive() {
			balances[token.Canonical(id)] = amt.InexactFloat64()
		}
	}
	return balances, nil
}

func (c *Client) sign(action SwapAction) (*SignedRequest, error) {
	nonce := c.now().UnixMilli()
	digest, err := actionDigest(&action, c.account, nonce, c.chainID)
	if err != nil {
		return nil, err
	}
	sig, err := c.signer.Sign(digest)
	if err != nil {
		return nil, err
	}
	return &SignedRequest{Action: action, Account: c.account, Nonce: nonce, Signature: *sig}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
