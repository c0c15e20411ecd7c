// Package discovery finds tradable tokens the portfolio does not hold yet,
// used as the last-resort destination of the guaranteed-trade fallback.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/token"
)

// Filters bound which candidates are acceptable.
type Filters struct {
	MinLiquidityUSD float64
	MinMarketCapUSD float64
	Exclude         []string
}

// Candidate is a token proposed for purchase.
type Candidate struct {
	Instrument   string  `json:"address"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
}

type candidatesResponse struct {
	Tokens []Candidate `json:"tokens"`
}

// Client queries a token listing API.
type Client struct {
	http   *resty.Client
	chain  string
	limit  int
	apiKey string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient routes requests through hc, e.g. a recording transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			base := c.http.BaseURL
			timeout := c.http.GetClient().Timeout
			c.http = resty.NewWithClient(hc).SetBaseURL(base)
			if hc.Timeout == 0 {
				c.http.SetTimeout(timeout)
			}
		}
	}
}

// New builds a client from cfg.
func New(cfg *Config, opts ...Option) *Client {
	conf := Config{}
	if cfg != nil {
		conf = *cfg
	}
	conf.applyDefaults()
	cfg = &conf
	c := &Client{
		http:   resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).SetTimeout(cfg.Timeout),
		chain:  cfg.Chain,
		limit:  cfg.Limit,
		apiKey: cfg.APIKey,
	}
	if cfg.MaxRetries > 0 {
		c.http.SetRetryCount(cfg.MaxRetries).SetRetryWaitTime(500 * time.Millisecond)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Candidates returns the listing sorted by liquidity, highest first.
func (c *Client) Candidates(ctx context.Context) ([]Candidate, error) {
	req := c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
		"chain": c.chain,
		"limit": strconv.Itoa(c.limit),
	})
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := req.Get("/v1/tokens/candidates")
	if err != nil {
		return nil, fmt.Errorf("discovery: request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("discovery: status %d", resp.StatusCode())
	}
	var body candidatesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("discovery: decode: %w", err)
	}
	out := body.Tokens[:0]
	for _, cand := range body.Tokens {
		cand.Instrument = token.Canonical(cand.Instrument)
		if cand.Instrument == "" {
			cand.Instrument = token.Canonical(cand.Symbol)
		}
		out = append(out, cand)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LiquidityUSD > out[j].LiquidityUSD })
	return out, nil
}

// Discover returns the most liquid candidate passing filters, or nil when
// nothing qualifies.
func (c *Client) Discover(ctx context.Context, f Filters) (*Candidate, error) {
	cands, err := c.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	picked := Select(cands, f)
	if picked == nil {
		logx.WithContext(ctx).Infof("discovery: none of %d candidates passed filters", len(cands))
	}
	return picked, nil
}

// Select applies filters to an already ranked candidate list.
func Select(cands []Candidate, f Filters) *Candidate {
	excluded := make(map[string]struct{}, len(f.Exclude))
	for _, id := range f.Exclude {
		excluded[token.Canonical(id)] = struct{}{}
	}
	for _, cand := range cands {
		if cand.PriceUSD <= 0 {
			continue
		}
		if cand.LiquidityUSD < f.MinLiquidityUSD || cand.MarketCapUSD < f.MinMarketCapUSD {
			continue
		}
		if _, skip := excluded[cand.Instrument]; skip {
			continue
		}
		if _, skip := excluded[token.Canonical(cand.Symbol)]; skip {
			continue
		}
		picked := cand
		return &picked
	}
	return nil
}
