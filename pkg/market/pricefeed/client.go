// Package pricefeed quotes USD prices from a simple-price HTTP API of the
// form GET /simple/price?ids=a,b&vs_currencies=usd.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/token"
)

const (
	defaultBaseURL  = "https://api.coingecko.com/api/v3"
	defaultCurrency = "usd"
	defaultTimeout  = 8 * time.Second
)

func init() {
	market.RegisterSource("http", func(name string, cfg *market.ProviderConfig) (market.PriceSource, error) {
		opts := []Option{WithTimeout(cfg.Timeout), WithRetries(cfg.MaxRetries)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey != "" {
			opts = append(opts, WithAPIKey(cfg.APIKey))
		}
		if cfg.Currency != "" {
			opts = append(opts, WithCurrency(cfg.Currency))
		}
		return New(cfg.IDs, opts...), nil
	})
}

// Client maps instrument identifiers to feed ids and fetches quotes.
type Client struct {
	http     *resty.Client
	ids      map[string]string
	currency string
	apiKey   string
	pegged   map[string]float64
}

// Option customises a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.http.SetBaseURL(strings.TrimRight(u, "/")) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.SetRetryCount(n)
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithCurrency(cur string) Option {
	return func(c *Client) { c.currency = strings.ToLower(cur) }
}

// WithPegged quotes id at a fixed price without asking the feed.
func WithPegged(id string, price float64) Option {
	return func(c *Client) { c.pegged[token.Canonical(id)] = price }
}

// New builds a client. ids maps instrument identifiers to feed ids; an
// instrument without a mapping is queried by its lower-cased identifier.
func New(ids map[string]string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultTimeout).
			SetRetryWaitTime(300 * time.Millisecond).
			SetRetryMaxWaitTime(3 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			}),
		ids:      make(map[string]string, len(ids)),
		currency: defaultCurrency,
		pegged:   map[string]float64{},
	}
	for inst, feedID := range ids {
		c.ids[token.Canonical(inst)] = feedID
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) feedID(inst string) string {
	if id, ok := c.ids[inst]; ok && id != "" {
		return id
	}
	return strings.ToLower(inst)
}

// Prices implements market.PriceSource.
func (c *Client) Prices(ctx context.Context, instruments []string) (map[string]float64, error) {
	out := make(map[string]float64, len(instruments))
	byFeed := make(map[string][]string)
	for _, raw := range instruments {
		inst := token.Canonical(raw)
		if px, ok := c.pegged[inst]; ok {
			out[inst] = px
			continue
		}
		fid := c.feedID(inst)
		byFeed[fid] = append(byFeed[fid], inst)
	}
	if len(byFeed) == 0 {
		return out, nil
	}
	feedIDs := make([]string, 0, len(byFeed))
	for fid := range byFeed {
		feedIDs = append(feedIDs, fid)
	}
	sort.Strings(feedIDs)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           strings.Join(feedIDs, ","),
			"vs_currencies": c.currency,
		})
	if c.apiKey != "" {
		req.SetHeader("x-api-key", c.apiKey)
	}
	resp, err := req.Get("/simple/price")
	if err != nil {
		return nil, fmt.Errorf("pricefeed: request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("pricefeed: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	var body map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("pricefeed: decode: %w", err)
	}
	for fid, insts := range byFeed {
		px, ok := body[fid][c.currency]
		if !ok || px <= 0 {
			logx.WithContext(ctx).Infof("pricefeed: no %s quote for %s", c.currency, fid)
			continue
		}
		for _, inst := range insts {
			out[inst] = px
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
