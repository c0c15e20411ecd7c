package svc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "cascade-agent/internal/cache"
	"cascade-agent/internal/config"
	"cascade-agent/internal/model"
	enginepersist "cascade-agent/internal/persistence/engine"
	historypersist "cascade-agent/internal/persistence/history"
	"cascade-agent/internal/repo"
	advisorpkg "cascade-agent/pkg/advisor"
	agentpkg "cascade-agent/pkg/agent"
	discoverypkg "cascade-agent/pkg/discovery"
	exchangepkg "cascade-agent/pkg/exchange"
	_ "cascade-agent/pkg/exchange/sim"
	_ "cascade-agent/pkg/exchange/venue"
	llmpkg "cascade-agent/pkg/llm"
	marketpkg "cascade-agent/pkg/market"
	_ "cascade-agent/pkg/market/pricefeed"
	paramspkg "cascade-agent/pkg/params"
	riskpkg "cascade-agent/pkg/risk"
	strategypkg "cascade-agent/pkg/strategy"
)

const paperVenueType = "sim"

type ServiceContext struct {
	Config config.Config

	Params       *paramspkg.Store
	Market       *marketpkg.Composite
	History      marketpkg.HistoryStore
	Venue        exchangepkg.Provider
	Gate         *riskpkg.Gate
	Advisor      *advisorpkg.Advisor
	Discovery    *discoverypkg.Client
	Orchestrator *strategypkg.Orchestrator
	Agent        *agentpkg.Agent

	// Optional storage, present only when Postgres and Redis are configured.
	DBConn              sqlx.SqlConn
	Cache               cache.Cache
	AgentStateModel     model.AgentStateModel
	PriceHistoryModel   model.PriceHistoryModel
	TradesModel         model.TradesModel
	DecisionCyclesModel model.DecisionCyclesModel
	ConversationsModel  model.ConversationsModel
	Persistence         *enginepersist.Service
	PriceHistory        *historypersist.Store
	Repos               *repo.Set
}

// MustNewServiceContext is NewServiceContext that exits on failure.
func MustNewServiceContext(c config.Config) *ServiceContext {
	svcCtx, err := NewServiceContext(c)
	if err != nil {
		logx.Must(err)
	}
	return svcCtx
}

func NewServiceContext(c config.Config) (*ServiceContext, error) {
	if c.Exchange.Value == nil {
		return nil, errors.New("svc: exchange section is required")
	}
	if c.Market.Value == nil {
		return nil, errors.New("svc: market section is required")
	}
	svc := &ServiceContext{Config: c}
	p := c.ParamsOrDefault()
	svc.Params = paramspkg.NewStore(p)

	// Test environments never reach a live venue.
	if c.IsTestEnv() {
		ApplyPaperOverride(c.Exchange.Value)
	}
	venue, err := c.Exchange.Value.BuildDefault()
	if err != nil {
		return nil, fmt.Errorf("svc: build venue: %w", err)
	}
	svc.Venue = venue

	prices, err := c.Market.Value.BuildSource()
	if err != nil {
		return nil, fmt.Errorf("svc: build price source: %w", err)
	}
	svc.Market = &marketpkg.Composite{
		Balances:  venue,
		Prices:    prices,
		Track:     trackList(c.Market.Value.Track),
		TrackFunc: func() []string { return svc.Params.Get().Instruments() },
	}

	if strings.TrimSpace(c.Postgres.DSN) != "" {
		svc.initStorage(c)
	}
	if svc.PriceHistory != nil {
		svc.History = svc.PriceHistory
	} else {
		svc.History = marketpkg.NewMemoryHistory(c.Market.Value.History.Capacity)
	}

	var orchOpts []strategypkg.Option
	if c.LLM.Value != nil && c.Advisor.Value != nil {
		client, err := llmpkg.NewClient(c.LLM.Value)
		if err != nil {
			return nil, fmt.Errorf("svc: build llm client: %w", err)
		}
		var recorder advisorpkg.ConversationRecorder
		if svc.Persistence != nil {
			recorder = svc.Persistence
		}
		adv, err := advisorpkg.New(c.Advisor.Value, client, advisorpkg.WithConversationRecorder(recorder))
		if err != nil {
			return nil, fmt.Errorf("svc: build advisor: %w", err)
		}
		svc.Advisor = adv
		orchOpts = append(orchOpts, strategypkg.WithAdvisor(adv))
	} else if p.Advisory.Enabled {
		logx.Errorf("svc: advisory enabled in params but llm or advisor section is missing")
	}
	if c.Discovery.Value != nil {
		svc.Discovery = discoverypkg.New(c.Discovery.Value)
		orchOpts = append(orchOpts, strategypkg.WithDiscoverer(svc.Discovery))
	}
	svc.Orchestrator = strategypkg.NewOrchestrator(svc.History, orchOpts...)

	svc.Gate = riskpkg.NewGate()
	if svc.Persistence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n, err := svc.Persistence.SeedRiskWindow(ctx, svc.Gate, time.Now())
		cancel()
		if err != nil {
			logx.Errorf("svc: seed risk window: %v", err)
		} else if n > 0 {
			logx.Infof("svc: risk window seeded with %d recent trades", n)
		}
	}

	deps := agentpkg.Deps{
		Params:  svc.Params,
		Market:  svc.Market,
		Decider: svc.Orchestrator,
		Gate:    svc.Gate,
		Venue:   venue,
	}
	var agentOpts []agentpkg.Option
	if svc.Repos != nil {
		deps.States = svc.Repos.State
	}
	if svc.Persistence != nil {
		agentOpts = append(agentOpts, agentpkg.WithPersistenceHooks(svc.Persistence))
	}
	ag, err := agentpkg.New(c.AgentOrDefault(), deps, agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("svc: build agent: %w", err)
	}
	svc.Agent = ag
	return svc, nil
}

func (svc *ServiceContext) initStorage(c config.Config) {
	conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	if raw, err := conn.RawDB(); err == nil {
		raw.SetMaxOpenConns(c.Postgres.MaxOpen)
		raw.SetMaxIdleConns(c.Postgres.MaxIdle)
	}
	cacheConf := cache.CacheConf{{RedisConf: c.Redis, Weight: 100}}
	ttl := cachekeys.NewTTLSet(c.TTL)

	svc.DBConn = conn
	svc.Cache = cache.New(cacheConf, syncx.NewSingleFlight(), cache.NewStat("cascade"), model.ErrNotFound)
	svc.AgentStateModel = model.NewAgentStateModel(conn, cacheConf)
	svc.PriceHistoryModel = model.NewPriceHistoryModel(conn, cacheConf)
	svc.TradesModel = model.NewTradesModel(conn, cacheConf)
	svc.DecisionCyclesModel = model.NewDecisionCyclesModel(conn, cacheConf)
	svc.ConversationsModel = model.NewConversationsModel(conn, cacheConf)

	svc.Persistence = enginepersist.NewService(enginepersist.Config{
		TradesModel:        svc.TradesModel,
		DecisionModel:      svc.DecisionCyclesModel,
		ConversationsModel: svc.ConversationsModel,
		Cache:              svc.Cache,
		TTL:                ttl,
	})
	if store, err := historypersist.NewStore(historypersist.Config{
		Model: svc.PriceHistoryModel,
		Cache: svc.Cache,
		TTL:   ttl,
	}); err == nil {
		svc.PriceHistory = store
	}
	if repos, err := repo.New(repo.Dependencies{DBConn: conn, AgentStateModel: svc.AgentStateModel}); err == nil {
		svc.Repos = repos
	}
}

// ApplyPaperOverride turns every live venue into a paper venue. Initial
// balances, fees and slippage carry over.
func ApplyPaperOverride(cfg *exchangepkg.Config) {
	if cfg == nil {
		return
	}
	for name, provider := range cfg.Providers {
		if provider == nil || strings.EqualFold(provider.Type, paperVenueType) {
			continue
		}
		logx.Infof("svc: test env, venue %s switched from %s to paper", name, provider.Type)
		provider.Type = paperVenueType
		provider.PrivateKey = ""
	}
}

func trackList(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
