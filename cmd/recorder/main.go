// Command recorder samples prices on a cron schedule and appends them to the
// price history, so strategies have a warm history when the agent starts.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/cli"
	"cascade-agent/internal/config"
	"cascade-agent/internal/svc"
	"cascade-agent/pkg/market"
)

const (
	apiTimeout      = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("f", "etc/cascade.yaml", "path to the main configuration")
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logx.Errorf("load config: %v", err)
		os.Exit(1)
	}
	cli.LogConfigSummary(cfg)

	svcCtx, err := svc.NewServiceContext(*cfg)
	if err != nil {
		logx.Errorf("build service context: %v", err)
		os.Exit(1)
	}
	if svcCtx.PriceHistory == nil {
		logx.Error("recorder needs postgres; in-memory history would be lost on exit")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.Recorder.Schedule, func() {
		record(ctx, svcCtx.Market, svcCtx.History)
	}); err != nil {
		logx.Errorf("schedule %q: %v", cfg.Recorder.Schedule, err)
		os.Exit(1)
	}

	record(ctx, svcCtx.Market, svcCtx.History)
	c.Start()
	logx.Infof("recorder started, schedule=%s", cfg.Recorder.Schedule)

	<-ctx.Done()
	logx.Info("shutdown signal received, waiting for running job")
	select {
	case <-c.Stop().Done():
		logx.Info("recorder stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Info("shutdown timeout exceeded, forcing exit")
	}
}

// record takes one snapshot and appends every priced instrument.
func record(parent context.Context, provider market.Provider, history market.HistoryWriter) {
	if parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, apiTimeout)
	defer cancel()

	start := time.Now()
	snap, err := provider.FetchSnapshot(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("recorder: snapshot: %v, took %dms", err, time.Since(start).Milliseconds())
		return
	}
	written := 0
	for id, px := range snap.Prices {
		if px <= 0 {
			continue
		}
		if err := history.AppendHistory(ctx, snap.Timestamp, id, px, snap.TotalValue); err != nil {
			logx.WithContext(ctx).Errorf("recorder: append %s: %v", id, err)
			continue
		}
		written++
	}
	logx.WithContext(ctx).Infof("recorder: %d prices recorded, portfolio=%.2f, took %dms",
		written, snap.TotalValue, time.Since(start).Milliseconds())
}
