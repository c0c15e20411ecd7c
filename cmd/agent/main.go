package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/cli"
	"cascade-agent/internal/config"
	"cascade-agent/internal/svc"
)

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func main() {
	var (
		configPath = flag.String("f", "etc/cascade.yaml", "path to the main configuration")
		once       = flag.Bool("once", false, "run a single cycle and exit")
		paused     = flag.Bool("paused", false, "start paused regardless of agent config")
	)
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	cli.LogConfigSummary(cfg)

	svcCtx, err := svc.NewServiceContext(*cfg)
	if err != nil {
		fatalf("build service context: %v", err)
	}
	ag := svcCtx.Agent

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *paused {
		if err := ag.Pause(ctx); err != nil {
			fatalf("pause agent: %v", err)
		}
	}

	if *once {
		report, err := ag.RunCycle(ctx)
		if err != nil {
			fatalf("cycle %s failed: %v", report.CycleID, err)
		}
		logx.Infof("cycle %s finished: executed=%t skipped=%q", report.CycleID, report.Executed(), report.Skipped)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logx.Infof("received signal %s, shutting down agent loop", sig)
		cancel()
		ag.Stop()
	}()

	logx.Infof("starting agent loop, interval=%s env=%s", cfg.AgentOrDefault().Interval, cfg.Env)
	if err := ag.RunLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatalf("agent loop exited with error: %v", err)
	}
	logx.Info("agent loop stopped")
}
