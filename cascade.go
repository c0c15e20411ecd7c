package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"
	"github.com/zeromicro/go-zero/rest"

	"cascade-agent/internal/cli"
	"cascade-agent/internal/config"
	"cascade-agent/internal/handler"
	"cascade-agent/internal/svc"
)

var configFile = flag.String("f", "etc/cascade.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	ctx := svc.MustNewServiceContext(*cfg)
	handler.RegisterHandlers(server, ctx)
	cli.LogConfigSummary(cfg)

	loopCtx, cancel := context.WithCancel(context.Background())
	proc.AddShutdownListener(func() {
		cancel()
		ctx.Agent.Stop()
	})
	go func() {
		if err := ctx.Agent.RunLoop(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logx.Errorf("agent loop exited: %v", err)
		}
	}()

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
