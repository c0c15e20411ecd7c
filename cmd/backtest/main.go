package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/backtest"
	"cascade-agent/pkg/params"
)

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func main() {
	var (
		pricesPath  = flag.String("prices", "", "CSV price table: timestamp,<instrument>,...")
		paramsPath  = flag.String("params", "etc/params.yaml", "parameter file")
		stable      = flag.String("stable", "", "stable instrument funded at start (defaults to params)")
		capital     = flag.Float64("capital", 10_000, "starting balance in the stable instrument")
		feeBps      = flag.Float64("fee-bps", 10, "paper venue fee in basis points")
		slippageBps = flag.Float64("slippage-bps", 5, "paper venue slippage in basis points")
		out         = flag.String("out", "", "optional JSON report path")
	)
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	if *pricesPath == "" {
		fatalf("--prices is required")
	}
	feeder, err := backtest.LoadCSVFile(*pricesPath)
	if err != nil {
		fatalf("%v", err)
	}
	p, err := params.LoadConfig(*paramsPath)
	if err != nil {
		fatalf("load params: %v", err)
	}
	funding := p.StableInstrument
	if *stable != "" {
		funding = *stable
	}

	engine := &backtest.Engine{
		Feeder:          feeder,
		Params:          p,
		InitialBalances: map[string]float64{funding: *capital},
		FeeBps:          *feeBps,
		SlippageBps:     *slippageBps,
		OutputPath:      *out,
	}
	res, err := engine.Run(context.Background())
	if err != nil {
		fatalf("backtest: %v", err)
	}

	fmt.Printf("steps=%d trades=%d rejected=%d errors=%d\n", res.Steps, res.Trades, res.Rejected, res.Errors)
	fmt.Printf("start=%.2f end=%.2f return=%.2f%% max_dd=%.2f%% sharpe=%.3f fees=%.2f\n",
		res.StartValue, res.EndValue, res.ReturnPct, res.MaxDDPct, res.Sharpe, res.FeesUSD)
	names := make([]string, 0, len(res.ByStrategy))
	for name := range res.ByStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %d\n", name, res.ByStrategy[name])
	}
}
