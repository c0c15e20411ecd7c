package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/exchange/venue"
)

func main() {
	path := flag.String("f", "etc/exchange.live.yaml", "exchange config containing a venue provider")
	name := flag.String("provider", "", "provider name (defaults to the config default)")
	flag.Parse()

	cfg, err := exchange.LoadConfig(*path)
	if err != nil {
		fmt.Printf("load exchange config: %v\n", err)
		os.Exit(1)
	}
	provider := *name
	if provider == "" {
		provider = cfg.Default
	}
	pc, ok := cfg.Providers[provider]
	if !ok || !strings.EqualFold(pc.Type, "venue") {
		fmt.Printf("provider %q is not a venue provider\n", provider)
		os.Exit(1)
	}

	signer, err := venue.NewSigner(pc.PrivateKey)
	if err != nil {
		fmt.Printf("decode private key: %v\n", err)
		os.Exit(1)
	}
	signerAddr := strings.ToLower(signer.Address())
	account := strings.ToLower(strings.TrimSpace(pc.Account))

	fmt.Printf("Signer (from private key): %s\n", signerAddr)
	if account == "" {
		fmt.Println("Account: (not set, signer trades for itself)")
	} else {
		fmt.Printf("Account: %s\n", account)
		if account != signerAddr {
			fmt.Println("Signer differs from account: the venue must have the signer registered as an agent of the account.")
		}
	}
	fmt.Println()

	opts := []venue.Option{venue.WithTimeout(10 * time.Second)}
	if pc.Account != "" {
		opts = append(opts, venue.WithAccount(pc.Account))
	}
	if pc.ChainID > 0 {
		opts = append(opts, venue.WithChainID(pc.ChainID))
	}
	client, err := venue.New(pc.BaseURL, pc.PrivateKey, opts...)
	if err != nil {
		fmt.Printf("build client: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	balances, err := client.Balances(ctx)
	if err != nil {
		fmt.Printf("Balances error: %v\n", err)
		os.Exit(1)
	}
	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Printf("Balances at %s:\n", pc.BaseURL)
	for _, id := range ids {
		fmt.Printf("  %-10s %.8f\n", id, balances[id])
	}
}
