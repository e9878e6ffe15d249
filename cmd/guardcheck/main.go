// cmd/guardcheck/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"mintgate/internal/platform/di"
)

// guardcheck はウォレットを指定してキャンペーンの各グループの
// 適格性と価格を表示する読み取り専用 CLI。
func main() {
	wallet := flag.String("wallet", "", "caller wallet address (base58)")
	flag.Parse()

	ctx := context.Background()

	// コンテナを初期化（Cloud Run と同じ Config / Secret Manager 設定を利用）
	container, err := di.NewContainer(ctx)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer container.Close()

	engine := container.Engine
	if *wallet != "" {
		engine.SetWallet(*wallet)
	}

	if err := engine.Refresh(ctx); err != nil {
		log.Fatalf("refresh failed: %v", err)
	}

	snap := engine.Snapshot()
	if snap.Campaign == nil {
		log.Fatalf("campaign not loaded")
	}

	fmt.Printf("campaign: %s\n", snap.Campaign.Address)
	fmt.Printf("items:    %d / %d redeemed\n", snap.Campaign.ItemsRedeemed, snap.Campaign.ItemsAvailable)

	labels := make([]string, 0, len(snap.States))
	for label := range snap.States {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		st := snap.States[label]
		pr := snap.Prices[label]

		name := label
		if name == "" {
			name = "(default)"
		}
		fmt.Printf("\ngroup %s\n", name)
		fmt.Printf("  eligible:      %v\n", st.Eligible)
		fmt.Printf("  allowed:       %v\n", st.IsAllowed)
		fmt.Printf("  started/ended: %v / %v\n", st.IsStarted, st.IsEnded)
		fmt.Printf("  sold out:      %v\n", st.IsSoldOut)
		fmt.Printf("  limit reached: %v\n", st.HasReachedLimit)
		fmt.Printf("  can afford:    %v\n", pr.CanAfford)
		for _, line := range pr.Lines {
			if line.Mint != "" {
				fmt.Printf("  price: %d of token %s -> %s\n", line.Amount, line.Mint, line.Destination)
			} else {
				fmt.Printf("  price: %d lamports -> %s\n", line.Amount, line.Destination)
			}
		}
	}
}
