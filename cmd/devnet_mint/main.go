// cmd/devnet_mint/main.go
package main

import (
	"context"
	"flag"
	"log"

	"mintgate/internal/application/minting"
	solanainfra "mintgate/internal/infra/solana"
	"mintgate/internal/platform/di"
)

// devnet_mint は Devnet 上でミントを 1 回実行する動作確認用 CLI。
// 呼び出し側ウォレットは solana-keygen の keypair ファイルで指定する。
func main() {
	keypairPath := flag.String("keypair", "", "caller wallet keypair file (solana-keygen json)")
	group := flag.String("group", "", "guard group label (empty = default)")
	quantity := flag.Int("quantity", 1, "number of items to mint")
	flag.Parse()

	if *keypairPath == "" {
		log.Fatalf("-keypair is required")
	}

	ctx := context.Background()

	// コンテナを初期化（Cloud Run と同じ Config / Secret Manager 設定を利用）
	container, err := di.NewContainer(ctx)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer container.Close()

	if container.FeePayer == nil {
		log.Fatalf("fee payer is not configured (set SOLANA_FEE_PAYER_SECRET)")
	}

	wallet, err := solanainfra.AccountFromKeypairFile(*keypairPath)
	if err != nil {
		log.Fatalf("failed to load wallet keypair: %v", err)
	}

	engine := container.Engine
	engine.SetWallet(wallet.PublicKey.ToBase58())
	engine.SetWalletSigner(solanainfra.NewKeypairBatchSigner(wallet))

	if err := engine.Refresh(ctx); err != nil {
		log.Fatalf("refresh failed: %v", err)
	}

	items, err := engine.Mint(ctx, minting.Request{
		Quantity:   *quantity,
		GroupLabel: *group,
	})
	if err != nil {
		log.Fatalf("mint failed: %v", err)
	}

	for _, it := range items {
		log.Printf("[devnet-mint] minted mint=%s ata=%s sig=%s", it.Mint, it.TokenAccount, it.Signature)
	}
	log.Printf("[devnet-mint] done: %d item(s)", len(items))
}
