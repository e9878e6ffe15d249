// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"github.com/blocto/solana-go-sdk/client"

	fsadapter "mintgate/internal/adapters/out/firestore"
	gcsadapter "mintgate/internal/adapters/out/gcs"
	"mintgate/internal/application/minting"
	"mintgate/internal/infra/config"
	firestoreinfra "mintgate/internal/infra/firestore"
	solanainfra "mintgate/internal/infra/solana"
)

// Container は main.go から使う依存オブジェクトの束。
// main.go を極限まで薄くするのが目的。
type Container struct {
	Config *config.Config

	// ミントオーケストレータ（アプリの中心）
	Engine *minting.Engine

	// 下層クライアント。CLI から直接叩きたい場合に公開しておく。
	Ledger   *solanainfra.LedgerClient
	Holdings *solanainfra.HoldingsReader
	FeePayer *solanainfra.FeePayer

	fs        *firestoreinfra.ClientWrapper
	gcs       *storage.Client
	cleanupFn []func()
}

// Close は Cloud Run 終了時などに呼んで安全にリソースを閉じる。
func (c *Container) Close() {
	if c == nil {
		return
	}
	for _, fn := range c.cleanupFn {
		fn()
	}
	if c.gcs != nil {
		_ = c.gcs.Close()
	}
	if c.fs != nil {
		_ = c.fs.Close()
	}
}

// NewContainer は DI コンテナを初期化して返す。
// - 環境変数から設定を読み込む
// - Firestore / GCS / Solana RPC / Secret Manager のクライアントを組み立てる
// - Repository 実装と Usecase を全部つなぐ
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := config.Load()

	if cfg.CampaignAddress == "" {
		return nil, fmt.Errorf("di: CAMPAIGN_ADDRESS not set")
	}

	// ------------------------------------------------------------
	// 1. 外部リソース初期化 (Firestore / GCS / Solana RPC)
	// ------------------------------------------------------------

	fs, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("di: init firestore: %w", err)
	}

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("di: init gcs: %w", err)
	}

	rpc := client.NewClient(cfg.SolanaRPCEndpoint)
	ledger := solanainfra.NewLedgerClient(cfg.SolanaRPCEndpoint)
	holdings := solanainfra.NewHoldingsReader(ledger)

	// フィーペイヤーは Secret Manager から。未設定なら読み取り専用モード。
	var feePayer *solanainfra.FeePayer
	if cfg.FeePayerSecret != "" {
		feePayer, err = solanainfra.LoadFeePayer(ctx)
		if err != nil {
			gcsClient.Close()
			fs.Close()
			return nil, fmt.Errorf("di: load fee payer: %w", err)
		}
	} else {
		log.Printf("[di] WARN: SOLANA_FEE_PAYER_SECRET not set, minting disabled")
	}

	// ------------------------------------------------------------
	// 2. Repository (outbound adapter) を初期化
	// ------------------------------------------------------------

	allowSource := gcsadapter.NewAllowListSourceGCS(gcsClient, cfg.GCSBucket)
	campaignRepo := fsadapter.NewCampaignRepositoryFS(fs.Client)
	allowRepo := fsadapter.NewAllowListRepositoryFS(fs.Client, allowSource)

	// ------------------------------------------------------------
	// 3. Usecase を組み立てる
	// ------------------------------------------------------------

	builder := solanainfra.NewTxBuilder(rpc, cfg.ItemNamePrefix, cfg.ItemSymbol, cfg.ItemBaseURI)

	deps := minting.Deps{
		CampaignAddress: cfg.CampaignAddress,
		Campaigns:       campaignRepo,
		AllowLists:      allowRepo,
		Ledger:          ledger,
		Builder:         builder,
		Holdings:        holdings,
	}
	if feePayer != nil {
		deps.FeePayerAddress = feePayer.Address()
		deps.FeePayer = feePayer.Signer()
	}

	engine, err := minting.NewEngine(deps)
	if err != nil {
		gcsClient.Close()
		fs.Close()
		return nil, fmt.Errorf("di: init engine: %w", err)
	}

	return &Container{
		Config:   cfg,
		Engine:   engine,
		Ledger:   ledger,
		Holdings: holdings,
		FeePayer: feePayer,
		fs:       fs,
		gcs:      gcsClient,
	}, nil
}
