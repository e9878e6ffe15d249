// internal/infra/config/config.go
package config

import "os"

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	GCSBucket                string
	GCPCreds                 string
	Port                     string
	FirestoreProjectID       string
	FirestoreCredentialsFile string

	// Solana 接続先と候補マシン
	SolanaRPCEndpoint string
	CampaignAddress   string

	// Secret Manager 上のフィーペイヤー keypair
	// 例) projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest
	FeePayerSecret string

	// ミントするアイテムの命名設定
	ItemNamePrefix string
	ItemSymbol     string
	ItemBaseURI    string
}

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	// ベースとなる GCP プロジェクト ID
	defaultProject := getenvDefault("GCP_PROJECT_ID", "mintgate-devnet")

	cfg := &Config{
		GCSBucket:                os.Getenv("GCS_BUCKET"),
		GCPCreds:                 os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Port:                     getenvDefault("PORT", "8080"),
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),

		// SOLANA_RPC_ENDPOINT が未指定なら devnet を使う
		SolanaRPCEndpoint: getenvDefault("SOLANA_RPC_ENDPOINT", "https://api.devnet.solana.com"),
		CampaignAddress:   os.Getenv("CAMPAIGN_ADDRESS"),

		FeePayerSecret: os.Getenv("SOLANA_FEE_PAYER_SECRET"),

		ItemNamePrefix: getenvDefault("ITEM_NAME_PREFIX", "Item"),
		ItemSymbol:     getenvDefault("ITEM_SYMBOL", "ITEM"),
		ItemBaseURI:    os.Getenv("ITEM_BASE_URI"),
	}

	return cfg
}

// GetFirestoreProjectID は Firestore/GCP プロジェクト ID を返します。
func (c *Config) GetFirestoreProjectID() string {
	return c.FirestoreProjectID
}

// GetSolanaRPCEndpoint は Solana RPC のエンドポイント URL を返します。
func (c *Config) GetSolanaRPCEndpoint() string {
	return c.SolanaRPCEndpoint
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
