// internal/infra/solana/fee_payer_loader.go
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
)

// FeePayer は Secret Manager に保存してあるフィーペイヤーウォレットを表します。
// route / mint 両トランザクションの手数料と rent を負担する。
type FeePayer struct {
	Account types.Account
}

// LoadFeePayer は SOLANA_FEE_PAYER_SECRET に指定した Secret から
// solana-keygen の keypair(JSON配列 [u8;64]) を復元して、types.Account を返します。
//
// SOLANA_FEE_PAYER_SECRET には
//
//	"projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest"
//
// のような Secret Version のフルパスを設定してください。
func LoadFeePayer(ctx context.Context) (*FeePayer, error) {
	secretName := os.Getenv("SOLANA_FEE_PAYER_SECRET")
	if secretName == "" {
		return nil, fmt.Errorf("SOLANA_FEE_PAYER_SECRET not set")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return nil, fmt.Errorf("AccessSecretVersion: %w", err)
	}

	// シークレットの中身は solana-keygen の keypair JSON。
	// 正式には [u8;64] を想定するが、後方互換のため [int,...] 形式も許容する。
	keyBytes, err := decodeKeypairJSON(resp.Payload.Data)
	if err != nil {
		return nil, err
	}

	acc, err := types.AccountFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("AccountFromBytes: %w", err)
	}

	log.Printf(
		"[mintgate-solana] loaded fee payer from Secret Manager: secret=%s pubkey=%s",
		secretName,
		acc.PublicKey.ToBase58(),
	)

	return &FeePayer{Account: acc}, nil
}

// Signer returns the fee payer as a per-transaction signer.
func (f *FeePayer) Signer() *KeypairSigner {
	if f == nil {
		return nil
	}
	return NewKeypairSigner(f.Account)
}

// Address returns the fee payer public key in base58.
func (f *FeePayer) Address() string {
	if f == nil {
		return ""
	}
	return f.Account.PublicKey.ToBase58()
}

// AccountFromKeypairFile は solana-keygen が出力する keypair JSON
// ファイルから types.Account を復元します。ローカル CLI 用。
func AccountFromKeypairFile(path string) (types.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Account{}, fmt.Errorf("read keypair file: %w", err)
	}
	keyBytes, err := decodeKeypairJSON(data)
	if err != nil {
		return types.Account{}, err
	}
	acc, err := types.AccountFromBytes(keyBytes)
	if err != nil {
		return types.Account{}, fmt.Errorf("AccountFromBytes: %w", err)
	}
	return acc, nil
}

// decodeKeypairJSON は Secret Manager に保存した keypair JSON から
// 64 バイトの鍵配列を復元します。
// - 正: [u8;64] を []byte で受け取る
// - 互換: [int,...] を []int で受けてから []byte に変換
func decodeKeypairJSON(data []byte) ([]byte, error) {
	// まずは []byte としてのデコードを試みる
	var keyBytes []byte
	if err := json.Unmarshal(data, &keyBytes); err == nil {
		if len(keyBytes) == ed25519.PrivateKeySize {
			return keyBytes, nil
		}
		// 長さが想定外の場合は後続のパスでエラーにする
	}

	// フォールバック: [int,int,...] の形式
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("unmarshal keypair json: %w", err)
	}

	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected secret key length: got %d, want %d", len(ints), ed25519.PrivateKeySize)
	}

	keyBytes = make([]byte, len(ints))
	for i, v := range ints {
		keyBytes[i] = byte(v)
	}

	return keyBytes, nil
}
