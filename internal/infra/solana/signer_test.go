// internal/infra/solana/signer_test.go
package solana

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/application/minting"
)

// 必要署名者が feePayer だけのトランザクションを組む。
func feePayerOnlyTx(t *testing.T, feePayer types.Account) *minting.PlannedTx {
	t.Helper()
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        feePayer.PublicKey,
		RecentBlockhash: common.PublicKey{}.ToBase58(),
		Instructions: []types.Instruction{
			system.Transfer(system.TransferParam{
				From:   feePayer.PublicKey,
				To:     types.NewAccount().PublicKey,
				Amount: 1,
			}),
		},
	})
	tx, err := types.NewTransaction(types.NewTransactionParam{Message: msg})
	require.NoError(t, err)
	return &minting.PlannedTx{Kind: minting.TxMint, Payload: &tx}
}

// wallet と feePayer の両方が必要署名者になるトランザクション。
func walletAndFeePayerTx(t *testing.T, feePayer, wallet types.Account) *minting.PlannedTx {
	t.Helper()
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        feePayer.PublicKey,
		RecentBlockhash: common.PublicKey{}.ToBase58(),
		Instructions: []types.Instruction{
			system.Transfer(system.TransferParam{
				From:   wallet.PublicKey,
				To:     types.NewAccount().PublicKey,
				Amount: 1,
			}),
		},
	})
	tx, err := types.NewTransaction(types.NewTransactionParam{Message: msg})
	require.NoError(t, err)
	return &minting.PlannedTx{Kind: minting.TxMint, Payload: &tx}
}

func hasValidSignature(t *testing.T, ptx *minting.PlannedTx, acct types.Account) bool {
	t.Helper()
	raw, ok := ptx.Payload.(*types.Transaction)
	require.True(t, ok)
	msg, err := raw.Message.Serialize()
	require.NoError(t, err)
	pub := ed25519.PublicKey(acct.PublicKey.Bytes())
	for _, sig := range raw.Signatures {
		if len(sig) == ed25519.SignatureSize && ed25519.Verify(pub, msg, sig) {
			return true
		}
	}
	return false
}

func TestBatchSigner_SkipsTxWithoutWalletSlot(t *testing.T) {
	feePayer := types.NewAccount()
	wallet := types.NewAccount()

	// txs[0] に wallet の署名枠はない。txs[1] にはある。
	txs := []*minting.PlannedTx{
		feePayerOnlyTx(t, feePayer),
		walletAndFeePayerTx(t, feePayer, wallet),
	}

	// wallet はプラン全体を一括で受け取り、署名枠のないトランザク
	// ションはそのまま通す。
	batch := NewKeypairBatchSigner(wallet)
	require.NoError(t, batch.SignAll(context.Background(), txs))

	assert.False(t, hasValidSignature(t, txs[0], wallet))
	assert.True(t, hasValidSignature(t, txs[1], wallet))

	// feePayer は各トランザクションに署名できる
	fp := NewKeypairSigner(feePayer)
	for _, ptx := range txs {
		require.NoError(t, fp.SignTx(ptx))
		assert.True(t, hasValidSignature(t, ptx, feePayer))
	}
}

func TestDelegatedSigner_SkipsTxWithoutSlot(t *testing.T) {
	feePayer := types.NewAccount()
	external := types.NewAccount()

	signer := NewDelegatedSigner(func(message []byte) ([]byte, error) {
		return ed25519.Sign(external.PrivateKey, message), nil
	})

	// external の署名枠が無いトランザクションでも失敗しない
	ptx := feePayerOnlyTx(t, feePayer)
	require.NoError(t, signer.SignTx(ptx))
	assert.False(t, hasValidSignature(t, ptx, external))

	// 署名枠があれば適用される
	ptx = walletAndFeePayerTx(t, feePayer, external)
	require.NoError(t, signer.SignTx(ptx))
	assert.True(t, hasValidSignature(t, ptx, external))
}
