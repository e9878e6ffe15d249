// internal/infra/solana/signer.go
package solana

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/types"

	"mintgate/internal/application/minting"
)

// ============================================================
// 署名者: keypair / delegated / batch
// ============================================================

// KeypairSigner signs one transaction with an in-process keypair.
// Used for the ephemeral mint accounts and the fee payer.
type KeypairSigner struct {
	account types.Account
}

var _ minting.TxSigner = (*KeypairSigner)(nil)

func NewKeypairSigner(acct types.Account) *KeypairSigner {
	return &KeypairSigner{account: acct}
}

func (s *KeypairSigner) Kind() minting.SignerKind { return minting.SignerKeypair }

func (s *KeypairSigner) SignTx(ptx *minting.PlannedTx) error {
	if s == nil {
		return fmt.Errorf("signer: keypair signer is nil")
	}
	return applySignature(ptx, s.account)
}

// DelegatedSigner defers the signature to an external holder of the
// key (hardware wallet, remote signing service). The callback gets
// the serialized message and returns the 64-byte signature.
type DelegatedSigner struct {
	signFn func(message []byte) ([]byte, error)
}

var _ minting.TxSigner = (*DelegatedSigner)(nil)

func NewDelegatedSigner(signFn func(message []byte) ([]byte, error)) *DelegatedSigner {
	return &DelegatedSigner{signFn: signFn}
}

func (s *DelegatedSigner) Kind() minting.SignerKind { return minting.SignerDelegated }

func (s *DelegatedSigner) SignTx(ptx *minting.PlannedTx) error {
	if s == nil || s.signFn == nil {
		return fmt.Errorf("signer: delegated signer is not configured")
	}
	raw, err := rawTx(ptx)
	if err != nil {
		return err
	}
	msg, err := raw.Message.Serialize()
	if err != nil {
		return fmt.Errorf("signer: serialize message: %w", err)
	}
	sig, err := s.signFn(msg)
	if err != nil {
		return fmt.Errorf("signer: delegated sign: %w", err)
	}
	return attachSignature(raw, sig)
}

// KeypairBatchSigner is the wallet-style signer: it is handed the
// whole plan once and signs every transaction in it.
type KeypairBatchSigner struct {
	account types.Account
}

var _ minting.BatchSigner = (*KeypairBatchSigner)(nil)

func NewKeypairBatchSigner(acct types.Account) *KeypairBatchSigner {
	return &KeypairBatchSigner{account: acct}
}

func (s *KeypairBatchSigner) Kind() minting.SignerKind { return minting.SignerBatch }

func (s *KeypairBatchSigner) SignAll(ctx context.Context, txs []*minting.PlannedTx) error {
	if s == nil {
		return fmt.Errorf("signer: batch signer is nil")
	}
	for _, ptx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := applySignature(ptx, s.account); err != nil {
			return err
		}
	}
	return nil
}

// ------------------------------------------------------

func rawTx(ptx *minting.PlannedTx) (*types.Transaction, error) {
	if ptx == nil {
		return nil, fmt.Errorf("signer: nil transaction")
	}
	raw, ok := ptx.Payload.(*types.Transaction)
	if !ok {
		return nil, fmt.Errorf("signer: unexpected payload type %T", ptx.Payload)
	}
	return raw, nil
}

func applySignature(ptx *minting.PlannedTx, acct types.Account) error {
	raw, err := rawTx(ptx)
	if err != nil {
		return err
	}
	msg, err := raw.Message.Serialize()
	if err != nil {
		return fmt.Errorf("signer: serialize message: %w", err)
	}
	return attachSignature(raw, ed25519.Sign(acct.PrivateKey, msg))
}

// attachSignature sets a signature on its required-signer slot. A
// signer that matches no slot is silently skipped: a plan may contain
// transactions the wallet (or a delegated key) does not need to sign,
// and those must pass through untouched.
func attachSignature(raw *types.Transaction, sig []byte) error {
	if err := raw.AddSignature(sig); err != nil {
		if errors.Is(err, types.ErrTransactionAddNotNecessarySignatures) {
			return nil
		}
		return fmt.Errorf("signer: add signature: %w", err)
	}
	return nil
}
