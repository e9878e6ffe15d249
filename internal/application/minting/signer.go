// internal/application/minting/signer.go
package minting

import "context"

// ============================================================
// Signer kinds（クローズドな variant）
// ============================================================
//
// secretKey を持つか / signAllTransactions を持つか、といった shape 判定は
// しない。署名者は 3 種の閉じた variant で表し、kind で dispatch する。
//
//   - SignerKeypair   : 生の鍵ペア。対話なし、トランザクションごとに即署名。
//   - SignerDelegated : 委任/プログラム派生の署名者。同じく即署名。
//   - SignerBatch     : 対話型。1 回の承認でプラン全体に署名する。

// SignerKind discriminates the closed signer variants.
type SignerKind uint8

const (
	SignerKeypair SignerKind = iota + 1
	SignerDelegated
	SignerBatch
)

func (k SignerKind) String() string {
	switch k {
	case SignerKeypair:
		return "keypair"
	case SignerDelegated:
		return "delegated"
	case SignerBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Signer is the common face of every signer variant.
type Signer interface {
	Kind() SignerKind
}

// TxSigner signs one transaction immediately, with no user
// interaction. Implemented by keypair and delegated signers.
type TxSigner interface {
	Signer
	SignTx(tx *PlannedTx) error
}

// BatchSigner signs a batch of transactions in a single user-facing
// approval. It is invoked exactly once per mint call and receives the
// full plan, even though only some transactions need its signature.
type BatchSigner interface {
	Signer
	SignAll(ctx context.Context, txs []*PlannedTx) error
}
