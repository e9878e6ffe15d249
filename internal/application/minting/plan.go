// internal/application/minting/plan.go
package minting

import (
	"errors"

	"mintgate/internal/domain/allowlist"
	"mintgate/internal/domain/campaign"
	guarddom "mintgate/internal/domain/guard"
)

// ============================================================
// MintRequest / TransactionPlan
// ============================================================
//
// どちらも 1 回のミント呼び出しの中で作られて破棄される一時オブジェクト。

var (
	ErrInvalidQuantity = errors.New("minting: quantity must be positive")
	ErrEmptyWallet     = errors.New("minting: caller wallet is empty")
)

// Commitment is the confirmation depth required before a submitted
// transaction counts as settled.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentFinalized Commitment = "finalized"
)

// ItemNFTSettings selects the caller-held NFTs used to settle the
// NFT guards for one requested item.
type ItemNFTSettings struct {
	PaymentMint string // handed over for nftPayment
	BurnMint    string // burned for nftBurn
	GateMint    string // presented for nftGate
}

// Request describes one mint call.
type Request struct {
	Quantity   int
	GroupLabel string
	// PerItemNFT resolves NFT guard settings by request index; missing
	// entries default to zero settings.
	PerItemNFT []ItemNFTSettings
}

// NFTFor returns the settings for one item index.
func (r Request) NFTFor(i int) ItemNFTSettings {
	if i < 0 || i >= len(r.PerItemNFT) {
		return ItemNFTSettings{}
	}
	return r.PerItemNFT[i]
}

// TxKind discriminates plan entries.
type TxKind uint8

const (
	TxRoute TxKind = iota + 1
	TxMint
)

// Tx is the ledger-specific transaction payload. The orchestrator
// never inspects it; builders create it and the ledger client and
// signers consume it.
type Tx = any

// PlannedTx is one unsigned (then progressively signed) transaction
// of a plan.
type PlannedTx struct {
	Kind  TxKind
	Index int // item index for mint txs, -1 for the route tx

	// Identifiers carried for post-submission reconciliation.
	ItemMint         string
	ItemTokenAccount string

	// Signature is filled in after successful submission.
	Signature string

	// Payload is the built ledger transaction.
	Payload Tx

	// Signers holds the builder-attached signers for this tx
	// (e.g. the ephemeral mint-account keypair).
	Signers []Signer
}

// Plan is the ordered transaction set for one request: an optional
// leading route tx followed by exactly Quantity mint txs.
type Plan struct {
	Route *PlannedTx
	Mints []*PlannedTx

	Blockhash string // single blockhash shared by every tx in the plan
}

// All returns the route (when present) followed by the mint txs.
func (p *Plan) All() []*PlannedTx {
	if p == nil {
		return nil
	}
	out := make([]*PlannedTx, 0, len(p.Mints)+1)
	if p.Route != nil {
		out = append(out, p.Route)
	}
	out = append(out, p.Mints...)
	return out
}

// BuildContext carries the shared inputs every builder call needs.
type BuildContext struct {
	Campaign  campaign.CandyMachine
	Label     string
	Guards    guarddom.Set // effective (merged) guards of the group
	Wallet    string       // caller wallet (base58)
	FeePayer  string       // shared fee payer (base58)
	Blockhash string       // shared plan blockhash

	// Proof is the caller's allow-list membership proof; nil when the
	// group has no allowList guard.
	Proof []allowlist.Hash
}

// MintBuild adds the per-item inputs for one mint tx.
type MintBuild struct {
	BuildContext
	Index int
	NFT   ItemNFTSettings
}
