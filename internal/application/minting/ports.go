// internal/application/minting/ports.go
package minting

import (
	"context"

	"mintgate/internal/application/eligibility"
	"mintgate/internal/domain/campaign"
)

// ============================================================
// Outbound ports
// ============================================================

// Ledger is the opaque ledger network as seen from the orchestrator.
// Consensus, account model and execution semantics live behind it.
type Ledger interface {
	// LatestBlockhash fetches the replay-protection anchor shared by
	// every transaction of one plan.
	LatestBlockhash(ctx context.Context) (string, error)

	// SendAndConfirm submits a signed transaction and waits for the
	// given commitment level. Returns the transaction signature.
	SendAndConfirm(ctx context.Context, tx *PlannedTx, commitment Commitment) (string, error)

	// FindMintedItem resolves a minted item from the identifiers
	// carried in its transaction's execution context.
	FindMintedItem(ctx context.Context, mintAddress, tokenAccount string) (campaign.Item, error)
}

// TxBuilder assembles the unsigned transactions of a plan.
type TxBuilder interface {
	// BuildRouteTx builds the gating transaction that consumes the
	// allow-list proof before any mint transaction executes.
	BuildRouteTx(ctx context.Context, b BuildContext) (*PlannedTx, error)

	// BuildMintTx builds one mint transaction for an item index,
	// settling the guard payments configured for the group.
	BuildMintTx(ctx context.Context, b MintBuild) (*PlannedTx, error)
}

// HoldingsProvider supplies the caller's current holdings for guard
// evaluation. One-shot fetches; polling cadence is out of scope.
type HoldingsProvider interface {
	SolBalance(ctx context.Context, wallet string) (uint64, error)
	TokenHoldings(ctx context.Context, wallet string) ([]eligibility.TokenHolding, error)
	NFTHoldings(ctx context.Context, wallet string) ([]eligibility.HeldNFT, error)
}
