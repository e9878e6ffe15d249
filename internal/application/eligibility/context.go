// internal/application/eligibility/context.go
package eligibility

import (
	"strings"
	"time"

	"mintgate/internal/domain/allowlist"
)

// ------------------------------------------------------
// CallerContext: 評価時点での呼び出し側スナップショット
// ------------------------------------------------------

// TokenHolding is one SPL token balance held by the caller.
type TokenHolding struct {
	Mint   string
	Amount uint64
}

// HeldNFT is one NFT held by the caller with its verified collection.
type HeldNFT struct {
	Mint       string
	Collection string
}

// ProofVerifier answers allow-list membership for the current caller.
type ProofVerifier func(root allowlist.Hash, label string) bool

// CallerContext bundles every input the evaluator reads. It is a
// point-in-time snapshot; polling/caching policy lives outside.
type CallerContext struct {
	Wallet     string
	SolBalance uint64 // lamports
	Tokens     []TokenHolding
	NFTs       []HeldNFT
	Now        time.Time
	Verify     ProofVerifier
}

// TokenAmount returns the held amount for an SPL mint.
func (cc CallerContext) TokenAmount(mint string) uint64 {
	mint = strings.TrimSpace(mint)
	var total uint64
	for _, t := range cc.Tokens {
		if t.Mint == mint {
			total += t.Amount
		}
	}
	return total
}

// HoldsCollection reports whether the caller holds at least one NFT
// of the given collection.
func (cc CallerContext) HoldsCollection(collection string) bool {
	collection = strings.TrimSpace(collection)
	for _, n := range cc.NFTs {
		if n.Collection == collection {
			return true
		}
	}
	return false
}
