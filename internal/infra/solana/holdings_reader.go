// internal/infra/solana/holdings_reader.go
package solana

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"

	"mintgate/internal/application/eligibility"
	"mintgate/internal/application/minting"
)

// ============================================================
// HoldingsReader: 呼び出し側ウォレットの保有状況スナップショット
// ============================================================
//
// minting.HoldingsProvider の実装。ポーリング方針は持たない（毎回
// 単発フェッチ）。NFT 判定は decimals==0 かつ amount==1 のトークン
// アカウントをスキャンし、メタデータの verified collection を引く。

type HoldingsReader struct {
	Ledger *LedgerClient
	Raw    RPCClient
}

var _ minting.HoldingsProvider = (*HoldingsReader)(nil)

// NewHoldingsReader wires the reader to the shared ledger client plus
// a raw JSON-RPC client for jsonParsed token scans.
func NewHoldingsReader(ledger *LedgerClient) *HoldingsReader {
	return &HoldingsReader{
		Ledger: ledger,
		Raw:    NewJSONRPCClient(),
	}
}

// SolBalance returns the wallet's lamport balance.
func (r *HoldingsReader) SolBalance(ctx context.Context, wallet string) (uint64, error) {
	if r == nil || r.Ledger == nil {
		return 0, fmt.Errorf("holdings reader: not configured")
	}
	return r.Ledger.Balance(ctx, wallet)
}

// TokenHoldings lists the wallet's fungible SPL balances (decimals > 0
// or amount > 1), summed per mint.
func (r *HoldingsReader) TokenHoldings(ctx context.Context, wallet string) ([]eligibility.TokenHolding, error) {
	accounts, err := r.tokenAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]uint64)
	order := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a.nft() {
			continue
		}
		if _, seen := sums[a.mint]; !seen {
			order = append(order, a.mint)
		}
		sums[a.mint] += a.amount
	}

	out := make([]eligibility.TokenHolding, 0, len(order))
	for _, mint := range order {
		out = append(out, eligibility.TokenHolding{Mint: mint, Amount: sums[mint]})
	}
	return out, nil
}

// NFTHoldings lists the wallet's NFTs with their verified collections.
// A metadata decode failure degrades that entry to an empty collection
// instead of failing the whole scan.
func (r *HoldingsReader) NFTHoldings(ctx context.Context, wallet string) ([]eligibility.HeldNFT, error) {
	accounts, err := r.tokenAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	out := make([]eligibility.HeldNFT, 0)
	for _, a := range accounts {
		if !a.nft() {
			continue
		}
		collection := ""
		if c, cerr := r.collectionOf(ctx, a.mint); cerr != nil {
			log.Printf("[holdings] WARN: collection lookup failed mint=%s: %v", maskShort(a.mint), cerr)
		} else {
			collection = c
		}
		out = append(out, eligibility.HeldNFT{Mint: a.mint, Collection: collection})
	}
	return out, nil
}

// ------------------------------------------------------
// internals
// ------------------------------------------------------

type tokenAccount struct {
	mint     string
	amount   uint64
	decimals int
}

func (a tokenAccount) nft() bool {
	return a.decimals == 0 && a.amount == 1
}

func (r *HoldingsReader) tokenAccounts(ctx context.Context, wallet string) ([]tokenAccount, error) {
	if r == nil || r.Raw == nil {
		return nil, fmt.Errorf("holdings reader: not configured")
	}
	addr := strings.TrimSpace(wallet)
	if addr == "" {
		return nil, fmt.Errorf("holdings reader: wallet is empty")
	}

	res, err := r.Raw.GetTokenAccountsByOwner(ctx, addr, TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("holdings reader: token accounts: %w", err)
	}

	out := make([]tokenAccount, 0, len(res.Value))
	for _, v := range res.Value {
		mint := strings.TrimSpace(v.Account.Data.Parsed.Info.Mint)
		if mint == "" {
			continue
		}
		amt, perr := strconv.ParseUint(strings.TrimSpace(v.Account.Data.Parsed.Info.TokenAmount.Amount), 10, 64)
		if perr != nil || amt == 0 {
			continue
		}
		out = append(out, tokenAccount{
			mint:     mint,
			amount:   amt,
			decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return out, nil
}

// collectionOf resolves the verified collection mint for one NFT via
// its metadata PDA.
func (r *HoldingsReader) collectionOf(ctx context.Context, mint string) (string, error) {
	if r.Ledger == nil || r.Ledger.RPC == nil {
		return "", fmt.Errorf("holdings reader: ledger not configured")
	}
	metaKey, err := token_metadata.GetTokenMetaPubkey(pubkey(mint))
	if err != nil {
		return "", fmt.Errorf("holdings reader: metadata pda: %w", err)
	}
	info, err := r.Ledger.RPC.GetAccountInfo(ctx, metaKey.ToBase58())
	if err != nil {
		return "", fmt.Errorf("holdings reader: metadata fetch: %w", err)
	}
	return verifiedCollection(info.Data)
}
