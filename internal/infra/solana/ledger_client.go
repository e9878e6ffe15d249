// internal/infra/solana/ledger_client.go
package solana

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"mintgate/internal/application/minting"
	"mintgate/internal/domain/campaign"
	"mintgate/internal/domain/mintfail"
)

// Solana Devnet RPC endpoint (default)
const defaultDevnetRPC = "https://api.devnet.solana.com"

// SPL Token Program ID (Tokenkeg...)
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// ============================================================
// LedgerClient: blocto SDK ベースの台帳クライアント
// ============================================================
//
// minting.Ledger の実装。送信とコミットメント確認、ミント済み
// アイテムの解決を担う。台帳のコンセンサス/実行セマンティクスは
// ここより先の不透明な外部サービス。

type LedgerClient struct {
	RPC *client.Client

	// ConfirmInterval is the signature-status polling cadence.
	ConfirmInterval time.Duration
	// ConfirmTimeout bounds one SendAndConfirm call.
	ConfirmTimeout time.Duration
}

var _ minting.Ledger = (*LedgerClient)(nil)

// NewLedgerClient constructs a ledger client.
// RPC URL resolves from SOLANA_RPC_ENDPOINT if rpcURL is empty.
func NewLedgerClient(rpcURL string) *LedgerClient {
	u := strings.TrimSpace(rpcURL)
	if u == "" {
		u = strings.TrimSpace(os.Getenv("SOLANA_RPC_ENDPOINT"))
	}
	if u == "" {
		u = defaultDevnetRPC
	}
	return &LedgerClient{
		RPC:             client.NewClient(u),
		ConfirmInterval: 2 * time.Second,
		ConfirmTimeout:  90 * time.Second,
	}
}

// LatestBlockhash fetches the shared plan blockhash.
func (c *LedgerClient) LatestBlockhash(ctx context.Context) (string, error) {
	if c == nil || c.RPC == nil {
		return "", fmt.Errorf("ledger: client not configured")
	}
	recent, err := c.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("ledger: GetLatestBlockhash: %w", err)
	}
	return recent.Blockhash, nil
}

// SendAndConfirm submits one planned transaction and polls its
// signature status until it reaches the requested commitment.
func (c *LedgerClient) SendAndConfirm(
	ctx context.Context,
	tx *minting.PlannedTx,
	commitment minting.Commitment,
) (string, error) {
	if c == nil || c.RPC == nil {
		return "", fmt.Errorf("ledger: client not configured")
	}
	raw, ok := tx.Payload.(*types.Transaction)
	if !ok || raw == nil {
		return "", fmt.Errorf("ledger: planned tx carries no solana transaction payload")
	}

	sig, err := c.RPC.SendTransaction(ctx, *raw)
	if err != nil {
		return "", asProgramError(err)
	}

	if err := c.awaitCommitment(ctx, sig, commitment); err != nil {
		return "", err
	}
	return sig, nil
}

// awaitCommitment polls getSignatureStatuses until the signature
// reaches the wanted depth.
func (c *LedgerClient) awaitCommitment(ctx context.Context, sig string, commitment minting.Commitment) error {
	deadline := time.Now().Add(c.confirmTimeout())
	ticker := time.NewTicker(c.confirmInterval())
	defer ticker.Stop()

	for {
		st, err := c.RPC.GetSignatureStatus(ctx, sig)
		if err == nil && st != nil {
			if st.Err != nil {
				return asProgramError(fmt.Errorf("ledger: tx %s failed on chain: %v", sig, st.Err))
			}
			if st.ConfirmationStatus != nil && reached(*st.ConfirmationStatus, commitment) {
				return nil
			}
		}

		if time.Now().After(deadline) {
			// no underlying message: the classifier maps this to a timeout
			return mintfail.Wrap(mintfail.ReasonTimeout,
				fmt.Errorf("ledger: tx %s not %s within %s", sig, commitment, c.confirmTimeout()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// reached compares observed vs. wanted commitment depth.
func reached(observed rpc.Commitment, wanted minting.Commitment) bool {
	rank := func(c string) int {
		switch c {
		case string(rpc.CommitmentProcessed):
			return 1
		case string(rpc.CommitmentConfirmed):
			return 2
		case string(rpc.CommitmentFinalized):
			return 3
		default:
			return 0
		}
	}
	return rank(string(observed)) >= rank(string(wanted))
}

// FindMintedItem resolves a minted item from the identifiers carried
// in its transaction's execution context. The metadata schema stays
// opaque; existence of the mint account is the resolution criterion.
func (c *LedgerClient) FindMintedItem(ctx context.Context, mintAddress, tokenAccount string) (campaign.Item, error) {
	if c == nil || c.RPC == nil {
		return campaign.Item{}, fmt.Errorf("ledger: client not configured")
	}
	mint := strings.TrimSpace(mintAddress)
	if mint == "" {
		return campaign.Item{}, fmt.Errorf("ledger: mint address is empty")
	}

	exists, err := c.accountExists(ctx, mint)
	if err != nil {
		return campaign.Item{}, fmt.Errorf("ledger: check mint account: %w", err)
	}
	if !exists {
		return campaign.Item{}, fmt.Errorf("ledger: mint account %s not found", maskShort(mint))
	}

	return campaign.Item{
		Mint:         mint,
		TokenAccount: strings.TrimSpace(tokenAccount),
	}, nil
}

// Balance returns the caller's lamport balance.
func (c *LedgerClient) Balance(ctx context.Context, wallet string) (uint64, error) {
	if c == nil || c.RPC == nil {
		return 0, fmt.Errorf("ledger: client not configured")
	}
	addr := strings.TrimSpace(wallet)
	if addr == "" {
		return 0, fmt.Errorf("ledger: wallet is empty")
	}
	bal, err := c.RPC.GetBalance(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("ledger: GetBalance: %w", err)
	}
	return bal, nil
}

func (c *LedgerClient) accountExists(ctx context.Context, address string) (bool, error) {
	_, err := c.RPC.GetAccountInfo(ctx, address)
	if err == nil {
		return true, nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") ||
		strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "account does not exist") {
		return false, nil
	}
	return false, err
}

func (c *LedgerClient) confirmInterval() time.Duration {
	if c.ConfirmInterval > 0 {
		return c.ConfirmInterval
	}
	return 2 * time.Second
}

func (c *LedgerClient) confirmTimeout() time.Duration {
	if c.ConfirmTimeout > 0 {
		return c.ConfirmTimeout
	}
	return 90 * time.Second
}

// asProgramError lifts a "custom program error: 0x..." message into a
// structured mintfail.ProgramError so the classifier can match on the
// code. Unparseable errors pass through untouched.
func asProgramError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	marker := "custom program error: 0x"
	i := strings.Index(msg, marker)
	if i < 0 {
		return err
	}
	hexPart := msg[i+len(marker):]
	if j := strings.IndexFunc(hexPart, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdefABCDEF", r)
	}); j >= 0 {
		hexPart = hexPart[:j]
	}
	code, perr := strconv.ParseInt(hexPart, 16, 32)
	if perr != nil {
		return err
	}
	log.Printf("[ledger] program error code=0x%x", code)
	return &mintfail.ProgramError{Code: int(code), Msg: msg}
}

// maskShort shortens addresses/signatures for logs.
func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
