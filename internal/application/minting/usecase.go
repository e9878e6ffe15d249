// internal/application/minting/usecase.go
package minting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"mintgate/internal/application/eligibility"
	"mintgate/internal/domain/allowlist"
	"mintgate/internal/domain/campaign"
	guarddom "mintgate/internal/domain/guard"
	"mintgate/internal/domain/mintfail"
)

// ============================================================
// Mint Orchestrator
// ============================================================
//
// 1 回のミント呼び出しにつき 1 本の呼び出し主導フロー。バックグラウンド
// ワーカーは持たない。route トランザクションは順序バリアで、processed
// 確定前に mint トランザクションは一切送信しない。

// Status is the externally observable orchestrator state.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusValidating      Status = "validating"
	StatusBuildingPlan    Status = "buildingPlan"
	StatusBuildingMintTxs Status = "buildingMintTxs"
	StatusSigningRoute    Status = "signingRoute"
	StatusSigningMint     Status = "signingMint"
	StatusSubmittingRoute Status = "submittingRoute"
	StatusSubmittingMint  Status = "submittingMint"
	StatusReconciling     Status = "reconciling"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
)

// defaultMaxFanOut bounds concurrent mint submissions/lookups so a
// large quantity cannot overwhelm the network layer.
const defaultMaxFanOut = 8

var (
	ErrNotConfigured = errors.New("minting: engine not configured")
)

// Deps wires the orchestrator to its collaborators.
type Deps struct {
	CampaignAddress string
	Wallet          string // caller wallet (base58); may be set later

	Campaigns  campaign.RepositoryPort
	AllowLists allowlist.RepositoryPort // optional: campaigns without lists
	Ledger     Ledger
	Builder    TxBuilder
	Holdings   HoldingsProvider // optional: zero holdings when absent

	FeePayer        TxSigner // shared fee-payer keypair, applied to every tx
	FeePayerAddress string
	WalletSigner    BatchSigner // interactive caller wallet, once per plan
	ThirdParty      TxSigner    // delegated co-signer for thirdPartySigner guard

	Limits    *guarddom.LimitLedger // shared with the evaluator; created if nil
	Now       func() time.Time
	MaxFanOut int
}

// Engine orchestrates guard evaluation and transactional minting for
// one candy machine. Safe for concurrent readers; mint calls are
// single-flight.
type Engine struct {
	mu sync.Mutex

	address string
	wallet  string

	campaigns  campaign.RepositoryPort
	allowLists allowlist.RepositoryPort
	ledger     Ledger
	builder    TxBuilder
	holdings   HoldingsProvider

	feePayer     TxSigner
	feePayerAddr string
	walletSigner BatchSigner
	thirdParty   TxSigner

	limits    *guarddom.LimitLedger
	eval      *eligibility.Evaluator
	index     *allowlist.Index
	now       func() time.Time
	maxFanOut int

	inFlight atomic.Bool
	status   Status

	cm     *campaign.CandyMachine
	states map[string]eligibility.GroupState
	prices map[string]eligibility.Price
	items  []campaign.Item
}

// NewEngine validates required collaborators and builds an idle engine.
// Call Refresh before evaluating or minting.
func NewEngine(d Deps) (*Engine, error) {
	addr := strings.TrimSpace(d.CampaignAddress)
	if addr == "" || d.Campaigns == nil || d.Ledger == nil || d.Builder == nil {
		return nil, ErrNotConfigured
	}
	limits := d.Limits
	if limits == nil {
		limits = guarddom.NewLimitLedger()
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	fan := d.MaxFanOut
	if fan <= 0 {
		fan = defaultMaxFanOut
	}
	return &Engine{
		address:      addr,
		wallet:       strings.TrimSpace(d.Wallet),
		campaigns:    d.Campaigns,
		allowLists:   d.AllowLists,
		ledger:       d.Ledger,
		builder:      d.Builder,
		holdings:     d.Holdings,
		feePayer:     d.FeePayer,
		feePayerAddr: strings.TrimSpace(d.FeePayerAddress),
		walletSigner: d.WalletSigner,
		thirdParty:   d.ThirdParty,
		limits:       limits,
		eval:         eligibility.NewEvaluator(limits),
		index:        allowlist.NewIndex(nil),
		now:          now,
		maxFanOut:    fan,
		status:       StatusIdle,
		states:       map[string]eligibility.GroupState{},
		prices:       map[string]eligibility.Price{},
	}, nil
}

// ------------------------------------------------------
// Read surface (presentation layer contract)
// ------------------------------------------------------

// Snapshot is the derived read-only projection handed to callers.
type Snapshot struct {
	Campaign *campaign.CandyMachine
	Groups   []guarddom.Group
	States   map[string]eligibility.GroupState
	Prices   map[string]eligibility.Price
	Items    []campaign.Item
	Status   Status
	Counters map[uint8]uint64
}

// Status returns the current orchestrator state.
func (e *Engine) Status() Status {
	if e == nil {
		return StatusIdle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Snapshot copies the current derived state.
func (e *Engine) Snapshot() Snapshot {
	if e == nil {
		return Snapshot{Status: StatusIdle}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Status:   e.status,
		States:   make(map[string]eligibility.GroupState, len(e.states)),
		Prices:   make(map[string]eligibility.Price, len(e.prices)),
		Items:    append([]campaign.Item(nil), e.items...),
		Counters: e.limits.Snapshot(),
	}
	for k, v := range e.states {
		snap.States[k] = v
	}
	for k, v := range e.prices {
		snap.Prices[k] = v
	}
	if e.cm != nil {
		cm := *e.cm
		snap.Campaign = &cm
		snap.Groups = append([]guarddom.Group(nil), cm.Groups...)
	}
	return snap
}

// SetWallet switches the caller identity. Proof caches are keyed by
// caller so stale entries simply stop being hit; states are stale
// until the next Refresh.
func (e *Engine) SetWallet(wallet string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallet = strings.TrimSpace(wallet)
}

// SetWalletSigner attaches the caller's batch signer. Pair with
// SetWallet when the caller identity is known only after wiring.
func (e *Engine) SetWalletSigner(s BatchSigner) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.walletSigner = s
}

// ------------------------------------------------------
// Refresh
// ------------------------------------------------------

// Refresh reloads the campaign snapshot and allow-list definitions,
// then re-derives every group's state and price for the current
// caller. Allow-list trees persist across refreshes while their
// source list version is unchanged.
func (e *Engine) Refresh(ctx context.Context) error {
	if e == nil {
		return ErrNotConfigured
	}

	cm, err := e.campaigns.FindByAddress(ctx, e.address)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return mintfail.ErrCandyMachineNotFound
		}
		return fmt.Errorf("minting: load campaign: %w", err)
	}

	if e.allowLists != nil {
		lists, lerr := e.allowLists.ListByCampaign(ctx, e.address)
		if lerr != nil {
			return fmt.Errorf("minting: load allow lists: %w", lerr)
		}
		for _, l := range lists {
			if v, ok := e.index.Version(l.Label); ok && v == l.Version {
				continue // unchanged: keep cached tree/proofs
			}
			e.index.Replace(l)
		}
	}

	cc := e.callerContext(ctx)

	states := make(map[string]eligibility.GroupState)
	prices := make(map[string]eligibility.Price)
	for _, label := range cm.Labels() {
		eff, gerr := cm.EffectiveGuards(label)
		if gerr != nil {
			continue
		}
		st, pr := e.eval.EvaluateGroup(label, eff, cm.ItemsRedeemed, cc)
		states[label] = st
		prices[label] = pr
	}

	e.mu.Lock()
	e.cm = &cm
	e.states = states
	e.prices = prices
	e.mu.Unlock()

	log.Printf("[minting] refreshed campaign=%s groups=%d remaining=%d",
		maskShort(e.address), len(cm.Groups), cm.ItemsRemaining())
	return nil
}

// callerContext builds the evaluator snapshot. Holdings fetch
// failures degrade to zero holdings with a warning so a flaky RPC
// cannot take the whole read surface down.
func (e *Engine) callerContext(ctx context.Context) eligibility.CallerContext {
	e.mu.Lock()
	wallet := e.wallet
	e.mu.Unlock()

	cc := eligibility.CallerContext{
		Wallet: wallet,
		Now:    e.now(),
		Verify: e.index.Verifier(wallet),
	}
	if e.holdings == nil || wallet == "" {
		return cc
	}

	if bal, err := e.holdings.SolBalance(ctx, wallet); err != nil {
		log.Printf("[minting] WARN: balance fetch failed: %v", err)
	} else {
		cc.SolBalance = bal
	}
	if tokens, err := e.holdings.TokenHoldings(ctx, wallet); err != nil {
		log.Printf("[minting] WARN: token holdings fetch failed: %v", err)
	} else {
		cc.Tokens = tokens
	}
	if nfts, err := e.holdings.NFTHoldings(ctx, wallet); err != nil {
		log.Printf("[minting] WARN: nft holdings fetch failed: %v", err)
	} else {
		cc.NFTs = nfts
	}
	return cc
}

// ------------------------------------------------------
// Mint
// ------------------------------------------------------

// Mint executes one mint call: validation, plan building, signing,
// ordered submission and reconciliation. Returns the resolved items,
// possibly fewer than requested when individual lookups fail.
//
// Cleanup runs exactly once on every exit path: mint-limit counters
// advance by the resolved item count (an explicit postcondition, so a
// validation failure adds zero), and a configuration refresh is
// always triggered.
func (e *Engine) Mint(ctx context.Context, req Request) (resolved []campaign.Item, err error) {
	if e == nil {
		return nil, ErrNotConfigured
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, mintfail.ErrMintInProgress
	}
	defer e.inFlight.Store(false)

	var limitGuard *guarddom.MintLimit
	defer func() {
		if limitGuard != nil && len(resolved) > 0 {
			e.limits.Add(limitGuard.ID, uint64(len(resolved)))
		}
		if err != nil {
			err = mintfail.Classify(err)
			log.Printf("[minting] mint failed: %v", err)
			e.setStatus(StatusFailed)
		} else {
			e.setStatus(StatusDone)
		}
		if rerr := e.Refresh(context.WithoutCancel(ctx)); rerr != nil {
			log.Printf("[minting] WARN: post-mint refresh failed: %v", rerr)
		}
	}()

	// --- Validating -------------------------------------------------
	e.setStatus(StatusValidating)

	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	e.mu.Lock()
	cm := e.cm
	wallet := e.wallet
	e.mu.Unlock()
	if cm == nil {
		return nil, mintfail.ErrCandyMachineNotFound
	}
	if wallet == "" {
		return nil, ErrEmptyWallet
	}

	label := guarddom.NormalizeLabel(req.GroupLabel)
	eff, gerr := cm.EffectiveGuards(label)
	if gerr != nil {
		return nil, mintfail.Wrap(mintfail.ReasonUnknownGroup, gerr)
	}
	limitGuard = eff.MintLimit

	// thirdPartySigner ガードに co-signer が配線されていなければ、
	// 送信してもオンチェーンで必ず失敗する。ここで止める。
	if eff.ThirdPartySigner != nil && e.thirdParty == nil {
		return nil, mintfail.ErrCoSignerMissing
	}

	// --- BuildingPlan ----------------------------------------------
	e.setStatus(StatusBuildingPlan)

	bc := BuildContext{
		Campaign: *cm,
		Label:    label,
		Guards:   eff,
		Wallet:   wallet,
		FeePayer: e.feePayerAddr,
	}
	if eff.AllowList != nil {
		proof := e.index.Proof(label, wallet)
		if len(proof) == 0 && !e.index.Verifier(wallet)(eff.AllowList.Root, label) {
			return nil, mintfail.ErrNotInAllowList
		}
		bc.Proof = proof
	}

	// 1 プラン 1 blockhash。全トランザクションで共有する。
	blockhash, berr := e.ledger.LatestBlockhash(ctx)
	if berr != nil {
		return nil, fmt.Errorf("minting: latest blockhash: %w", berr)
	}
	bc.Blockhash = blockhash

	plan := &Plan{Blockhash: blockhash}
	if eff.AllowList != nil {
		route, rerr := e.builder.BuildRouteTx(ctx, bc)
		if rerr != nil {
			return nil, fmt.Errorf("minting: build route tx: %w", rerr)
		}
		route.Kind = TxRoute
		route.Index = -1
		plan.Route = route
	}

	// --- BuildingMintTxs -------------------------------------------
	e.setStatus(StatusBuildingMintTxs)

	for i := 0; i < req.Quantity; i++ {
		tx, merr := e.builder.BuildMintTx(ctx, MintBuild{
			BuildContext: bc,
			Index:        i,
			NFT:          req.NFTFor(i),
		})
		if merr != nil {
			return nil, fmt.Errorf("minting: build mint tx %d: %w", i, merr)
		}
		tx.Kind = TxMint
		tx.Index = i
		plan.Mints = append(plan.Mints, tx)
	}

	// --- SigningRoute / SigningMint --------------------------------
	// Keypair and delegated signers apply immediately per tx; batch
	// signers are invoked exactly once with the full plan.
	e.setStatus(StatusSigningRoute)
	if plan.Route != nil {
		if serr := e.signTx(plan.Route, eff); serr != nil {
			return nil, serr
		}
	}
	e.setStatus(StatusSigningMint)
	for _, tx := range plan.Mints {
		if serr := e.signTx(tx, eff); serr != nil {
			return nil, serr
		}
	}
	if serr := e.signBatch(ctx, plan); serr != nil {
		return nil, serr
	}

	// --- SubmittingRoute -------------------------------------------
	// Hard ordering barrier: an unconfirmed or rejected route tx
	// invalidates the allow-list consumption for every mint tx, so
	// nothing below starts until this resolves.
	if plan.Route != nil {
		e.setStatus(StatusSubmittingRoute)
		sig, serr := e.ledger.SendAndConfirm(ctx, plan.Route, CommitmentProcessed)
		if serr != nil {
			return nil, serr
		}
		plan.Route.Signature = sig
		log.Printf("[minting] route confirmed sig=%s", maskShort(sig))
	}

	// --- SubmittingMint --------------------------------------------
	// Concurrent fan-out at finalized commitment. Policy: the call
	// fails on the first rejected submission, but siblings run to
	// completion (join-all, not cancel-on-error).
	e.setStatus(StatusSubmittingMint)

	g := new(errgroup.Group)
	g.SetLimit(e.maxFanOut)
	for _, tx := range plan.Mints {
		tx := tx
		g.Go(func() error {
			sig, serr := e.ledger.SendAndConfirm(ctx, tx, CommitmentFinalized)
			if serr != nil {
				return serr
			}
			tx.Signature = sig
			return nil
		})
	}
	if werr := g.Wait(); werr != nil {
		return nil, werr
	}

	// --- Reconciling -----------------------------------------------
	// Lookups tolerate per-item failure: a failed slot is dropped
	// from the result, it never invalidates its siblings.
	e.setStatus(StatusReconciling)

	slots := make([]*campaign.Item, len(plan.Mints))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxFanOut)
	for i, tx := range plan.Mints {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, tx *PlannedTx) {
			defer wg.Done()
			defer func() { <-sem }()
			item, lerr := e.ledger.FindMintedItem(ctx, tx.ItemMint, tx.ItemTokenAccount)
			if lerr != nil {
				log.Printf("[minting] WARN: item lookup failed, slot %d dropped: %v", i, lerr)
				return
			}
			item.Signature = tx.Signature
			slots[i] = &item
		}(i, tx)
	}
	wg.Wait()

	for _, it := range slots {
		if it != nil {
			resolved = append(resolved, *it)
		}
	}

	e.mu.Lock()
	e.items = append(e.items, resolved...)
	e.mu.Unlock()

	log.Printf("[minting] minted %d/%d item(s) group=%q wallet=%s",
		len(resolved), req.Quantity, label, maskShort(wallet))
	return resolved, nil
}

// ------------------------------------------------------
// Signing helpers
// ------------------------------------------------------

// signTx applies every non-interactive signer to one transaction:
// the shared fee payer, builder-attached signers (e.g. the ephemeral
// mint-account keypair), and the delegated third-party co-signer when
// that guard is configured.
func (e *Engine) signTx(tx *PlannedTx, eff guarddom.Set) error {
	if e.feePayer != nil {
		if err := e.feePayer.SignTx(tx); err != nil {
			return fmt.Errorf("minting: fee payer signing: %w", err)
		}
	}
	for _, s := range tx.Signers {
		switch s.Kind() {
		case SignerKeypair, SignerDelegated:
			ts, ok := s.(TxSigner)
			if !ok {
				return fmt.Errorf("minting: %s signer does not sign per tx", s.Kind())
			}
			if err := ts.SignTx(tx); err != nil {
				return fmt.Errorf("minting: %s signing: %w", s.Kind(), err)
			}
		case SignerBatch:
			// handled once per plan in signBatch
		}
	}
	if tx.Kind == TxMint && eff.ThirdPartySigner != nil && e.thirdParty != nil {
		if err := e.thirdParty.SignTx(tx); err != nil {
			return fmt.Errorf("minting: third-party signing: %w", err)
		}
	}
	return nil
}

// signBatch invokes every distinct batch signer exactly once with the
// full transaction set. Irrelevant signature slots are tolerated by
// the ledger's verification model, so no per-tx filtering happens.
func (e *Engine) signBatch(ctx context.Context, plan *Plan) error {
	all := plan.All()

	seen := map[BatchSigner]struct{}{}
	if e.walletSigner != nil {
		seen[e.walletSigner] = struct{}{}
	}
	for _, tx := range all {
		for _, s := range tx.Signers {
			if b, ok := s.(BatchSigner); ok && s.Kind() == SignerBatch {
				seen[b] = struct{}{}
			}
		}
	}
	for b := range seen {
		if err := b.SignAll(ctx, all); err != nil {
			return fmt.Errorf("minting: batch signing: %w", err)
		}
	}
	return nil
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// maskShort shortens addresses/signatures for logs.
func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
