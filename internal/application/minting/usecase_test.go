// internal/application/minting/usecase_test.go
package minting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/application/eligibility"
	"mintgate/internal/domain/allowlist"
	"mintgate/internal/domain/campaign"
	guarddom "mintgate/internal/domain/guard"
	"mintgate/internal/domain/mintfail"
)

// ------------------------------------------------------
// Fakes
// ------------------------------------------------------

type fakeCampaignRepo struct {
	mu    sync.Mutex
	cm    campaign.CandyMachine
	err   error
	calls int
}

func (r *fakeCampaignRepo) FindByAddress(ctx context.Context, address string) (campaign.CandyMachine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return campaign.CandyMachine{}, r.err
	}
	return r.cm, nil
}

func (r *fakeCampaignRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeAllowRepo struct {
	lists []allowlist.AllowList
}

func (r *fakeAllowRepo) ListByCampaign(ctx context.Context, campaignAddress string) ([]allowlist.AllowList, error) {
	return r.lists, nil
}

type sendRec struct {
	kind       TxKind
	index      int
	commitment Commitment
}

type fakeLedger struct {
	mu             sync.Mutex
	blockhashCalls int
	sends          []sendRec

	failRoute     error
	failMintIndex int // -1 = none
	failMintErr   error
	failLookup    map[int]bool // mint index -> lookup fails

	// holdSends blocks every SendAndConfirm until closed;
	// sendStarted signals (once) that a send has begun.
	holdSends   chan struct{}
	sendStarted chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{failMintIndex: -1}
}

func (l *fakeLedger) LatestBlockhash(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockhashCalls++
	return "BlockhashAAAA", nil
}

func (l *fakeLedger) SendAndConfirm(ctx context.Context, tx *PlannedTx, commitment Commitment) (string, error) {
	l.mu.Lock()
	l.sends = append(l.sends, sendRec{kind: tx.Kind, index: tx.Index, commitment: commitment})
	l.mu.Unlock()

	if l.sendStarted != nil {
		select {
		case l.sendStarted <- struct{}{}:
		default:
		}
	}
	if l.holdSends != nil {
		<-l.holdSends
	}

	if tx.Kind == TxRoute && l.failRoute != nil {
		return "", l.failRoute
	}
	if tx.Kind == TxMint && tx.Index == l.failMintIndex {
		return "", l.failMintErr
	}
	return fmt.Sprintf("sig-%d", tx.Index), nil
}

func (l *fakeLedger) FindMintedItem(ctx context.Context, mintAddress, tokenAccount string) (campaign.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx, fails := range l.failLookup {
		if fails && mintAddress == fmt.Sprintf("mint-%d", idx) {
			return campaign.Item{}, errors.New("account not found")
		}
	}
	return campaign.Item{Mint: mintAddress, TokenAccount: tokenAccount}, nil
}

func (l *fakeLedger) sendRecords() []sendRec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sendRec(nil), l.sends...)
}

func (l *fakeLedger) mintSends() int {
	n := 0
	for _, s := range l.sendRecords() {
		if s.kind == TxMint {
			n++
		}
	}
	return n
}

type fakeBuilder struct{}

func (b *fakeBuilder) BuildRouteTx(ctx context.Context, bc BuildContext) (*PlannedTx, error) {
	return &PlannedTx{Kind: TxRoute, Index: -1, Payload: "route-payload"}, nil
}

func (b *fakeBuilder) BuildMintTx(ctx context.Context, mb MintBuild) (*PlannedTx, error) {
	return &PlannedTx{
		Kind:             TxMint,
		Index:            mb.Index,
		ItemMint:         fmt.Sprintf("mint-%d", mb.Index),
		ItemTokenAccount: fmt.Sprintf("ata-%d", mb.Index),
		Payload:          "mint-payload",
	}, nil
}

type fakeBatchSigner struct {
	mu       sync.Mutex
	calls    int
	txCounts []int
}

func (s *fakeBatchSigner) Kind() SignerKind { return SignerBatch }

func (s *fakeBatchSigner) SignAll(ctx context.Context, txs []*PlannedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.txCounts = append(s.txCounts, len(txs))
	return nil
}

type fakeTxSigner struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeTxSigner) Kind() SignerKind { return SignerKeypair }

func (s *fakeTxSigner) SignTx(tx *PlannedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

// ------------------------------------------------------
// Helpers
// ------------------------------------------------------

const (
	testAddress = "CampaignAddr11111111111111111111"
	testWallet  = "Member1"
)

func openCampaign(t *testing.T) campaign.CandyMachine {
	t.Helper()
	cm, err := campaign.New(testAddress, "Authority", 100, 10, guarddom.Set{}, nil)
	require.NoError(t, err)
	return cm
}

func gatedCampaign(t *testing.T, members []string) (campaign.CandyMachine, allowlist.AllowList) {
	t.Helper()
	list, err := allowlist.New("vip", "v1", members)
	require.NoError(t, err)
	tree := allowlist.BuildTree(list.Addresses)

	groups := []guarddom.Group{{
		Label:  "vip",
		Guards: guarddom.Set{AllowList: &guarddom.AllowList{Root: tree.Root()}},
	}}
	cm, err := campaign.New(testAddress, "Authority", 100, 10, guarddom.Set{}, groups)
	require.NoError(t, err)
	return cm, list
}

func newTestEngine(t *testing.T, repo *fakeCampaignRepo, allow *fakeAllowRepo, ledger *fakeLedger, extra func(*Deps)) *Engine {
	t.Helper()
	d := Deps{
		CampaignAddress: testAddress,
		Wallet:          testWallet,
		Campaigns:       repo,
		Ledger:          ledger,
		Builder:         &fakeBuilder{},
	}
	if allow != nil {
		d.AllowLists = allow
	}
	if extra != nil {
		extra(&d)
	}
	e, err := NewEngine(d)
	require.NoError(t, err)
	require.NoError(t, e.Refresh(context.Background()))
	return e
}

// ------------------------------------------------------
// Tests
// ------------------------------------------------------

func TestMint_OpenCampaignNoRoute(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	batch := &fakeBatchSigner{}
	fee := &fakeTxSigner{}
	e := newTestEngine(t, repo, nil, ledger, func(d *Deps) {
		d.WalletSigner = batch
		d.FeePayer = fee
		d.FeePayerAddress = "FeePayerAddr"
	})

	items, err := e.Mint(context.Background(), Request{Quantity: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, StatusDone, e.Status())

	// allowList が無いので route は送信されない
	for _, s := range ledger.sendRecords() {
		assert.Equal(t, TxMint, s.kind)
		assert.Equal(t, CommitmentFinalized, s.commitment)
	}
	assert.Equal(t, 3, ledger.mintSends())

	// blockhash はプランごとに 1 回だけ
	assert.Equal(t, 1, ledger.blockhashCalls)

	// バッチ署名者はプラン全体で 1 回だけ、全 3 トランザクションを受け取る
	assert.Equal(t, 1, batch.calls)
	assert.Equal(t, []int{3}, batch.txCounts)

	// フィーペイヤーは各トランザクションに 1 回ずつ
	assert.Equal(t, 3, fee.calls)

	// 各アイテムに署名が載っていること
	for i, it := range items {
		assert.Equal(t, fmt.Sprintf("mint-%d", i), it.Mint)
		assert.Equal(t, fmt.Sprintf("sig-%d", i), it.Signature)
	}
}

func TestMint_RouteSubmittedBeforeMints(t *testing.T) {
	cm, list := gatedCampaign(t, []string{testWallet, "Member2", "Member3"})
	repo := &fakeCampaignRepo{cm: cm}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, &fakeAllowRepo{lists: []allowlist.AllowList{list}}, ledger, nil)

	items, err := e.Mint(context.Background(), Request{Quantity: 2, GroupLabel: "vip"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	recs := ledger.sendRecords()
	require.NotEmpty(t, recs)

	// 先頭は processed コミットメントの route、その後に finalized のミント
	assert.Equal(t, TxRoute, recs[0].kind)
	assert.Equal(t, CommitmentProcessed, recs[0].commitment)
	for _, s := range recs[1:] {
		assert.Equal(t, TxMint, s.kind)
		assert.Equal(t, CommitmentFinalized, s.commitment)
	}
	assert.Equal(t, 2, ledger.mintSends())
}

func TestMint_NotInAllowList(t *testing.T) {
	cm, list := gatedCampaign(t, []string{"Member2", "Member3"})
	repo := &fakeCampaignRepo{cm: cm}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, &fakeAllowRepo{lists: []allowlist.AllowList{list}}, ledger, nil)

	items, err := e.Mint(context.Background(), Request{Quantity: 1, GroupLabel: "vip"})
	assert.ErrorIs(t, err, mintfail.ErrNotInAllowList)
	assert.Empty(t, items)
	assert.Equal(t, StatusFailed, e.Status())

	// 送信は一切走らない
	assert.Empty(t, ledger.sendRecords())
	assert.Equal(t, 0, ledger.blockhashCalls)
}

func TestMint_RouteFailureStopsMints(t *testing.T) {
	cm, list := gatedCampaign(t, []string{testWallet, "Member2"})
	repo := &fakeCampaignRepo{cm: cm}
	ledger := newFakeLedger()
	ledger.failRoute = errors.New("custom program error: 0x137")
	e := newTestEngine(t, repo, &fakeAllowRepo{lists: []allowlist.AllowList{list}}, ledger, nil)

	items, err := e.Mint(context.Background(), Request{Quantity: 3, GroupLabel: "vip"})
	require.Error(t, err)
	assert.Empty(t, items)

	// route 失敗はミントを 1 件も流さない
	assert.Equal(t, 0, ledger.mintSends())

	// 送信エラーは分類されて返る
	var classified *mintfail.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, mintfail.ReasonSoldOut, classified.Reason)
}

func TestMint_SubmissionFailureIsClassified(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	ledger.failMintIndex = 1
	ledger.failMintErr = errors.New("Insufficient lamports for fee")
	e := newTestEngine(t, repo, nil, ledger, nil)

	items, err := e.Mint(context.Background(), Request{Quantity: 3})
	require.Error(t, err)
	assert.Empty(t, items)

	var classified *mintfail.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, mintfail.ReasonInsufficientFunds, classified.Reason)

	// join-all: 失敗しても兄弟は最後まで送信される
	assert.Equal(t, 3, ledger.mintSends())
}

func TestMint_LookupFailureDropsSlotOnly(t *testing.T) {
	cm, err := campaign.New(testAddress, "Authority", 100, 10,
		guarddom.Set{MintLimit: &guarddom.MintLimit{ID: 5, Limit: 10}}, nil)
	require.NoError(t, err)

	repo := &fakeCampaignRepo{cm: cm}
	ledger := newFakeLedger()
	ledger.failLookup = map[int]bool{1: true}
	e := newTestEngine(t, repo, nil, ledger, nil)

	items, merr := e.Mint(context.Background(), Request{Quantity: 3})
	require.NoError(t, merr)

	// 3 件送信、解決できたのは 2 件
	assert.Equal(t, 3, ledger.mintSends())
	require.Len(t, items, 2)
	assert.Equal(t, "mint-0", items[0].Mint)
	assert.Equal(t, "mint-2", items[1].Mint)

	// カウンタは解決済み件数でのみ進む
	snap := e.Snapshot()
	assert.Equal(t, uint64(2), snap.Counters[5])
}

func TestMint_InvalidQuantity(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, nil, ledger, nil)

	_, err := e.Mint(context.Background(), Request{Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// 検証失敗でもカウンタは進まない
	assert.Empty(t, e.Snapshot().Counters)
}

func TestMint_UnknownGroup(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, nil, ledger, nil)

	_, err := e.Mint(context.Background(), Request{Quantity: 1, GroupLabel: "nope"})
	assert.ErrorIs(t, err, mintfail.ErrUnknownGroup)
}

func TestMint_EmptyWallet(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, nil, ledger, nil)
	e.SetWallet("")

	_, err := e.Mint(context.Background(), Request{Quantity: 1})
	assert.ErrorIs(t, err, ErrEmptyWallet)
}

func TestMint_RefreshAlwaysRunsAfterMint(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, nil, ledger, nil)
	before := repo.callCount()

	_, err := e.Mint(context.Background(), Request{Quantity: 1})
	require.NoError(t, err)
	assert.Greater(t, repo.callCount(), before, "cleanup refresh reloads the campaign")

	// 失敗パスでも同様
	before = repo.callCount()
	_, err = e.Mint(context.Background(), Request{Quantity: -1})
	require.Error(t, err)
	assert.Greater(t, repo.callCount(), before)
}

func TestMint_CampaignNotLoaded(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	d := Deps{
		CampaignAddress: testAddress,
		Wallet:          testWallet,
		Campaigns:       repo,
		Ledger:          ledger,
		Builder:         &fakeBuilder{},
	}
	e, err := NewEngine(d)
	require.NoError(t, err)

	// Refresh せずに Mint
	_, err = e.Mint(context.Background(), Request{Quantity: 1})
	assert.ErrorIs(t, err, mintfail.ErrCandyMachineNotFound)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Deps{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewEngine(Deps{CampaignAddress: testAddress})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRefresh_EvaluatesEveryGroup(t *testing.T) {
	cm, list := gatedCampaign(t, []string{testWallet})
	repo := &fakeCampaignRepo{cm: cm}
	e := newTestEngine(t, repo, &fakeAllowRepo{lists: []allowlist.AllowList{list}}, newFakeLedger(), nil)

	snap := e.Snapshot()
	require.NotNil(t, snap.Campaign)
	assert.Contains(t, snap.States, guarddom.DefaultLabel)
	assert.Contains(t, snap.States, "vip")
	assert.True(t, snap.States["vip"].IsAllowed)
}

func TestSnapshot_IsACopy(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	e := newTestEngine(t, repo, nil, newFakeLedger(), nil)

	snap := e.Snapshot()
	snap.States["injected"] = eligibility.GroupState{}

	assert.NotContains(t, e.Snapshot().States, "injected")
}

func TestMint_DefaultGroupAllowList(t *testing.T) {
	// リスト定義は空ラベルを表現できないため "default" で保存される。
	// 基底グループ（正規化後 ""）の allowList でもメンバーは通ること。
	list, err := allowlist.New("default", "v1", []string{testWallet, "Member2", "Member3"})
	require.NoError(t, err)
	tree := allowlist.BuildTree(list.Addresses)

	cm, err := campaign.New(testAddress, "Authority", 100, 10,
		guarddom.Set{AllowList: &guarddom.AllowList{Root: tree.Root()}}, nil)
	require.NoError(t, err)

	repo := &fakeCampaignRepo{cm: cm}
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, &fakeAllowRepo{lists: []allowlist.AllowList{list}}, ledger, nil)

	items, merr := e.Mint(context.Background(), Request{Quantity: 1, GroupLabel: "default"})
	require.NoError(t, merr)
	require.Len(t, items, 1)

	// 証明は route トランザクションで消費される
	recs := ledger.sendRecords()
	require.NotEmpty(t, recs)
	assert.Equal(t, TxRoute, recs[0].kind)

	// 非メンバーは引き続き弾かれる
	e.SetWallet("Outsider")
	_, merr = e.Mint(context.Background(), Request{Quantity: 1})
	assert.ErrorIs(t, merr, mintfail.ErrNotInAllowList)
}

func TestMint_SecondCallFailsFastWhileInFlight(t *testing.T) {
	repo := &fakeCampaignRepo{cm: openCampaign(t)}
	ledger := newFakeLedger()
	ledger.holdSends = make(chan struct{})
	ledger.sendStarted = make(chan struct{}, 1)
	e := newTestEngine(t, repo, nil, ledger, nil)

	done := make(chan error, 1)
	go func() {
		_, merr := e.Mint(context.Background(), Request{Quantity: 1})
		done <- merr
	}()

	// 1 本目が送信に入ってから 2 本目を撃つ
	<-ledger.sendStarted
	_, err := e.Mint(context.Background(), Request{Quantity: 1})
	assert.ErrorIs(t, err, mintfail.ErrMintInProgress)

	close(ledger.holdSends)
	require.NoError(t, <-done)

	// 解放後は再びミントできる
	_, err = e.Mint(context.Background(), Request{Quantity: 1})
	require.NoError(t, err)
}

func TestMint_ThirdPartySignerGuard(t *testing.T) {
	cm, err := campaign.New(testAddress, "Authority", 100, 10,
		guarddom.Set{ThirdPartySigner: &guarddom.ThirdPartySigner{SignerKey: "CoSigner1"}}, nil)
	require.NoError(t, err)
	repo := &fakeCampaignRepo{cm: cm}

	// co-signer 未配線: 送信前に検証で止まる
	ledger := newFakeLedger()
	e := newTestEngine(t, repo, nil, ledger, nil)
	_, merr := e.Mint(context.Background(), Request{Quantity: 1})
	assert.ErrorIs(t, merr, mintfail.ErrCoSignerMissing)
	assert.Empty(t, ledger.sendRecords())
	assert.Equal(t, 0, ledger.blockhashCalls)

	// co-signer 配線済み: 各ミントトランザクションに 1 回ずつ署名
	co := &fakeTxSigner{}
	ledger2 := newFakeLedger()
	e2 := newTestEngine(t, repo, nil, ledger2, func(d *Deps) { d.ThirdParty = co })
	items, merr2 := e2.Mint(context.Background(), Request{Quantity: 2})
	require.NoError(t, merr2)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, co.calls)
}
