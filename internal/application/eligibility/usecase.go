// internal/application/eligibility/usecase.go
package eligibility

import (
	guarddom "mintgate/internal/domain/guard"
)

// ============================================================
// Guard Evaluator
// ============================================================
//
// マージ済みガード＋呼び出しコンテキストから、グループごとの
// eligibility 状態と価格内訳を導出する。評価は純粋で、入力が
// 変わるたびに全量を再計算する（差分更新はしない）。

// Currency discriminates price line denominations.
type Currency string

const (
	CurrencySOL   Currency = "SOL"
	CurrencyToken Currency = "SPL"
)

// PriceLine is one payment requirement contributed by a guard.
type PriceLine struct {
	Amount      uint64
	Currency    Currency
	Mint        string // SPL mint for CurrencyToken, empty for SOL
	Destination string
}

// Price is the aggregate payment requirement for a group.
//
// Lines are listed per contributing guard and are NOT summed per
// currency/destination pair; a group charging twice to the same
// destination shows two lines.
type Price struct {
	Lines     []PriceLine
	CanAfford bool
}

// GroupState holds the per-guard eligibility flags for one group and
// the current caller. Ephemeral, never persisted.
type GroupState struct {
	Label string

	IsAllowed        bool // allowList
	HasReachedLimit  bool // mintLimit
	IsStarted        bool // startDate
	IsEnded          bool // endDate
	IsSoldOut        bool // redeemedAmount
	HasEnoughSol     bool // solPayment
	HasEnoughTokens  bool // tokenPayment
	HoldsPaymentNFT  bool // nftPayment
	HoldsBurnNFT     bool // nftBurn
	HoldsGateNFT     bool // nftGate
	Eligible         bool // aggregate of the above
}

// Evaluator computes group states against a local limit ledger.
type Evaluator struct {
	limits *guarddom.LimitLedger
}

// NewEvaluator wires the evaluator to the shared mint-limit ledger.
func NewEvaluator(limits *guarddom.LimitLedger) *Evaluator {
	return &Evaluator{limits: limits}
}

// EvaluateGroup derives the state and price of one group from its
// effective (merged) guard set. An absent guard kind imposes no
// restriction and contributes zero cost.
func (e *Evaluator) EvaluateGroup(
	label string,
	effective guarddom.Set,
	redeemed uint64,
	cc CallerContext,
) (GroupState, Price) {
	st := GroupState{
		Label: label,

		// absent kind = always-eligible
		IsAllowed:       true,
		IsStarted:       true,
		HasEnoughSol:    true,
		HasEnoughTokens: true,
		HoldsPaymentNFT: true,
		HoldsBurnNFT:    true,
		HoldsGateNFT:    true,
	}
	price := Price{CanAfford: true}

	if g := effective.AllowList; g != nil {
		st.IsAllowed = cc.Verify != nil && cc.Verify(g.Root, label)
	}

	if g := effective.MintLimit; g != nil {
		st.HasReachedLimit = e.limits.Count(g.ID) >= g.Limit
	}

	if g := effective.StartDate; g != nil {
		st.IsStarted = !cc.Now.Before(g.Date)
	}
	if g := effective.EndDate; g != nil {
		st.IsEnded = !cc.Now.Before(g.Date)
	}

	if g := effective.RedeemedAmount; g != nil {
		st.IsSoldOut = redeemed >= g.Maximum
	}

	if g := effective.SolPayment; g != nil {
		price.Lines = append(price.Lines, PriceLine{
			Amount:      g.Lamports,
			Currency:    CurrencySOL,
			Destination: g.Destination,
		})
		st.HasEnoughSol = cc.SolBalance >= g.Lamports
	}

	if g := effective.TokenPayment; g != nil {
		price.Lines = append(price.Lines, PriceLine{
			Amount:      g.Amount,
			Currency:    CurrencyToken,
			Mint:        g.Mint,
			Destination: g.Destination,
		})
		st.HasEnoughTokens = cc.TokenAmount(g.Mint) >= g.Amount
	}

	// NFT 系ガードは金額には乗らない（ミント時に現物の NFT で精算する）
	if g := effective.NFTPayment; g != nil {
		st.HoldsPaymentNFT = cc.HoldsCollection(g.RequiredCollection)
	}
	if g := effective.NFTBurn; g != nil {
		st.HoldsBurnNFT = cc.HoldsCollection(g.RequiredCollection)
	}
	if g := effective.NFTGate; g != nil {
		st.HoldsGateNFT = cc.HoldsCollection(g.RequiredCollection)
	}

	price.CanAfford = st.HasEnoughSol && st.HasEnoughTokens

	st.Eligible = st.IsAllowed &&
		!st.HasReachedLimit &&
		st.IsStarted &&
		!st.IsEnded &&
		!st.IsSoldOut &&
		st.HasEnoughSol &&
		st.HasEnoughTokens &&
		st.HoldsPaymentNFT &&
		st.HoldsBurnNFT &&
		st.HoldsGateNFT

	return st, price
}
