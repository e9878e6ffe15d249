// internal/domain/guard/entity.go
package guard

import (
	"errors"
	"strings"
	"time"
)

// ------------------------------------------------------
// Entity: Guard / Set / Group
// ------------------------------------------------------
//
// Candy Guard のガード定義をクローズドな型集合で表現する。
// 1 つの Set の中で同じ kind のガードは高々 1 件（absent or present）。
// 動的な shape 判定は行わず、kind ごとに型付き payload を持たせる。

// Kind identifies one guard dimension of a mint campaign.
type Kind string

const (
	KindAllowList        Kind = "allowList"
	KindMintLimit        Kind = "mintLimit"
	KindNFTPayment       Kind = "nftPayment"
	KindNFTBurn          Kind = "nftBurn"
	KindNFTGate          Kind = "nftGate"
	KindTokenPayment     Kind = "tokenPayment"
	KindSolPayment       Kind = "solPayment"
	KindStartDate        Kind = "startDate"
	KindEndDate          Kind = "endDate"
	KindRedeemedAmount   Kind = "redeemedAmount"
	KindThirdPartySigner Kind = "thirdPartySigner"
)

// Kinds lists every supported guard kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindAllowList,
		KindMintLimit,
		KindNFTPayment,
		KindNFTBurn,
		KindNFTGate,
		KindTokenPayment,
		KindSolPayment,
		KindStartDate,
		KindEndDate,
		KindRedeemedAmount,
		KindThirdPartySigner,
	}
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrInvalidLabel       = errors.New("guard: invalid group label")
	ErrInvalidLimit       = errors.New("guard: mintLimit must be positive")
	ErrInvalidAmount      = errors.New("guard: payment amount must be positive")
	ErrInvalidDestination = errors.New("guard: payment destination is empty")
	ErrInvalidCollection  = errors.New("guard: required collection is empty")
	ErrInvalidSignerKey   = errors.New("guard: third-party signer key is empty")
)

// ------------------------------------------------------
// Guard payloads（kind ごとの設定値）
// ------------------------------------------------------

// AllowList restricts minting to addresses provable against Root.
type AllowList struct {
	Root [32]byte
}

// MintLimit caps mints per caller under a shared limit id.
type MintLimit struct {
	ID    uint8
	Limit uint64
}

// NFTPayment settles the mint by transferring one NFT of the
// required collection to Destination.
type NFTPayment struct {
	RequiredCollection string
	Destination        string
}

// NFTBurn settles the mint by burning one NFT of the required collection.
type NFTBurn struct {
	RequiredCollection string
}

// NFTGate requires holding (not spending) an NFT of the collection.
type NFTGate struct {
	RequiredCollection string
}

// TokenPayment charges Amount of the SPL token Mint to Destination.
type TokenPayment struct {
	Amount      uint64
	Mint        string
	Destination string
}

// SolPayment charges Lamports to Destination.
type SolPayment struct {
	Lamports    uint64
	Destination string
}

// StartDate opens the mint window at Date (inclusive).
type StartDate struct {
	Date time.Time
}

// EndDate closes the mint window at Date (exclusive).
type EndDate struct {
	Date time.Time
}

// RedeemedAmount stops minting once the campaign-wide redeemed
// count reaches Maximum.
type RedeemedAmount struct {
	Maximum uint64
}

// ThirdPartySigner requires an additional co-signature on every mint tx.
type ThirdPartySigner struct {
	SignerKey string
}

// ------------------------------------------------------
// Set
// ------------------------------------------------------

// Set maps each guard kind to at most one configured guard.
// nil フィールド = そのディメンションは無制限（ガードなし）。
type Set struct {
	AllowList        *AllowList
	MintLimit        *MintLimit
	NFTPayment       *NFTPayment
	NFTBurn          *NFTBurn
	NFTGate          *NFTGate
	TokenPayment     *TokenPayment
	SolPayment       *SolPayment
	StartDate        *StartDate
	EndDate          *EndDate
	RedeemedAmount   *RedeemedAmount
	ThirdPartySigner *ThirdPartySigner
}

// Has reports whether the set configures the given kind.
func (s Set) Has(k Kind) bool {
	switch k {
	case KindAllowList:
		return s.AllowList != nil
	case KindMintLimit:
		return s.MintLimit != nil
	case KindNFTPayment:
		return s.NFTPayment != nil
	case KindNFTBurn:
		return s.NFTBurn != nil
	case KindNFTGate:
		return s.NFTGate != nil
	case KindTokenPayment:
		return s.TokenPayment != nil
	case KindSolPayment:
		return s.SolPayment != nil
	case KindStartDate:
		return s.StartDate != nil
	case KindEndDate:
		return s.EndDate != nil
	case KindRedeemedAmount:
		return s.RedeemedAmount != nil
	case KindThirdPartySigner:
		return s.ThirdPartySigner != nil
	default:
		return false
	}
}

// Validate checks every configured guard's parameters.
func (s Set) Validate() error {
	if s.MintLimit != nil && s.MintLimit.Limit == 0 {
		return ErrInvalidLimit
	}
	if s.TokenPayment != nil {
		if s.TokenPayment.Amount == 0 {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(s.TokenPayment.Destination) == "" {
			return ErrInvalidDestination
		}
	}
	if s.SolPayment != nil {
		if s.SolPayment.Lamports == 0 {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(s.SolPayment.Destination) == "" {
			return ErrInvalidDestination
		}
	}
	if s.NFTPayment != nil {
		if strings.TrimSpace(s.NFTPayment.RequiredCollection) == "" {
			return ErrInvalidCollection
		}
		if strings.TrimSpace(s.NFTPayment.Destination) == "" {
			return ErrInvalidDestination
		}
	}
	if s.NFTBurn != nil && strings.TrimSpace(s.NFTBurn.RequiredCollection) == "" {
		return ErrInvalidCollection
	}
	if s.NFTGate != nil && strings.TrimSpace(s.NFTGate.RequiredCollection) == "" {
		return ErrInvalidCollection
	}
	if s.ThirdPartySigner != nil && strings.TrimSpace(s.ThirdPartySigner.SignerKey) == "" {
		return ErrInvalidSignerKey
	}
	return nil
}

// ------------------------------------------------------
// Group
// ------------------------------------------------------

// DefaultLabel is the label of the unlabeled base group.
// "default" is accepted as an alias on lookup.
const DefaultLabel = ""

// Group is a named bundle of guard overrides selectable at mint time.
type Group struct {
	Label  string
	Guards Set
}

// NormalizeLabel maps user-facing labels onto storage labels.
func NormalizeLabel(label string) string {
	l := strings.TrimSpace(label)
	if strings.EqualFold(l, "default") {
		return DefaultLabel
	}
	return l
}
