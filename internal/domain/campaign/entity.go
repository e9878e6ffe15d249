// internal/domain/campaign/entity.go
package campaign

import (
	"errors"
	"strings"
	"time"

	guarddom "mintgate/internal/domain/guard"
)

// ------------------------------------------------------
// Entity: CandyMachine (ミントキャンペーンのスナップショット)
// ------------------------------------------------------
//
// リフレッシュごとに作り直す immutable なスナップショット。
// ミント呼び出し 1 回の間はオーケストレータが所有する。

type CandyMachine struct {
	Address   string // candy machine account (base58)
	Authority string // update authority (base58)

	ItemsAvailable uint64
	ItemsRedeemed  uint64

	// Guards is the default (unlabeled) rule set.
	Guards guarddom.Set

	// Groups holds the labeled override groups in campaign order.
	Groups []guarddom.Group

	LoadedAt time.Time
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrInvalidAddress   = errors.New("campaign: invalid address")
	ErrInvalidAuthority = errors.New("campaign: invalid authority")
	ErrInvalidCounts    = errors.New("campaign: redeemed exceeds available")
	ErrDuplicateGroup   = errors.New("campaign: duplicate group label")
	ErrUnknownGroup     = errors.New("campaign: unknown group label")
	ErrNotFound         = errors.New("campaign: not found")
)

// ------------------------------------------------------
// Constructors
// ------------------------------------------------------

// New validates and builds a campaign snapshot.
func New(
	address string,
	authority string,
	itemsAvailable uint64,
	itemsRedeemed uint64,
	guards guarddom.Set,
	groups []guarddom.Group,
) (CandyMachine, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return CandyMachine{}, ErrInvalidAddress
	}
	auth := strings.TrimSpace(authority)
	if auth == "" {
		return CandyMachine{}, ErrInvalidAuthority
	}
	if itemsRedeemed > itemsAvailable {
		return CandyMachine{}, ErrInvalidCounts
	}
	if err := guards.Validate(); err != nil {
		return CandyMachine{}, err
	}

	seen := make(map[string]struct{}, len(groups))
	normalized := make([]guarddom.Group, 0, len(groups))
	for _, g := range groups {
		label := guarddom.NormalizeLabel(g.Label)
		if label == guarddom.DefaultLabel {
			// デフォルトは Guards フィールド側で表現するので group には置かない
			return CandyMachine{}, guarddom.ErrInvalidLabel
		}
		if _, dup := seen[label]; dup {
			return CandyMachine{}, ErrDuplicateGroup
		}
		if err := g.Guards.Validate(); err != nil {
			return CandyMachine{}, err
		}
		seen[label] = struct{}{}
		normalized = append(normalized, guarddom.Group{Label: label, Guards: g.Guards})
	}

	return CandyMachine{
		Address:        addr,
		Authority:      auth,
		ItemsAvailable: itemsAvailable,
		ItemsRedeemed:  itemsRedeemed,
		Guards:         guards,
		Groups:         normalized,
		LoadedAt:       time.Now().UTC(),
	}, nil
}

// ------------------------------------------------------
// Accessors
// ------------------------------------------------------

// ItemsRemaining returns the unminted count.
func (cm CandyMachine) ItemsRemaining() uint64 {
	if cm.ItemsRedeemed > cm.ItemsAvailable {
		return 0
	}
	return cm.ItemsAvailable - cm.ItemsRedeemed
}

// Group returns the labeled group, or the default pseudo-group for
// DefaultLabel / "default".
func (cm CandyMachine) Group(label string) (guarddom.Group, error) {
	l := guarddom.NormalizeLabel(label)
	if l == guarddom.DefaultLabel {
		return guarddom.Group{Label: guarddom.DefaultLabel, Guards: cm.Guards}, nil
	}
	for _, g := range cm.Groups {
		if g.Label == l {
			return g, nil
		}
	}
	return guarddom.Group{}, ErrUnknownGroup
}

// EffectiveGuards merges the default rule set with a group's overrides.
func (cm CandyMachine) EffectiveGuards(label string) (guarddom.Set, error) {
	g, err := cm.Group(label)
	if err != nil {
		return guarddom.Set{}, err
	}
	if g.Label == guarddom.DefaultLabel {
		return cm.Guards, nil
	}
	return guarddom.Merge(cm.Guards, g.Guards), nil
}

// Labels returns the default label followed by every group label.
func (cm CandyMachine) Labels() []string {
	out := make([]string, 0, len(cm.Groups)+1)
	out = append(out, guarddom.DefaultLabel)
	for _, g := range cm.Groups {
		out = append(out, g.Label)
	}
	return out
}

// ------------------------------------------------------
// Minted item record
// ------------------------------------------------------

// Item is a minted asset resolved after submission. The metadata
// schema itself is out of scope; identifiers only.
type Item struct {
	Mint         string // mint address (base58)
	TokenAccount string // owner ATA (base58)
	Signature    string // submitting tx signature
}
