// internal/domain/allowlist/entity.go
package allowlist

import (
	"context"
	"errors"
	"strings"
)

// ------------------------------------------------------
// Entity: AllowList (groupLabel × 住所リスト)
// ------------------------------------------------------
//
// グループごとに 1 つのアドレス集合を持つ。Version はリスト定義の
// 世代識別子で、ツリー／証明キャッシュの無効化キーに使う。

type AllowList struct {
	Label     string
	Version   string
	Addresses []string
}

var (
	ErrInvalidLabel   = errors.New("allowlist: invalid label")
	ErrEmptyAddresses = errors.New("allowlist: empty address list")
	ErrNotFound       = errors.New("allowlist: not found")
)

// New normalizes and validates an allow-list definition.
// Addresses are trimmed and de-duplicated; order of first occurrence
// is preserved so the tree stays deterministic.
func New(label, version string, addresses []string) (AllowList, error) {
	l := strings.TrimSpace(label)
	if l == "" {
		return AllowList{}, ErrInvalidLabel
	}

	seen := make(map[string]struct{}, len(addresses))
	addrs := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		addrs = append(addrs, a)
	}
	if len(addrs) == 0 {
		return AllowList{}, ErrEmptyAddresses
	}

	return AllowList{
		Label:     l,
		Version:   strings.TrimSpace(version),
		Addresses: addrs,
	}, nil
}

// Contains reports raw membership (without proof machinery).
func (a AllowList) Contains(address string) bool {
	addr := strings.TrimSpace(address)
	for _, x := range a.Addresses {
		if x == addr {
			return true
		}
	}
	return false
}

// RepositoryPort loads allow-list definitions per campaign.
type RepositoryPort interface {
	// ListByCampaign returns every allow-list configured for a candy
	// machine address, one entry per group label.
	ListByCampaign(ctx context.Context, campaignAddress string) ([]AllowList, error)
}
