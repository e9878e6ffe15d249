// internal/adapters/out/firestore/allowlist_repository_fs.go
package firestore

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	aldom "mintgate/internal/domain/allowlist"
)

// ========================================
// AllowListRepositoryFS
// ========================================
// Firestore 実装。campaigns/{address}/allowlists サブコレクション。
// アドレス一覧はドキュメントに直接持つか、大規模リストの場合は
// sourceUri (gs://...) を指定して外部ソースから取得する。
type AllowListRepositoryFS struct {
	Client *firestore.Client

	// Source resolves sourceUri references. nil の場合、
	// sourceUri 付きドキュメントはエラーになる。
	Source AddressSource
}

// AddressSource fetches one address-per-line lists from an external
// location such as Cloud Storage.
type AddressSource interface {
	Fetch(ctx context.Context, uri string) ([]string, error)
}

var _ aldom.RepositoryPort = (*AllowListRepositoryFS)(nil)

// NewAllowListRepositoryFS creates a new Firestore-backed allow-list repository.
func NewAllowListRepositoryFS(client *firestore.Client, source AddressSource) *AllowListRepositoryFS {
	return &AllowListRepositoryFS{Client: client, Source: source}
}

type allowListEntryDoc struct {
	Label     string   `firestore:"label"`
	Version   string   `firestore:"version"`
	Addresses []string `firestore:"addresses"`
	SourceURI string   `firestore:"sourceUri"`
}

// ========================================
// ListByCampaign
// ========================================
// キャンペーン配下の allow-list を全件取得。
func (r *AllowListRepositoryFS) ListByCampaign(ctx context.Context, campaignAddress string) ([]aldom.AllowList, error) {
	iter := r.Client.Collection("campaigns").
		Doc(strings.TrimSpace(campaignAddress)).
		Collection("allowlists").
		Documents(ctx)
	defer iter.Stop()

	var lists []aldom.AllowList
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var d allowListEntryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, err
		}
		if d.Label == "" {
			d.Label = doc.Ref.ID
		}

		addrs := d.Addresses
		if uri := strings.TrimSpace(d.SourceURI); uri != "" {
			if r.Source == nil {
				return nil, fmt.Errorf("allowlist %q: sourceUri set but no address source configured", d.Label)
			}
			fetched, err := r.Source.Fetch(ctx, uri)
			if err != nil {
				return nil, fmt.Errorf("allowlist %q: fetch %s: %w", d.Label, uri, err)
			}
			addrs = append(addrs, fetched...)
		}

		al, err := aldom.New(d.Label, d.Version, addrs)
		if err != nil {
			return nil, fmt.Errorf("allowlist %q: %w", d.Label, err)
		}
		lists = append(lists, al)
	}

	log.Printf("[allowlist-fs] loaded %d allow-list(s) for campaign=%s", len(lists), campaignAddress)
	return lists, nil
}

// ========================================
// Save
// ========================================
// allow-list を上書き保存する（管理用 CLI から使用）。
// version はドメイン側で採番済みであること。
func (r *AllowListRepositoryFS) Save(ctx context.Context, campaignAddress string, al aldom.AllowList) error {
	d := allowListEntryDoc{
		Label:     al.Label,
		Version:   al.Version,
		Addresses: al.Addresses,
	}
	_, err := r.Client.Collection("campaigns").
		Doc(strings.TrimSpace(campaignAddress)).
		Collection("allowlists").
		Doc(al.Label).
		Set(ctx, d)
	return err
}
