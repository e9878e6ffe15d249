// internal/adapters/out/firestore/campaign_repository_fs.go
package firestore

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	campdom "mintgate/internal/domain/campaign"
	guarddom "mintgate/internal/domain/guard"
)

// ========================================
// CampaignRepositoryFS
// ========================================
// Firestore 実装。コレクション名は "campaigns"。
// ドキュメント ID = candy machine アドレス(base58)。
type CampaignRepositoryFS struct {
	Client *firestore.Client
}

var _ campdom.RepositoryPort = (*CampaignRepositoryFS)(nil)

// NewCampaignRepositoryFS creates a new Firestore-backed campaign repository.
func NewCampaignRepositoryFS(client *firestore.Client) *CampaignRepositoryFS {
	return &CampaignRepositoryFS{Client: client}
}

// ========================================
// Firestore document shapes
// ========================================
// ガードの payload はドキュメント側ではすべて素朴な型で持ち、
// 復元時にドメインの型付き Set に詰め替える。

type campaignDoc struct {
	Address        string     `firestore:"address"`
	Authority      string     `firestore:"authority"`
	ItemsAvailable int64      `firestore:"itemsAvailable"`
	ItemsRedeemed  int64      `firestore:"itemsRedeemed"`
	Guards         guardDoc   `firestore:"guards"`
	Groups         []groupDoc `firestore:"groups"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

type groupDoc struct {
	Label  string   `firestore:"label"`
	Guards guardDoc `firestore:"guards"`
}

type guardDoc struct {
	AllowList        *allowListDoc        `firestore:"allowList"`
	MintLimit        *mintLimitDoc        `firestore:"mintLimit"`
	NFTPayment       *nftPaymentDoc       `firestore:"nftPayment"`
	NFTBurn          *nftCollectionDoc    `firestore:"nftBurn"`
	NFTGate          *nftCollectionDoc    `firestore:"nftGate"`
	TokenPayment     *tokenPaymentDoc     `firestore:"tokenPayment"`
	SolPayment       *solPaymentDoc       `firestore:"solPayment"`
	StartDate        *dateDoc             `firestore:"startDate"`
	EndDate          *dateDoc             `firestore:"endDate"`
	RedeemedAmount   *redeemedAmountDoc   `firestore:"redeemedAmount"`
	ThirdPartySigner *thirdPartySignerDoc `firestore:"thirdPartySigner"`
}

type allowListDoc struct {
	// Merkle ルートの hex 表現 (64 文字)
	Root string `firestore:"root"`
}

type mintLimitDoc struct {
	ID    int64 `firestore:"id"`
	Limit int64 `firestore:"limit"`
}

type nftPaymentDoc struct {
	RequiredCollection string `firestore:"requiredCollection"`
	Destination        string `firestore:"destination"`
}

type nftCollectionDoc struct {
	RequiredCollection string `firestore:"requiredCollection"`
}

type tokenPaymentDoc struct {
	Amount      int64  `firestore:"amount"`
	Mint        string `firestore:"mint"`
	Destination string `firestore:"destination"`
}

type solPaymentDoc struct {
	Lamports    int64  `firestore:"lamports"`
	Destination string `firestore:"destination"`
}

type dateDoc struct {
	Date time.Time `firestore:"date"`
}

type redeemedAmountDoc struct {
	Maximum int64 `firestore:"maximum"`
}

type thirdPartySignerDoc struct {
	SignerKey string `firestore:"signerKey"`
}

// ========================================
// FindByAddress
// ========================================
// 指定アドレスのキャンペーンを Firestore から取得。
func (r *CampaignRepositoryFS) FindByAddress(ctx context.Context, address string) (campdom.CandyMachine, error) {
	doc, err := r.Client.Collection("campaigns").Doc(address).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return campdom.CandyMachine{}, campdom.ErrNotFound
		}
		return campdom.CandyMachine{}, err
	}

	var d campaignDoc
	if err := doc.DataTo(&d); err != nil {
		return campdom.CandyMachine{}, err
	}

	// FirestoreのDocIDをアドレスに反映
	if d.Address == "" {
		d.Address = doc.Ref.ID
	}

	guards, err := d.Guards.toDomain()
	if err != nil {
		return campdom.CandyMachine{}, fmt.Errorf("campaign %s: %w", d.Address, err)
	}

	groups := make([]guarddom.Group, 0, len(d.Groups))
	for _, g := range d.Groups {
		gs, err := g.Guards.toDomain()
		if err != nil {
			return campdom.CandyMachine{}, fmt.Errorf("campaign %s group %q: %w", d.Address, g.Label, err)
		}
		groups = append(groups, guarddom.Group{Label: g.Label, Guards: gs})
	}

	return campdom.New(
		d.Address,
		d.Authority,
		uint64(d.ItemsAvailable),
		uint64(d.ItemsRedeemed),
		guards,
		groups,
	)
}

// ========================================
// Save
// ========================================
// Upsert 相当: キャンペーン定義を上書き保存する（管理用 CLI から使用）。
func (r *CampaignRepositoryFS) Save(ctx context.Context, cm campdom.CandyMachine) error {
	d := campaignDoc{
		Address:        cm.Address,
		Authority:      cm.Authority,
		ItemsAvailable: int64(cm.ItemsAvailable),
		ItemsRedeemed:  int64(cm.ItemsRedeemed),
		Guards:         guardDocFrom(cm.Guards),
		UpdatedAt:      time.Now().UTC(),
	}
	for _, g := range cm.Groups {
		d.Groups = append(d.Groups, groupDoc{Label: g.Label, Guards: guardDocFrom(g.Guards)})
	}

	_, err := r.Client.Collection("campaigns").Doc(cm.Address).Set(ctx, d)
	return err
}

// ========================================
// ドキュメント <-> ドメイン変換
// ========================================

func (d guardDoc) toDomain() (guarddom.Set, error) {
	var s guarddom.Set

	if d.AllowList != nil {
		rootBytes, err := hex.DecodeString(d.AllowList.Root)
		if err != nil || len(rootBytes) != 32 {
			return guarddom.Set{}, fmt.Errorf("allowList root %q is not a 32-byte hex string", d.AllowList.Root)
		}
		al := &guarddom.AllowList{}
		copy(al.Root[:], rootBytes)
		s.AllowList = al
	}
	if d.MintLimit != nil {
		s.MintLimit = &guarddom.MintLimit{
			ID:    uint8(d.MintLimit.ID),
			Limit: uint64(d.MintLimit.Limit),
		}
	}
	if d.NFTPayment != nil {
		s.NFTPayment = &guarddom.NFTPayment{
			RequiredCollection: d.NFTPayment.RequiredCollection,
			Destination:        d.NFTPayment.Destination,
		}
	}
	if d.NFTBurn != nil {
		s.NFTBurn = &guarddom.NFTBurn{RequiredCollection: d.NFTBurn.RequiredCollection}
	}
	if d.NFTGate != nil {
		s.NFTGate = &guarddom.NFTGate{RequiredCollection: d.NFTGate.RequiredCollection}
	}
	if d.TokenPayment != nil {
		s.TokenPayment = &guarddom.TokenPayment{
			Amount:      uint64(d.TokenPayment.Amount),
			Mint:        d.TokenPayment.Mint,
			Destination: d.TokenPayment.Destination,
		}
	}
	if d.SolPayment != nil {
		s.SolPayment = &guarddom.SolPayment{
			Lamports:    uint64(d.SolPayment.Lamports),
			Destination: d.SolPayment.Destination,
		}
	}
	if d.StartDate != nil {
		s.StartDate = &guarddom.StartDate{Date: d.StartDate.Date}
	}
	if d.EndDate != nil {
		s.EndDate = &guarddom.EndDate{Date: d.EndDate.Date}
	}
	if d.RedeemedAmount != nil {
		s.RedeemedAmount = &guarddom.RedeemedAmount{Maximum: uint64(d.RedeemedAmount.Maximum)}
	}
	if d.ThirdPartySigner != nil {
		s.ThirdPartySigner = &guarddom.ThirdPartySigner{SignerKey: d.ThirdPartySigner.SignerKey}
	}

	return s, nil
}

func guardDocFrom(s guarddom.Set) guardDoc {
	var d guardDoc

	if s.AllowList != nil {
		d.AllowList = &allowListDoc{Root: hex.EncodeToString(s.AllowList.Root[:])}
	}
	if s.MintLimit != nil {
		d.MintLimit = &mintLimitDoc{ID: int64(s.MintLimit.ID), Limit: int64(s.MintLimit.Limit)}
	}
	if s.NFTPayment != nil {
		d.NFTPayment = &nftPaymentDoc{
			RequiredCollection: s.NFTPayment.RequiredCollection,
			Destination:        s.NFTPayment.Destination,
		}
	}
	if s.NFTBurn != nil {
		d.NFTBurn = &nftCollectionDoc{RequiredCollection: s.NFTBurn.RequiredCollection}
	}
	if s.NFTGate != nil {
		d.NFTGate = &nftCollectionDoc{RequiredCollection: s.NFTGate.RequiredCollection}
	}
	if s.TokenPayment != nil {
		d.TokenPayment = &tokenPaymentDoc{
			Amount:      int64(s.TokenPayment.Amount),
			Mint:        s.TokenPayment.Mint,
			Destination: s.TokenPayment.Destination,
		}
	}
	if s.SolPayment != nil {
		d.SolPayment = &solPaymentDoc{
			Lamports:    int64(s.SolPayment.Lamports),
			Destination: s.SolPayment.Destination,
		}
	}
	if s.StartDate != nil {
		d.StartDate = &dateDoc{Date: s.StartDate.Date}
	}
	if s.EndDate != nil {
		d.EndDate = &dateDoc{Date: s.EndDate.Date}
	}
	if s.RedeemedAmount != nil {
		d.RedeemedAmount = &redeemedAmountDoc{Maximum: int64(s.RedeemedAmount.Maximum)}
	}
	if s.ThirdPartySigner != nil {
		d.ThirdPartySigner = &thirdPartySignerDoc{SignerKey: s.ThirdPartySigner.SignerKey}
	}

	return d
}
