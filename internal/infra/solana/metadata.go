// internal/infra/solana/metadata.go
package solana

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"
)

// ------------------------------------------------------
// Metaplex token metadata (collection 解決用の最小デコード)
// ------------------------------------------------------
//
// メタデータスキーマそのものはこのコアの関心外。NFT ガード評価に
// 必要な verified collection キーだけを borsh レイアウトから取り出す。

type metadataCreator struct {
	Address  [32]byte
	Verified bool
	Share    uint8
}

type metadataData struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]metadataCreator
}

type metadataCollection struct {
	Verified bool
	Key      [32]byte
}

// metadataAccount mirrors the leading fields of the Metaplex metadata
// account layout, up to and including the optional collection. borsh-go
// tolerates trailing bytes (uses, programmable config) being left over.
type metadataAccount struct {
	Key                 uint8
	UpdateAuthority     [32]byte
	Mint                [32]byte
	Data                metadataData
	PrimarySaleHappened bool
	IsMutable           bool
	EditionNonce        *uint8
	TokenStandard       *uint8
	Collection          *metadataCollection
}

// verifiedCollection extracts the verified collection mint (base58)
// from raw metadata account data. Empty string when the NFT has no
// verified collection.
func verifiedCollection(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("solana metadata: empty account data")
	}
	var meta metadataAccount
	if err := borsh.Deserialize(&meta, data); err != nil {
		return "", fmt.Errorf("solana metadata: borsh decode: %w", err)
	}
	if meta.Collection == nil || !meta.Collection.Verified {
		return "", nil
	}
	return common.PublicKeyFromBytes(meta.Collection.Key[:]).ToBase58(), nil
}
