// internal/infra/solana/tx_builder.go
package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"mintgate/internal/application/minting"
	"mintgate/internal/domain/allowlist"
	guarddom "mintgate/internal/domain/guard"
)

// Candy guard routing program (default; override via TxBuilder.GuardProgram)
const defaultGuardProgramID = "Guard1JwRhJkVH6XZhzoYxeBVQe872VH6QggF4BWmS9g"

// route instruction discriminator (consume allow-list proof)
const routeAllowListIx = uint8(0x01)

// ============================================================
// TxBuilder: プランのトランザクション組み立て
// ============================================================
//
// minting.TxBuilder の実装。1 アイテム = 1 ミントトランザクション。
// ミント側はガード精算の instruction 群(solPayment / tokenPayment /
// nftPayment / nftBurn)のあとに NFT 発行の定型列を積む。
// route トランザクションは allow-list 証明を消費するゲートで、
// raw instruction として組み立てる。

type TxBuilder struct {
	RPC *client.Client

	// GuardProgram receives the route instruction.
	GuardProgram string

	// Item naming for newly minted assets.
	NamePrefix           string
	Symbol               string
	BaseURI              string
	SellerFeeBasisPoints uint16
}

var _ minting.TxBuilder = (*TxBuilder)(nil)

// NewTxBuilder wires the builder to the shared RPC client.
func NewTxBuilder(rpc *client.Client, namePrefix, symbol, baseURI string) *TxBuilder {
	return &TxBuilder{
		RPC:          rpc,
		GuardProgram: defaultGuardProgramID,
		NamePrefix:   strings.TrimSpace(namePrefix),
		Symbol:       strings.TrimSpace(symbol),
		BaseURI:      strings.TrimSpace(baseURI),
	}
}

func (b *TxBuilder) guardProgram() common.PublicKey {
	id := strings.TrimSpace(b.GuardProgram)
	if id == "" {
		id = defaultGuardProgramID
	}
	return common.PublicKeyFromString(id)
}

// ------------------------------------------------------
// Route transaction
// ------------------------------------------------------

// BuildRouteTx assembles the gating transaction that carries the
// caller's allow-list proof to the guard program.
func (b *TxBuilder) BuildRouteTx(ctx context.Context, bc minting.BuildContext) (*minting.PlannedTx, error) {
	if b == nil {
		return nil, fmt.Errorf("tx builder: not configured")
	}
	wallet := pubkey(bc.Wallet)
	feePayer := pubkey(bc.FeePayer)
	machine := pubkey(bc.Campaign.Address)

	ix := types.Instruction{
		ProgramID: b.guardProgram(),
		Accounts: []types.AccountMeta{
			{PubKey: wallet, IsSigner: true, IsWritable: false},
			{PubKey: machine, IsSigner: false, IsWritable: true},
		},
		Data: routeInstructionData(bc.Label, bc.Proof),
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer,
			RecentBlockhash: bc.Blockhash,
			Instructions:    []types.Instruction{ix},
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("tx builder: route NewTransaction: %w", err)
	}

	return &minting.PlannedTx{
		Kind:    minting.TxRoute,
		Index:   -1,
		Payload: &tx,
	}, nil
}

// routeInstructionData serializes the proof for the guard program:
// discriminator, label (u32 length prefix), proof count (u32), then
// the 32-byte sibling hashes in leaf-to-root order.
func routeInstructionData(label string, proof []allowlist.Hash) []byte {
	lbl := []byte(label)
	buf := make([]byte, 0, 1+4+len(lbl)+4+32*len(proof))
	buf = append(buf, routeAllowListIx)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(lbl)))
	buf = append(buf, lbl...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(proof)))
	for _, h := range proof {
		buf = append(buf, h[:]...)
	}
	return buf
}

// ------------------------------------------------------
// Mint transaction
// ------------------------------------------------------

// BuildMintTx assembles one item's transaction: guard settlement
// instructions first, then the standard issuance sequence (mint
// account, metadata, ATA, mint-to, master edition). The ephemeral
// mint keypair is attached as a per-tx signer.
func (b *TxBuilder) BuildMintTx(ctx context.Context, mb minting.MintBuild) (*minting.PlannedTx, error) {
	if b == nil || b.RPC == nil {
		return nil, fmt.Errorf("tx builder: not configured")
	}
	wallet := pubkey(mb.Wallet)
	feePayer := pubkey(mb.FeePayer)

	ixs, err := b.settlementInstructions(mb.Guards, wallet, mb.NFT)
	if err != nil {
		return nil, err
	}

	mintAcct := types.NewAccount()
	issuance, ata, err := b.issuanceInstructions(ctx, mintAcct.PublicKey, wallet, feePayer, mb.Index)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, issuance...)

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer,
			RecentBlockhash: mb.Blockhash,
			Instructions:    ixs,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("tx builder: mint NewTransaction: %w", err)
	}

	return &minting.PlannedTx{
		Kind:             minting.TxMint,
		Index:            mb.Index,
		ItemMint:         mintAcct.PublicKey.ToBase58(),
		ItemTokenAccount: ata.ToBase58(),
		Payload:          &tx,
		Signers:          []minting.Signer{NewKeypairSigner(mintAcct)},
	}, nil
}

// settlementInstructions turns the effective guard set into the
// payment / burn instructions that must precede issuance.
func (b *TxBuilder) settlementInstructions(gs guarddom.Set, wallet common.PublicKey, nft minting.ItemNFTSettings) ([]types.Instruction, error) {
	var ixs []types.Instruction

	if gs.SolPayment != nil {
		ixs = append(ixs, system.Transfer(system.TransferParam{
			From:   wallet,
			To:     pubkey(gs.SolPayment.Destination),
			Amount: gs.SolPayment.Lamports,
		}))
	}

	if gs.TokenPayment != nil {
		mint := pubkey(gs.TokenPayment.Mint)
		from, _, err := common.FindAssociatedTokenAddress(wallet, mint)
		if err != nil {
			return nil, fmt.Errorf("tx builder: tokenPayment ATA: %w", err)
		}
		ixs = append(ixs, token.Transfer(token.TransferParam{
			From:   from,
			To:     pubkey(gs.TokenPayment.Destination),
			Auth:   wallet,
			Amount: gs.TokenPayment.Amount,
		}))
	}

	if gs.NFTPayment != nil {
		nftMint := strings.TrimSpace(nft.PaymentMint)
		if nftMint == "" {
			return nil, fmt.Errorf("tx builder: nftPayment guard requires a payment NFT selection")
		}
		mint := pubkey(nftMint)
		from, _, err := common.FindAssociatedTokenAddress(wallet, mint)
		if err != nil {
			return nil, fmt.Errorf("tx builder: nftPayment source ATA: %w", err)
		}
		destOwner := pubkey(gs.NFTPayment.Destination)
		dest, _, err := common.FindAssociatedTokenAddress(destOwner, mint)
		if err != nil {
			return nil, fmt.Errorf("tx builder: nftPayment destination ATA: %w", err)
		}
		ixs = append(ixs,
			associated_token_account.CreateIdempotent(associated_token_account.CreateIdempotentParam{
				Funder:                 wallet,
				Owner:                  destOwner,
				Mint:                   mint,
				AssociatedTokenAccount: dest,
			}),
			token.Transfer(token.TransferParam{
				From:   from,
				To:     dest,
				Auth:   wallet,
				Amount: 1,
			}),
		)
	}

	if gs.NFTBurn != nil {
		burnMint := strings.TrimSpace(nft.BurnMint)
		if burnMint == "" {
			return nil, fmt.Errorf("tx builder: nftBurn guard requires a burn NFT selection")
		}
		mint := pubkey(burnMint)
		acct, _, err := common.FindAssociatedTokenAddress(wallet, mint)
		if err != nil {
			return nil, fmt.Errorf("tx builder: nftBurn ATA: %w", err)
		}
		ixs = append(ixs, token.Burn(token.BurnParam{
			Account: acct,
			Mint:    mint,
			Auth:    wallet,
			Amount:  1,
		}))
	}

	// nftGate は保有チェックのみ。instruction は積まない。
	return ixs, nil
}

// issuanceInstructions builds the standard NFT issuance sequence for
// one new item owned by wallet. Returns the instructions and the
// recipient ATA.
func (b *TxBuilder) issuanceInstructions(ctx context.Context, mint, wallet, feePayer common.PublicKey, index int) ([]types.Instruction, common.PublicKey, error) {
	rent, err := b.RPC.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return nil, common.PublicKey{}, fmt.Errorf("tx builder: rent exemption: %w", err)
	}

	metadataPDA, err := token_metadata.GetTokenMetaPubkey(mint)
	if err != nil {
		return nil, common.PublicKey{}, fmt.Errorf("tx builder: metadata PDA: %w", err)
	}
	editionPDA, err := token_metadata.GetMasterEdition(mint)
	if err != nil {
		return nil, common.PublicKey{}, fmt.Errorf("tx builder: master edition PDA: %w", err)
	}
	ata, _, err := common.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, common.PublicKey{}, fmt.Errorf("tx builder: recipient ATA: %w", err)
	}

	maxSupply := uint64(0)
	ixs := []types.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     feePayer,
			New:      mint,
			Owner:    common.TokenProgramID,
			Lamports: rent,
			Space:    token.MintAccountSize,
		}),
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   0,
			Mint:       mint,
			MintAuth:   feePayer,
			FreezeAuth: &feePayer,
		}),
		token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
			Metadata:                metadataPDA,
			Mint:                    mint,
			MintAuthority:           feePayer,
			Payer:                   feePayer,
			UpdateAuthority:         feePayer,
			UpdateAuthorityIsSigner: true,
			IsMutable:               true,
			Data: token_metadata.DataV2{
				Name:                 b.itemName(index),
				Symbol:               b.Symbol,
				Uri:                  b.itemURI(index),
				SellerFeeBasisPoints: b.SellerFeeBasisPoints,
			},
		}),
		associated_token_account.Create(associated_token_account.CreateParam{
			Funder:                 feePayer,
			Owner:                  wallet,
			Mint:                   mint,
			AssociatedTokenAccount: ata,
		}),
		token.MintTo(token.MintToParam{
			Mint:   mint,
			To:     ata,
			Auth:   feePayer,
			Amount: 1,
		}),
		token_metadata.CreateMasterEditionV3(token_metadata.CreateMasterEditionParam{
			Edition:         editionPDA,
			Mint:            mint,
			UpdateAuthority: feePayer,
			MintAuthority:   feePayer,
			Metadata:        metadataPDA,
			Payer:           feePayer,
			MaxSupply:       &maxSupply,
		}),
	}
	return ixs, ata, nil
}

func (b *TxBuilder) itemName(index int) string {
	prefix := b.NamePrefix
	if prefix == "" {
		prefix = "Item"
	}
	return fmt.Sprintf("%s #%d", prefix, index+1)
}

func (b *TxBuilder) itemURI(index int) string {
	base := strings.TrimRight(b.BaseURI, "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d.json", base, index+1)
}

// pubkey parses a base58 address after trimming whitespace.
func pubkey(s string) common.PublicKey {
	return common.PublicKeyFromString(strings.TrimSpace(s))
}
