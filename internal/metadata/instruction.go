// internal/metadata/instruction.go
package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const createMetadataAccountV3 = 33

// CreateParams - данные нового аккаунта метаданных.
type CreateParams struct {
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
	Name            string
	Symbol          string
	URI             string
	IsMutable       bool
}

// NewCreateInstruction строит инструкцию CreateMetadataAccountV3
// без создателей, коллекции и роялти.
func NewCreateInstruction(p CreateParams) (solana.Instruction, error) {
	metadataAddr, err := FindAddress(p.Mint)
	if err != nil {
		return nil, err
	}
	data, err := encodeCreateV3(p)
	if err != nil {
		return nil, fmt.Errorf("encode metadata args: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(metadataAddr).WRITE(),
		solana.Meta(p.Mint),
		solana.Meta(p.MintAuthority).SIGNER(),
		solana.Meta(p.Payer).WRITE().SIGNER(),
		solana.Meta(p.UpdateAuthority).SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

func encodeCreateV3(p CreateParams) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	steps := []func() error{
		func() error { return enc.WriteUint8(createMetadataAccountV3) },
		// DataV2
		func() error { return enc.WriteString(p.Name) },
		func() error { return enc.WriteString(p.Symbol) },
		func() error { return enc.WriteString(p.URI) },
		func() error { return enc.WriteUint16(0, binary.LittleEndian) }, // seller fee bps
		func() error { return enc.WriteOption(false) },                  // creators
		func() error { return enc.WriteOption(false) },                  // collection
		func() error { return enc.WriteOption(false) },                  // uses
		func() error { return enc.WriteBool(p.IsMutable) },
		func() error { return enc.WriteOption(false) }, // collection details
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
