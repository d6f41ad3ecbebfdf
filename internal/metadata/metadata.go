// internal/metadata/metadata.go
package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID - программа Metaplex Token Metadata.
var ProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

var (
	ErrNotFound    = errors.New("token metadata not found")
	ErrInvalidData = errors.New("invalid metadata account data")
)

// Заглушки, когда метаданные недоступны.
const (
	UnknownName   = "Unknown"
	UnknownSymbol = "UNK"
)

const (
	keyMetadataV1 = 4
	// key(1) + update authority(32) + mint(32)
	headerSize = 65
)

// Metadata - основные поля аккаунта метаданных.
type Metadata struct {
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	Name            string
	Symbol          string
	URI             string
}

// Fallback возвращает заглушку для mint без метаданных.
func Fallback(mint solana.PublicKey) *Metadata {
	return &Metadata{Mint: mint, Name: UnknownName, Symbol: UnknownSymbol}
}

// IsFallback сообщает, что это заглушка.
func (m *Metadata) IsFallback() bool {
	return m.Name == UnknownName && m.Symbol == UnknownSymbol && m.URI == ""
}

// FindAddress вычисляет PDA метаданных: ["metadata", program, mint].
func FindAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			ProgramID.Bytes(),
			mint.Bytes(),
		},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, nil
}

// Decode разбирает аккаунт метаданных. Строки хранятся с нулевым
// паддингом, он обрезается.
func Decode(data []byte) (*Metadata, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidData, len(data))
	}
	dec := bin.NewBorshDecoder(data)

	key, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	if key != keyMetadataV1 {
		return nil, fmt.Errorf("%w: unexpected key %d", ErrInvalidData, key)
	}

	updateAuthority, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, err
	}
	mint, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, err
	}

	var fields [3]string
	for i := range fields {
		n, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		if int(n) > dec.Remaining() {
			return nil, fmt.Errorf("%w: string length %d out of range", ErrInvalidData, n)
		}
		raw, err := dec.ReadNBytes(int(n))
		if err != nil {
			return nil, err
		}
		fields[i] = cleanString(raw)
	}

	return &Metadata{
		UpdateAuthority: solana.PublicKeyFromBytes(updateAuthority),
		Mint:            solana.PublicKeyFromBytes(mint),
		Name:            fields[0],
		Symbol:          fields[1],
		URI:             fields[2],
	}, nil
}

func cleanString(raw []byte) string {
	return strings.TrimSpace(string(bytes.TrimRight(raw, "\x00")))
}
