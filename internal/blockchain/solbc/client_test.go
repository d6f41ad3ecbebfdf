// internal/blockchain/solbc/client_test.go
package solbc

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/rpc"
)

func encodeMint(authority *solana.PublicKey, supply uint64, decimals uint8) []byte {
	buf := make([]byte, 0, blockchain.MintAccountSize)
	if authority != nil {
		buf = binary.LittleEndian.AppendUint32(buf, 1)
		buf = append(buf, authority.Bytes()...)
	} else {
		buf = binary.LittleEndian.AppendUint32(buf, 0)
		buf = append(buf, make([]byte, 32)...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, supply)
	buf = append(buf, decimals, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = append(buf, make([]byte, 32)...)
	return buf
}

// rpcStub отвечает на JSON-RPC по имени метода.
func rpcStub(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	logger := zaptest.NewLogger(t)
	pool, err := rpc.NewPool([]string{srv.URL}, logger)
	require.NoError(t, err)
	return NewClient(pool, logger)
}

func accountInfoJSON(owner solana.PublicKey, data []byte) string {
	return fmt.Sprintf(`{"context":{"slot":1},"value":{"data":["%s","base64"],"executable":false,"lamports":1461600,"owner":"%s","rentEpoch":0,"space":%d}}`,
		base64.StdEncoding.EncodeToString(data), owner, len(data))
}

func TestDecodeMint(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	facts, err := DecodeMint(encodeMint(&authority, 1_000_000_000, 6))
	require.NoError(t, err)

	assert.Equal(t, uint8(6), facts.Decimals)
	assert.Equal(t, uint64(1_000_000_000), facts.Supply)
	assert.True(t, facts.HasMintAuthority(authority))
	assert.Nil(t, facts.FreezeAuthority)
}

func TestDecodeMintRejectsShortData(t *testing.T) {
	_, err := DecodeMint(make([]byte, 10))
	assert.ErrorIs(t, err, blockchain.ErrNotMint)
}

func TestDecodeMintWithoutAuthority(t *testing.T) {
	facts, err := DecodeMint(encodeMint(nil, 5, 0))
	require.NoError(t, err)
	assert.False(t, facts.HasMintAuthority(solana.NewWallet().PublicKey()))
}

func TestGetMintFacts(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	srv := rpcStub(t, map[string]string{
		"getAccountInfo": accountInfoJSON(solana.TokenProgramID, encodeMint(&authority, 42, 9)),
	})

	facts, err := newTestClient(t, srv).GetMintFacts(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, mint, facts.Mint)
	assert.Equal(t, solana.TokenProgramID, facts.ProgramID)
	assert.Equal(t, uint8(9), facts.Decimals)
	assert.Equal(t, uint64(42), facts.Supply)
}

func TestGetMintFactsRejectsForeignOwner(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getAccountInfo": accountInfoJSON(solana.SystemProgramID, make([]byte, 82)),
	})

	_, err := newTestClient(t, srv).GetMintFacts(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, blockchain.ErrNotMint)
}

func TestAccountExistsNotFound(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":null}`,
	})

	ok, err := newTestClient(t, srv).AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetBalance(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":1500000000}`,
	})

	lamports, err := newTestClient(t, srv).GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)
}

func TestWaitForConfirmation(t *testing.T) {
	sig := solana.Signature{7}
	tests := []struct {
		name    string
		status  string
		timeout time.Duration
		wantErr error
	}{
		{"confirmed", `{"slot":5,"confirmations":null,"err":null,"confirmationStatus":"confirmed"}`, 5 * time.Second, nil},
		{"failed on chain", `{"slot":5,"confirmations":null,"err":{"InstructionError":[0,{"Custom":1}]},"confirmationStatus":"confirmed"}`, 5 * time.Second, blockchain.ErrTransactionFail},
		{"never lands", `null`, 1200 * time.Millisecond, blockchain.ErrConfirmTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rpcStub(t, map[string]string{
				"getSignatureStatuses": fmt.Sprintf(`{"context":{"slot":5},"value":[%s]}`, tt.status),
			})
			err := newTestClient(t, srv).WaitForConfirmation(context.Background(), sig, tt.timeout)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWaitForConfirmationCancelled(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":5},"value":[null]}`,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	err := newTestClient(t, srv).WaitForConfirmation(ctx, solana.Signature{1}, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
