// internal/blockchain/solbc/rpc/pool_test.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) RecordRPC(method, endpoint string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s@%s:%t", method, endpoint, err == nil))
}

func balanceServer(t *testing.T, lamports uint64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":%d}}`, lamports)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func getBalance(p *Pool, pk solana.PublicKey) (uint64, error) {
	var out uint64
	err := p.Execute(context.Background(), "getBalance", func(ctx context.Context, c *solanarpc.Client) error {
		res, err := c.GetBalance(ctx, pk, solanarpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	return out, err
}

func TestNewPoolRequiresNodes(t *testing.T) {
	_, err := NewPool(nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrNoNodes)
}

func TestPoolFailsOverToNextNode(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	alive := balanceServer(t, 42)

	obs := &recordingObserver{}
	p, err := NewPool([]string{deadURL, alive.URL}, zaptest.NewLogger(t), WithObserver(obs))
	require.NoError(t, err)

	got, err := getBalance(p, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
	assert.Len(t, obs.calls, 2)
}

func TestPoolReturnsNonRetryableImmediately(t *testing.T) {
	p, err := NewPool([]string{"http://a", "http://b"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	calls := 0
	err = p.Execute(context.Background(), "getAccountInfo", func(ctx context.Context, c *solanarpc.Client) error {
		calls++
		return solanarpc.ErrNotFound
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsNotFound(err))
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "getAccountInfo", rpcErr.Method)
}

func TestPoolTriesEveryNodeOnce(t *testing.T) {
	p, err := NewPool([]string{"http://a", "http://b", "http://c"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	calls := 0
	err = p.Execute(context.Background(), "getBalance", func(ctx context.Context, c *solanarpc.Client) error {
		calls++
		return errors.New("dial tcp: connection refused")
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", classify(errors.New("HTTP 429 Too Many Requests")), true},
		{"timeout", classify(context.DeadlineExceeded), true},
		{"refused", classify(errors.New("connection refused")), true},
		{"not found", solanarpc.ErrNotFound, false},
		{"cancelled", context.Canceled, false},
		{"json-rpc error", classify(errors.New("invalid params")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
