// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 15 * time.Second

// Observer получает латентность каждого запроса к узлу.
type Observer interface {
	RecordRPC(method, endpoint string, duration time.Duration, err error)
}

// Node - отдельный RPC узел.
type Node struct {
	URL    string
	Client *solanarpc.Client
}

// Pool перебирает узлы по кругу и переключается на следующий при сетевых ошибках.
type Pool struct {
	nodes    []*Node
	current  int
	mu       sync.Mutex
	logger   *zap.Logger
	observer Observer
	timeout  time.Duration
}

// PoolOption настраивает Pool.
type PoolOption func(*Pool)

// WithObserver подключает сбор метрик.
func WithObserver(o Observer) PoolOption {
	return func(p *Pool) { p.observer = o }
}

// WithRequestTimeout ограничивает время одного запроса.
func WithRequestTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPool создает пул по списку URL.
func NewPool(urls []string, logger *zap.Logger, opts ...PoolOption) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoNodes
	}
	p := &Pool{
		nodes:   make([]*Node, 0, len(urls)),
		logger:  logger.Named("rpc-pool"),
		timeout: defaultRequestTimeout,
	}
	for _, url := range urls {
		p.nodes = append(p.nodes, &Node{URL: url, Client: solanarpc.New(url)})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// next возвращает текущий узел и сдвигает указатель.
func (p *Pool) next() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	node := p.nodes[p.current]
	p.current = (p.current + 1) % len(p.nodes)
	return node
}

// Execute выполняет запрос, обходя каждый узел не более одного раза.
// Несетевые ошибки (not found, ошибки JSON-RPC) возвращаются сразу.
func (p *Pool) Execute(ctx context.Context, method string, operation func(ctx context.Context, c *solanarpc.Client) error) error {
	var lastErr error
	for i := 0; i < len(p.nodes); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := p.next()

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := operation(reqCtx, node.Client)
		cancel()
		if p.observer != nil {
			p.observer.RecordRPC(method, node.URL, time.Since(start), err)
		}
		if err == nil {
			return nil
		}

		lastErr = NewError(classify(err), node.URL, method)
		if !IsRetryableError(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		p.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", node.URL),
			zap.Error(err))
	}
	p.logger.Warn("All RPC nodes failed", zap.String("method", method), zap.Error(lastErr))
	return lastErr
}

// URLs возвращает адреса узлов пула.
func (p *Pool) URLs() []string {
	urls := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		urls[i] = n.URL
	}
	return urls
}
