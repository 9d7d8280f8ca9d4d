package rpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Node speaks a ledger node's state and author APIs over a single
// websocket connection. It satisfies the client package's Transport
// interface.
type Node struct {
	conn   *Conn
	logger *zap.Logger
}

// NewNode dials the node's websocket endpoint.
func NewNode(ctx context.Context, url string, opts ...Option) (*Node, error) {
	conn, err := Dial(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	return &Node{conn: conn, logger: conn.logger}, nil
}

// Close tears down the underlying connection.
func (n *Node) Close() error {
	return n.conn.Close()
}

// FetchMetadata returns the node's current metadata blob.
func (n *Node) FetchMetadata(ctx context.Context) ([]byte, error) {
	var raw string
	if err := n.conn.Call(ctx, "state_getMetadata", nil, &raw); err != nil {
		return nil, err
	}
	return decodeHex(raw)
}

// FetchStorage returns the raw value under key, or nil when the node
// reports the key absent.
func (n *Node) FetchStorage(ctx context.Context, key []byte) ([]byte, error) {
	var raw *string
	if err := n.conn.Call(ctx, "state_getStorage", []interface{}{encodeHex(key)}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeHex(*raw)
}

// SubmitExtrinsic submits a signed extrinsic and returns its hash.
func (n *Node) SubmitExtrinsic(ctx context.Context, extrinsic []byte) (string, error) {
	var hash string
	if err := n.conn.Call(ctx, "author_submitExtrinsic", []interface{}{encodeHex(extrinsic)}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// WatchRuntimeUpgrades subscribes to runtime version notifications and
// reduces each one to a bare signal; the caller refetches metadata on
// its own schedule. The channel closes when the subscription ends.
func (n *Node) WatchRuntimeUpgrades(ctx context.Context) (<-chan struct{}, error) {
	sub, err := n.conn.Subscribe(ctx, "state_subscribeRuntimeVersion", "state_unsubscribeRuntimeVersion", nil)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Notifications:
				if !ok {
					return
				}
				n.logger.Info("runtime version changed")
				select {
				case out <- struct{}{}:
				default:
					// A refresh is already pending; collapsing signals
					// is fine because each refresh fetches the latest.
				}
			}
		}
	}()
	return out, nil
}

func encodeHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func decodeHex(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	out, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("rpc: malformed hex payload: %w", err)
	}
	return out, nil
}
