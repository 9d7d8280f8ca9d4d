package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/palletbridge/palletbridge/metadata"
	"github.com/palletbridge/palletbridge/scale"
)

// Transport is the wire collaborator: it moves opaque bytes to and from
// the node. Implementations live outside this package (see the rpc
// package); tests substitute fakes.
type Transport interface {
	// FetchMetadata returns the node's current SCALE-encoded metadata blob.
	FetchMetadata(ctx context.Context) ([]byte, error)

	// FetchStorage returns the raw value stored under key, or nil when
	// the key is absent.
	FetchStorage(ctx context.Context, key []byte) ([]byte, error)

	// SubmitExtrinsic submits a signed extrinsic and returns its hash.
	SubmitExtrinsic(ctx context.Context, extrinsic []byte) (string, error)

	// WatchRuntimeUpgrades delivers a signal whenever the node's runtime
	// version changes. The channel closes when the subscription ends.
	WatchRuntimeUpgrades(ctx context.Context) (<-chan struct{}, error)
}

// OfflineClient performs every operation that needs no node connection
// against a fixed snapshot: encoding calls, computing storage keys,
// reading constants and decoding events.
type OfflineClient struct {
	meta *metadata.Metadata
}

// NewOfflineClient wraps a snapshot.
func NewOfflineClient(meta *metadata.Metadata) *OfflineClient {
	return &OfflineClient{meta: meta}
}

// Metadata returns the wrapped snapshot.
func (c *OfflineClient) Metadata() *metadata.Metadata {
	return c.meta
}

// EncodeCall builds the raw call payload for the snapshot.
func (c *OfflineClient) EncodeCall(payload CallPayload) ([]byte, error) {
	return EncodeCall(c.meta, payload)
}

// ConstantValue decodes a constant embedded in the snapshot.
func (c *OfflineClient) ConstantValue(addr ConstantAddress) (scale.Value, error) {
	return ConstantValue(c.meta, addr)
}

// StorageKey computes the byte key for a storage address.
func (c *OfflineClient) StorageKey(addr StorageAddress) ([]byte, error) {
	key, _, err := StorageKeyFor(c.meta, addr)
	return key, err
}

// DecodeEvents decodes a block's raw event records.
func (c *OfflineClient) DecodeEvents(data []byte) ([]Event, error) {
	return DecodeEvents(c.meta, data)
}

// OnlineClient couples a transport with the current metadata snapshot.
//
// The snapshot is held behind an atomic pointer: a runtime upgrade swaps
// it as a unit, new operations pick up the new snapshot, and operations
// already in flight keep the one they captured at start. Nothing is ever
// patched in place, so no locking is needed anywhere on the read side.
type OnlineClient struct {
	transport Transport
	logger    *zap.Logger

	meta atomic.Pointer[metadata.Metadata]
}

// Option configures an OnlineClient.
type Option func(*OnlineClient)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *OnlineClient) { c.logger = logger }
}

// NewOnlineClient fetches the node's metadata through the transport and
// builds the initial snapshot.
func NewOnlineClient(ctx context.Context, transport Transport, opts ...Option) (*OnlineClient, error) {
	c := &OnlineClient{
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.refreshMetadata(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Metadata returns the current snapshot. The returned value stays valid
// for the whole operation even if an upgrade lands meanwhile; callers
// performing several dependent steps should capture it once.
func (c *OnlineClient) Metadata() *metadata.Metadata {
	return c.meta.Load()
}

// Offline returns an offline view over the current snapshot.
func (c *OnlineClient) Offline() *OfflineClient {
	return NewOfflineClient(c.Metadata())
}

func (c *OnlineClient) refreshMetadata(ctx context.Context) error {
	raw, err := c.transport.FetchMetadata(ctx)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	meta, err := metadata.Decode(raw)
	if err != nil {
		return err
	}
	c.meta.Store(meta)
	c.logger.Info("metadata snapshot installed",
		zap.Int("pallets", len(meta.Pallets())),
		zap.Int("types", meta.Registry().Len()))
	return nil
}

// WatchRuntimeUpgrades subscribes to runtime version changes and swaps
// in a freshly fetched snapshot on every signal. It blocks until ctx is
// cancelled or the subscription ends; run it on its own goroutine.
func (c *OnlineClient) WatchRuntimeUpgrades(ctx context.Context) error {
	updates, err := c.transport.WatchRuntimeUpgrades(ctx)
	if err != nil {
		return fmt.Errorf("watch runtime upgrades: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			if err := c.refreshMetadata(ctx); err != nil {
				// Keep the old snapshot; a later signal or reconnect
				// will retry. The stale snapshot stays safe to use
				// because validation gates every precompiled access.
				c.logger.Warn("metadata refresh failed", zap.Error(err))
			}
		}
	}
}

// FetchStorage resolves a storage address, fetches the value through
// the transport, and decodes it. The second return reports whether a
// value was present (or defaulted).
func (c *OnlineClient) FetchStorage(ctx context.Context, addr StorageAddress) (scale.Value, bool, error) {
	meta := c.Metadata()
	key, entry, err := StorageKeyFor(meta, addr)
	if err != nil {
		return scale.Value{}, false, err
	}
	raw, err := c.transport.FetchStorage(ctx, key)
	if err != nil {
		return scale.Value{}, false, fmt.Errorf("fetch storage %s.%s: %w", addr.Pallet, addr.Entry, err)
	}
	return DecodeStorageValue(meta, entry, raw)
}

// EncodeCall builds the raw call payload against the current snapshot.
func (c *OnlineClient) EncodeCall(payload CallPayload) ([]byte, error) {
	return EncodeCall(c.Metadata(), payload)
}

// SubmitExtrinsic hands a fully enveloped extrinsic to the transport.
// Envelope assembly and signing happen outside this core.
func (c *OnlineClient) SubmitExtrinsic(ctx context.Context, extrinsic []byte) (string, error) {
	hash, err := c.transport.SubmitExtrinsic(ctx, extrinsic)
	if err != nil {
		return "", fmt.Errorf("submit extrinsic: %w", err)
	}
	c.logger.Debug("extrinsic submitted", zap.String("hash", hash))
	return hash, nil
}

// ConstantValue decodes a constant from the current snapshot.
func (c *OnlineClient) ConstantValue(addr ConstantAddress) (scale.Value, error) {
	return ConstantValue(c.Metadata(), addr)
}

// DecodeEvents decodes a block's raw event records against the current
// snapshot.
func (c *OnlineClient) DecodeEvents(data []byte) ([]Event, error) {
	return DecodeEvents(c.Metadata(), data)
}
