package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletbridge/palletbridge/metadata"
	"github.com/palletbridge/palletbridge/scale"
)

// nodeBlob serializes a minimal format-version-14 metadata blob the way
// a node would serve it: one u64 type, one pallet with a plain storage
// entry and a SpecVersion constant. The constant value doubles as a
// runtime-version marker so upgrade tests can tell snapshots apart.
func nodeBlob(specVersion uint64) []byte {
	var b bytes.Buffer
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], 0x6d657461)
	b.Write(tmp[:4])
	b.WriteByte(14)

	// Registry: a single u64 primitive at id 0.
	scale.AppendCompact(&b, 1)
	scale.AppendCompact(&b, 0) // id
	scale.AppendCompact(&b, 0) // path
	scale.AppendCompact(&b, 0) // params
	b.WriteByte(5)             // primitive
	b.WriteByte(6)             // u64
	scale.AppendCompact(&b, 0) // docs

	// One pallet.
	scale.AppendCompact(&b, 1)
	scale.AppendString(&b, "System")

	b.WriteByte(1) // storage present
	scale.AppendString(&b, "System")
	scale.AppendCompact(&b, 1)
	scale.AppendString(&b, "Number")
	b.WriteByte(1)             // default modifier
	b.WriteByte(0)             // plain
	scale.AppendCompact(&b, 0) // value type
	scale.AppendCompact(&b, 8) // default bytes
	b.Write(make([]byte, 8))
	scale.AppendCompact(&b, 0) // docs

	b.WriteByte(0) // no calls
	b.WriteByte(0) // no events

	scale.AppendCompact(&b, 1)
	scale.AppendString(&b, "SpecVersion")
	scale.AppendCompact(&b, 0)
	scale.AppendCompact(&b, 8)
	binary.LittleEndian.PutUint64(tmp[:], specVersion)
	b.Write(tmp[:])
	scale.AppendCompact(&b, 0) // docs

	b.WriteByte(0) // no errors
	b.WriteByte(0) // pallet index

	// Extrinsic metadata and runtime type.
	scale.AppendCompact(&b, 0)
	b.WriteByte(4)
	scale.AppendCompact(&b, 0)
	scale.AppendCompact(&b, 0)

	return b.Bytes()
}

// fakeTransport serves queued metadata blobs and a fixed storage map,
// recording every call for assertions.
type fakeTransport struct {
	mu sync.Mutex

	blobs    [][]byte
	metaErr  error
	storage  map[string][]byte
	upgrades chan struct{}

	metadataCalls int
	storageKeys   [][]byte
	submitted     [][]byte
}

func newFakeTransport(blobs ...[]byte) *fakeTransport {
	return &fakeTransport{
		blobs:    blobs,
		storage:  make(map[string][]byte),
		upgrades: make(chan struct{}, 1),
	}
}

func (f *fakeTransport) FetchMetadata(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataCalls++
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	blob := f.blobs[0]
	if len(f.blobs) > 1 {
		f.blobs = f.blobs[1:]
	}
	return blob, nil
}

func (f *fakeTransport) FetchStorage(ctx context.Context, key []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storageKeys = append(f.storageKeys, key)
	return f.storage[string(key)], nil
}

func (f *fakeTransport) SubmitExtrinsic(ctx context.Context, extrinsic []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, extrinsic)
	return "0xdeadbeef", nil
}

func (f *fakeTransport) WatchRuntimeUpgrades(ctx context.Context) (<-chan struct{}, error) {
	return f.upgrades, nil
}

func (f *fakeTransport) storageCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.storageKeys)
}

func (f *fakeTransport) setMetaErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaErr = err
}

func specVersionOf(t *testing.T, m *metadata.Metadata) uint64 {
	t.Helper()
	v, err := ConstantValue(m, NewConstantAddress("System", "SpecVersion"))
	require.NoError(t, err)
	return v.Uint
}

func TestOnlineClientBootstraps(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	assert.Equal(t, 1, ft.metadataCalls)
	assert.EqualValues(t, 1, specVersionOf(t, c.Metadata()))

	v, err := c.ConstantValue(NewConstantAddress("System", "SpecVersion"))
	require.NoError(t, err)
	assert.Equal(t, scale.U64(1), v)
}

func TestOnlineClientRejectsBadMetadata(t *testing.T) {
	ft := newFakeTransport([]byte{1, 2, 3})
	_, err := NewOnlineClient(context.Background(), ft)
	assert.ErrorIs(t, err, metadata.ErrInvalidMetadata)
}

func TestOnlineClientFetchStorage(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	key := storagePrefix("System", "Number")
	ft.storage[string(key)] = []byte{0x2A, 0, 0, 0, 0, 0, 0, 0}

	v, found, err := c.FetchStorage(context.Background(), NewStorageAddress("System", "Number"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, scale.U64(42), v)

	require.Len(t, ft.storageKeys, 1)
	assert.Equal(t, key, ft.storageKeys[0])
}

func TestOnlineClientFetchStorageDefault(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	// Absent key with a default modifier yields the declared default.
	v, found, err := c.FetchStorage(context.Background(), NewStorageAddress("System", "Number"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, scale.U64(0), v)
}

func TestFetchStorageValidationGateBlocksTransport(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	var stale metadata.Hash
	stale[5] = 0xFF
	addr := NewStorageAddress("System", "Number").WithHash(stale)

	_, _, err = c.FetchStorage(context.Background(), addr)
	assert.ErrorIs(t, err, metadata.ErrIncompatibleMetadata)
	assert.Zero(t, ft.storageCallCount(), "incompatible address must not reach the wire")
}

func TestSubmitExtrinsic(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	hash, err := c.SubmitExtrinsic(context.Background(), []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", hash)
	require.Len(t, ft.submitted, 1)
	assert.Equal(t, []byte{0x01, 0x02}, ft.submitted[0])
}

func TestSnapshotSwapOnRuntimeUpgrade(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1), nodeBlob(2))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.WatchRuntimeUpgrades(ctx) }()

	old := c.Metadata()
	require.EqualValues(t, 1, specVersionOf(t, old))

	ft.upgrades <- struct{}{}
	require.Eventually(t, func() bool {
		return c.Metadata() != old
	}, time.Second, 5*time.Millisecond, "upgrade signal must swap the snapshot")

	// New operations see the new snapshot; the captured one stays
	// intact for operations already in flight.
	assert.EqualValues(t, 2, specVersionOf(t, c.Metadata()))
	assert.EqualValues(t, 1, specVersionOf(t, old))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchKeepsSnapshotOnRefreshFailure(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.WatchRuntimeUpgrades(ctx) }()

	old := c.Metadata()
	ft.setMetaErr(errors.New("node unreachable"))
	ft.upgrades <- struct{}{}

	// The failed refresh is observed through the call count; the
	// snapshot must survive it.
	require.Eventually(t, func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.metadataCalls >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Same(t, old, c.Metadata())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchEndsWhenSubscriptionCloses(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	close(ft.upgrades)
	assert.NoError(t, c.WatchRuntimeUpgrades(context.Background()))
}

func TestOfflineView(t *testing.T) {
	ft := newFakeTransport(nodeBlob(1))
	c, err := NewOnlineClient(context.Background(), ft)
	require.NoError(t, err)

	off := c.Offline()
	assert.Same(t, c.Metadata(), off.Metadata())

	key, err := off.StorageKey(NewStorageAddress("System", "Number"))
	require.NoError(t, err)
	assert.Equal(t, storagePrefix("System", "Number"), key)
}
