package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, f *fakeNode) *Node {
	t.Helper()
	n, err := NewNode(context.Background(), f.url())
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func TestFetchMetadata(t *testing.T) {
	f := newFakeNode(t)
	f.result("state_getMetadata", "0x6d65746104")
	n := newTestNode(t, f)

	raw, err := n.FetchMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6d, 0x65, 0x74, 0x61, 0x04}, raw)
}

func TestFetchMetadataMalformedHex(t *testing.T) {
	f := newFakeNode(t)
	f.result("state_getMetadata", "0xZZ")
	n := newTestNode(t, f)

	_, err := n.FetchMetadata(context.Background())
	assert.Error(t, err)
}

func TestFetchStorage(t *testing.T) {
	f := newFakeNode(t)
	f.handle("state_getStorage", func(params []json.RawMessage) (interface{}, *Error) {
		var key string
		json.Unmarshal(params[0], &key)
		if key == "0x0102" {
			return "0xff00", nil
		}
		return nil, nil // absent key
	})
	n := newTestNode(t, f)

	raw, err := n.FetchStorage(context.Background(), []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x00}, raw)

	raw, err = n.FetchStorage(context.Background(), []byte{0x03})
	require.NoError(t, err)
	assert.Nil(t, raw, "absent keys come back nil, not empty")
}

func TestSubmitExtrinsic(t *testing.T) {
	f := newFakeNode(t)
	f.handle("author_submitExtrinsic", func(params []json.RawMessage) (interface{}, *Error) {
		var hexed string
		json.Unmarshal(params[0], &hexed)
		assert.Equal(t, "0xdead", hexed)
		return "0xabcdef", nil
	})
	n := newTestNode(t, f)

	hash, err := n.SubmitExtrinsic(context.Background(), []byte{0xDE, 0xAD})
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", hash)
}

func TestWatchRuntimeUpgrades(t *testing.T) {
	f := newFakeNode(t)
	f.result("state_subscribeRuntimeVersion", "rv-1")
	n := newTestNode(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := n.WatchRuntimeUpgrades(ctx)
	require.NoError(t, err)

	f.notify("state_runtimeVersion", "rv-1", map[string]int{"specVersion": 2})
	select {
	case _, ok := <-updates:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("upgrade signal never arrived")
	}

	cancel()
	select {
	case _, ok := <-updates:
		assert.False(t, ok, "channel closes when the watch ends")
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}
