package bulk

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(LocalOrigin)
	src := []byte("payload")

	desc := reg.Expose(src, ModeReadOnly)
	require.Equal(t, "local", desc.Scheme())
	require.Equal(t, uint64(len(src)), desc.Size)
	require.Equal(t, 1, reg.Len())

	dst := make([]byte, len(src))
	n, err := reg.ReadRegion(desc.Region, dst)
	require.NoError(t, err)
	require.Equal(t, len(src), n)
	require.Equal(t, src, dst)

	_, err = reg.ReadRegion(desc.Region, make([]byte, 3))
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = reg.WriteRegion(desc.Region, []byte("x"))
	require.ErrorIs(t, err, ErrAccessDenied)

	reg.Withdraw(desc)
	require.Equal(t, 0, reg.Len())
	_, err = reg.ReadRegion(desc.Region, dst)
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestAdapterPullPush(t *testing.T) {
	reg := NewRegistry(LocalOrigin)
	adapter := NewAdapter(NewLocalTransport(reg), time.Second, 0)
	ctx := context.Background()

	src := bytes.Repeat([]byte{0xAB}, 100)
	in := reg.Expose(src, ModeReadOnly)
	defer reg.Withdraw(in)

	block, err := adapter.Pull(ctx, in)
	require.NoError(t, err)
	require.Equal(t, src, block.Data)
	block.Release()
	block.Release()
	require.Nil(t, block.Data)

	dst := make([]byte, 16)
	out := reg.Expose(dst, ModeWriteOnly)
	defer reg.Withdraw(out)

	require.NoError(t, adapter.Push(ctx, out, []byte("hello")))
	require.Equal(t, []byte("hello"), dst[:5])

	err = adapter.Push(ctx, out, make([]byte, 17))
	require.ErrorIs(t, err, store.ErrResourceExhausted)
}

func TestAdapterFailures(t *testing.T) {
	reg := NewRegistry(LocalOrigin)
	adapter := NewAdapter(NewLocalTransport(reg), time.Second, 0)
	ctx := context.Background()

	_, err := adapter.Pull(ctx, Descriptor{})
	require.ErrorIs(t, err, store.ErrTransferFailed)

	_, err = adapter.Pull(ctx, Descriptor{Origin: LocalOrigin, Region: "missing", Size: 4})
	require.ErrorIs(t, err, store.ErrTransferFailed)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	desc := reg.Expose(make([]byte, 4), ModeReadWrite)
	err = adapter.Push(canceled, desc, []byte{1})
	require.ErrorIs(t, err, store.ErrTransferFailed)
}

func TestAdapterMaxSize(t *testing.T) {
	reg := NewRegistry(LocalOrigin)
	adapter := NewAdapter(NewLocalTransport(reg), time.Second, 8)
	ctx := context.Background()
	require.EqualValues(t, 8, adapter.MaxSize())
	require.EqualValues(t, DefaultMaxSize, NewAdapter(NewLocalTransport(reg), time.Second, 0).MaxSize())

	desc := reg.Expose([]byte("12345678"), ModeReadOnly)
	defer reg.Withdraw(desc)
	block, err := adapter.Pull(ctx, desc)
	require.NoError(t, err)
	block.Release()

	// a descriptor may claim any size, it is rejected before the block is allocated
	huge := desc
	huge.Size = 1 << 62
	_, err = adapter.Pull(ctx, huge)
	require.ErrorIs(t, err, store.ErrResourceExhausted)

	huge.Size = 9
	_, err = adapter.Pull(ctx, huge)
	require.ErrorIs(t, err, store.ErrResourceExhausted)
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	req := Go(func() (int, error) {
		<-release
		return 0, nil
	})
	_, err := req.Wait(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestMultiTransport(t *testing.T) {
	reg := NewRegistry(LocalOrigin)
	mt := MultiTransport{"local": NewLocalTransport(reg)}

	desc := reg.Expose([]byte("abc"), ModeReadOnly)
	dst := make([]byte, 3)
	n, err := mt.Read(context.Background(), desc, dst).Wait(0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = mt.Write(context.Background(), Descriptor{Origin: "ftp://x", Region: "r"}, dst).Wait(0)
	require.True(t, errors.Is(err, ErrNoTransport))
}
