package bulk

import (
	"context"
	"sync"
	"time"

	"github.com/kvmkrao/hdf5/lib/store"
)

// maxPooled is the largest block kept in the pool, larger ones are left to the gc
const maxPooled = 1 << 20

// DefaultMaxSize is the largest region an adapter pulls unless configured otherwise
const DefaultMaxSize = 64 << 20

// Block is memory received by Pull. It is owned by the caller until Release.
type Block struct {
	Data   []byte
	pooled *[]byte
	pool   *sync.Pool
}

// Release returns the memory of the block. The block must not be used afterward.
// Calling Release more than once is a no-op.
func (b *Block) Release() {
	if b == nil || b.pooled == nil {
		return
	}
	b.pool.Put(b.pooled)
	b.pooled, b.Data = nil, nil
}

// Adapter performs blocking pulls and pushes for request handlers
type Adapter struct {
	transport ITransport
	timeout   time.Duration
	maxSize   uint64
	pool      sync.Pool
}

// NewAdapter creates an adapter. timeout bounds each wait, 0 means no bound.
// Pull rejects regions larger than maxSize bytes, 0 selects DefaultMaxSize.
func NewAdapter(transport ITransport, timeout time.Duration, maxSize uint64) *Adapter {
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	a := &Adapter{transport: transport, timeout: timeout, maxSize: maxSize}
	a.pool.New = func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	}
	return a
}

func (a *Adapter) alloc(size uint64) *Block {
	if size > maxPooled {
		return &Block{Data: make([]byte, size)}
	}
	p := a.pool.Get().(*[]byte)
	if uint64(cap(*p)) < size {
		*p = make([]byte, size)
	}
	return &Block{Data: (*p)[:size], pooled: p, pool: &a.pool}
}

// MaxSize is the largest region Pull accepts
func (a *Adapter) MaxSize() uint64 {
	return a.maxSize
}

// Pull allocates a block of desc.Size bytes and reads the region into it.
// Errors are *store.Error with RetCTransferFailed, regions larger than the
// maximum size fail with RetCResourceExhausted before anything is allocated.
func (a *Adapter) Pull(ctx context.Context, desc Descriptor) (*Block, error) {
	if desc.IsZero() {
		return nil, store.NewError(store.RetCTransferFailed, "pull: no bulk region")
	}
	if desc.Size > a.maxSize {
		return nil, store.Errorf(store.RetCResourceExhausted, "pull %s: %d bytes exceed the limit of %d bytes", desc, desc.Size, a.maxSize)
	}

	block := a.alloc(desc.Size)
	start := time.Now()
	if _, err := a.transport.Read(ctx, desc, block.Data).Wait(a.timeout); err != nil {
		// the transfer may still be writing into the block, it is not pooled again
		return nil, store.Errorf(store.RetCTransferFailed, "pull %s: %v", desc, err)
	}
	Logger.Debugf("pulled %d bytes from %s in %s", desc.Size, desc, time.Since(start))
	return block, nil
}

// Push writes data into the region of desc and waits for completion.
// Errors are *store.Error with RetCTransferFailed.
func (a *Adapter) Push(ctx context.Context, desc Descriptor, data []byte) error {
	if desc.IsZero() {
		return store.NewError(store.RetCTransferFailed, "push: no bulk region")
	}
	if uint64(len(data)) > desc.Size {
		return store.Errorf(store.RetCResourceExhausted, "push %s: %d bytes do not fit", desc, len(data))
	}

	start := time.Now()
	if _, err := a.transport.Write(ctx, desc, data).Wait(a.timeout); err != nil {
		return store.Errorf(store.RetCTransferFailed, "push %s: %v", desc, err)
	}
	Logger.Debugf("pushed %d bytes to %s in %s", len(data), desc, time.Since(start))
	return nil
}
