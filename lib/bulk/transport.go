package bulk

import (
	"context"
	"fmt"
)

// ITransport moves data between the local process and exposed regions
type ITransport interface {
	// Read pulls the region of desc into dst
	Read(ctx context.Context, desc Descriptor, dst []byte) *Request
	// Write pushes src into the region of desc
	Write(ctx context.Context, desc Descriptor, src []byte) *Request
}

// --------------------------------------------------------------------------
// Local Transport
// --------------------------------------------------------------------------

type localTransport struct {
	reg *Registry
}

// NewLocalTransport returns a transport for regions of an in-process registry
func NewLocalTransport(reg *Registry) ITransport {
	return &localTransport{reg: reg}
}

func (t *localTransport) Read(ctx context.Context, desc Descriptor, dst []byte) *Request {
	return Go(func() (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return t.reg.ReadRegion(desc.Region, dst)
	})
}

func (t *localTransport) Write(ctx context.Context, desc Descriptor, src []byte) *Request {
	return Go(func() (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return t.reg.WriteRegion(desc.Region, src)
	})
}

// --------------------------------------------------------------------------
// Multi Transport
// --------------------------------------------------------------------------

// MultiTransport dispatches on the scheme of the descriptor origin
type MultiTransport map[string]ITransport

func (m MultiTransport) pick(desc Descriptor) (ITransport, error) {
	t, ok := m[desc.Scheme()]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoTransport, desc.Origin)
	}
	return t, nil
}

func (m MultiTransport) Read(ctx context.Context, desc Descriptor, dst []byte) *Request {
	t, err := m.pick(desc)
	if err != nil {
		return failed(err)
	}
	return t.Read(ctx, desc, dst)
}

func (m MultiTransport) Write(ctx context.Context, desc Descriptor, src []byte) *Request {
	t, err := m.pick(desc)
	if err != nil {
		return failed(err)
	}
	return t.Write(ctx, desc, src)
}
