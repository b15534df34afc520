package bulk

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// IExposer makes buffers accessible to a remote side
type IExposer interface {
	// Expose registers buf and returns a descriptor for it. The buffer must not
	// be modified by the owner until it is withdrawn.
	Expose(buf []byte, mode Mode) Descriptor
	// Withdraw removes a region. Withdrawing an unknown region is a no-op.
	Withdraw(desc Descriptor)
}

type region struct {
	buf  []byte
	mode Mode
}

// Registry holds the exposed regions of a process
type Registry struct {
	origin  string
	regions *xsync.MapOf[string, region]
}

// NewRegistry creates a registry whose descriptors carry the given origin
func NewRegistry(origin string) *Registry {
	return &Registry{
		origin:  origin,
		regions: xsync.NewMapOf[string, region](),
	}
}

func (r *Registry) Expose(buf []byte, mode Mode) Descriptor {
	id := uuid.NewString()
	r.regions.Store(id, region{buf: buf, mode: mode})
	return Descriptor{Origin: r.origin, Region: id, Size: uint64(len(buf))}
}

func (r *Registry) Withdraw(desc Descriptor) {
	r.regions.Delete(desc.Region)
}

// Len returns the number of exposed regions
func (r *Registry) Len() int {
	return r.regions.Size()
}

// ReadRegion copies the content of a readable region into dst.
// dst must be exactly as large as the region.
func (r *Registry) ReadRegion(id string, dst []byte) (int, error) {
	reg, ok := r.regions.Load(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	if !reg.mode.CanRead() {
		return 0, fmt.Errorf("%w: read %s", ErrAccessDenied, id)
	}
	if len(dst) != len(reg.buf) {
		return 0, fmt.Errorf("%w: region %s has %d bytes, reader expects %d", ErrSizeMismatch, id, len(reg.buf), len(dst))
	}
	return copy(dst, reg.buf), nil
}

// Region returns the buffer of a region if the mode permits the access
func (r *Registry) Region(id string, write bool) ([]byte, error) {
	reg, ok := r.regions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	if (write && !reg.mode.CanWrite()) || (!write && !reg.mode.CanRead()) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, id)
	}
	return reg.buf, nil
}

// WriteRegion copies src into the start of a writable region.
// src may be shorter than the region but never longer.
func (r *Registry) WriteRegion(id string, src []byte) (int, error) {
	buf, err := r.Region(id, true)
	if err != nil {
		return 0, err
	}
	if len(src) > len(buf) {
		return 0, fmt.Errorf("%w: region %s has %d bytes, writer sends %d", ErrSizeMismatch, id, len(buf), len(src))
	}
	return copy(buf, src), nil
}
