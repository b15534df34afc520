package mapsvc

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/iod"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("mapsvc")

// ValueSource returns the stored form of a variable length value
type ValueSource func(st store.IObjectStore, h store.Handle, rtid uint64, key []byte) ([]byte, error)

// StoredValue is the ValueSource reading the stored entry
func StoredValue(st store.IObjectStore, h store.Handle, rtid uint64, key []byte) ([]byte, error) {
	return st.KVGet(h, rtid, key)
}

// Config of a Service
type Config struct {
	// TraceValues logs every value written by Set
	TraceValues bool
	// BulkTimeout bounds every pull or push, 0 means no bound
	BulkTimeout time.Duration
	// VLSource provides variable length values to Get (default StoredValue)
	VLSource ValueSource
	// IDSeed seeds the allocator of object ids (0 picks a random seed)
	IDSeed uint64
}

// Service executes map operations against one container
type Service struct {
	st     store.IObjectStore
	bulk   *bulk.Adapter
	alloc  *iod.IDAllocator
	config Config
}

// NewService creates a map service on st that moves values with adapter
func NewService(st store.IObjectStore, adapter *bulk.Adapter, config Config) *Service {
	if config.VLSource == nil {
		config.VLSource = StoredValue
	}
	return &Service{
		st:     st,
		bulk:   adapter,
		alloc:  iod.NewIDAllocator(config.IDSeed),
		config: config,
	}
}

// Allocator returns the id allocator of the service
func (s *Service) Allocator() *iod.IDAllocator {
	return s.alloc
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// open returns the handle of t, opening the map by id if t has none
func (s *Service) open(sc *scope, t Target) (store.Handle, error) {
	if t.Handle.IsDefined() {
		return t.Handle, nil
	}
	h, err := s.st.OpenWrite(t.ID)
	if err != nil {
		return store.UndefinedHandle, store.Wrap(err, store.RetCUnknown, fmt.Sprintf("open map %d", t.ID))
	}
	sc.handle(h, "map")
	return h, nil
}

func (s *Service) bulkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.BulkTimeout > 0 {
		return context.WithTimeout(ctx, s.config.BulkTimeout)
	}
	return context.WithCancel(ctx)
}

// convert converts one element in buf from src to dst. The shape tells whether
// the value was converted (fixed) or left as it is (variable).
func convert(src, dst dtype.Type, buf []byte) (dtype.Shape, []byte, error) {
	shape, buf, err := dtype.AdjustBuffer(src, dst, 1, buf)
	if err != nil {
		return shape, nil, store.Wrap(err, store.RetCTypeConversionFailed, "adjust buffer")
	}
	if shape.IsVariable() {
		return shape, buf, nil
	}
	if buf, err = dtype.Convert(src, dst, 1, buf); err != nil {
		return shape, nil, store.Wrap(err, store.RetCTypeConversionFailed, "convert")
	}
	return shape, buf, nil
}

// convertKey returns the stored form of a key. The request key is not modified.
func convertKey(t KeyTypes, key []byte) ([]byte, error) {
	_, buf, err := convert(t.KeyMem, t.KeyMap, bytes.Clone(key))
	return buf, err
}

// traceValue logs a value written by Set
func traceValue(t dtype.Type, shape dtype.Shape, value []byte) {
	switch {
	case t.Class == dtype.ClassString && shape.IsVariable():
		Logger.Infof("String Length %d: %s", len(value), dtype.Format(t, value))
	case shape.IsVariable():
		Logger.Infof("Sequence of %d bytes: %s", len(value), dtype.Format(t, value))
	default:
		Logger.Infof("Map Set value = %s; size = %d", dtype.Format(t, value), len(value))
	}
}

// transferChecksum returns the checksum of data if scope asks for transfer checks
func transferChecksum(scope checksum.Scope, data []byte) uint64 {
	if !scope.Has(checksum.ScopeTransfer) {
		return checksum.None
	}
	return checksum.Compute(data)
}
