package mapsvc

import (
	"context"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/store"
)

// Set pulls the value from the client and stores (key, value) under req.WTID.
// With ScopeTransfer the pulled bytes must match req.Checksum, otherwise nothing
// is written and RetCDataCorruption is returned.
func (s *Service) Set(ctx context.Context, req SetRequest) (err error) {
	sc := newScope(s.st, "set")
	defer sc.done(&err)

	h, err := s.open(sc, req.Target)
	if err != nil {
		return err
	}

	bctx, cancel := s.bulkContext(ctx)
	defer cancel()
	block, err := s.bulk.Pull(bctx, req.Value)
	if err != nil {
		return err
	}
	sc.block(block)

	if req.Scope.Has(checksum.ScopeTransfer) {
		if cs := checksum.Compute(block.Data); cs != req.Checksum {
			return store.Errorf(store.RetCDataCorruption,
				"value corrupted in transfer: expected checksum %#x, got %#x", req.Checksum, cs)
		}
	}

	key, err := convertKey(req.KeyTypes, req.Key)
	if err != nil {
		return err
	}
	shape, value, err := convert(req.ValueMem, req.ValueMap, block.Data)
	if err != nil {
		return err
	}
	if s.config.TraceValues {
		traceValue(req.ValueMem, shape, value)
	}

	if err := s.st.KVSet(h, req.WTID, key, value); err != nil {
		return store.Wrap(err, store.RetCUnknown, "set kv pair")
	}
	return nil
}

// Get reads the value of a key, converts it to the memory type and pushes it to
// the client. Variable length values are sent verbatim, a request for one with
// ValueSize 0 only reports size and checksum. On failure size and checksum are 0.
func (s *Service) Get(ctx context.Context, req GetRequest) (resp GetResponse, err error) {
	sc := newScope(s.st, "get")
	defer sc.done(&err)
	defer func() {
		if err != nil {
			resp = GetResponse{}
		}
	}()

	h, err := s.open(sc, req.Target)
	if err != nil {
		return resp, err
	}
	key, err := convertKey(req.KeyTypes, req.Key)
	if err != nil {
		return resp, err
	}

	size, err := s.st.KVGetSize(h, req.RTID, key)
	if err != nil {
		return resp, store.Wrap(err, store.RetCUnknown, "get value size")
	}

	var value []byte
	if req.VariableLength {
		if value, err = s.config.VLSource(s.st, h, req.RTID, key); err != nil {
			return resp, store.Wrap(err, store.RetCUnknown, "get variable length value")
		}
	} else {
		stored, err := s.st.KVGet(h, req.RTID, key)
		if err != nil {
			return resp, store.Wrap(err, store.RetCUnknown, "get value")
		}
		if uint64(len(stored)) != size {
			return resp, store.Errorf(store.RetCDataCorruption, "value has %d bytes, size query reported %d", len(stored), size)
		}
		if _, value, err = convert(req.ValueMap, req.ValueMem, stored); err != nil {
			return resp, err
		}
	}

	resp = GetResponse{Size: uint64(len(value)), Checksum: transferChecksum(req.Scope, value)}

	// size probe of a variable length value
	if req.VariableLength && req.ValueSize == 0 {
		return resp, nil
	}

	capacity := req.Value.Size
	if req.ValueSize > 0 {
		capacity = min(capacity, req.ValueSize)
	}
	if uint64(len(value)) > capacity {
		return resp, store.Errorf(store.RetCResourceExhausted, "value of %d bytes does not fit into %d bytes", len(value), capacity)
	}

	bctx, cancel := s.bulkContext(ctx)
	defer cancel()
	if err := s.bulk.Push(bctx, req.Value, value); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetCount returns the number of live entries at req.RTID, CountUndefined on failure
func (s *Service) GetCount(ctx context.Context, req CountRequest) (resp CountResponse, err error) {
	sc := newScope(s.st, "get_count")
	defer sc.done(&err)
	resp.Count = CountUndefined

	h, err := s.open(sc, req.Target)
	if err != nil {
		return resp, err
	}
	n, err := s.st.KVCount(h, req.RTID)
	if err != nil {
		return resp, store.Wrap(err, store.RetCUnknown, "count kv pairs")
	}
	return CountResponse{Count: n}, nil
}

// Exists reports ExistsTrue or ExistsFalse depending on whether the key has a value at
// req.RTID. Any failure other than an absent key yields ExistsUnknown and the error.
func (s *Service) Exists(ctx context.Context, req ExistsRequest) (resp ExistsResponse, err error) {
	sc := newScope(s.st, "exists")
	defer sc.done(&err)
	resp.Exists = ExistsUnknown

	h, err := s.open(sc, req.Target)
	if err != nil {
		return resp, err
	}
	key, err := convertKey(req.KeyTypes, req.Key)
	if err != nil {
		return resp, err
	}

	// the size query does not read the value
	_, err = s.st.KVGetSize(h, req.RTID, key)
	switch store.CodeOf(err) {
	case store.RetCSuccess:
		return ExistsResponse{Exists: ExistsTrue}, nil
	case store.RetCNotFound:
		return ExistsResponse{Exists: ExistsFalse}, nil
	default:
		return resp, store.Wrap(err, store.RetCUnknown, "query value size")
	}
}

// Delete unlinks a single key under req.WTID. Deleting an absent key fails with RetCNotFound.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (err error) {
	sc := newScope(s.st, "delete")
	defer sc.done(&err)

	h, err := s.open(sc, req.Target)
	if err != nil {
		return err
	}
	key, err := convertKey(req.KeyTypes, req.Key)
	if err != nil {
		return err
	}
	if err := s.st.KVUnlink(h, req.WTID, key); err != nil {
		return store.Wrap(err, store.RetCUnknown, fmt.Sprintf("unlink key %x", req.Key))
	}
	return nil
}
