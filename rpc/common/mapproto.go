package common

import (
	"fmt"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
)

// --------------------------------------------------------------------------
// Field Helpers
// --------------------------------------------------------------------------

// encodeType returns the wire form of t, nil for the zero type
func encodeType(t dtype.Type) []byte {
	if t.Class == 0 {
		return nil
	}
	return t.Encode()
}

// decodeType parses the wire form of a type, nil yields the zero type
func decodeType(field string, b []byte) (dtype.Type, error) {
	if len(b) == 0 {
		return dtype.Type{}, nil
	}
	t, err := dtype.Decode(b)
	if err != nil {
		return dtype.Type{}, store.Errorf(store.RetCInvalidOperation, "invalid %s datatype: %v", field, err)
	}
	return t, nil
}

// decodeTypes decodes the four datatype fields of m
func (m *Message) decodeTypes() (mapsvc.KeyTypes, mapsvc.ValueTypes, error) {
	var (
		kt  mapsvc.KeyTypes
		vt  mapsvc.ValueTypes
		err error
	)
	if kt.KeyMem, err = decodeType("key memory", m.KeyMem); err != nil {
		return kt, vt, err
	}
	if kt.KeyMap, err = decodeType("key map", m.KeyMap); err != nil {
		return kt, vt, err
	}
	if vt.ValueMem, err = decodeType("value memory", m.ValMem); err != nil {
		return kt, vt, err
	}
	if vt.ValueMap, err = decodeType("value map", m.ValMap); err != nil {
		return kt, vt, err
	}
	return kt, vt, nil
}

func (m *Message) setTarget(t mapsvc.Target) {
	m.ObjectID = uint64(t.ID)
	m.Handle = t.Handle.Cookie
}

func (m *Message) target() mapsvc.Target {
	return mapsvc.Target{ID: db.ObjectID(m.ObjectID), Handle: store.Handle{Cookie: m.Handle}}
}

func (m *Message) setBulk(d bulk.Descriptor) {
	m.BulkOrigin = d.Origin
	m.BulkRegion = d.Region
	m.BulkSize = d.Size
}

func (m *Message) bulk() bulk.Descriptor {
	return bulk.Descriptor{Origin: m.BulkOrigin, Region: m.BulkRegion, Size: m.BulkSize}
}

// expect fails if m is not of type t
func (m *Message) expect(t MessageType) error {
	if m.MsgType != t {
		return fmt.Errorf("unexpected message type %s, expected %s", m.MsgType, t)
	}
	return nil
}

// --------------------------------------------------------------------------
// Create
// --------------------------------------------------------------------------

// NewMapCreateRequest creates a new Create request
func NewMapCreateRequest(req mapsvc.CreateRequest) *Message {
	return &Message{
		MsgType:    MsgTMapCreate,
		LocID:      uint64(req.LocID),
		LocHandle:  req.LocHandle.Cookie,
		Name:       req.Name,
		ObjectID:   uint64(req.MapID),
		MdkvID:     uint64(req.MdkvID),
		AttrkvID:   uint64(req.AttrkvID),
		KeyMap:     encodeType(req.KeyType),
		ValMap:     encodeType(req.ValType),
		Plist:      req.Plist,
		WTID:       req.WTID,
		RTID:       req.RTID,
		Scope:      uint32(req.Scope),
		Collective: req.Collective,
	}
}

// MapCreateRequest decodes a Create request
func (m *Message) MapCreateRequest() (mapsvc.CreateRequest, error) {
	kt, vt, err := m.decodeTypes()
	if err != nil {
		return mapsvc.CreateRequest{}, err
	}
	return mapsvc.CreateRequest{
		LocID:      db.ObjectID(m.LocID),
		LocHandle:  store.Handle{Cookie: m.LocHandle},
		Name:       m.Name,
		MapID:      db.ObjectID(m.ObjectID),
		MdkvID:     db.ObjectID(m.MdkvID),
		AttrkvID:   db.ObjectID(m.AttrkvID),
		KeyType:    kt.KeyMap,
		ValType:    vt.ValueMap,
		Plist:      m.Plist,
		WTID:       m.WTID,
		RTID:       m.RTID,
		Scope:      checksum.Scope(m.Scope),
		Collective: m.Collective,
	}, nil
}

// NewMapCreateResponse creates a new Create response
func NewMapCreateResponse(resp mapsvc.CreateResponse, err error) *Message {
	return withErr(&Message{
		MsgType:  MsgTMapCreate,
		ObjectID: uint64(resp.ID),
		Handle:   resp.Handle.Cookie,
		Ok:       resp.Created,
	}, err)
}

// MapCreateResponse decodes a Create response
func (m *Message) MapCreateResponse() (mapsvc.CreateResponse, error) {
	resp := mapsvc.CreateResponse{
		ID:      db.ObjectID(m.ObjectID),
		Handle:  store.Handle{Cookie: m.Handle},
		Created: m.Ok,
	}
	if err := m.AsError(); err != nil {
		return resp, err
	}
	return resp, m.expect(MsgTMapCreate)
}

// --------------------------------------------------------------------------
// Open
// --------------------------------------------------------------------------

// NewMapOpenRequest creates a new Open request
func NewMapOpenRequest(req mapsvc.OpenRequest) *Message {
	return &Message{
		MsgType:   MsgTMapOpen,
		LocID:     uint64(req.LocID),
		LocHandle: req.LocHandle.Cookie,
		Name:      req.Name,
		RTID:      req.RTID,
		Scope:     uint32(req.Scope),
	}
}

// MapOpenRequest decodes an Open request
func (m *Message) MapOpenRequest() mapsvc.OpenRequest {
	return mapsvc.OpenRequest{
		LocID:     db.ObjectID(m.LocID),
		LocHandle: store.Handle{Cookie: m.LocHandle},
		Name:      m.Name,
		RTID:      m.RTID,
		Scope:     checksum.Scope(m.Scope),
	}
}

// NewMapOpenResponse creates a new Open response
func NewMapOpenResponse(resp mapsvc.OpenResponse, err error) *Message {
	return withErr(&Message{
		MsgType:  MsgTMapOpen,
		ObjectID: uint64(resp.ID),
		Handle:   resp.Handle.Cookie,
		KeyMap:   encodeType(resp.KeyType),
		ValMap:   encodeType(resp.ValType),
		Plist:    resp.Plist,
		Count:    resp.LinkCount,
		MdkvID:   uint64(resp.MdkvID),
		AttrkvID: uint64(resp.AttrkvID),
	}, err)
}

// MapOpenResponse decodes an Open response
func (m *Message) MapOpenResponse() (mapsvc.OpenResponse, error) {
	resp := mapsvc.OpenResponse{
		ID:        db.ObjectID(m.ObjectID),
		Handle:    store.Handle{Cookie: m.Handle},
		Plist:     m.Plist,
		LinkCount: m.Count,
		MdkvID:    db.ObjectID(m.MdkvID),
		AttrkvID:  db.ObjectID(m.AttrkvID),
	}
	if err := m.AsError(); err != nil {
		return resp, err
	}
	kt, vt, err := m.decodeTypes()
	if err != nil {
		return resp, err
	}
	resp.KeyType, resp.ValType = kt.KeyMap, vt.ValueMap
	return resp, m.expect(MsgTMapOpen)
}

// --------------------------------------------------------------------------
// Set
// --------------------------------------------------------------------------

// NewMapSetRequest creates a new Set request
func NewMapSetRequest(req mapsvc.SetRequest) *Message {
	msg := &Message{
		MsgType:  MsgTMapSet,
		KeyMem:   encodeType(req.KeyMem),
		KeyMap:   encodeType(req.KeyMap),
		ValMem:   encodeType(req.ValueMem),
		ValMap:   encodeType(req.ValueMap),
		Key:      req.Key,
		Checksum: req.Checksum,
		WTID:     req.WTID,
		RTID:     req.RTID,
		Scope:    uint32(req.Scope),
	}
	msg.setTarget(req.Target)
	msg.setBulk(req.Value)
	return msg
}

// MapSetRequest decodes a Set request
func (m *Message) MapSetRequest() (mapsvc.SetRequest, error) {
	kt, vt, err := m.decodeTypes()
	if err != nil {
		return mapsvc.SetRequest{}, err
	}
	return mapsvc.SetRequest{
		Target:     m.target(),
		KeyTypes:   kt,
		ValueTypes: vt,
		Key:        m.Key,
		Value:      m.bulk(),
		Checksum:   m.Checksum,
		WTID:       m.WTID,
		RTID:       m.RTID,
		Scope:      checksum.Scope(m.Scope),
	}, nil
}

// NewMapSetResponse creates a new Set response
func NewMapSetResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTMapSet}, err)
}

// --------------------------------------------------------------------------
// Get
// --------------------------------------------------------------------------

// NewMapGetRequest creates a new Get request
func NewMapGetRequest(req mapsvc.GetRequest) *Message {
	msg := &Message{
		MsgType:        MsgTMapGet,
		KeyMem:         encodeType(req.KeyMem),
		KeyMap:         encodeType(req.KeyMap),
		ValMem:         encodeType(req.ValueMem),
		ValMap:         encodeType(req.ValueMap),
		Key:            req.Key,
		ValueSize:      req.ValueSize,
		VariableLength: req.VariableLength,
		RTID:           req.RTID,
		Scope:          uint32(req.Scope),
	}
	msg.setTarget(req.Target)
	msg.setBulk(req.Value)
	return msg
}

// MapGetRequest decodes a Get request
func (m *Message) MapGetRequest() (mapsvc.GetRequest, error) {
	kt, vt, err := m.decodeTypes()
	if err != nil {
		return mapsvc.GetRequest{}, err
	}
	return mapsvc.GetRequest{
		Target:         m.target(),
		KeyTypes:       kt,
		ValueTypes:     vt,
		Key:            m.Key,
		ValueSize:      m.ValueSize,
		VariableLength: m.VariableLength,
		Value:          m.bulk(),
		RTID:           m.RTID,
		Scope:          checksum.Scope(m.Scope),
	}, nil
}

// NewMapGetResponse creates a new Get response
func NewMapGetResponse(resp mapsvc.GetResponse, err error) *Message {
	return withErr(&Message{
		MsgType:  MsgTMapGet,
		Count:    resp.Size,
		Checksum: resp.Checksum,
	}, err)
}

// MapGetResponse decodes a Get response
func (m *Message) MapGetResponse() (mapsvc.GetResponse, error) {
	resp := mapsvc.GetResponse{Size: m.Count, Checksum: m.Checksum}
	if err := m.AsError(); err != nil {
		return resp, err
	}
	return resp, m.expect(MsgTMapGet)
}

// --------------------------------------------------------------------------
// GetCount
// --------------------------------------------------------------------------

// NewMapCountRequest creates a new GetCount request
func NewMapCountRequest(req mapsvc.CountRequest) *Message {
	msg := &Message{
		MsgType: MsgTMapGetCount,
		RTID:    req.RTID,
	}
	msg.setTarget(req.Target)
	return msg
}

// MapCountRequest decodes a GetCount request
func (m *Message) MapCountRequest() mapsvc.CountRequest {
	return mapsvc.CountRequest{Target: m.target(), RTID: m.RTID}
}

// NewMapCountResponse creates a new GetCount response
func NewMapCountResponse(resp mapsvc.CountResponse, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTMapGetCount,
		Count:   resp.Count,
	}, err)
}

// MapCountResponse decodes a GetCount response
func (m *Message) MapCountResponse() (mapsvc.CountResponse, error) {
	if err := m.AsError(); err != nil {
		return mapsvc.CountResponse{Count: mapsvc.CountUndefined}, err
	}
	return mapsvc.CountResponse{Count: m.Count}, m.expect(MsgTMapGetCount)
}

// --------------------------------------------------------------------------
// Exists
// --------------------------------------------------------------------------

// NewMapExistsRequest creates a new Exists request
func NewMapExistsRequest(req mapsvc.ExistsRequest) *Message {
	msg := &Message{
		MsgType: MsgTMapExists,
		KeyMem:  encodeType(req.KeyMem),
		KeyMap:  encodeType(req.KeyMap),
		Key:     req.Key,
		RTID:    req.RTID,
	}
	msg.setTarget(req.Target)
	return msg
}

// MapExistsRequest decodes an Exists request
func (m *Message) MapExistsRequest() (mapsvc.ExistsRequest, error) {
	kt, _, err := m.decodeTypes()
	if err != nil {
		return mapsvc.ExistsRequest{}, err
	}
	return mapsvc.ExistsRequest{
		Target:   m.target(),
		KeyTypes: kt,
		Key:      m.Key,
		RTID:     m.RTID,
	}, nil
}

// NewMapExistsResponse creates a new Exists response
func NewMapExistsResponse(resp mapsvc.ExistsResponse, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTMapExists,
		Exists:  resp.Exists,
	}, err)
}

// MapExistsResponse decodes an Exists response
func (m *Message) MapExistsResponse() (mapsvc.ExistsResponse, error) {
	if err := m.AsError(); err != nil {
		return mapsvc.ExistsResponse{Exists: mapsvc.ExistsUnknown}, err
	}
	return mapsvc.ExistsResponse{Exists: m.Exists}, m.expect(MsgTMapExists)
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

// NewMapDeleteRequest creates a new Delete request
func NewMapDeleteRequest(req mapsvc.DeleteRequest) *Message {
	msg := &Message{
		MsgType: MsgTMapDelete,
		KeyMem:  encodeType(req.KeyMem),
		KeyMap:  encodeType(req.KeyMap),
		Key:     req.Key,
		WTID:    req.WTID,
		RTID:    req.RTID,
	}
	msg.setTarget(req.Target)
	return msg
}

// MapDeleteRequest decodes a Delete request
func (m *Message) MapDeleteRequest() (mapsvc.DeleteRequest, error) {
	kt, _, err := m.decodeTypes()
	if err != nil {
		return mapsvc.DeleteRequest{}, err
	}
	return mapsvc.DeleteRequest{
		Target:   m.target(),
		KeyTypes: kt,
		Key:      m.Key,
		WTID:     m.WTID,
		RTID:     m.RTID,
	}, nil
}

// NewMapDeleteResponse creates a new Delete response
func NewMapDeleteResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTMapDelete}, err)
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// NewMapCloseRequest creates a new Close request
func NewMapCloseRequest(req mapsvc.CloseRequest) *Message {
	return &Message{
		MsgType: MsgTMapClose,
		Handle:  req.Handle.Cookie,
	}
}

// MapCloseRequest decodes a Close request
func (m *Message) MapCloseRequest() mapsvc.CloseRequest {
	return mapsvc.CloseRequest{Handle: store.Handle{Cookie: m.Handle}}
}

// NewMapCloseResponse creates a new Close response
func NewMapCloseResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTMapClose}, err)
}

// --------------------------------------------------------------------------
// Status Responses
// --------------------------------------------------------------------------

// StatusOf returns the error of a response that carries nothing but a status
// (Set, Delete, Close).
func (m *Message) StatusOf(t MessageType) error {
	if err := m.AsError(); err != nil {
		return err
	}
	return m.expect(t)
}
