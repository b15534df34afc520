package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/kvmkrao/hdf5/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
// A message starts with the message type (1 byte) and a big endian flag word
// (4 bytes) that tells which of the optional fields follow. Fields are written
// in the order of the flags below, integers as big endian uint64, byte slices
// and strings with a uint32 length prefix.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasLocID uint32 = 1 << iota
	hasLocHandle
	hasName
	hasObjectID
	hasHandle
	hasMdkvID
	hasAttrkvID
	hasKeyMem
	hasKeyMap
	hasValMem
	hasValMap
	hasPlist
	hasKey
	hasBulkOrigin
	hasBulkRegion
	hasBulkSize
	hasValueSize
	hasVariableLength
	hasChecksum
	hasCollective
	hasWTID
	hasRTID
	hasScope
	hasCount
	hasExists
	hasOk
	hasErr
	hasErrCode
	hasMeta
)

const headerSize = 5

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)

	w.u64(hasLocID, msg.LocID)
	w.u64(hasLocHandle, msg.LocHandle)
	w.str(hasName, msg.Name)
	w.u64(hasObjectID, msg.ObjectID)
	w.u64(hasHandle, msg.Handle)
	w.u64(hasMdkvID, msg.MdkvID)
	w.u64(hasAttrkvID, msg.AttrkvID)
	w.bytes(hasKeyMem, msg.KeyMem)
	w.bytes(hasKeyMap, msg.KeyMap)
	w.bytes(hasValMem, msg.ValMem)
	w.bytes(hasValMap, msg.ValMap)
	w.bytes(hasPlist, msg.Plist)
	w.bytes(hasKey, msg.Key)
	w.str(hasBulkOrigin, msg.BulkOrigin)
	w.str(hasBulkRegion, msg.BulkRegion)
	w.u64(hasBulkSize, msg.BulkSize)
	w.u64(hasValueSize, msg.ValueSize)
	w.flag(hasVariableLength, msg.VariableLength)
	w.u64(hasChecksum, msg.Checksum)
	w.flag(hasCollective, msg.Collective)
	w.u64(hasWTID, msg.WTID)
	w.u64(hasRTID, msg.RTID)
	w.u64(hasScope, uint64(msg.Scope))
	w.u64(hasCount, msg.Count)
	if msg.Exists != 0 {
		w.flags |= hasExists
		w.buf = append(w.buf, byte(msg.Exists))
	}
	w.flag(hasOk, msg.Ok)
	w.str(hasErr, msg.Err)
	w.u64(hasErrCode, msg.ErrCode)
	w.bytes(hasMeta, msg.Meta)

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint32(w.buf[1:headerSize], w.flags)
	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	r := binaryReader{
		data:  data,
		pos:   headerSize,
		flags: binary.BigEndian.Uint32(data[1:headerSize]),
	}
	*msg = common.Message{MsgType: common.MessageType(data[0])}

	msg.LocID = r.u64(hasLocID, "LocID")
	msg.LocHandle = r.u64(hasLocHandle, "LocHandle")
	msg.Name = r.str(hasName, "Name")
	msg.ObjectID = r.u64(hasObjectID, "ObjectID")
	msg.Handle = r.u64(hasHandle, "Handle")
	msg.MdkvID = r.u64(hasMdkvID, "MdkvID")
	msg.AttrkvID = r.u64(hasAttrkvID, "AttrkvID")
	msg.KeyMem = r.bytes(hasKeyMem, "KeyMem")
	msg.KeyMap = r.bytes(hasKeyMap, "KeyMap")
	msg.ValMem = r.bytes(hasValMem, "ValMem")
	msg.ValMap = r.bytes(hasValMap, "ValMap")
	msg.Plist = r.bytes(hasPlist, "Plist")
	msg.Key = r.bytes(hasKey, "Key")
	msg.BulkOrigin = r.str(hasBulkOrigin, "BulkOrigin")
	msg.BulkRegion = r.str(hasBulkRegion, "BulkRegion")
	msg.BulkSize = r.u64(hasBulkSize, "BulkSize")
	msg.ValueSize = r.u64(hasValueSize, "ValueSize")
	msg.VariableLength = r.flag(hasVariableLength)
	msg.Checksum = r.u64(hasChecksum, "Checksum")
	msg.Collective = r.flag(hasCollective)
	msg.WTID = r.u64(hasWTID, "WTID")
	msg.RTID = r.u64(hasRTID, "RTID")
	msg.Scope = uint32(r.u64(hasScope, "Scope"))
	msg.Count = r.u64(hasCount, "Count")
	if r.flags&hasExists != 0 {
		if raw := r.take(1, "Exists"); raw != nil {
			msg.Exists = int8(raw[0])
		}
	}
	msg.Ok = r.flag(hasOk)
	msg.Err = r.str(hasErr, "Err")
	msg.ErrCode = r.u64(hasErrCode, "ErrCode")
	msg.Meta = r.bytes(hasMeta, "Meta")

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes returns an upper bound of the serialized size of msg
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize + 14*8 + 1
	for _, field := range [][]byte{msg.KeyMem, msg.KeyMap, msg.ValMem, msg.ValMap, msg.Plist, msg.Key, msg.Meta} {
		size += 4 + len(field)
	}
	for _, field := range []string{msg.Name, msg.BulkOrigin, msg.BulkRegion, msg.Err} {
		size += 4 + len(field)
	}
	return size
}

type binaryWriter struct {
	buf   []byte
	flags uint32
}

func (w *binaryWriter) u64(flag uint32, v uint64) {
	if v == 0 {
		return
	}
	w.flags |= flag
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binaryWriter) bytes(flag uint32, v []byte) {
	if v == nil {
		return
	}
	w.flags |= flag
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *binaryWriter) str(flag uint32, v string) {
	if v == "" {
		return
	}
	w.flags |= flag
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

// flag fields carry no payload, the presence bit is the value
func (w *binaryWriter) flag(flag uint32, v bool) {
	if v {
		w.flags |= flag
	}
}

// binaryReader reads the fields announced by flags. The first error is kept,
// all reads after it return zero values.
type binaryReader struct {
	data  []byte
	pos   int
	flags uint32
	err   error
}

func (r *binaryReader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *binaryReader) u64(flag uint32, field string) uint64 {
	if r.flags&flag == 0 {
		return 0
	}
	b := r.take(8, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *binaryReader) bytes(flag uint32, field string) []byte {
	if r.flags&flag == 0 {
		return nil
	}
	l := r.take(4, field+" length")
	if l == nil {
		return nil
	}
	b := r.take(int(binary.BigEndian.Uint32(l)), field)
	if b == nil {
		return nil
	}
	// copy, the frame buffer is reused by the transport
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *binaryReader) str(flag uint32, field string) string {
	if r.flags&flag == 0 {
		return ""
	}
	l := r.take(4, field+" length")
	if l == nil {
		return ""
	}
	return string(r.take(int(binary.BigEndian.Uint32(l)), field))
}

func (r *binaryReader) flag(flag uint32) bool {
	return r.flags&flag != 0
}
