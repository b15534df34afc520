package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTCreateObject CommandType = iota // Create an object if the id is unused.
	CommandTSetScratch                      // Write the scratch pad of an object.
	CommandTKVSet                           // Insert or update a key of a KV object.
	CommandTKVUnlink                        // Remove a key of a KV object.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTCreateObject:
		return "CreateObject"
	case CommandTSetScratch:
		return "SetScratch"
	case CommandTKVSet:
		return "KVSet"
	case CommandTKVUnlink:
		return "KVUnlink"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTCreateObject:
		return db.FeatureCreate, nil
	case CommandTSetScratch:
		return db.FeatureScratchPad, nil
	case CommandTKVSet:
		return db.FeatureSet, nil
	case CommandTKVUnlink:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type   CommandType
	Object db.ObjectID
	Txn    uint64 // write transaction the command is applied under
	Aux    uint64 // object type (CreateObject) or checksum (SetScratch)
	Key    string
	Value  []byte // value (KVSet) or encoded scratch pad (SetScratch)
}

const commandHeaderSize = 1 + 8 + 8 + 8 + 4 // Type + Object + Txn + Aux + KeyLen

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return commandHeaderSize + len(command.Key) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for the object id,
// 8 bytes for the write transaction,
// 8 bytes for the auxiliary value,
// 4 bytes for key length,
// N bytes for key data,
// N bytes for value data (optional)
// All integers are big endian.
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], uint64(command.Object))
	binary.BigEndian.PutUint64(result[9:17], command.Txn)
	binary.BigEndian.PutUint64(result[17:25], command.Aux)
	binary.BigEndian.PutUint32(result[25:29], uint32(len(command.Key)))

	n := copy(result[commandHeaderSize:], command.Key)
	copy(result[commandHeaderSize+n:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < commandHeaderSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Object = db.ObjectID(binary.BigEndian.Uint64(data[1:9]))
	command.Txn = binary.BigEndian.Uint64(data[9:17])
	command.Aux = binary.BigEndian.Uint64(data[17:25])
	keyLen := int(binary.BigEndian.Uint32(data[25:29]))

	if len(data) < commandHeaderSize+keyLen {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[commandHeaderSize : commandHeaderSize+keyLen])

	rest := data[commandHeaderSize+keyLen:]
	if len(rest) == 0 {
		command.Value = nil
		return nil
	}
	// Reuse existing buffer if possible to reduce allocations
	if cap(command.Value) < len(rest) {
		command.Value = make([]byte, len(rest))
	} else {
		command.Value = command.Value[:len(rest)]
	}
	copy(command.Value, rest)

	return nil
}

// EncodeScratchPad encodes the four scratch pad slots (big endian)
func EncodeScratchPad(sp db.ScratchPad) []byte {
	buf := make([]byte, 8*len(sp))
	for i, id := range sp {
		binary.BigEndian.PutUint64(buf[8*i:], uint64(id))
	}
	return buf
}

// DecodeScratchPad is the inverse of EncodeScratchPad
func DecodeScratchPad(buf []byte) (db.ScratchPad, error) {
	var sp db.ScratchPad
	if len(buf) != 8*len(sp) {
		return sp, fmt.Errorf("scratch pad must be %d bytes, got %d", 8*len(sp), len(buf))
	}
	for i := range sp {
		sp[i] = db.ObjectID(binary.BigEndian.Uint64(buf[8*i:]))
	}
	return sp, nil
}
