package common

import (
	"encoding/json"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message. Object ids, handles
// and datatypes travel in their raw form, see the Map* conversion helpers.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	LocID     uint64 `json:"loc_id,omitempty"`     // Used for: Create, Open
	LocHandle uint64 `json:"loc_handle,omitempty"` // Used for: Create, Open
	Name      string `json:"name,omitempty"`       // Used for: Create, Open
	ObjectID  uint64 `json:"object_id,omitempty"`  // Used for: Create (desired id), entry operations, Create and Open (response)
	Handle    uint64 `json:"handle,omitempty"`     // Used for: entry operations, Close, Create and Open (response)
	MdkvID    uint64 `json:"mdkv_id,omitempty"`    // Used for: Create (desired id), Open (response)
	AttrkvID  uint64 `json:"attrkv_id,omitempty"`  // Used for: Create (desired id), Open (response)

	// Encoded datatypes
	KeyMem []byte `json:"key_mem,omitempty"` // Used for: Set, Get, Exists, Delete
	KeyMap []byte `json:"key_map,omitempty"` // Used for: Set, Get, Exists, Delete, Create and Open (key type)
	ValMem []byte `json:"val_mem,omitempty"` // Used for: Set, Get
	ValMap []byte `json:"val_map,omitempty"` // Used for: Set, Get, Create and Open (value type)
	Plist  []byte `json:"plist,omitempty"`   // Used for: Create, Open (response)

	// Entry fields
	Key            []byte `json:"key,omitempty"`             // Used for: Set, Get, Exists, Delete
	BulkOrigin     string `json:"bulk_origin,omitempty"`     // Used for: Set, Get
	BulkRegion     string `json:"bulk_region,omitempty"`     // Used for: Set, Get
	BulkSize       uint64 `json:"bulk_size,omitempty"`       // Used for: Set, Get
	ValueSize      uint64 `json:"value_size,omitempty"`      // Used for: Get
	VariableLength bool   `json:"variable_length,omitempty"` // Used for: Get
	Checksum       uint64 `json:"checksum,omitempty"`        // Used for: Set, Get (response)
	Collective     bool   `json:"collective,omitempty"`      // Used for: Create

	// Transactions
	WTID  uint64 `json:"wtid,omitempty"`  // Used for: Create, Set, Delete
	RTID  uint64 `json:"rtid,omitempty"`  // Used for: all but Close
	Scope uint32 `json:"scope,omitempty"` // Used for: Create, Open, Set, Get

	// Response only fields
	Count   uint64 `json:"count,omitempty"`    // Used for: GetCount, Get (size), Open (link count)
	Exists  int8   `json:"exists,omitempty"`   // Used for: Exists
	Ok      bool   `json:"ok,omitempty"`       // Used for: Create (map was created)
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode uint64 `json:"err_code,omitempty"` // store.RetCode of Err

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: ContainerInfo (response)
}

// AsError returns the error carried by a response, nil if there is none
func (m *Message) AsError() error {
	if m.Err == "" && m.ErrCode == 0 {
		return nil
	}
	code := store.RetCode(m.ErrCode)
	if code == store.RetCSuccess {
		code = store.RetCUnknown
	}
	return store.NewError(code, m.Err)
}

// withErr sets the error fields of msg if err is not nil
func withErr(msg *Message, err error) *Message {
	if err != nil {
		msg.Err = err.Error()
		msg.ErrCode = uint64(store.CodeOf(err))
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewContainerInfoRequest creates a new ContainerInfo request
func NewContainerInfoRequest() *Message {
	return &Message{
		MsgType: MsgTContainerInfo,
	}
}

// NewContainerInfoResponse creates a new ContainerInfo response
func NewContainerInfoResponse(meta []byte, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTContainerInfo,
		Meta:    meta,
	}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	return withErr(&Message{
		MsgType: MsgTError,
	}, err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTMapCreate:     "create",
	MsgTMapOpen:       "open",
	MsgTMapSet:        "set",
	MsgTMapGet:        "get",
	MsgTMapGetCount:   "count",
	MsgTMapExists:     "exists",
	MsgTMapDelete:     "delete",
	MsgTMapClose:      "close",
	MsgTContainerInfo: "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for typ, name := range messageTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Map operations

	MsgTMapCreate   // Create a map object
	MsgTMapOpen     // Open a map object by path
	MsgTMapSet      // Insert or overwrite a key
	MsgTMapGet      // Read the value of a key
	MsgTMapGetCount // Count the keys of a map
	MsgTMapExists   // Check if a key exists
	MsgTMapDelete   // Delete a key
	MsgTMapClose    // Close a map handle

	// Container operations

	MsgTContainerInfo // Statistics of the container's database
)
