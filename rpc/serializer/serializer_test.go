package serializer

import (
	"github.com/kvmkrao/hdf5/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		{
			MsgType:    common.MsgTMapSet,
			ObjectID:   42,
			Handle:     7,
			KeyMem:     []byte{1, 0, 0, 0, 4, 0, 1, 0},
			KeyMap:     []byte{1, 0, 0, 0, 4, 0, 1, 0},
			Key:        []byte("test-key"),
			BulkOrigin: "local://",
			BulkRegion: "region-1",
			BulkSize:   4,
			Checksum:   0xdeadbeef,
			WTID:       3,
			RTID:       2,
			Scope:      3,
		},

		// Get response
		{
			MsgType:  common.MsgTMapGet,
			Count:    1024,
			Checksum: 99,
		},

		// Exists response with unknown result
		{
			MsgType: common.MsgTMapExists,
			Exists:  -1,
			Err:     "not found",
			ErrCode: 4,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType:        common.MsgTMapCreate,
			LocID:          1,
			LocHandle:      2,
			Name:           "/group/map",
			ObjectID:       ^uint64(0),
			Handle:         4,
			MdkvID:         5,
			AttrkvID:       6,
			KeyMem:         []byte("km"),
			KeyMap:         []byte("kp"),
			ValMem:         []byte("vm"),
			ValMap:         []byte("vp"),
			Plist:          []byte("plist"),
			Key:            []byte("key"),
			BulkOrigin:     "http://127.0.0.1:9000",
			BulkRegion:     "region",
			BulkSize:       8,
			ValueSize:      8,
			VariableLength: true,
			Checksum:       9,
			Collective:     true,
			WTID:           10,
			RTID:           11,
			Scope:          1,
			Count:          12,
			Exists:         1,
			Ok:             true,
			Err:            "error",
			ErrCode:        13,
			Meta:           []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTContainerInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Test cases for empty or zero values
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty slices but not nil",
			msg: common.Message{
				MsgType: common.MsgTMapSet,
				Key:     []byte{},
				Plist:   []byte{},
				Meta:    []byte{},
			},
		},
		{
			name: "Message with only flags",
			msg: common.Message{
				MsgType:        common.MsgTMapGet,
				VariableLength: true,
				Collective:     true,
				Ok:             true,
			},
		},
		{
			name: "Message with undefined ids",
			msg: common.Message{
				MsgType:  common.MsgTMapCreate,
				ObjectID: ^uint64(0),
				MdkvID:   ^uint64(0),
				AttrkvID: ^uint64(0),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps empty slices apart from nil slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResets tests that fields of a reused message are cleared
func TestBinaryDeserializeResets(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{MsgType: common.MsgTMapGet, Key: []byte("old"), Count: 3}
	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTMapClose, Handle: 1})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if msg.Key != nil || msg.Count != 0 || msg.Handle != 1 || msg.MsgType != common.MsgTMapClose {
		t.Errorf("Unexpected message after reuse: %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0, 0}, // Message type and part of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for name",
			data:        []byte{1, 0, 0, 0, 4, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims name length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing integer",
			data:        []byte{1, 0, 0, 0, 1, 0, 0, 0}, // Claims LocID but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing key length",
			data:        []byte{1, 0, 0, 0x10, 0}, // Claims Key but nothing follows
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
