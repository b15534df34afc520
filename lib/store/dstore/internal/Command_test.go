package internal

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/kvmkrao/hdf5/lib/db"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Command with key and value",
			command: Command{
				Type:  CommandTKVSet,
				Key:   "testkey",
				Value: []byte("testvalue"),
			},
			expected: commandHeaderSize + 7 + 9,
		},
		{
			name:     "Create command without key",
			command:  Command{Type: CommandTCreateObject, Object: 5, Aux: uint64(db.ObjectTypeKV)},
			expected: commandHeaderSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "KVSet with value",
			command: Command{
				Type:   CommandTKVSet,
				Object: 42,
				Txn:    7,
				Key:    "testkey",
				Value:  []byte("testvalue"),
			},
		},
		{
			name: "KVUnlink without value",
			command: Command{
				Type:   CommandTKVUnlink,
				Object: 42,
				Txn:    8,
				Key:    "testkey",
			},
		},
		{
			name: "SetScratch",
			command: Command{
				Type:   CommandTSetScratch,
				Object: 1,
				Txn:    1,
				Aux:    0xdeadbeef,
				Value:  EncodeScratchPad(db.NewScratchPad(2, 3)),
			},
		},
		{
			name: "Binary key",
			command: Command{
				Type:   CommandTKVSet,
				Object: db.IDUndefined - 1,
				Key:    string([]byte{0, 1, 2, 255}),
				Value:  []byte{0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			if data[0] != byte(tt.command.Type) {
				t.Errorf("Type byte = %d, want %d", data[0], tt.command.Type)
			}
			if got := binary.BigEndian.Uint64(data[1:9]); got != uint64(tt.command.Object) {
				t.Errorf("Object = %d, want %d", got, tt.command.Object)
			}

			var decoded Command
			if err := decoded.Deserialize(data); err != nil {
				t.Fatalf("Deserialize failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.command) {
				t.Errorf("Deserialize() = %+v, want %+v", decoded, tt.command)
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	var c Command
	if err := c.Deserialize(make([]byte, commandHeaderSize-1)); err == nil {
		t.Errorf("Expected error for short header")
	}

	data := (&Command{Type: CommandTKVSet, Key: "abc"}).Serialize()
	if err := c.Deserialize(data[:len(data)-1]); err == nil {
		t.Errorf("Expected error for truncated key")
	}
}

func TestDeserializeReusesBuffer(t *testing.T) {
	c := Command{Value: make([]byte, 0, 64)}
	buf := c.Value[:1]
	data := (&Command{Type: CommandTKVSet, Key: "k", Value: []byte("value")}).Serialize()
	if err := c.Deserialize(data); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !bytes.Equal(c.Value, []byte("value")) {
		t.Errorf("Value = %s", c.Value)
	}
	if &buf[0] != &c.Value[0] {
		t.Errorf("Expected the existing buffer to be reused")
	}
}

func TestScratchPadEncoding(t *testing.T) {
	sp := db.ScratchPad{1, 2, db.IDUndefined, db.IDUndefined}
	got, err := DecodeScratchPad(EncodeScratchPad(sp))
	if err != nil || got != sp {
		t.Errorf("Expected %v, got %v / %v", sp, got, err)
	}
	if _, err := DecodeScratchPad([]byte{1, 2, 3}); err == nil {
		t.Errorf("Expected error for short scratch pad")
	}
}
