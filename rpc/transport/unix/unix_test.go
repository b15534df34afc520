package unix

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kvmkrao/hdf5/rpc/common"
)

// TestRoundTrip starts a server on a unix socket and sends concurrent requests through
// the base client transport
func TestRoundTrip(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "rpc.sock")

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(containerID uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", containerID)), req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{Endpoint: socket, TimeoutSecond: 5})
	}()

	client := NewUnixClientTransport()
	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
		},
	}

	// the listener is created asynchronously
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := client.Connect(config)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("failed to connect: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("request-%d", i))
			resp, err := client.Send(uint64(i%3), req)
			if err != nil {
				t.Errorf("send %d failed: %v", i, err)
				return
			}
			expected := append([]byte(fmt.Sprintf("%d:", i%3)), req...)
			if !bytes.Equal(resp, expected) {
				t.Errorf("unexpected response %q, expected %q", resp, expected)
			}
		}(i)
	}
	wg.Wait()

	if err := client.Close(); err != nil {
		t.Errorf("client close failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("server close failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("listen returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("listen did not return after close")
	}
}

func TestConnectWithoutEndpoints(t *testing.T) {
	client := NewUnixClientTransport()
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("expected error without endpoints")
	}
}
