package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kvmkrao/hdf5/rpc/common"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := NewHttpServerTransport().(*httpServerTransport)
	server.RegisterHandler(func(containerID uint64, req []byte) []byte {
		return append([]byte(strings.Repeat("x", int(containerID))), req...)
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSend(t *testing.T) {
	srv := newTestServer(t)

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{srv.URL}, RetryCount: 2},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(3, []byte("abc"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(resp) != "xxxabc" {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestInvalidContainer(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/not-a-number", "application/octet-stream", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	metrics.GetOrCreateCounter(`iodmap_transport_test_total`).Inc()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "iodmap_transport_test_total 1") {
		t.Errorf("metrics output misses test counter:\n%s", body)
	}
}

func TestSendNotConnected(t *testing.T) {
	client := NewHttpClientTransport()
	if _, err := client.Send(1, nil); err == nil {
		t.Errorf("expected error when not connected")
	}
}
