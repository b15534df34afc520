package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/transport"
	"github.com/kvmkrao/hdf5/rpc/transport/base"
)

const (
	defaultBufferSize        = 512 * 1024 // 512 KB
	defaultWorkersPerConn    = 64
	defaultKeepAlivePeriod   = 30 * time.Second
	defaultSocketBufferBytes = 1 << 20
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	// Create TCP socket listener
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	return listener, nil
}

// UpgradeConnection applies performance optimizations to a TCP connection
func (c *serverConnector) UpgradeConnection(conn net.Conn) error {
	return upgrade(conn)
}

// upgrade disables Nagle's algorithm, enables keep-alive and enlarges the socket buffers
func upgrade(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Requests are small and latency bound
	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlivePeriod(defaultKeepAlivePeriod); err != nil {
		return err
	}
	if err := tcpConn.SetWriteBuffer(defaultSocketBufferBytes); err != nil {
		return err
	}
	return tcpConn.SetReadBuffer(defaultSocketBufferBytes)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPDefaultServerTransport creates a new TCP server transport with default buffer size
func NewTCPDefaultServerTransport() transport.IRPCServerTransport {
	return NewTCPServerTransport(defaultBufferSize, defaultWorkersPerConn)
}

// NewTCPServerTransport creates a new TCP server transport with specified buffer size
// and number of concurrent requests per connection
func NewTCPServerTransport(bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, workersPerConn)
}
