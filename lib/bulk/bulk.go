package bulk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("bulk")

// LocalOrigin is the origin of regions of an in-process Registry
const LocalOrigin = "local://"

// --------------------------------------------------------------------------
// Descriptor
// --------------------------------------------------------------------------

// Mode is the access a region grants to the remote side
type Mode uint8

const (
	// ModeReadOnly regions can only be pulled
	ModeReadOnly Mode = iota + 1
	// ModeWriteOnly regions can only be pushed into
	ModeWriteOnly
	ModeReadWrite
)

func (m Mode) CanRead() bool  { return m == ModeReadOnly || m == ModeReadWrite }
func (m Mode) CanWrite() bool { return m == ModeWriteOnly || m == ModeReadWrite }

// Descriptor references an exposed memory region.
// It is all the receiving side needs to access the region.
type Descriptor struct {
	Origin string `json:"origin"`
	Region string `json:"region"`
	Size   uint64 `json:"size"`
}

// IsZero reports whether the descriptor references nothing
func (d Descriptor) IsZero() bool {
	return d.Region == ""
}

// Scheme returns the scheme of the origin ("local", "http", ...)
func (d Descriptor) Scheme() string {
	if i := strings.Index(d.Origin, "://"); i > 0 {
		return d.Origin[:i]
	}
	return ""
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s%s[%d]", d.Origin, d.Region, d.Size)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrUnknownRegion = errors.New("unknown bulk region")
	ErrAccessDenied  = errors.New("bulk region does not permit this access")
	ErrSizeMismatch  = errors.New("bulk size mismatch")
	ErrTimeout       = errors.New("bulk transfer timed out")
	ErrNoTransport   = errors.New("no bulk transport for origin")
)

// --------------------------------------------------------------------------
// Asynchronous Requests
// --------------------------------------------------------------------------

// Request is a transfer in flight
type Request struct {
	done chan struct{}
	n    int
	err  error
}

// Go starts fn in the background and completes the request with its result
func Go(fn func() (int, error)) *Request {
	r := &Request{done: make(chan struct{})}
	go func() {
		r.n, r.err = fn()
		close(r.done)
	}()
	return r
}

// failed returns an already completed request
func failed(err error) *Request {
	r := &Request{done: make(chan struct{}), err: err}
	close(r.done)
	return r
}

// Wait blocks until the transfer completed or the timeout elapsed.
// It returns the number of bytes moved. A timeout <= 0 waits forever.
func (r *Request) Wait(timeout time.Duration) (int, error) {
	if timeout <= 0 {
		<-r.done
		return r.n, r.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return r.n, r.err
	case <-timer.C:
		return 0, ErrTimeout
	}
}

// Done is closed when the transfer completed
func (r *Request) Done() <-chan struct{} {
	return r.done
}
