package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("bulk/http")

// Exposer serves the regions of a registry over HTTP
type Exposer struct {
	*bulk.Registry
	listener net.Listener
	server   *http.Server
}

// NewExposer listens on endpoint (host:port, port 0 picks a free one) and serves
// exposed regions until Close is called.
func NewExposer(endpoint string) (*Exposer, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, err
	}

	e := &Exposer{listener: listener}
	e.Registry = bulk.NewRegistry("http://" + listener.Addr().String())
	e.server = &http.Server{Handler: e.Handler()}

	go func() {
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("bulk exposer on %s stopped: %v", listener.Addr(), err)
		}
	}()
	Logger.Infof("Exposing bulk regions on %s", listener.Addr())

	return e, nil
}

// Addr returns the address the exposer listens on
func (e *Exposer) Addr() string {
	return e.listener.Addr().String()
}

// Close stops serving
func (e *Exposer) Close() error {
	return e.server.Close()
}

// Handler returns the http handler serving the regions of the exposer
func (e *Exposer) Handler() http.Handler {
	return regionHandler(e.Registry)
}

func regionHandler(reg *bulk.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /bulk/{region}", func(w http.ResponseWriter, r *http.Request) {
		buf, err := reg.Region(r.PathValue("region"), false)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(buf); err != nil {
			Logger.Warningf("Failed to write region %s: %v", r.PathValue("region"), err)
		}
	})

	mux.HandleFunc("PUT /bulk/{region}", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		id := r.PathValue("region")

		buf, err := reg.Region(id, true)
		if err != nil {
			writeError(w, err)
			return
		}
		// one extra byte detects bodies larger than the region
		body, err := io.ReadAll(io.LimitReader(r.Body, int64(len(buf))+1))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if _, err := reg.WriteRegion(id, body); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bulk.ErrUnknownRegion):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, bulk.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, bulk.ErrSizeMismatch):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
