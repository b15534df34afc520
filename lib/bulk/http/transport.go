package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kvmkrao/hdf5/lib/bulk"
)

type transport struct {
	client *http.Client
}

// NewTransport returns a bulk transport for http:// origins
func NewTransport() bulk.ITransport {
	return &transport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func regionURL(desc bulk.Descriptor) string {
	return desc.Origin + "/bulk/" + desc.Region
}

func (t *transport) Read(ctx context.Context, desc bulk.Descriptor, dst []byte) *bulk.Request {
	return bulk.Go(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, regionURL(desc), nil)
		if err != nil {
			return 0, err
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return 0, fmt.Errorf("GET %s: %s: %s", desc, resp.Status, bytes.TrimSpace(msg))
		}
		if resp.ContentLength >= 0 && resp.ContentLength != int64(len(dst)) {
			return 0, fmt.Errorf("%w: region %s has %d bytes, reader expects %d", bulk.ErrSizeMismatch, desc, resp.ContentLength, len(dst))
		}
		return io.ReadFull(resp.Body, dst)
	})
}

func (t *transport) Write(ctx context.Context, desc bulk.Descriptor, src []byte) *bulk.Request {
	return bulk.Go(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, regionURL(desc), bytes.NewReader(src))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := t.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return 0, fmt.Errorf("PUT %s: %s: %s", desc, resp.Status, bytes.TrimSpace(msg))
		}
		return len(src), nil
	})
}
