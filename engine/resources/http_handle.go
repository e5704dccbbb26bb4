package resources

import (
	"github.com/go-resty/resty/v2"
	"github.com/segmentio/ksuid"
)

// httpHandle wraps a pooled resty.Client as a Handle.
type httpHandle struct {
	id      string
	client  *resty.Client
	healthy bool
}

func newHTTPHandle(client *resty.Client) *httpHandle {
	return &httpHandle{id: ksuid.New().String(), client: client, healthy: true}
}

func (h *httpHandle) ID() string      { return h.id }
func (h *httpHandle) Healthy() bool   { return h.healthy }
func (h *httpHandle) Client() *resty.Client { return h.client }

func (h *httpHandle) Close() error {
	h.client.GetClient().CloseIdleConnections()
	h.healthy = false
	return nil
}

// MarkUnhealthy flags the handle so the next Release discards it instead of
// returning it to the idle free-list.
func (h *httpHandle) MarkUnhealthy() { h.healthy = false }
