package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"fieldsync/internal/fieldsync"
)

var (
	_ fieldsync.Connectivity = (*StaticConnectivity)(nil)
	_ fieldsync.Connectivity = (*HTTPProbe)(nil)
)

// StaticConnectivity reports a fixed state that can be flipped at runtime.
type StaticConnectivity struct {
	online atomic.Bool
}

func NewStaticConnectivity(online bool) *StaticConnectivity {
	c := &StaticConnectivity{}
	c.online.Store(online)
	return c
}

func (c *StaticConnectivity) Online(context.Context) bool { return c.online.Load() }

// Set changes the reported state.
func (c *StaticConnectivity) Set(online bool) { c.online.Store(online) }

// HTTPProbe asks the remote whether it is reachable. Any HTTP response,
// whatever its status, counts as online.
type HTTPProbe struct {
	client *resty.Client
	url    string
}

func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		client: resty.New().SetTimeout(timeout).SetRetryCount(0),
		url:    url,
	}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	if p.url == "" {
		return false
	}
	_, err := p.client.R().SetContext(ctx).Head(p.url)
	return err == nil
}
