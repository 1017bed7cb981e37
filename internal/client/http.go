package client

import (
	"net"
	"net/http"
	"time"

	"github.com/podcastgen/api/internal/config"
)

// NewHTTPClient builds the pooled client shared by every provider. It is
// created once at startup and injected, never instantiated per job.
func NewHTTPClient(cfg *config.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	if cfg.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
