package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// NewHTTP3 returns an HTTPSender that speaks HTTP/3 over QUIC. Close must be
// called to release the underlying UDP socket.
func NewHTTP3(opts Options, tlsConfig *tls.Config) *HTTPSender {
	rt := &http3.Transport{TLSClientConfig: tlsConfig}
	timeout := 30 * time.Second
	if opts.Client != nil && opts.Client.Timeout > 0 {
		timeout = opts.Client.Timeout
	}
	opts.Client = &http.Client{Transport: rt, Timeout: timeout}
	s := New(opts)
	s.closer = rt
	return s
}
