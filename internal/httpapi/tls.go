package httpapi

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/relaygrid/relaygridgo/internal/config"
)

// tlsCertificate loads the cert/key pair a server profile's tls block
// names. A load failure here is always startup-fatal, never a
// per-request error.
func tlsCertificate(cfg *config.TLSConfig) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("httpapi: load tls cert/key: %w", err)
	}
	return cert, nil
}

// tlsListener wraps ln so every accepted connection negotiates TLS using
// cert before the gin router sees it.
func tlsListener(ln net.Listener, cert tls.Certificate) net.Listener {
	return tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
}
