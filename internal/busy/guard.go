package busy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// ErrForbiddenHost is returned for feeds that point at loopback, private or
// otherwise non-public addresses
var ErrForbiddenHost = errors.New("calendar feed must be on a public host")

const maxRedirects = 5

// carrier-grade NAT range, not covered by net.IP.IsPrivate
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// isPublicIP reports whether ip is routable on the public internet
func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// checkHost rejects host names and literal addresses that can never be public
func checkHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ErrForbiddenHost
	}
	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return ErrForbiddenHost
	}
	return nil
}

// publicOnly is a net.Dialer Control hook. It runs after name resolution on
// every connection attempt, redirects included.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	return nil
}

// newClient builds the feed HTTP client. control vets every dialed address;
// nil allows any.
func newClient(timeout time.Duration, control func(network, address string, c syscall.RawConn) error) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, Control: control}
	transport := &http.Transport{
		// no proxy: the dialed address must be the feed host itself
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("calendar feed redirected too many times")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return ErrInvalidFeedURL
			}
			return checkHost(req.URL.Hostname())
		},
	}
}
