package s3

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is the network location of the object store as seen by one
// audience: the gateway itself (internal) or end clients (public).
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// NewEndpoint builds an endpoint from host/port/TLS settings.
func NewEndpoint(host string, port int, useSSL bool) Endpoint {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	if port == 0 {
		port = defaultPort(scheme)
	}
	return Endpoint{Scheme: scheme, Host: strings.Trim(host, "[]"), Port: port}
}

// ParseEndpoint parses a base URL such as https://files.example.com or
// http://10.0.0.5:9000. The scheme must be http or https and a host is
// required; the port defaults by scheme.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: host is required", raw)
	}

	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid endpoint url %q: bad port %q", raw, p)
		}
	}

	return Endpoint{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   strings.TrimRight(u.Path, "/"),
	}, nil
}

// URL renders the endpoint as a base URL, omitting the port when it is the
// scheme default.
func (e Endpoint) URL() string {
	host := e.Host
	if e.Port != 0 && e.Port != defaultPort(e.Scheme) {
		host = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return e.Scheme + "://" + host + e.Path
}

// Validate reports whether the endpoint is usable.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return errors.New("endpoint host is required")
	}
	if e.Scheme != "http" && e.Scheme != "https" {
		return fmt.Errorf("endpoint scheme must be http or https, got %q", e.Scheme)
	}
	return nil
}

func (e Endpoint) String() string { return e.URL() }

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}
