package discovery

import (
	"net"
	"strings"

	"github.com/benmeehan/fbx-agent/internal/constants"
)

// Defaults are the well-known address values used by the fallback ladder.
type Defaults struct {
	Host      string `yaml:"host"`
	HTTPPort  string `yaml:"http_port"`
	HTTPSPort string `yaml:"https_port"`
}

// DefaultDefaults returns the appliance's well-known host and ports.
func DefaultDefaults() Defaults {
	return Defaults{
		Host:      constants.DefaultHost,
		HTTPPort:  constants.DefaultHTTPPort,
		HTTPSPort: constants.DefaultHTTPSPort,
	}
}

func (d Defaults) withFallbacks() Defaults {
	if d.Host == "" {
		d.Host = constants.DefaultHost
	}
	if d.HTTPPort == "" {
		d.HTTPPort = constants.DefaultHTTPPort
	}
	if d.HTTPSPort == "" {
		d.HTTPSPort = constants.DefaultHTTPSPort
	}
	return d
}

// ConnectionTarget is the resolved address to talk to. It is derived for each
// probe and never persisted.
type ConnectionTarget struct {
	Host   string
	Port   string
	UseTLS bool
}

// Scheme returns "https" or "http".
func (t ConnectionTarget) Scheme() string {
	if t.UseTLS {
		return "https"
	}
	return "http"
}

// Origin returns scheme://host:port.
func (t ConnectionTarget) Origin() string {
	return t.Scheme() + "://" + net.JoinHostPort(t.Host, t.Port)
}

// Address returns host:port.
func (t ConnectionTarget) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// ResolveTarget applies the fallback ladder to optional host and port values:
//
//   - both empty: default host, HTTPS port when TLS is preferred, HTTP port otherwise
//   - only host: default HTTP port, plain transport
//   - only port: default host
//   - both set: used as given
//
// Except for the host-only case, TLS is used when preferred and the port is not
// the default HTTP port.
func ResolveTarget(host, port string, preferTLS bool, defaults Defaults) ConnectionTarget {
	defaults = defaults.withFallbacks()
	useTLS := preferTLS && port != defaults.HTTPPort

	switch {
	case host == "" && port == "":
		host = defaults.Host
		if preferTLS {
			port = defaults.HTTPSPort
		} else {
			port = defaults.HTTPPort
		}
	case port == "":
		port = defaults.HTTPPort
		useTLS = false
	case host == "":
		host = defaults.Host
	}

	return ConnectionTarget{Host: host, Port: port, UseTLS: useTLS}
}

// IsIPv4 reports whether host is a literal IPv4 address.
func IsIPv4(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

// IsIPv6 reports whether host is a literal IPv6 address, bracketed or not.
func IsIPv6(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
