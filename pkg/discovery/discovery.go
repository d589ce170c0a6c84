// Package discovery finds a Freebox appliance at a host and port and reads
// its self-description.
package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
	"github.com/benmeehan/fbx-agent/pkg/httpclient"
)

// ErrNotFound is returned by Probe when no appliance answers at the address.
var ErrNotFound = errors.New("freebox not found")

// Record is the appliance self-description returned by GET /api_version.
type Record struct {
	DeviceName     string `json:"device_name"`
	APIVersion     string `json:"api_version"`
	APIBaseURL     string `json:"api_base_url"`
	HTTPSAvailable bool   `json:"https_available"`
	APIDomain      string `json:"api_domain"`
	HTTPSPort      int    `json:"https_port"`
	UID            string `json:"uid,omitempty"`
	DeviceType     string `json:"device_type,omitempty"`
	BoxModel       string `json:"box_model,omitempty"`
	BoxModelName   string `json:"box_model_name,omitempty"`
}

// Options configures a discovery Client.
type Options struct {
	Timeout   time.Duration
	PreferTLS bool
	// CACertificate is the PEM bundle trusted for TLS connections.
	CACertificate []byte
	Tracing       bool
	// DrainDelay is waited after closing a connection.
	DrainDelay time.Duration
	Defaults   Defaults
	// DeviceName is the product name a genuine appliance reports.
	DeviceName string
}

// Client probes for the appliance and owns the connection used to talk to it.
// It is not safe for concurrent use.
type Client struct {
	opts   Options
	logger zerolog.Logger
	dialer *net.Dialer

	conn   *httpclient.Client
	target ConnectionTarget
	record *Record
}

// NewClient creates a discovery Client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultTimeout
	}
	if opts.DeviceName == "" {
		opts.DeviceName = constants.DefaultDeviceName
	}
	opts.Defaults = opts.Defaults.withFallbacks()

	return &Client{
		opts:   opts,
		logger: logger,
		dialer: &net.Dialer{Timeout: opts.Timeout},
	}
}

// Probe looks for the appliance at host and port, either of which may be
// empty. It returns ErrNotFound when nothing, or something other than a
// Freebox, answers there, a transport_error when the connection fails at
// the TLS or HTTP level, and ctx.Err() when ctx ends before the connection
// is made.
//
// Probing the address of the open connection again returns the cached record
// without any network activity.
func (c *Client) Probe(ctx context.Context, host, port string) (*Record, error) {
	if IsIPv6(host) {
		c.logger.Error().Str("host", host).Msg("IPv6 is not supported")
		c.Close(ctx)
		return nil, ErrNotFound
	}

	target := ResolveTarget(host, port, c.opts.PreferTLS, c.opts.Defaults)

	if c.conn != nil && c.target != target {
		c.Close(ctx)
	}
	if c.conn != nil && c.record != nil {
		c.logger.Debug().Str("address", target.Address()).Msg("Reusing discovery result")
		return c.record, nil
	}

	if c.conn == nil {
		if err := c.connect(ctx, target); err != nil {
			return nil, err
		}
	}

	resp, err := httpclient.Do(ctx, c.conn.HTTP, http.MethodGet, target.Origin()+"/api_version", nil, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("address", target.Address()).Msg("Discovery request failed")
		c.Close(ctx)
		if httpclient.IsCertificateError(err) {
			return nil, fbxerr.NewTransport("certificate verification failed for "+target.Address(), err)
		}
		return nil, fbxerr.NewTransport("request to "+target.Address()+" failed", err)
	}

	if !resp.IsJSON() {
		c.logger.Debug().Str("address", target.Address()).Str("content_type", resp.ContentType).Msg("Not a JSON answer")
		c.Close(ctx)
		return nil, ErrNotFound
	}

	var record Record
	if err := resp.Decode(&record); err != nil {
		c.logger.Debug().Err(err).Str("address", target.Address()).Msg("Unreadable discovery answer")
		c.Close(ctx)
		return nil, ErrNotFound
	}
	if record.DeviceName != c.opts.DeviceName {
		c.logger.Debug().Str("address", target.Address()).Str("device_name", record.DeviceName).Msg("Not a freebox")
		c.Close(ctx)
		return nil, ErrNotFound
	}

	c.record = &record
	c.logger.Info().
		Str("address", target.Address()).
		Bool("tls", target.UseTLS).
		Str("api_version", record.APIVersion).
		Msg("Freebox discovered")
	return c.record, nil
}

// connect checks the port is reachable and builds a fresh connection for target.
func (c *Client) connect(ctx context.Context, target ConnectionTarget) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		c.Close(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Debug().Err(err).Str("address", target.Address()).Msg("Port not reachable")
		return ErrNotFound
	}
	conn.Close()

	client, err := httpclient.New(httpclient.Options{
		UseTLS:        target.UseTLS,
		CACertificate: c.opts.CACertificate,
		Timeout:       c.opts.Timeout,
		Tracing:       c.opts.Tracing,
	})
	if err != nil {
		c.Close(ctx)
		return fbxerr.NewTransport("cannot build connection to "+target.Address(), err)
	}

	c.conn = client
	c.target = target
	return nil
}

// Close drops the connection and the cached record, then waits for the
// drain delay. It does nothing when no connection is open.
func (c *Client) Close(ctx context.Context) {
	c.record = nil
	if c.conn == nil {
		return
	}

	c.conn.Close()
	c.conn = nil
	c.target = ConnectionTarget{}

	if c.opts.DrainDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.opts.DrainDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Record returns the last discovery result, or nil.
func (c *Client) Record() *Record {
	return c.record
}

// Target returns the address of the open connection.
func (c *Client) Target() (ConnectionTarget, bool) {
	return c.target, c.conn != nil
}

// HTTPClient returns the client of the open connection, or nil.
func (c *Client) HTTPClient() *http.Client {
	if c.conn == nil {
		return nil
	}
	return c.conn.HTTP
}
