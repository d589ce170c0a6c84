// Package freebox opens an authenticated session with a Freebox appliance:
// it finds the appliance, negotiates the address and API version, pairs the
// application when needed and hands out a signed request sender.
package freebox

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/internal/pairing"
	"github.com/benmeehan/fbx-agent/pkg/access"
	"github.com/benmeehan/fbx-agent/pkg/credential"
	"github.com/benmeehan/fbx-agent/pkg/discovery"
	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
)

// Client is the entry point to one appliance. Calls must be sequential: a
// Client owns a single connection and a single session.
type Client struct {
	cfg       Config
	store     credential.Store
	discovery *discovery.Client
	logger    zerolog.Logger

	apiVersion    string
	baseURL       string
	access        *access.Access
	sessionTarget discovery.ConnectionTarget

	// sleep is the pairing wait, replaced in tests.
	sleep pairing.SleepFunc
}

// NewClient creates a Client. Nothing touches the network until Open or Discover.
func NewClient(cfg Config, store credential.Store, logger zerolog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = constants.DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultTimeout
	}

	return &Client{
		cfg:   cfg,
		store: store,
		discovery: discovery.NewClient(discovery.Options{
			Timeout:       cfg.Timeout,
			PreferTLS:     cfg.PreferTLS,
			CACertificate: cfg.CACertificatePEM,
			Tracing:       cfg.Tracing,
			DrainDelay:    cfg.DrainDelay,
			Defaults:      cfg.Appliance,
		}, logger),
		logger:     logger,
		apiVersion: cfg.APIVersion,
		sleep:      pairing.Sleep,
	}
}

// Discover probes host and port for the appliance, either may be empty. It
// returns discovery.ErrNotFound when no appliance answers there. Discovering
// another address than the one of the open session closes that session.
func (c *Client) Discover(ctx context.Context, host, port string) (*discovery.Record, error) {
	record, err := c.discovery.Probe(ctx, host, port)
	if c.access != nil {
		if target, ok := c.discovery.Target(); !ok || target != c.sessionTarget {
			c.logger.Warn().Msg("Connection replaced, session dropped")
			c.access = nil
		}
	}
	return record, err
}

// Open negotiates the connection, pairs the application if no stored
// credential matches its descriptor, and opens a session. The pairing wait
// ends when the user answers on the appliance or ctx is done.
func (c *Client) Open(ctx context.Context, host, port string) error {
	descriptor := c.cfg.Descriptor
	if err := descriptor.Validate(); err != nil {
		return err
	}

	c.endSession(ctx)

	target, record, err := c.negotiate(ctx, host, port)
	if err != nil {
		return err
	}
	c.apiVersion = resolveAPIVersion(c.cfg.APIVersion, record.APIVersion, c.logger)
	c.baseURL = target.Origin()
	versionedURL := c.baseURL + record.APIBaseURL + c.apiVersion + "/"

	c.logger.Debug().Str("location", c.store.Location()).Msg("Reading application credential")
	cred, err := c.store.Load()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Stored credential is unreadable, pairing again")
		cred = nil
	}

	if !cred.Matches(descriptor) {
		c.logger.Warn().Msg("No valid credential found, requesting authorization")
		pairer := pairing.NewService(c.discovery.HTTPClient(), versionedURL, c.store, pairing.Config{
			PollInterval:    c.cfg.PollInterval,
			UnknownIsDenied: c.cfg.UnknownIsDenied,
			Prompt:          c.cfg.Prompt,
			Sleep:           c.sleep,
		}, c.logger)
		granted, err := pairer.Authorize(ctx, descriptor)
		if err != nil {
			return err
		}
		cred = &granted
	}

	c.access = access.New(c.discovery.HTTPClient(), versionedURL, cred.AppToken, descriptor.AppID, c.cfg.Timeout, c.logger)
	c.sessionTarget = target
	c.logger.Info().
		Str("url", versionedURL).
		Str("app_id", descriptor.AppID).
		Msg("Freebox session ready")
	return nil
}

// negotiate probes with the caller values, moves to the secure endpoint the
// appliance advertises when TLS is preferred, and probes again.
func (c *Client) negotiate(ctx context.Context, host, port string) (discovery.ConnectionTarget, *discovery.Record, error) {
	record, err := c.discovery.Probe(ctx, host, port)
	if err != nil {
		return discovery.ConnectionTarget{}, nil, cannotReach(ctx, host, port, err)
	}

	host, port = c.upgrade(record, host, port)

	record, err = c.discovery.Probe(ctx, host, port)
	if err != nil {
		return discovery.ConnectionTarget{}, nil, cannotReach(ctx, host, port, err)
	}

	target, _ := c.discovery.Target()
	return target, record, nil
}

// upgrade picks the address of the second probe. An IPv4 host or the plain
// HTTP port is replaced by the secure domain and port of the appliance.
func (c *Client) upgrade(record *discovery.Record, host, port string) (string, string) {
	defaults := c.cfg.Appliance
	if defaults.Host == "" {
		defaults.Host = constants.DefaultHost
	}
	if defaults.HTTPPort == "" {
		defaults.HTTPPort = constants.DefaultHTTPPort
	}

	if c.cfg.PreferTLS && record.HTTPSAvailable {
		if host == "" || discovery.IsIPv4(host) {
			host = record.APIDomain
		}
		if port == "" || port == defaults.HTTPPort {
			port = strconv.Itoa(record.HTTPSPort)
		}
		return host, port
	}

	if host == "" {
		host = defaults.Host
	}
	if port == "" {
		port = defaults.HTTPPort
	}
	return host, port
}

// cannotReach reports a failed probe. A cancelled or expired ctx is
// returned as is.
func cannotReach(ctx context.Context, host, port string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if host == "" {
		host = constants.Unknown
	}
	if port == "" {
		port = constants.Unknown
	}
	if !errors.Is(err, discovery.ErrNotFound) && !fbxerr.IsTransport(err) {
		err = fmt.Errorf("discovery failed: %w", err)
	}
	return fbxerr.NewCannotReachAppliance(host, port, err)
}

// endSession logs the current session out, if any, and forgets it. A failed
// logout is only logged.
func (c *Client) endSession(ctx context.Context) {
	if c.access == nil {
		return
	}
	if _, connected := c.discovery.Target(); connected {
		if _, err := c.access.Post(ctx, "login/logout", nil); err != nil {
			c.logger.Warn().Err(err).Msg("Logout of the previous session failed")
		}
	}
	c.access = nil
}

// Close logs out and closes the connection. Closing a client without an
// open session only logs a warning.
func (c *Client) Close(ctx context.Context) error {
	if _, connected := c.discovery.Target(); c.access == nil || !connected {
		c.logger.Warn().Msg("Closing but freebox is not connected")
		return nil
	}

	_, err := c.access.Post(ctx, "login/logout", nil)
	c.access = nil
	c.discovery.Close(ctx)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	c.logger.Info().Msg("Freebox session closed")
	return nil
}

// Permissions returns the permissions granted when the session was opened.
// They may be outdated until the session is renewed. Without an open session
// it logs a warning and returns nil.
func (c *Client) Permissions(ctx context.Context) (map[string]bool, error) {
	if c.access == nil {
		c.logger.Warn().Msg("Permissions requested but freebox is not connected")
		return nil, nil
	}
	return c.access.Permissions(ctx)
}

// Access returns the signed request sender of the open session, or nil.
func (c *Client) Access() *access.Access {
	return c.access
}

// APIVersion returns the negotiated API version, e.g. "v6".
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// BaseURL returns the scheme, host and port of the appliance, without the API path.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Record returns the last discovery result, or nil.
func (c *Client) Record() *discovery.Record {
	return c.discovery.Record()
}
