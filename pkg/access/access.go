// Package access sends signed requests to the appliance API using an app
// token obtained by pairing.
package access

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/internal/models"
	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
	"github.com/benmeehan/fbx-agent/pkg/httpclient"
)

// error codes answered by the appliance when the session must be reopened
var sessionErrorCodes = map[string]bool{
	"auth_required":   true,
	"invalid_session": true,
}

// Access sends authenticated requests below a versioned base URL, opening
// and renewing the session as needed. It is not safe for concurrent use.
type Access struct {
	client   *http.Client
	baseURL  string
	appToken string
	appID    string
	timeout  time.Duration
	logger   zerolog.Logger

	sessionToken string
	permissions  map[string]bool
}

// New creates an Access for the versioned base URL, which must end with "/".
func New(client *http.Client, baseURL, appToken, appID string, timeout time.Duration, logger zerolog.Logger) *Access {
	return &Access{
		client:   client,
		baseURL:  baseURL,
		appToken: appToken,
		appID:    appID,
		timeout:  timeout,
		logger:   logger,
	}
}

// BaseURL returns the versioned base URL requests are sent to.
func (a *Access) BaseURL() string {
	return a.baseURL
}

// HTTPClient returns the raw client, for calls that bypass signing.
func (a *Access) HTTPClient() *http.Client {
	return a.client
}

// Get sends GET path with an optional query and returns the result payload.
func (a *Access) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return a.perform(ctx, http.MethodGet, path, nil)
}

// Post sends POST path with an optional JSON body.
func (a *Access) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return a.perform(ctx, http.MethodPost, path, body)
}

// Put sends PUT path with an optional JSON body.
func (a *Access) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return a.perform(ctx, http.MethodPut, path, body)
}

// Delete sends DELETE path with an optional JSON body.
func (a *Access) Delete(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return a.perform(ctx, http.MethodDelete, path, body)
}

// Permissions returns the permissions granted when the current session was
// opened, opening one if needed. They may be outdated until the session is
// renewed.
func (a *Access) Permissions(ctx context.Context) (map[string]bool, error) {
	if a.sessionToken == "" {
		if err := a.refreshSession(ctx); err != nil {
			return nil, err
		}
	}
	out := make(map[string]bool, len(a.permissions))
	for k, v := range a.permissions {
		out[k] = v
	}
	return out, nil
}

func (a *Access) perform(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if a.sessionToken == "" {
		if err := a.refreshSession(ctx); err != nil {
			return nil, err
		}
	}

	resp, envelope, err := a.send(ctx, method, path, body, true)
	if err != nil {
		return nil, err
	}

	if !envelope.Success && sessionErrorCodes[envelope.ErrorCode] {
		a.logger.Debug().Str("error_code", envelope.ErrorCode).Msg("Session expired, opening a new one")
		if err := a.refreshSession(ctx); err != nil {
			return nil, err
		}
		resp, envelope, err = a.send(ctx, method, path, body, true)
		if err != nil {
			return nil, err
		}
	}

	if !envelope.Success {
		return nil, fbxerr.NewRequestFailed(envelope.ErrorCode,
			fmt.Sprintf("request %s %s failed: %s", method, path, envelope.Message), resp.Body)
	}
	return envelope.Result, nil
}

func (a *Access) send(ctx context.Context, method, path string, body any, signed bool) (*httpclient.Response, *models.APIResponse, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	header := http.Header{}
	if signed {
		header.Set(constants.AppAuthHeader, a.sessionToken)
	}

	endpoint := a.baseURL + strings.TrimPrefix(path, "/")
	resp, err := httpclient.Do(ctx, a.client, method, endpoint, body, header)
	if err != nil {
		return nil, nil, fbxerr.NewTransport(fmt.Sprintf("request %s %s failed", method, path), err)
	}

	var envelope models.APIResponse
	if err := resp.Decode(&envelope); err != nil {
		return nil, nil, fbxerr.NewTransport(
			fmt.Sprintf("unexpected answer to %s %s (status %d)", method, path, resp.StatusCode), err)
	}
	return resp, &envelope, nil
}

// refreshSession answers the login challenge with the app token and stores
// the new session token and permissions.
func (a *Access) refreshSession(ctx context.Context) error {
	_, envelope, err := a.send(ctx, http.MethodGet, "login/", nil, false)
	if err != nil {
		return err
	}
	var login models.LoginResult
	if !envelope.Success || json.Unmarshal(envelope.Result, &login) != nil || login.Challenge == "" {
		return fbxerr.New(fbxerr.KindInvalidToken, "cannot read login challenge", nil)
	}

	request := models.SessionRequest{AppID: a.appID, Password: Password(a.appToken, login.Challenge)}
	resp, envelope, err := a.send(ctx, http.MethodPost, "login/session/", request, false)
	if err != nil {
		return err
	}
	if !envelope.Success {
		e := fbxerr.New(fbxerr.KindInvalidToken, "starting session failed: "+envelope.Message, nil)
		e.Code = envelope.ErrorCode
		e.Response = resp.Body
		return e
	}

	var session models.SessionResult
	if err := json.Unmarshal(envelope.Result, &session); err != nil || session.SessionToken == "" {
		return fbxerr.New(fbxerr.KindInvalidToken, "session answer has no token", err)
	}

	a.sessionToken = session.SessionToken
	a.permissions = session.Permissions
	a.logger.Debug().Int("permissions", len(session.Permissions)).Msg("Session opened")
	return nil
}

// Password answers a login challenge: hex(HMAC-SHA1(appToken, challenge)).
func Password(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}
