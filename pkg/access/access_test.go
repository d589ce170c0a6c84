package access

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/fbx-agent/pkg/fbxerr"
)

const (
	testAppToken  = "dyNYgfK0Ya6FWGqq83sBHa7TwzWo+pg4fDFUJHShcjVYzTfaRrZzm93p7OTAfH/0"
	testChallenge = "VzhbtpR4r8CLaJle2QgJBEkyd8JPb0zL"
)

// fakeSessionAPI answers login/ and login/session/ and signs calls to
// system/ with the token of the latest session.
type fakeSessionAPI struct {
	t          *testing.T
	server     *httptest.Server
	sessions   atomic.Int32
	calls      atomic.Int32
	expireNext atomic.Bool
	sessionOK  bool
}

func newFakeSessionAPI(t *testing.T) *fakeSessionAPI {
	f := &fakeSessionAPI{t: t, sessionOK: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v8/login/", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Fbx-App-Auth"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  map[string]any{"logged_in": false, "challenge": testChallenge},
		})
	})
	mux.HandleFunc("/api/v8/login/session/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "fbxagent", req["app_id"])
		assert.Equal(t, Password(testAppToken, testChallenge), req["password"])
		if !f.sessionOK {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false, "error_code": "invalid_token", "msg": "unknown app token",
			})
			return
		}
		n := f.sessions.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result": map[string]any{
				"session_token": sessionToken(n),
				"permissions":   map[string]bool{"settings": false, "contacts": true},
			},
		})
	})
	mux.HandleFunc("/api/v8/system/", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.expireNext.CompareAndSwap(true, false) ||
			r.Header.Get("X-Fbx-App-Auth") != sessionToken(f.sessions.Load()) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false, "error_code": "auth_required", "msg": "Invalid session token",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  map[string]any{"uptime": "1 jour", "query": r.URL.RawQuery, "method": r.Method},
		})
	})
	mux.HandleFunc("/api/v8/lan/config/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success": false, "error_code": "insufficient_rights", "msg": "Permission denied",
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func sessionToken(n int32) string {
	return "session-" + string(rune('a'+n))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSessionAPI) access() *Access {
	return New(f.server.Client(), f.server.URL+"/api/v8/", testAppToken, "fbxagent", 2*time.Second, zerolog.Nop())
}

func TestPassword(t *testing.T) {
	p := Password(testAppToken, testChallenge)
	assert.Len(t, p, 40)
	assert.Equal(t, p, Password(testAppToken, testChallenge))
	assert.NotEqual(t, p, Password(testAppToken, "other"))
}

func TestAccess_GetOpensSession(t *testing.T) {
	f := newFakeSessionAPI(t)
	a := f.access()

	result, err := a.Get(context.Background(), "system/", url.Values{"a": {"1"}})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, "1 jour", out["uptime"])
	assert.Equal(t, "a=1", out["query"])
	assert.Equal(t, http.MethodGet, out["method"])
	assert.EqualValues(t, 1, f.sessions.Load())

	_, err = a.Put(context.Background(), "/system/", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.sessions.Load(), "session is reused")
}

func TestAccess_RefreshesExpiredSessionOnce(t *testing.T) {
	f := newFakeSessionAPI(t)
	a := f.access()

	_, err := a.Post(context.Background(), "system/", nil)
	require.NoError(t, err)

	f.expireNext.Store(true)
	result, err := a.Delete(context.Background(), "system/", nil)
	require.NoError(t, err)
	assert.Contains(t, string(result), http.MethodDelete)
	assert.EqualValues(t, 2, f.sessions.Load())
	assert.EqualValues(t, 3, f.calls.Load())
}

func TestAccess_InsufficientRights(t *testing.T) {
	f := newFakeSessionAPI(t)
	a := f.access()

	_, err := a.Get(context.Background(), "lan/config/", nil)
	require.Error(t, err)
	assert.True(t, fbxerr.IsKind(err, fbxerr.KindInsufficientPermissions))
	assert.Equal(t, "insufficient_rights", fbxerr.As(err).Code)
}

func TestAccess_InvalidToken(t *testing.T) {
	f := newFakeSessionAPI(t)
	f.sessionOK = false
	a := f.access()

	_, err := a.Get(context.Background(), "system/", nil)
	require.Error(t, err)
	assert.True(t, fbxerr.IsKind(err, fbxerr.KindInvalidToken))
	assert.Equal(t, "invalid_token", fbxerr.As(err).Code)
}

func TestAccess_Permissions(t *testing.T) {
	f := newFakeSessionAPI(t)
	a := f.access()

	perms, err := a.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"settings": false, "contacts": true}, perms)

	perms["settings"] = true
	again, err := a.Permissions(context.Background())
	require.NoError(t, err)
	assert.False(t, again["settings"])
	assert.EqualValues(t, 1, f.sessions.Load())
}

func TestAccess_TransportError(t *testing.T) {
	f := newFakeSessionAPI(t)
	a := f.access()
	f.server.Close()

	_, err := a.Get(context.Background(), "system/", nil)
	require.Error(t, err)
	assert.True(t, fbxerr.IsTransport(err))
}
