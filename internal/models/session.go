package models

// LoginResult is the result of GET login/.
type LoginResult struct {
	LoggedIn  bool   `json:"logged_in"`
	Challenge string `json:"challenge"`
}

// SessionRequest is the body of POST login/session/.
type SessionRequest struct {
	AppID    string `json:"app_id"`
	Password string `json:"password"`
}

// SessionResult is the result of POST login/session/.
type SessionResult struct {
	SessionToken string          `json:"session_token"`
	Challenge    string          `json:"challenge,omitempty"`
	Permissions  map[string]bool `json:"permissions"`
}
