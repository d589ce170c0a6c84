package models

import (
	"encoding/json"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/pkg/credential"
)

// APIResponse is the envelope of every versioned appliance answer.
type APIResponse struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"msg,omitempty"`
}

// AuthorizeResult is the result of POST login/authorize/.
type AuthorizeResult struct {
	AppToken string             `json:"app_token"`
	TrackID  credential.TrackID `json:"track_id"`
}

// AuthorizationStatusResult is the result of GET login/authorize/{track_id}.
type AuthorizationStatusResult struct {
	Status    constants.AuthorizationStatus `json:"status"`
	Challenge string                        `json:"challenge,omitempty"`
}
