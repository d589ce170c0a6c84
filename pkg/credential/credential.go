// Package credential persists the application token obtained by pairing,
// together with the descriptor it was issued for.
package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/benmeehan/fbx-agent/pkg/identity"
)

// TrackID identifies one authorization request. The appliance sends it as a
// JSON number; strings are accepted too.
type TrackID string

// MarshalJSON writes numeric ids as JSON numbers, anything else as a string.
func (t TrackID) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(t), 10, 64); err == nil {
		return []byte(t), nil
	}
	return json.Marshal(string(t))
}

func (t *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TrackID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid track_id %s: %w", data, err)
		}
		*t = TrackID(n.String())
	}
	return nil
}

// Credential is the persisted result of a successful pairing.
type Credential struct {
	AppToken   string
	TrackID    TrackID
	Descriptor identity.Descriptor
}

// record is the on-disk shape: the descriptor fields plus app_token and track_id
// in a single flat JSON object.
type record struct {
	identity.Descriptor
	AppToken string  `json:"app_token"`
	TrackID  TrackID `json:"track_id"`
}

func (c Credential) toRecord() record {
	return record{Descriptor: c.Descriptor, AppToken: c.AppToken, TrackID: c.TrackID}
}

func (r record) toCredential() *Credential {
	return &Credential{AppToken: r.AppToken, TrackID: r.TrackID, Descriptor: r.Descriptor}
}

// Matches reports whether the credential was issued for the given descriptor.
func (c *Credential) Matches(d identity.Descriptor) bool {
	return c != nil && c.AppToken != "" && c.Descriptor.Matches(d)
}

// Store reads and writes the single stored credential.
type Store interface {
	// Load returns nil without error when no credential is stored.
	Load() (*Credential, error)
	// Save replaces any stored credential.
	Save(cred Credential) error
	// Location describes where the credential lives, for logs.
	Location() string
}
