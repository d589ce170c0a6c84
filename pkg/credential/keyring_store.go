package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name used by KeyringStore.
const DefaultKeyringService = "fbx-agent"

// KeyringStore keeps the same JSON record as FileStore in the OS keyring.
type KeyringStore struct {
	service string
	account string
	logger  zerolog.Logger
}

// NewKeyringStore creates a KeyringStore for the given service and account.
func NewKeyringStore(service, account string, logger zerolog.Logger) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service, account: account, logger: logger}
}

func (s *KeyringStore) Load() (*Credential, error) {
	s.logger.Debug().Str("keyring", s.Location()).Msg("Reading application authorization from keyring")

	secret, err := keyring.Get(s.service, s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keyring entry %s: %w", s.Location(), err)
	}

	var r record
	if err := json.Unmarshal([]byte(secret), &r); err != nil {
		return nil, fmt.Errorf("failed to parse keyring entry %s: %w", s.Location(), err)
	}
	if r.AppToken == "" {
		return nil, nil
	}
	return r.toCredential(), nil
}

func (s *KeyringStore) Save(cred Credential) error {
	data, err := json.Marshal(cred.toRecord())
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}
	if err := keyring.Set(s.service, s.account, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring entry %s: %w", s.Location(), err)
	}
	return nil
}

func (s *KeyringStore) Location() string {
	return "keyring:" + s.service + "/" + s.account
}
