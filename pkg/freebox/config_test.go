package freebox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/benmeehan/fbx-agent/internal/mocks"
	"github.com/benmeehan/fbx-agent/pkg/credential"
	"github.com/benmeehan/fbx-agent/pkg/file"
)

const testConfigYAML = `
descriptor:
  app_id: fr.freebox.test
  app_name: Test App
  app_version: "2.1"
  device_name: lab
token_file: /var/lib/fbx/app_auth
credential_backend: keyring
api_version: server
timeout: 5s
prefer_tls: false
ca_certificate: %s
poll_interval: 2s
unknown_is_denied: true
tracing: true
appliance:
  host: 192.168.1.254
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	caPath := filepath.Join(dir, "freebox_ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600))
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(testConfigYAML, caPath)), 0o600))

	config, err := LoadConfig(configPath, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "fr.freebox.test", config.Descriptor.AppID)
	assert.Equal(t, "2.1", config.Descriptor.AppVersion)
	assert.Equal(t, "/var/lib/fbx/app_auth", config.TokenFile)
	assert.Equal(t, BackendKeyring, config.CredentialBackend)
	assert.Equal(t, "server", config.APIVersion)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.False(t, config.PreferTLS)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.True(t, config.UnknownIsDenied)
	assert.True(t, config.Tracing)
	assert.Equal(t, "192.168.1.254", config.Appliance.Host)
	assert.Equal(t, "80", config.Appliance.HTTPPort, "unset values keep their default")
	assert.Equal(t, 250*time.Millisecond, config.DrainDelay)
	assert.Equal(t, []byte("-----BEGIN CERTIFICATE-----\n"), config.CACertificatePEM)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("unreadable config", func(t *testing.T) {
		fileClient := new(mocks.MockFileOperations)
		fileClient.On("ReadYamlFile", "config.yaml", mock.Anything).Return(errors.New("permission denied"))

		_, err := LoadConfig("config.yaml", fileClient)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("missing CA bundle", func(t *testing.T) {
		fileClient := new(mocks.MockFileOperations)
		fileClient.On("ReadYamlFile", "config.yaml", mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Config).CACertificate = "/missing/ca.pem"
		}).Return(nil)
		fileClient.On("ReadFileRaw", "/missing/ca.pem").Return(nil, os.ErrNotExist)

		_, err := LoadConfig("config.yaml", fileClient)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		fileClient.AssertExpectations(t)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NoError(t, config.Descriptor.Validate())
	assert.Equal(t, "v6", config.APIVersion)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.True(t, config.PreferTLS)
	assert.Equal(t, "mafreebox.freebox.fr", config.Appliance.Host)
	assert.Equal(t, "app_auth", filepath.Base(config.TokenFile))
	assert.Equal(t, BackendFile, config.CredentialBackend)
}

func TestNewStore(t *testing.T) {
	config := DefaultConfig()
	config.TokenFile = filepath.Join(t.TempDir(), "app_auth")

	store, err := NewStore(config, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &credential.FileStore{}, store)
	assert.Equal(t, config.TokenFile, store.Location())

	keyring.MockInit()
	config.CredentialBackend = BackendKeyring
	store, err = NewStore(config, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &credential.KeyringStore{}, store)

	config.CredentialBackend = "vault"
	_, err = NewStore(config, file.NewFileService(), zerolog.Nop())
	assert.Error(t, err)
}
