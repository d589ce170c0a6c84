package freebox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
	"github.com/benmeehan/fbx-agent/pkg/credential"
	"github.com/benmeehan/fbx-agent/pkg/discovery"
	"github.com/benmeehan/fbx-agent/pkg/file"
	"github.com/benmeehan/fbx-agent/pkg/identity"
)

// Credential backends.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// Config represents the structure of the configuration file.
type Config struct {
	Descriptor        identity.Descriptor `yaml:"descriptor"`         // Application identity presented when pairing
	TokenFile         string              `yaml:"token_file"`         // Path of the credential file
	CredentialBackend string              `yaml:"credential_backend"` // "file" or "keyring"
	APIVersion        string              `yaml:"api_version"`        // "vN" or "server"
	Timeout           time.Duration       `yaml:"timeout"`            // Timeout of every network call
	PreferTLS         bool                `yaml:"prefer_tls"`         // Prefer HTTPS when the appliance offers it
	CACertificate     string              `yaml:"ca_certificate"`     // Path to the PEM bundle of the appliance CA
	PollInterval      time.Duration       `yaml:"poll_interval"`      // Wait between two authorization status polls
	DrainDelay        time.Duration       `yaml:"drain_delay"`        // Wait after closing a connection
	UnknownIsDenied   bool                `yaml:"unknown_is_denied"`  // Stop pairing on an "unknown" status
	Tracing           bool                `yaml:"tracing"`            // Instrument HTTP calls with OpenTelemetry
	Appliance         discovery.Defaults  `yaml:"appliance"`          // Well-known host and ports

	// CACertificatePEM is the content of CACertificate, read by LoadConfig.
	CACertificatePEM []byte `yaml:"-"`
	// Prompt receives the confirmation message shown while pairing.
	Prompt io.Writer `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Descriptor:        identity.DefaultDescriptor(),
		TokenFile:         DefaultTokenFile(),
		CredentialBackend: BackendFile,
		APIVersion:        constants.DefaultAPIVersion,
		Timeout:           constants.DefaultTimeout,
		PreferTLS:         constants.DefaultPreferTLS,
		PollInterval:      constants.DefaultPollInterval,
		DrainDelay:        constants.DefaultDrainDelay,
		Appliance:         discovery.DefaultDefaults(),
		Prompt:            os.Stdout,
	}
}

// DefaultTokenFile returns the credential file path under the user config directory.
func DefaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return constants.DefaultTokenFilename
	}
	return filepath.Join(dir, identity.DefaultAppName, constants.DefaultTokenFilename)
}

// LoadConfig loads the YAML configuration from the specified file on top of
// DefaultConfig, then reads the CA bundle it names.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", filename, err)
	}

	if config.CACertificate != "" {
		pem, err := fileClient.ReadFileRaw(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		config.CACertificatePEM = pem
	}

	return &config, nil
}

// NewStore builds the credential store selected by the configuration.
func NewStore(config Config, fileClient file.FileOperations, logger zerolog.Logger) (credential.Store, error) {
	switch config.CredentialBackend {
	case "", BackendFile:
		return credential.NewFileStore(config.TokenFile, fileClient, logger), nil
	case BackendKeyring:
		return credential.NewKeyringStore(credential.DefaultKeyringService, config.Descriptor.AppID, logger), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", config.CredentialBackend)
	}
}
