package credential

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/pkg/file"
)

// FileStore keeps the credential in a JSON file.
type FileStore struct {
	path    string
	fileOps file.FileOperations
	logger  zerolog.Logger
}

// NewFileStore creates a FileStore for the file at path.
func NewFileStore(path string, fileOps file.FileOperations, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:    path,
		fileOps: fileOps,
		logger:  logger,
	}
}

// Load reads the credential file. A missing file, or a record without an
// app_token, yields no credential. Descriptor fields missing from the file
// are left empty so they never match a valid descriptor.
func (s *FileStore) Load() (*Credential, error) {
	s.logger.Debug().Str("file", s.path).Msg("Reading application authorization file")

	var r record
	if err := s.fileOps.ReadJsonFile(s.path, &r); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read authorization file %s: %w", s.path, err)
	}
	if r.AppToken == "" {
		s.logger.Warn().Str("file", s.path).Msg("Authorization file has no app_token")
		return nil, nil
	}
	return r.toCredential(), nil
}

// Save overwrites the credential file.
func (s *FileStore) Save(cred Credential) error {
	if err := s.fileOps.WriteJsonFile(s.path, cred.toRecord()); err != nil {
		return fmt.Errorf("failed to write authorization file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Location() string {
	return s.path
}
