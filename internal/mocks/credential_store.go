package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/fbx-agent/pkg/credential"
)

// MockCredentialStore is a mock implementation of credential.Store
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Load() (*credential.Credential, error) {
	args := m.Called()
	cred, _ := args.Get(0).(*credential.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialStore) Save(cred credential.Credential) error {
	args := m.Called(cred)
	return args.Error(0)
}

func (m *MockCredentialStore) Location() string {
	return "mock"
}
