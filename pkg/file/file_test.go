package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_JSONRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "nested", "data.json")

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, fs.WriteJsonFile(path, map[string]string{"a": "b"}))

	var out map[string]string
	require.NoError(t, fs.ReadJsonFile(path, &out))
	assert.Equal(t, map[string]string{"a": "b"}, out)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileService_WriteJsonFileOverwrites(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "data.json")

	require.NoError(t, fs.WriteJsonFile(path, map[string]int{"first": 1, "second": 2}))
	require.NoError(t, fs.WriteJsonFile(path, map[string]int{"third": 3}))

	var out map[string]int
	require.NoError(t, fs.ReadJsonFile(path, &out))
	assert.Equal(t, map[string]int{"third": 3}, out)
}

func TestFileService_ReadYamlFile(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: box\nport: 443\n"), 0600))

	var out struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	}
	require.NoError(t, fs.ReadYamlFile(path, &out))
	assert.Equal(t, "box", out.Name)
	assert.Equal(t, 443, out.Port)
}

func TestFileService_MissingFile(t *testing.T) {
	fs := NewFileService()
	err := fs.ReadJsonFile(filepath.Join(t.TempDir(), "absent.json"), &struct{}{})
	assert.True(t, os.IsNotExist(err))
}
