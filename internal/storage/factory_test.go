package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framedrop/framedrop/pkg/config"
)

func TestNewFromConfig_Local(t *testing.T) {
	store, err := NewFromConfig(&config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Kind())
}

func TestNewFromConfig_Unsupported(t *testing.T) {
	_, err := NewFromConfig(&config.StorageConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
