package util

import (
	"strings"
	"testing"

	"github.com/keyline/license-backoffice/internal/domain/apikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKeyShape(t *testing.T) {
	fullKey, prefix, keyHash, err := GenerateAPIKey()
	require.NoError(t, err)

	parts := strings.SplitN(fullKey, "_", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "lbo", parts[0])
	assert.Equal(t, prefix, parts[1])
	assert.Len(t, prefix, apikey.APIKeyPrefixLength)
	assert.Len(t, parts[2], apikey.APIKeySecretLength)

	assert.Equal(t, HashAPIKey(fullKey), keyHash)
	assert.Len(t, keyHash, 64)
}

func TestGenerateAPIKeyUnique(t *testing.T) {
	a, _, _, err := GenerateAPIKey()
	require.NoError(t, err)
	b, _, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashAPIKeyStable(t *testing.T) {
	assert.Equal(t, HashAPIKey("lbo_abc_def"), HashAPIKey("lbo_abc_def"))
	assert.NotEqual(t, HashAPIKey("lbo_abc_def"), HashAPIKey("lbo_abc_xyz"))
}
