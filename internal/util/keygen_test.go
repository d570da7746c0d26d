package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProductKeyFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := GenerateProductKey()
		require.NoError(t, err)
		assert.True(t, IsValidProductKeyFormat(key), "generated key %q must match the format", key)
		assert.NotContains(t, key, "0")
		assert.NotContains(t, key, "O")
		assert.NotContains(t, key, "1")
		assert.NotContains(t, key, "I")
		assert.NotContains(t, key, "L")
	}
}

func TestGenerateVolumetricKeyEncodesSeats(t *testing.T) {
	key, err := GenerateVolumetricKey(5)
	require.NoError(t, err)

	assert.True(t, IsValidVolumetricKeyFormat(key))
	assert.True(t, strings.HasSuffix(key, "-0005"))
	assert.Equal(t, int32(5), VolumetricSeats(key))
}

func TestGenerateVolumetricKeyRejectsBadSeatCounts(t *testing.T) {
	_, err := GenerateVolumetricKey(0)
	assert.Error(t, err)

	_, err = GenerateVolumetricKey(-3)
	assert.Error(t, err)

	_, err = GenerateVolumetricKey(10000)
	assert.Error(t, err)
}

func TestIsValidVolumetricKeyFormat(t *testing.T) {
	assert.True(t, IsValidVolumetricKeyFormat("AB12-CD34-EF56-0005"))
	assert.False(t, IsValidVolumetricKeyFormat("AB12-CD34-EF56-0000"), "zero seats is not a valid volumetric key")
	assert.False(t, IsValidVolumetricKeyFormat("AB12-CD34-EF56-ABCD"), "non-numeric tail is a plain product key")
}

func TestGenerateLicenseCode(t *testing.T) {
	code, err := GenerateLicenseCode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "LIC-"))
	assert.Len(t, code, 12)
}

func TestNormalizeProductKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ab12-cd34-ef56-gh78", "AB12-CD34-EF56-GH78"},
		{"AB12CD34EF56GH78", "AB12-CD34-EF56-GH78"},
		{"  ab12 cd34 ef56 gh78  ", "AB12-CD34-EF56-GH78"},
		{"AB12-CD34", "AB12-CD34"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeProductKey(tc.in))
	}
}
