package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/keyline/license-backoffice/internal/domain/apikey"
)

// randomToken returns an alphanumeric random string of exactly the given
// length. Base64's - and _ are dropped so tokens stay single-word in
// headers and logs; the loop tops up until enough characters remain.
func randomToken(length int) (string, error) {
	var sb strings.Builder
	for sb.Len() < length {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		str := base64.RawURLEncoding.EncodeToString(buf)
		str = strings.ReplaceAll(str, "-", "")
		str = strings.ReplaceAll(str, "_", "")
		sb.WriteString(str)
	}
	return sb.String()[:length], nil
}

// GenerateAPIKey mints a full agent key in the lbo_<prefix>_<secret> form
// together with its lookup prefix and the SHA-256 hash that gets stored.
func GenerateAPIKey() (fullKey string, prefix string, keyHash string, err error) {
	prefix, err = randomToken(apikey.APIKeyPrefixLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate prefix: %w", err)
	}

	secret, err := randomToken(apikey.APIKeySecretLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	fullKey = fmt.Sprintf(apikey.APIKeyFormat, prefix, secret)
	keyHash = HashAPIKey(fullKey)
	return fullKey, prefix, keyHash, nil
}

func HashAPIKey(fullKey string) string {
	sum := sha256.Sum256([]byte(fullKey))
	return fmt.Sprintf("%x", sum)
}
