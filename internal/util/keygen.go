package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// keyAlphabet avoids ambiguous characters (0/O, 1/I/L).
const keyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var (
	productKeyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	volumetricPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-([0-9]{4})$`)
	licenseCodePrefix = "LIC-"
)

// GenerateProductKey returns a key in XXXX-XXXX-XXXX-XXXX form.
func GenerateProductKey() (string, error) {
	groups := make([]string, 4)
	for i := range groups {
		g, err := randomGroup(4)
		if err != nil {
			return "", err
		}
		groups[i] = g
	}
	return strings.Join(groups, "-"), nil
}

// GenerateVolumetricKey returns a key whose last group encodes the seat
// count, e.g. MaxAllowedUsers=5 yields XXXX-XXXX-XXXX-0005.
func GenerateVolumetricKey(seats int32) (string, error) {
	if seats <= 0 || seats > 9999 {
		return "", fmt.Errorf("seat count %d outside supported range 1-9999", seats)
	}
	groups := make([]string, 3)
	for i := range groups {
		g, err := randomGroup(4)
		if err != nil {
			return "", err
		}
		groups[i] = g
	}
	return fmt.Sprintf("%s-%04d", strings.Join(groups, "-"), seats), nil
}

// GenerateLicenseCode returns a human-readable code like LIC-7KQ2M4XN.
func GenerateLicenseCode() (string, error) {
	g, err := randomGroup(8)
	if err != nil {
		return "", err
	}
	return licenseCodePrefix + g, nil
}

// NormalizeProductKey uppercases the input, strips whitespace and re-inserts
// the group dashes when the raw 16 characters were supplied without them.
func NormalizeProductKey(key string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(key))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	bare := strings.ReplaceAll(cleaned, "-", "")
	if len(bare) != 16 {
		return cleaned
	}
	return fmt.Sprintf("%s-%s-%s-%s", bare[0:4], bare[4:8], bare[8:12], bare[12:16])
}

func IsValidProductKeyFormat(key string) bool {
	return productKeyPattern.MatchString(key)
}

// IsValidVolumetricKeyFormat requires the last group to be a positive number.
func IsValidVolumetricKeyFormat(key string) bool {
	m := volumetricPattern.FindStringSubmatch(key)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n > 0
}

// VolumetricSeats extracts the seat count from a volumetric key, or 0 when
// the key does not carry one.
func VolumetricSeats(key string) int32 {
	m := volumetricPattern.FindStringSubmatch(key)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return int32(n)
}

func randomGroup(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random key character: %w", err)
		}
		b.WriteByte(keyAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
