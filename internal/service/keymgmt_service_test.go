package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyFixture(t *testing.T, passphrase string) (*KeyManagementService, *memStore, uuid.UUID) {
	t.Helper()
	st := newMemStore(nil)
	p := st.addProduct("Widget")
	svc := NewKeyManagementService(st, 2048, passphrase, testLogger())
	return svc, st, p.ID
}

func TestGenerateKeysForProduct(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")
	ctx := context.Background()

	key, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	assert.Equal(t, int32(1), key.Version)
	assert.True(t, key.IsActive)
	assert.False(t, key.IsEncrypted)
	assert.True(t, strings.Contains(key.PublicKeyPEM, "BEGIN PUBLIC KEY"))
	assert.True(t, strings.Contains(key.PrivateKeyPEM, "BEGIN PRIVATE KEY"))
}

func TestGenerateKeysRefusesSecondActiveGeneration(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")
	ctx := context.Background()

	_, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	_, err = svc.GenerateKeysForProduct(ctx, productID, "tester")
	assert.ErrorIs(t, err, ierr.ErrConflict)
}

func TestGenerateKeysUnknownProduct(t *testing.T) {
	svc, _, _ := newKeyFixture(t, "")

	_, err := svc.GenerateKeysForProduct(context.Background(), uuid.New(), "tester")
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}

func TestRotateKeysBumpsVersionAndDeactivatesPrior(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")
	ctx := context.Background()

	first, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	second, err := svc.RotateKeys(ctx, productID, "tester")
	require.NoError(t, err)

	assert.Equal(t, int32(2), second.Version)
	assert.NotEqual(t, first.PublicKeyPEM, second.PublicKeyPEM)

	all, err := svc.ListKeys(ctx, productID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[0].IsActive, "generation 1 must be deactivated")
	assert.True(t, all[1].IsActive)

	active, err := svc.ActiveKey(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestRotateKeysWithoutExistingKey(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")

	_, err := svc.RotateKeys(context.Background(), productID, "tester")
	assert.ErrorIs(t, err, ierr.ErrNoActiveSigningKey)
}

func TestPrivateKeyRoundTripsWithoutPassphrase(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")
	ctx := context.Background()

	_, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	priv, err := svc.PrivateKey(ctx, productID)
	require.NoError(t, err)
	assert.NoError(t, priv.Validate())
}

func TestPrivateKeyRoundTripsEncrypted(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "correct horse battery staple")
	ctx := context.Background()

	key, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	assert.True(t, key.IsEncrypted)
	assert.False(t, strings.Contains(key.PrivateKeyPEM, "PRIVATE KEY"), "stored blob must not be plaintext PEM")

	priv, err := svc.PrivateKey(ctx, productID)
	require.NoError(t, err)
	assert.NoError(t, priv.Validate())
}

func TestPrivateKeyWrongPassphrase(t *testing.T) {
	svc, st, productID := newKeyFixture(t, "original passphrase")
	ctx := context.Background()

	_, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	wrong := NewKeyManagementService(st, 2048, "different passphrase", testLogger())
	_, err = wrong.PrivateKey(ctx, productID)
	assert.ErrorIs(t, err, ierr.ErrBadPassphrase)
}

func TestActiveKeyPairServesGenerator(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")
	ctx := context.Background()

	_, err := svc.GenerateKeysForProduct(ctx, productID, "tester")
	require.NoError(t, err)

	priv, pubPEM, err := svc.ActiveKeyPair(ctx, productID)
	require.NoError(t, err)
	assert.NotNil(t, priv)
	assert.True(t, strings.Contains(pubPEM, "BEGIN PUBLIC KEY"))
}

func TestPublicKeyMissingProductKeys(t *testing.T) {
	svc, _, productID := newKeyFixture(t, "")

	_, err := svc.PublicKey(context.Background(), productID)
	assert.ErrorIs(t, err, ierr.ErrNoActiveSigningKey)
}
