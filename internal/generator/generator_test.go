package generator

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticKeySource struct {
	priv *rsa.PrivateKey
}

func (s *staticKeySource) ActiveKeyPair(ctx context.Context, productID uuid.UUID) (*rsa.PrivateKey, string, error) {
	return s.priv, "test-public-pem", nil
}

func testRequest(model license.Model) *Request {
	return &Request{
		Model:      model,
		ProductID:  uuid.New(),
		ConsumerID: uuid.New(),
		Tier:       "pro",
		ValidFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFactoryResolvesEveryModel(t *testing.T) {
	f := NewFactory(&staticKeySource{}, zap.NewNop())

	for _, model := range []license.Model{license.ModelProductKey, license.ModelLicenseFile, license.ModelVolumetric} {
		gen, err := f.For(model)
		require.NoError(t, err)
		assert.NotNil(t, gen)
	}

	_, err := f.For(license.Model("floating"))
	assert.ErrorIs(t, err, ierr.ErrUnsupportedLicModel)
}

func TestProductKeyGenerator(t *testing.T) {
	f := NewFactory(&staticKeySource{}, zap.NewNop())
	gen, err := f.For(license.ModelProductKey)
	require.NoError(t, err)

	res, err := gen.Generate(context.Background(), testRequest(license.ModelProductKey))
	require.NoError(t, err)

	assert.True(t, util.IsValidProductKeyFormat(res.LicenseKey))
	assert.True(t, strings.HasPrefix(res.Code, "LIC-"))
	assert.Empty(t, res.Signature, "product keys carry no signature")
}

func TestVolumetricGeneratorEncodesSeats(t *testing.T) {
	f := NewFactory(&staticKeySource{}, zap.NewNop())
	gen, err := f.For(license.ModelVolumetric)
	require.NoError(t, err)

	req := testRequest(license.ModelVolumetric)
	req.MaxAllowedUsers = 25

	res, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, util.IsValidVolumetricKeyFormat(res.LicenseKey))
	assert.Equal(t, int32(25), util.VolumetricSeats(res.LicenseKey))
}

func TestVolumetricGeneratorRejectsZeroSeats(t *testing.T) {
	f := NewFactory(&staticKeySource{}, zap.NewNop())
	gen, err := f.For(license.ModelVolumetric)
	require.NoError(t, err)

	req := testRequest(license.ModelVolumetric)
	req.MaxAllowedUsers = 0

	_, err = gen.Generate(context.Background(), req)
	assert.Error(t, err)
}

func TestLicenseFileGeneratorSignatureVerifies(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := NewFactory(&staticKeySource{priv: priv}, zap.NewNop())
	gen, err := f.For(license.ModelLicenseFile)
	require.NoError(t, err)

	req := testRequest(license.ModelLicenseFile)
	res, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "test-public-pem", res.PublicKey)

	sig, err := base64.StdEncoding.DecodeString(res.Signature)
	require.NoError(t, err)

	payload := signingPayload(res.LicenseKey, req)
	digest := sha256.Sum256([]byte(payload))
	assert.NoError(t, rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestLicenseFileSignatureBindsTheKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := NewFactory(&staticKeySource{priv: priv}, zap.NewNop())
	gen, err := f.For(license.ModelLicenseFile)
	require.NoError(t, err)

	req := testRequest(license.ModelLicenseFile)
	res, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(res.Signature)
	require.NoError(t, err)

	tampered := signingPayload("XXXX-XXXX-XXXX-XXXX", req)
	digest := sha256.Sum256([]byte(tampered))
	assert.Error(t, rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, digest[:], sig))
}
