package service

import (
	"context"
	"testing"
	"time"

	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/generator"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type activationFixture struct {
	store    *memStore
	clock    *clock.Fake
	licenses *LicenseService
	service  *ActivationService
}

func newActivationFixture(t *testing.T) (*activationFixture, *license.License) {
	t.Helper()

	fakeClock := clock.NewFake(testNow)
	st := newMemStore(fakeClock.Now)
	p := st.addProduct("Widget")
	c := st.addConsumer("Acme", "ops@acme.test")

	generators := generator.NewFactory(nil, zap.NewNop())
	licenses := NewLicenseService(st, generators, nil, nil, fakeClock, testLogger())
	svc := NewActivationService(st, licenses, nil, fakeClock, testLogger())

	lic, err := svc.CreateProductKey(context.Background(), &dto.CreateProductKeyRequest{
		ProductID:      p.ID,
		ConsumerID:     c.ID,
		ValidTo:        testNow.AddDate(1, 0, 0),
		MaxActivations: 2,
	}, "tester")
	require.NoError(t, err)

	return &activationFixture{
		store:    st,
		clock:    fakeClock,
		licenses: licenses,
		service:  svc,
	}, lic
}

func activateReq(lic *license.License, machineID string) *dto.ActivateProductKeyRequest {
	return &dto.ActivateProductKeyRequest{
		ProductKey:  lic.LicenseKey,
		MachineID:   machineID,
		MachineName: "workstation-" + machineID,
	}
}

func TestCreateProductKeyMintsPendingLicense(t *testing.T) {
	_, lic := newActivationFixture(t)

	assert.Equal(t, license.ModelProductKey, lic.Model)
	assert.Equal(t, license.StatusPending, lic.Status)
	assert.Equal(t, int32(2), lic.MaxActivations)
}

func TestFirstActivationFlipsLicenseActive(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	act, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	assert.Equal(t, activation.StatusActive, act.Status)
	assert.NotEmpty(t, act.Signature)

	got, err := f.store.Licenses().FindByID(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, got.Status)
	require.NotEmpty(t, got.Events)
	assert.Equal(t, license.EventActivation, got.Events[0].Type)
}

func TestSameMachineReactivationIsIdempotent(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	first, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	second, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat activation returns the existing record")

	count, err := f.store.Activations().CountActiveByLicense(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestActivationCapEnforced(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	_, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)
	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-b"), "installer")
	require.NoError(t, err)

	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-c"), "installer")
	assert.ErrorIs(t, err, ierr.ErrActivationLimit)

	// A machine that already holds a slot still succeeds at the cap.
	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	assert.NoError(t, err)
}

func TestDeactivationFreesSlot(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	first, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)
	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-b"), "installer")
	require.NoError(t, err)

	released, err := f.service.DeactivateProductKey(ctx, first.Signature, "support", "hardware replaced")
	require.NoError(t, err)
	assert.Equal(t, activation.StatusInactive, released.Status)
	assert.True(t, released.DeactivatedAt.Valid)

	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-c"), "installer")
	assert.NoError(t, err, "freed slot can be reused")
}

func TestDeactivateTwiceIsIdempotent(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	act, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	_, err = f.service.DeactivateProductKey(ctx, act.Signature, "support", "")
	require.NoError(t, err)
	again, err := f.service.DeactivateProductKey(ctx, act.Signature, "support", "")
	require.NoError(t, err)
	assert.Equal(t, activation.StatusInactive, again.Status)
}

func TestActivateNormalizesKeyInput(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	req := activateReq(lic, "machine-a")
	bare := ""
	for _, r := range lic.LicenseKey {
		if r != '-' {
			bare += string(r)
		}
	}
	req.ProductKey = "  " + bare + "  "

	act, err := f.service.ActivateProductKey(ctx, req, "installer")
	require.NoError(t, err)
	assert.Equal(t, lic.LicenseKey, act.ProductKey)
}

func TestActivateRejectsIneligibleLicense(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	_, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	require.NoError(t, f.licenses.RevokeLicense(ctx, lic.ID, "tester", "fraud"))

	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-b"), "installer")
	assert.ErrorIs(t, err, ierr.ErrLicenseRevoked)
}

func TestActivateRejectsLapsedWindow(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	f.clock.Set(testNow.AddDate(1, 0, 1))

	_, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestValidateProductKeyReportsRemaining(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	resp, err := f.service.ValidateProductKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, int64(2), resp.RemainingActivations)

	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)
	_, err = f.service.ActivateProductKey(ctx, activateReq(lic, "machine-b"), "installer")
	require.NoError(t, err)

	resp, err = f.service.ValidateProductKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, "activation limit reached", resp.Reason)
}

func TestValidateProductKeyUnknownKey(t *testing.T) {
	f, _ := newActivationFixture(t)

	resp, err := f.service.ValidateProductKey(context.Background(), "AB12-CD34-EF56-GH78")
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, "product key not found", resp.Reason)
}

func TestActivationSignatureIsStableLookupHandle(t *testing.T) {
	f, lic := newActivationFixture(t)
	ctx := context.Background()

	act, err := f.service.ActivateProductKey(ctx, activateReq(lic, "machine-a"), "installer")
	require.NoError(t, err)

	found, err := f.service.GetActivationBySignature(ctx, act.Signature)
	require.NoError(t, err)
	assert.Equal(t, act.ID, found.ID)

	f.clock.Advance(time.Hour)
	_, err = f.service.GetActivationBySignature(ctx, "bogus")
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}
