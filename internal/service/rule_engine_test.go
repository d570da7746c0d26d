package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func healthyLicense() *license.License {
	return &license.License{
		ID:         uuid.New(),
		Code:       "LIC-TESTKEY1",
		ProductID:  uuid.New(),
		ConsumerID: uuid.New(),
		LicenseKey: "AB12-CD34-EF56-GH78",
		Model:      license.ModelProductKey,
		Status:     license.StatusActive,
		ValidFrom:  testNow.AddDate(0, -1, 0),
		ValidTo:    testNow.AddDate(1, 0, 0),
	}
}

func basicEngine() *RuleEngine {
	return NewRuleEngine(nil, RuleSetBasic, clock.NewFake(testNow), testLogger())
}

func TestRuleEngineHealthyLicense(t *testing.T) {
	result, err := basicEngine().ValidateActiveLicense(context.Background(), healthyLicense())
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.RequiresRenewal)
}

func TestRuleEngineStructuralViolations(t *testing.T) {
	lic := healthyLicense()
	lic.ProductID = uuid.Nil
	lic.LicenseKey = ""
	lic.ValidFrom = lic.ValidTo

	result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Len(t, result.Violations, 4, "missing product, empty key, bad key format, empty window")
}

func TestRuleEngineVolumetricSeatsInKey(t *testing.T) {
	lic := healthyLicense()
	lic.Model = license.ModelVolumetric
	lic.LicenseKey = "AB12-CD34-EF56-0005"
	lic.MaxAllowedUsers = sql.NullInt32{Int32: 5, Valid: true}

	result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestRuleEngineVolumetricRejectsAlphaTail(t *testing.T) {
	lic := healthyLicense()
	lic.Model = license.ModelVolumetric
	lic.LicenseKey = "AB12-CD34-EF56-ABCD"
	lic.MaxAllowedUsers = sql.NullInt32{Int32: 5, Valid: true}

	result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Contains(t, result.Violations[0], "positive numeric last group")
}

func TestRuleEngineLicenseFileNeedsSignature(t *testing.T) {
	lic := healthyLicense()
	lic.Model = license.ModelLicenseFile

	result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	lic.Signature = sql.NullString{String: "c2ln", Valid: true}
	result, err = basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestRuleEngineExpiryTiers(t *testing.T) {
	cases := []struct {
		name            string
		validTo         time.Time
		wantValid       bool
		wantRenewal     bool
		wantWarningPart string
	}{
		{
			name:        "expired over 90 days is a violation",
			validTo:     testNow.AddDate(0, 0, -120),
			wantValid:   false,
			wantRenewal: true,
		},
		{
			name:            "recently expired is a warning",
			validTo:         testNow.AddDate(0, 0, -10),
			wantValid:       true,
			wantRenewal:     true,
			wantWarningPart: "expired 10 days ago",
		},
		{
			name:            "five days left urges renewal without flagging it",
			validTo:         testNow.Add(5 * 24 * time.Hour),
			wantValid:       true,
			wantRenewal:     false,
			wantWarningPart: "renew urgently",
		},
		{
			name:            "three weeks left recommends renewal",
			validTo:         testNow.Add(21 * 24 * time.Hour),
			wantValid:       true,
			wantRenewal:     false,
			wantWarningPart: "renewal recommended",
		},
		{
			name:      "far future stays quiet",
			validTo:   testNow.AddDate(1, 0, 0),
			wantValid: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lic := healthyLicense()
			lic.ValidTo = tc.validTo
			if tc.validTo.Before(testNow) {
				lic.Status = license.StatusExpired
			}

			result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
			require.NoError(t, err)

			assert.Equal(t, tc.wantValid, result.Valid)
			assert.Equal(t, tc.wantRenewal, result.RequiresRenewal)
			if tc.wantWarningPart != "" {
				require.NotEmpty(t, result.Warnings)
				found := false
				for _, w := range result.Warnings {
					if strings.Contains(w, tc.wantWarningPart) {
						found = true
					}
				}
				assert.True(t, found, "expected a warning containing %q, got %v", tc.wantWarningPart, result.Warnings)
			}
		})
	}
}

func TestRuleEngineActiveButLapsedIsInconsistent(t *testing.T) {
	lic := healthyLicense()
	lic.ValidTo = testNow.AddDate(0, 0, -5)

	result, err := basicEngine().ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Violations[0], "status is active but the validity window has already ended")
}

func TestRuleEngineFullChecksReferences(t *testing.T) {
	st := newMemStore(nil)
	p := st.addProduct("Widget")
	c := st.addConsumer("Acme", "ops@acme.test")

	engine := NewRuleEngine(st, RuleSetFull, clock.NewFake(testNow), testLogger())

	lic := healthyLicense()
	lic.ProductID = p.ID
	lic.ConsumerID = c.ID

	result, err := engine.ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	lic.ProductID = uuid.New()
	result, err = engine.ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Violations[0], "referenced product does not exist")
}

func TestRuleEngineFullWarnsOnDuplicateActive(t *testing.T) {
	st := newMemStore(nil)
	p := st.addProduct("Widget")
	c := st.addConsumer("Acme", "ops@acme.test")

	other := healthyLicense()
	other.ProductID = p.ID
	other.ConsumerID = c.ID
	otherID, err := st.Licenses().Create(context.Background(), other)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, otherID)

	engine := NewRuleEngine(st, RuleSetFull, clock.NewFake(testNow), testLogger())

	lic := healthyLicense()
	lic.ProductID = p.ID
	lic.ConsumerID = c.ID

	result, err := engine.ValidateActiveLicense(context.Background(), lic)
	require.NoError(t, err)

	assert.True(t, result.Valid, "a duplicate is a warning, not a violation")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "already holds")
}
