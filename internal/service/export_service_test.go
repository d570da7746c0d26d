package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportFixture(t *testing.T) (*ExportService, *license.License) {
	t.Helper()
	st := newMemStore(nil)
	lic := healthyLicense()
	id, err := st.Licenses().Create(context.Background(), lic)
	require.NoError(t, err)
	lic.ID = id

	svc := NewExportService(st, clock.NewFake(testNow), testLogger())
	return svc, lic
}

func TestParseExportFormat(t *testing.T) {
	for raw, want := range map[string]ExportFormat{
		"":     FormatLic,
		"lic":  FormatLic,
		"JSON": FormatJSON,
		"xml":  FormatXML,
	} {
		got, err := ParseExportFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("yaml")
	assert.ErrorIs(t, err, ierr.ErrUnsupportedExport)
}

func TestExportLicFormat(t *testing.T) {
	svc, lic := newExportFixture(t)

	body, contentType, filename, err := svc.Export(context.Background(), lic.ID, FormatLic)
	require.NoError(t, err)

	assert.Equal(t, "application/octet-stream", contentType)
	assert.Equal(t, lic.Code+".lic", filename)

	text := string(body)
	assert.Contains(t, text, "[License]")
	assert.Contains(t, text, "Key="+lic.LicenseKey)
	assert.Contains(t, text, "[Integrity]")

	digest := sha256.Sum256([]byte(lic.LicenseKey))
	assert.Contains(t, text, "Checksum="+hex.EncodeToString(digest[:]))
}

func TestExportJSONFormat(t *testing.T) {
	svc, lic := newExportFixture(t)

	body, contentType, filename, err := svc.Export(context.Background(), lic.ID, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, lic.Code+".json", filename)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, lic.LicenseKey, doc["license_key"])

	digest := sha256.Sum256([]byte(lic.LicenseKey))
	assert.Equal(t, hex.EncodeToString(digest[:]), doc["checksum"])
}

func TestExportXMLFormat(t *testing.T) {
	svc, lic := newExportFixture(t)

	body, contentType, filename, err := svc.Export(context.Background(), lic.ID, FormatXML)
	require.NoError(t, err)

	assert.Equal(t, "application/xml", contentType)
	assert.Equal(t, lic.Code+".xml", filename)
	assert.True(t, strings.HasPrefix(string(body), xml.Header))

	var doc struct {
		LicenseKey string `xml:"licenseKey"`
		Checksum   string `xml:"checksum"`
	}
	require.NoError(t, xml.Unmarshal(body, &doc))
	assert.Equal(t, lic.LicenseKey, doc.LicenseKey)
}

func TestExportRevokedLicenseRefused(t *testing.T) {
	svc, lic := newExportFixture(t)
	ctx := context.Background()

	st := svc.store
	require.NoError(t, st.Licenses().UpdateStatus(ctx, lic.ID, license.StatusRevoked))

	_, _, _, err := svc.Export(ctx, lic.ID, FormatLic)
	assert.ErrorIs(t, err, ierr.ErrLicenseRevoked)
}

func TestExportUnknownFormat(t *testing.T) {
	svc, lic := newExportFixture(t)

	_, _, _, err := svc.Export(context.Background(), lic.ID, ExportFormat("pdf"))
	assert.ErrorIs(t, err, ierr.ErrUnsupportedExport)
}
