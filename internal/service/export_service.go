package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

type ExportFormat string

const (
	FormatLic  ExportFormat = "lic"
	FormatJSON ExportFormat = "json"
	FormatXML  ExportFormat = "xml"
)

// ExportService renders a stored license into a downloadable document.
type ExportService struct {
	store  store.Store
	clock  clock.Clock
	logger *zap.Logger
}

func NewExportService(st store.Store, clk clock.Clock, logger *zap.Logger) *ExportService {
	return &ExportService{store: st, clock: clk, logger: logger.Named("ExportService")}
}

// Export renders the license in the requested format. The returned values
// are the document body, its content type, and a suggested filename.
func (s *ExportService) Export(ctx context.Context, id uuid.UUID, format ExportFormat) ([]byte, string, string, error) {
	lic, err := s.store.Licenses().FindByID(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if lic.Status == license.StatusRevoked {
		return nil, "", "", fmt.Errorf("%w: revoked licenses cannot be exported", ierr.ErrLicenseRevoked)
	}

	doc := newExportDocument(lic, s.clock.Now())

	switch format {
	case FormatLic:
		body := renderLicFile(doc)
		return body, "application/octet-stream", lic.Code + ".lic", nil
	case FormatJSON:
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", "", fmt.Errorf("json rendering failed: %w", err)
		}
		return body, "application/json", lic.Code + ".json", nil
	case FormatXML:
		body, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", "", fmt.Errorf("xml rendering failed: %w", err)
		}
		return append([]byte(xml.Header), body...), "application/xml", lic.Code + ".xml", nil
	default:
		return nil, "", "", fmt.Errorf("%w: %q", ierr.ErrUnsupportedExport, format)
	}
}

// exportDocument is the stable external shape of an exported license. The
// checksum covers the license key so a tampered key is detectable offline.
type exportDocument struct {
	XMLName    xml.Name  `json:"-" xml:"license"`
	Code       string    `json:"code" xml:"code"`
	LicenseKey string    `json:"license_key" xml:"licenseKey"`
	Model      string    `json:"model" xml:"model"`
	Status     string    `json:"status" xml:"status"`
	ProductID  string    `json:"product_id" xml:"productId"`
	ConsumerID string    `json:"consumer_id" xml:"consumerId"`
	Tier       string    `json:"tier,omitempty" xml:"tier,omitempty"`
	ValidFrom  time.Time `json:"valid_from" xml:"validFrom"`
	ValidTo    time.Time `json:"valid_to" xml:"validTo"`
	Signature  string    `json:"signature,omitempty" xml:"signature,omitempty"`
	PublicKey  string    `json:"public_key,omitempty" xml:"publicKey,omitempty"`
	Checksum   string    `json:"checksum" xml:"checksum"`
	ExportedAt time.Time `json:"exported_at" xml:"exportedAt"`
}

func newExportDocument(lic *license.License, now time.Time) *exportDocument {
	digest := sha256.Sum256([]byte(lic.LicenseKey))
	doc := &exportDocument{
		Code:       lic.Code,
		LicenseKey: lic.LicenseKey,
		Model:      string(lic.Model),
		Status:     string(lic.Status),
		ProductID:  lic.ProductID.String(),
		ConsumerID: lic.ConsumerID.String(),
		ValidFrom:  lic.ValidFrom,
		ValidTo:    lic.ValidTo,
		Checksum:   hex.EncodeToString(digest[:]),
		ExportedAt: now,
	}
	if lic.Tier.Valid {
		doc.Tier = lic.Tier.String
	}
	if lic.Signature.Valid {
		doc.Signature = lic.Signature.String
	}
	if lic.PublicKey.Valid {
		doc.PublicKey = lic.PublicKey.String
	}
	return doc
}

// renderLicFile writes the INI-like .lic layout consumed by on-premise
// installers.
func renderLicFile(doc *exportDocument) []byte {
	var b strings.Builder
	b.WriteString("[License]\n")
	fmt.Fprintf(&b, "Code=%s\n", doc.Code)
	fmt.Fprintf(&b, "Key=%s\n", doc.LicenseKey)
	fmt.Fprintf(&b, "Model=%s\n", doc.Model)
	fmt.Fprintf(&b, "Product=%s\n", doc.ProductID)
	fmt.Fprintf(&b, "Consumer=%s\n", doc.ConsumerID)
	if doc.Tier != "" {
		fmt.Fprintf(&b, "Tier=%s\n", doc.Tier)
	}
	fmt.Fprintf(&b, "ValidFrom=%s\n", doc.ValidFrom.Format(time.RFC3339))
	fmt.Fprintf(&b, "ValidTo=%s\n", doc.ValidTo.Format(time.RFC3339))
	b.WriteString("\n[Integrity]\n")
	fmt.Fprintf(&b, "Checksum=%s\n", doc.Checksum)
	if doc.Signature != "" {
		fmt.Fprintf(&b, "Signature=%s\n", doc.Signature)
	}
	if doc.PublicKey != "" {
		b.WriteString("\n[PublicKey]\n")
		b.WriteString(doc.PublicKey)
	}
	return []byte(b.String())
}

// ParseExportFormat maps a request string to a known format, defaulting to
// the .lic layout.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "lic":
		return FormatLic, nil
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("%w: %q", ierr.ErrUnsupportedExport, raw)
	}
}
