package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/license"
)

type GenerateLicenseRequest struct {
	Model           license.Model  `json:"model" binding:"required,oneof=product_key license_file volumetric"`
	ProductID       uuid.UUID      `json:"product_id" binding:"required"`
	ConsumerID      uuid.UUID      `json:"consumer_id" binding:"required"`
	Tier            string         `json:"tier"`
	ValidFrom       time.Time      `json:"valid_from" binding:"required"`
	ValidTo         time.Time      `json:"valid_to" binding:"required"`
	MaxAllowedUsers int32          `json:"max_allowed_users"`
	MaxActivations  int32          `json:"max_activations"`
	Metadata        map[string]any `json:"metadata"`
}

type UpdateLicenseRequest struct {
	ValidTo          *time.Time        `json:"valid_to"`
	MaxAllowedUsers  *int32            `json:"max_allowed_users" binding:"omitempty,gt=0"`
	Metadata         map[string]any    `json:"metadata"`
	CustomProperties map[string]string `json:"custom_properties"`
	Notes            *string           `json:"notes"`
}

type RenewLicenseRequest struct {
	NewValidTo time.Time `json:"new_valid_to" binding:"required"`
	Reason     string    `json:"reason"`
}

type StatusActionRequest struct {
	Reason string `json:"reason"`
}

type ValidateLicenseRequest struct {
	LicenseKey      string    `json:"license_key" binding:"required"`
	ProductID       uuid.UUID `json:"product_id" binding:"required"`
	CheckActivation bool      `json:"check_activation"`
}

type LicenseResponse struct {
	ID               uuid.UUID       `json:"id"`
	Code             string          `json:"code"`
	ProductID        uuid.UUID       `json:"product_id"`
	ConsumerID       uuid.UUID       `json:"consumer_id"`
	Tier             *string         `json:"tier,omitempty"`
	LicenseKey       string          `json:"license_key"`
	Model            license.Model   `json:"model"`
	Status           license.Status  `json:"status"`
	ValidFrom        time.Time       `json:"valid_from"`
	ValidTo          time.Time       `json:"valid_to"`
	MaxAllowedUsers  *int32          `json:"max_allowed_users,omitempty"`
	MaxActivations   int32           `json:"max_activations"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	Events           []license.Event `json:"events,omitempty"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
	RevocationReason *string         `json:"revocation_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func NewLicenseResponse(lic *license.License) *LicenseResponse {
	resp := &LicenseResponse{
		ID:             lic.ID,
		Code:           lic.Code,
		ProductID:      lic.ProductID,
		ConsumerID:     lic.ConsumerID,
		LicenseKey:     lic.LicenseKey,
		Model:          lic.Model,
		Status:         lic.Status,
		ValidFrom:      lic.ValidFrom,
		ValidTo:        lic.ValidTo,
		MaxActivations: lic.MaxActivations,
		Metadata:       lic.Metadata,
		Events:         lic.Events,
		CreatedAt:      lic.CreatedAt,
		UpdatedAt:      lic.UpdatedAt,
	}
	if lic.Tier.Valid {
		resp.Tier = &lic.Tier.String
	}
	if lic.MaxAllowedUsers.Valid {
		resp.MaxAllowedUsers = &lic.MaxAllowedUsers.Int32
	}
	if lic.RevokedAt.Valid {
		resp.RevokedAt = &lic.RevokedAt.Time
	}
	if lic.RevocationReason.Valid {
		resp.RevocationReason = &lic.RevocationReason.String
	}
	return resp
}

type ListLicensesRequest struct {
	Status     *license.Status `form:"status" binding:"omitempty,oneof=pending active suspended grace_period expired revoked"`
	Model      *license.Model  `form:"model" binding:"omitempty,oneof=product_key license_file volumetric"`
	ProductID  *uuid.UUID      `form:"product_id"`
	ConsumerID *uuid.UUID      `form:"consumer_id"`
	Limit      int             `form:"limit,default=20" binding:"omitempty,gte=0"`
	Offset     int             `form:"offset,default=0" binding:"omitempty,gte=0"`
	SortBy     string          `form:"sort_by,default=created_at"`
	SortOrder  string          `form:"sort_order,default=DESC" binding:"omitempty,oneof=ASC DESC"`
}

type PaginatedLicenseResponse struct {
	Licenses   []*LicenseResponse `json:"licenses"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type ValidateLicenseResponse struct {
	IsValid   bool                   `json:"is_valid"`
	Code      license.ValidationCode `json:"code"`
	Reason    string                 `json:"reason,omitempty"`
	Status    *license.Status        `json:"status,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

type EnhancedValidationResponse struct {
	IsValid         bool             `json:"is_valid"`
	Violations      []string         `json:"violations,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
	DaysUntilExpiry int              `json:"days_until_expiry"`
	RequiresRenewal bool             `json:"requires_renewal"`
	License         *LicenseResponse `json:"license,omitempty"`
}
