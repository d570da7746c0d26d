package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/activation"
)

type CreateProductKeyRequest struct {
	ProductID      uuid.UUID `json:"product_id" binding:"required"`
	ConsumerID     uuid.UUID `json:"consumer_id" binding:"required"`
	Tier           string    `json:"tier"`
	ValidTo        time.Time `json:"valid_to" binding:"required"`
	MaxActivations int32     `json:"max_activations" binding:"omitempty,gt=0"`
}

type ProductKeyResponse struct {
	LicenseID      uuid.UUID `json:"license_id"`
	Code           string    `json:"code"`
	ProductKey     string    `json:"product_key"`
	MaxActivations int32     `json:"max_activations"`
	ValidTo        time.Time `json:"valid_to"`
}

type ActivateProductKeyRequest struct {
	ProductKey         string `json:"product_key" binding:"required"`
	MachineID          string `json:"machine_id" binding:"required"`
	MachineFingerprint string `json:"machine_fingerprint"`
	MachineName        string `json:"machine_name"`
}

type DeactivateProductKeyRequest struct {
	Signature string `json:"signature" binding:"required"`
	Reason    string `json:"reason"`
}

type ValidateProductKeyRequest struct {
	ProductKey string `json:"product_key" binding:"required"`
}

type ActivationResponse struct {
	ID                 uuid.UUID         `json:"id"`
	LicenseID          uuid.UUID         `json:"license_id"`
	ProductKey         string            `json:"product_key"`
	MachineID          string            `json:"machine_id"`
	MachineFingerprint *string           `json:"machine_fingerprint,omitempty"`
	MachineName        *string           `json:"machine_name,omitempty"`
	Status             activation.Status `json:"status"`
	Signature          string            `json:"signature"`
	ActivatedAt        time.Time         `json:"activated_at"`
	DeactivatedAt      *time.Time        `json:"deactivated_at,omitempty"`
}

func NewActivationResponse(a *activation.Activation) *ActivationResponse {
	resp := &ActivationResponse{
		ID:          a.ID,
		LicenseID:   a.LicenseID,
		ProductKey:  a.ProductKey,
		MachineID:   a.MachineID,
		Status:      a.Status,
		Signature:   a.Signature,
		ActivatedAt: a.ActivatedAt,
	}
	if a.MachineFingerprint.Valid {
		resp.MachineFingerprint = &a.MachineFingerprint.String
	}
	if a.MachineName.Valid {
		resp.MachineName = &a.MachineName.String
	}
	if a.DeactivatedAt.Valid {
		resp.DeactivatedAt = &a.DeactivatedAt.Time
	}
	return resp
}

type ProductKeyValidationResponse struct {
	IsValid              bool   `json:"is_valid"`
	Reason               string `json:"reason,omitempty"`
	RemainingActivations int64  `json:"remaining_activations"`
}
