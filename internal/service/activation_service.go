package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/metrics"
	"github.com/keyline/license-backoffice/internal/util"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

// ActivationService manages product-key machine activations: issuing keys,
// binding machines up to the license's activation cap, and releasing them.
type ActivationService struct {
	store    store.Store
	licenses *LicenseService
	cache    ValidationCache
	clock    clock.Clock
	logger   *zap.Logger
}

func NewActivationService(st store.Store, licenses *LicenseService, cache ValidationCache, clk clock.Clock, logger *zap.Logger) *ActivationService {
	return &ActivationService{
		store:    st,
		licenses: licenses,
		cache:    cache,
		clock:    clk,
		logger:   logger.Named("ActivationService"),
	}
}

// CreateProductKey mints a product-key license through the license service.
// It only fills the generation request; everything else follows the normal
// license creation path.
func (s *ActivationService) CreateProductKey(ctx context.Context, req *dto.CreateProductKeyRequest, actor string) (*license.License, error) {
	maxActivations := req.MaxActivations
	if maxActivations <= 0 {
		maxActivations = 1
	}
	genReq := &dto.GenerateLicenseRequest{
		Model:          license.ModelProductKey,
		ProductID:      req.ProductID,
		ConsumerID:     req.ConsumerID,
		Tier:           req.Tier,
		ValidFrom:      s.clock.Now(),
		ValidTo:        req.ValidTo,
		MaxActivations: maxActivations,
	}
	return s.licenses.GenerateLicense(ctx, genReq, actor)
}

// ActivateProductKey binds a machine to a product key. Re-activating the same
// machine returns the existing activation unchanged; a first activation on a
// pending license also flips the license to active.
func (s *ActivationService) ActivateProductKey(ctx context.Context, req *dto.ActivateProductKeyRequest, actor string) (*activation.Activation, error) {
	normalized := util.NormalizeProductKey(req.ProductKey)
	if !util.IsValidProductKeyFormat(normalized) && !util.IsValidVolumetricKeyFormat(normalized) {
		metrics.Activations.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: malformed product key", ierr.ErrValidation)
	}

	lic, err := s.store.Licenses().FindByKey(ctx, normalized)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			metrics.Activations.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: product key", ierr.ErrNotFound)
		}
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}

	if err := s.checkEligibility(lic); err != nil {
		metrics.Activations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Same machine asking again is a no-op success, regardless of how full
	// the activation cap is.
	existing, err := s.store.Activations().FindActiveByLicenseAndMachine(ctx, lic.ID, req.MachineID)
	if err != nil && !errors.Is(err, activation.ErrNotFound) {
		return nil, fmt.Errorf("activation lookup failed: %w", err)
	}
	if existing != nil {
		s.logger.Info("Machine already activated, returning existing activation",
			zap.String("license_id", lic.ID.String()), zap.String("machine_id", req.MachineID))
		metrics.Activations.WithLabelValues("idempotent").Inc()
		return existing, nil
	}

	now := s.clock.Now()
	act := &activation.Activation{
		LicenseID:   lic.ID,
		ProductKey:  normalized,
		MachineID:   req.MachineID,
		Status:      activation.StatusActive,
		Signature:   activationSignature(normalized, req.MachineID, lic.ID, now),
		ActivatedAt: now,
	}
	if req.MachineFingerprint != "" {
		act.MachineFingerprint = sql.NullString{String: req.MachineFingerprint, Valid: true}
	}
	if req.MachineName != "" {
		act.MachineName = sql.NullString{String: req.MachineName, Valid: true}
	}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		// The cap check shares the transaction with the insert so two
		// racing machines cannot both see a free slot.
		count, err := tx.Activations().CountActiveByLicense(ctx, lic.ID)
		if err != nil {
			return fmt.Errorf("activation count failed: %w", err)
		}
		if count >= int64(lic.MaxActivations) {
			return fmt.Errorf("%w: %d of %d activations used", ierr.ErrActivationLimit, count, lic.MaxActivations)
		}

		id, err := tx.Activations().Create(ctx, act)
		if err != nil {
			return fmt.Errorf("failed to record activation: %w", err)
		}
		act.ID = id

		if lic.Status == license.StatusPending {
			lic.AppendEvent(license.NewTransitionEvent(license.EventActivation, now, actor,
				"first machine activation", lic.Status))
			lic.Status = license.StatusActive
			if err := tx.Licenses().Update(ctx, lic); err != nil {
				return err
			}
		}

		entry := &audit.Entry{
			EntityType: "activation",
			EntityID:   act.ID,
			Action:     audit.ActionKeyActivation,
			Actor:      actor,
		}
		if _, err := tx.AuditEntries().Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ierr.ErrActivationLimit) {
			metrics.Activations.WithLabelValues("limit_reached").Inc()
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateLicenseKey(ctx, normalized)
	}
	metrics.Activations.WithLabelValues("activated").Inc()
	s.logger.Info("Product key activated",
		zap.String("license_id", lic.ID.String()), zap.String("machine_id", req.MachineID))
	return act, nil
}

func (s *ActivationService) checkEligibility(lic *license.License) error {
	if lic.Model != license.ModelProductKey && lic.Model != license.ModelVolumetric {
		return fmt.Errorf("%w: license model %q does not support machine activation", ierr.ErrValidation, lic.Model)
	}
	switch lic.Status {
	case license.StatusRevoked:
		return fmt.Errorf("%w: license is revoked", ierr.ErrLicenseRevoked)
	case license.StatusSuspended:
		return fmt.Errorf("%w: license is suspended", ierr.ErrValidation)
	case license.StatusExpired:
		return fmt.Errorf("%w: license has expired", ierr.ErrValidation)
	}
	now := s.clock.Now()
	if now.Before(lic.ValidFrom) {
		return fmt.Errorf("%w: license validity has not started", ierr.ErrValidation)
	}
	if now.After(lic.ValidTo) {
		return fmt.Errorf("%w: license validity has ended", ierr.ErrValidation)
	}
	return nil
}

// ValidateProductKey reports whether the key can take another activation.
func (s *ActivationService) ValidateProductKey(ctx context.Context, productKey string) (*dto.ProductKeyValidationResponse, error) {
	normalized := util.NormalizeProductKey(productKey)
	if !util.IsValidProductKeyFormat(normalized) && !util.IsValidVolumetricKeyFormat(normalized) {
		return &dto.ProductKeyValidationResponse{IsValid: false, Reason: "malformed product key"}, nil
	}

	lic, err := s.store.Licenses().FindByKey(ctx, normalized)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return &dto.ProductKeyValidationResponse{IsValid: false, Reason: "product key not found"}, nil
		}
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}

	if err := s.checkEligibility(lic); err != nil {
		return &dto.ProductKeyValidationResponse{IsValid: false, Reason: trimSentinel(err)}, nil
	}

	count, err := s.store.Activations().CountActiveByLicense(ctx, lic.ID)
	if err != nil {
		return nil, fmt.Errorf("activation count failed: %w", err)
	}
	remaining := int64(lic.MaxActivations) - count
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		return &dto.ProductKeyValidationResponse{IsValid: false, Reason: "activation limit reached"}, nil
	}
	return &dto.ProductKeyValidationResponse{IsValid: true, RemainingActivations: remaining}, nil
}

// DeactivateProductKey releases a machine slot by activation signature.
// Deactivating an already inactive activation succeeds without changes.
func (s *ActivationService) DeactivateProductKey(ctx context.Context, signature, actor, reason string) (*activation.Activation, error) {
	act, err := s.store.Activations().FindBySignature(ctx, signature)
	if err != nil {
		if errors.Is(err, activation.ErrNotFound) {
			return nil, fmt.Errorf("%w: activation", ierr.ErrNotFound)
		}
		return nil, fmt.Errorf("activation lookup failed: %w", err)
	}

	if act.Status == activation.StatusInactive {
		s.logger.Info("Activation already inactive", zap.String("id", act.ID.String()))
		return act, nil
	}

	now := s.clock.Now()
	act.Status = activation.StatusInactive
	act.DeactivatedAt = sql.NullTime{Time: now, Valid: true}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Activations().Update(ctx, act); err != nil {
			return fmt.Errorf("failed to update activation: %w", err)
		}
		entry := &audit.Entry{
			EntityType: "activation",
			EntityID:   act.ID,
			Action:     audit.ActionKeyDeactivation,
			Actor:      actor,
		}
		if reason != "" {
			entry.Reason = sql.NullString{String: reason, Valid: true}
		}
		if _, err := tx.AuditEntries().Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateLicenseKey(ctx, act.ProductKey)
	}
	metrics.Activations.WithLabelValues("deactivated").Inc()
	return act, nil
}

func (s *ActivationService) ListActivations(ctx context.Context, productKey string) ([]*activation.Activation, error) {
	normalized := util.NormalizeProductKey(productKey)
	return s.store.Activations().ListByProductKey(ctx, normalized)
}

func (s *ActivationService) GetActivationBySignature(ctx context.Context, signature string) (*activation.Activation, error) {
	act, err := s.store.Activations().FindBySignature(ctx, signature)
	if err != nil {
		if errors.Is(err, activation.ErrNotFound) {
			return nil, fmt.Errorf("%w: activation", ierr.ErrNotFound)
		}
		return nil, err
	}
	return act, nil
}

// activationSignature derives a stable identifier from the binding tuple.
// The signature is a lookup handle, not a cryptographic proof.
func activationSignature(productKey, machineID string, licenseID uuid.UUID, at time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", productKey, machineID, licenseID, at.Unix())
	digest := sha256.Sum256([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// trimSentinel strips the wrapped sentinel prefix for client-facing reasons.
func trimSentinel(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
