package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/generator"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/metrics"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

const (
	maxRenewalHorizon  = 10 * 365 * 24 * time.Hour
	reactivationWindow = 30 * 24 * time.Hour
	expiringScanBatch  = 500
)

// errNoChanges aborts an update transaction when the request carried no
// effective field changes. It never escapes the service.
var errNoChanges = errors.New("no effective changes")

// ValidationCache is the contract the redis-backed cache fulfils. A nil
// cache is valid and disables caching.
type ValidationCache interface {
	Get(ctx context.Context, cacheKey string) (*license.ValidationResult, bool)
	Set(ctx context.Context, cacheKey string, result *license.ValidationResult)
	InvalidateLicenseKey(ctx context.Context, licenseKey string)
}

// LicenseService is the single entry point for license CRUD and lifecycle
// transitions. Every mutation runs inside one store transaction and writes
// an audit entry before committing.
type LicenseService struct {
	store      store.Store
	generators *generator.Factory
	engine     *RuleEngine
	cache      ValidationCache
	clock      clock.Clock
	logger     *zap.Logger
}

func NewLicenseService(st store.Store, generators *generator.Factory, engine *RuleEngine, cache ValidationCache, clk clock.Clock, logger *zap.Logger) *LicenseService {
	if engine == nil {
		engine = NewRuleEngine(nil, RuleSetBasic, clk, logger)
	}
	return &LicenseService{
		store:      st,
		generators: generators,
		engine:     engine,
		cache:      cache,
		clock:      clk,
		logger:     logger.Named("LicenseService"),
	}
}

func (s *LicenseService) GenerateLicense(ctx context.Context, req *dto.GenerateLicenseRequest, actor string) (*license.License, error) {
	s.logger.Info("Generating license",
		zap.String("model", string(req.Model)),
		zap.String("product_id", req.ProductID.String()))

	if ok, msgs := s.ValidateGenerationRequest(req); !ok {
		return nil, fmt.Errorf("%w: %s", ierr.ErrValidation, strings.Join(msgs, "; "))
	}

	if _, err := s.store.Products().FindByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ierr.ErrNotFound, req.ProductID)
		}
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}
	if _, err := s.store.Consumers().FindByID(ctx, req.ConsumerID); err != nil {
		if errors.Is(err, consumer.ErrNotFound) {
			return nil, fmt.Errorf("%w: consumer %s", ierr.ErrNotFound, req.ConsumerID)
		}
		return nil, fmt.Errorf("consumer lookup failed: %w", err)
	}

	gen, err := s.generators.For(req.Model)
	if err != nil {
		return nil, err
	}
	genResult, err := gen.Generate(ctx, &generator.Request{
		Model:           req.Model,
		ProductID:       req.ProductID,
		ConsumerID:      req.ConsumerID,
		Tier:            req.Tier,
		ValidFrom:       req.ValidFrom,
		ValidTo:         req.ValidTo,
		MaxAllowedUsers: req.MaxAllowedUsers,
	})
	if err != nil {
		s.logger.Error("License generation strategy failed", zap.Error(err))
		return nil, fmt.Errorf("license generation failed: %w", err)
	}

	maxActivations := req.MaxActivations
	if maxActivations <= 0 {
		maxActivations = 1
	}

	newLicense := &license.License{
		Code:           genResult.Code,
		ProductID:      req.ProductID,
		ConsumerID:     req.ConsumerID,
		LicenseKey:     genResult.LicenseKey,
		Model:          req.Model,
		Status:         license.StatusPending,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		MaxActivations: maxActivations,
		Metadata:       req.Metadata,
	}
	if req.Tier != "" {
		newLicense.Tier = sql.NullString{String: req.Tier, Valid: true}
	}
	if req.MaxAllowedUsers > 0 {
		newLicense.MaxAllowedUsers = sql.NullInt32{Int32: req.MaxAllowedUsers, Valid: true}
	}
	if genResult.Signature != "" {
		newLicense.Signature = sql.NullString{String: genResult.Signature, Valid: true}
		newLicense.PublicKey = sql.NullString{String: genResult.PublicKey, Valid: true}
	}

	var created *license.License
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		insertedID, err := tx.Licenses().Create(ctx, newLicense)
		if err != nil {
			return fmt.Errorf("repository error during license creation: %w", err)
		}
		created, err = tx.Licenses().FindByID(ctx, insertedID)
		if err != nil {
			return fmt.Errorf("failed to retrieve created license (id: %s): %w", insertedID, err)
		}
		return s.writeAudit(ctx, tx, created.ID, audit.ActionCreate, actor, "", nil, created)
	})
	if err != nil {
		s.logger.Error("Failed to create license", zap.Error(err))
		return nil, err
	}

	s.logger.Info("License created successfully",
		zap.String("id", created.ID.String()), zap.String("code", created.Code))
	return created, nil
}

func (s *LicenseService) GetLicenseByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	return s.store.Licenses().FindByID(ctx, id)
}

func (s *LicenseService) GetLicenseByKey(ctx context.Context, key string) (*license.License, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: license key is required", ierr.ErrValidation)
	}
	return s.store.Licenses().FindByKey(ctx, key)
}

func (s *LicenseService) GetLicenseByCode(ctx context.Context, code string) (*license.License, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: license code is required", ierr.ErrValidation)
	}
	return s.store.Licenses().FindByCode(ctx, code)
}

// GetLicenseByKeyOrCode tries the opaque key first, then the human-readable
// code.
func (s *LicenseService) GetLicenseByKeyOrCode(ctx context.Context, keyOrCode string) (*license.License, error) {
	lic, err := s.GetLicenseByKey(ctx, keyOrCode)
	if err == nil {
		return lic, nil
	}
	if !errors.Is(err, license.ErrNotFound) {
		return nil, err
	}
	return s.GetLicenseByCode(ctx, keyOrCode)
}

func (s *LicenseService) ValidateLicense(ctx context.Context, licenseKey string, productID uuid.UUID, checkActivation bool) (*license.ValidationResult, error) {
	if licenseKey == "" {
		return nil, fmt.Errorf("%w: license key is required", ierr.ErrValidation)
	}

	cacheKey := fmt.Sprintf("%s|%s|%t", licenseKey, productID, checkActivation)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			metrics.ValidationResults.WithLabelValues(string(cached.Code)).Inc()
			return cached, nil
		}
	}

	result, err := s.validateLicense(ctx, licenseKey, productID, checkActivation)
	if err != nil {
		return nil, err
	}

	metrics.ValidationResults.WithLabelValues(string(result.Code)).Inc()
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, result)
	}
	return result, nil
}

func (s *LicenseService) validateLicense(ctx context.Context, licenseKey string, productID uuid.UUID, checkActivation bool) (*license.ValidationResult, error) {
	lic, err := s.store.Licenses().FindByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return license.ValidationFailure(license.ValidationNotFound, "license not found"), nil
		}
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}

	if productID != uuid.Nil && lic.ProductID != productID {
		return license.ValidationFailure(license.ValidationProductMismatch, "license belongs to a different product"), nil
	}

	switch lic.Status {
	case license.StatusRevoked:
		return license.ValidationFailure(license.ValidationRevoked, "license has been revoked"), nil
	case license.StatusSuspended:
		return license.ValidationFailure(license.ValidationSuspended, "license is suspended"), nil
	case license.StatusPending:
		return license.ValidationFailure(license.ValidationPending, "license has not been activated yet"), nil
	case license.StatusExpired:
		return license.ValidationFailure(license.ValidationExpired, "license has expired"), nil
	}

	now := s.clock.Now()
	if now.Before(lic.ValidFrom) {
		return license.ValidationFailure(license.ValidationNotYetValid, "license validity window has not started"), nil
	}
	if now.After(lic.ValidTo) {
		return license.ValidationFailure(license.ValidationExpired, "license validity window has ended"), nil
	}

	if checkActivation {
		count, err := s.store.Activations().CountActiveByLicense(ctx, lic.ID)
		if err != nil {
			return nil, fmt.Errorf("activation count failed: %w", err)
		}
		if count == 0 {
			return license.ValidationFailure(license.ValidationInvalid, "license has no active machine activation"), nil
		}
	}

	expiresAt := lic.ValidTo
	return &license.ValidationResult{
		Valid:     true,
		Code:      license.ValidationOK,
		ExpiresAt: &expiresAt,
		License:   lic,
	}, nil
}

// ValidateLicenseEnhanced runs the business-rule engine against a stored
// license. The engine's configured rule set decides whether cross-entity
// checks run.
func (s *LicenseService) ValidateLicenseEnhanced(ctx context.Context, licenseKey string) (*license.EnhancedValidationResult, error) {
	lic, err := s.GetLicenseByKeyOrCode(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	return s.engine.ValidateActiveLicense(ctx, lic)
}

func (s *LicenseService) UpdateLicense(ctx context.Context, id uuid.UUID, req *dto.UpdateLicenseRequest, actor string) (*license.License, error) {
	if ok, msgs := s.ValidateUpdateRequest(req); !ok {
		return nil, fmt.Errorf("%w: %s", ierr.ErrValidation, strings.Join(msgs, "; "))
	}

	var updated *license.License
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		lic, err := tx.Licenses().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if lic.Status == license.StatusRevoked {
			return fmt.Errorf("%w: revoked licenses cannot be updated", ierr.ErrLicenseRevoked)
		}

		before := snapshot(lic)
		changed := false

		if req.ValidTo != nil && !req.ValidTo.Equal(lic.ValidTo) {
			if !req.ValidTo.After(lic.ValidFrom) {
				return fmt.Errorf("%w: valid_to must be after valid_from", ierr.ErrValidation)
			}
			lic.ValidTo = *req.ValidTo
			changed = true
		}
		if req.MaxAllowedUsers != nil {
			if !lic.MaxAllowedUsers.Valid || lic.MaxAllowedUsers.Int32 != *req.MaxAllowedUsers {
				lic.MaxAllowedUsers = sql.NullInt32{Int32: *req.MaxAllowedUsers, Valid: true}
				changed = true
			}
		}
		for k, v := range req.Metadata {
			if existing, ok := lic.Metadata[k]; !ok || !metaEqual(existing, v) {
				lic.SetMeta(k, v)
				changed = true
			}
		}
		for k, v := range req.CustomProperties {
			key := "custom_" + k
			if existing, ok := lic.Metadata[key]; !ok || !metaEqual(existing, v) {
				lic.SetMeta(key, v)
				changed = true
			}
		}
		if req.Notes != nil {
			if existing, ok := lic.Metadata["notes"]; !ok || !metaEqual(existing, *req.Notes) {
				lic.SetMeta("notes", *req.Notes)
				changed = true
			}
		}

		if !changed {
			return errNoChanges
		}

		if err := tx.Licenses().Update(ctx, lic); err != nil {
			return err
		}
		updated = lic
		return s.writeAuditRaw(ctx, tx, lic.ID, audit.ActionUpdate, actor, "", before, snapshot(lic))
	})

	if errors.Is(err, errNoChanges) {
		s.logger.Info("License update carried no changes, transaction rolled back", zap.String("id", id.String()))
		return s.store.Licenses().FindByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.LicenseKey)
	return updated, nil
}

func (s *LicenseService) RegenerateLicenseKey(ctx context.Context, id uuid.UUID, actor, reason string) (*license.License, error) {
	var updated *license.License
	var oldKey string

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		lic, err := tx.Licenses().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if lic.Status == license.StatusRevoked {
			return fmt.Errorf("%w: revoked licenses cannot regenerate keys", ierr.ErrLicenseRevoked)
		}

		gen, err := s.generators.For(lic.Model)
		if err != nil {
			return err
		}

		var maxUsers int32
		if lic.MaxAllowedUsers.Valid {
			maxUsers = lic.MaxAllowedUsers.Int32
		}
		genResult, err := gen.Generate(ctx, &generator.Request{
			Model:           lic.Model,
			ProductID:       lic.ProductID,
			ConsumerID:      lic.ConsumerID,
			Tier:            lic.Tier.String,
			ValidFrom:       lic.ValidFrom,
			ValidTo:         lic.ValidTo,
			MaxAllowedUsers: maxUsers,
		})
		if err != nil {
			return fmt.Errorf("key regeneration failed: %w", err)
		}

		before := snapshot(lic)
		oldKey = lic.LicenseKey
		now := s.clock.Now()

		lic.AppendEvent(license.NewKeyRegenerationEvent(now, actor, reason, genResult.LicenseKey, len(oldKey)))
		lic.LicenseKey = genResult.LicenseKey
		if genResult.Signature != "" {
			lic.Signature = sql.NullString{String: genResult.Signature, Valid: true}
			lic.PublicKey = sql.NullString{String: genResult.PublicKey, Valid: true}
		}

		// Recently lapsed licenses come back to life with their new key.
		if lic.Status == license.StatusExpired && now.Sub(lic.ValidTo) <= reactivationWindow {
			lic.AppendEvent(license.NewTransitionEvent(license.EventActivation, now, actor,
				"reactivated by key regeneration", lic.Status))
			lic.Status = license.StatusActive
		}

		if err := tx.Licenses().Update(ctx, lic); err != nil {
			return err
		}
		updated = lic
		return s.writeAuditRaw(ctx, tx, lic.ID, audit.ActionRegenerateKey, actor, reason, before, snapshot(lic))
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, oldKey)
	s.invalidate(ctx, updated.LicenseKey)
	s.logger.Info("License key regenerated",
		zap.String("id", updated.ID.String()), zap.String("actor", actor))
	return updated, nil
}

func (s *LicenseService) ActivateLicense(ctx context.Context, id uuid.UUID, actor, reason string) error {
	return s.transition(ctx, id, license.StatusActive, license.EventActivation, audit.ActionActivate, actor, reason)
}

// DeactivateLicense parks a license in suspended without revoking it; the
// inverse of ActivateLicense.
func (s *LicenseService) DeactivateLicense(ctx context.Context, id uuid.UUID, actor, reason string) error {
	return s.transition(ctx, id, license.StatusSuspended, license.EventSuspension, audit.ActionSuspend, actor, reason)
}

func (s *LicenseService) SuspendLicense(ctx context.Context, id uuid.UUID, actor, reason string) error {
	return s.transition(ctx, id, license.StatusSuspended, license.EventSuspension, audit.ActionSuspend, actor, reason)
}

func (s *LicenseService) RevokeLicense(ctx context.Context, id uuid.UUID, actor, reason string) error {
	return s.transition(ctx, id, license.StatusRevoked, license.EventRevocation, audit.ActionRevoke, actor, reason)
}

func (s *LicenseService) transition(ctx context.Context, id uuid.UUID, target license.Status, eventType license.EventType, action audit.Action, actor, reason string) error {
	var licenseKey string

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		lic, err := tx.Licenses().FindByID(ctx, id)
		if err != nil {
			return err
		}

		if lic.Status == target {
			s.logger.Info("License already in target status, nothing to do",
				zap.String("id", id.String()), zap.String("status", string(target)))
			return errNoChanges
		}
		if !license.CanTransition(lic.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ierr.ErrIllegalTransition, lic.Status, target)
		}

		now := s.clock.Now()

		// Direct reactivation of an expired license follows the same
		// 30-day window as key regeneration. A longer-lapsed license
		// must be renewed with a new expiry instead.
		if lic.Status == license.StatusExpired && target == license.StatusActive {
			if now.Sub(lic.ValidTo) > reactivationWindow {
				return fmt.Errorf("%w: expired %s -> %s, renew with a new expiry instead",
					ierr.ErrIllegalTransition, lic.ValidTo.Format(time.RFC3339), target)
			}
		}

		before := snapshot(lic)

		lic.AppendEvent(license.NewTransitionEvent(eventType, now, actor, reason, lic.Status))
		lic.Status = target
		if target == license.StatusRevoked {
			lic.RevokedAt = sql.NullTime{Time: now, Valid: true}
			if reason != "" {
				lic.RevocationReason = sql.NullString{String: reason, Valid: true}
			}
		}

		if err := tx.Licenses().Update(ctx, lic); err != nil {
			return err
		}
		licenseKey = lic.LicenseKey
		return s.writeAuditRaw(ctx, tx, lic.ID, action, actor, reason, before, snapshot(lic))
	})

	if errors.Is(err, errNoChanges) {
		return nil
	}
	if err != nil {
		return err
	}

	s.invalidate(ctx, licenseKey)
	return nil
}

func (s *LicenseService) RenewLicense(ctx context.Context, id uuid.UUID, newValidTo time.Time, actor, reason string) error {
	var licenseKey string

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		lic, err := tx.Licenses().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if lic.Status == license.StatusRevoked {
			return fmt.Errorf("%w: revoked licenses cannot be renewed", ierr.ErrLicenseRevoked)
		}

		if !newValidTo.After(lic.ValidFrom) {
			return fmt.Errorf("%w: new expiry must be after valid_from", ierr.ErrValidation)
		}
		now := s.clock.Now()
		if newValidTo.After(now.Add(maxRenewalHorizon)) {
			return fmt.Errorf("%w: new expiry must be within 10 years", ierr.ErrValidation)
		}

		before := snapshot(lic)
		oldExpiry := lic.ValidTo
		lic.AppendEvent(license.NewRenewalEvent(now, actor, reason, lic.Status, oldExpiry, newValidTo))
		lic.ValidTo = newValidTo

		// Renewal brings lapsed and parked licenses back into service.
		switch lic.Status {
		case license.StatusExpired, license.StatusSuspended, license.StatusGracePeriod:
			lic.Status = license.StatusActive
		}

		if err := tx.Licenses().Update(ctx, lic); err != nil {
			return err
		}
		licenseKey = lic.LicenseKey
		return s.writeAuditRaw(ctx, tx, lic.ID, audit.ActionRenew, actor, reason, before, snapshot(lic))
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, licenseKey)
	s.logger.Info("License renewed", zap.String("id", id.String()), zap.Time("new_valid_to", newValidTo))
	return nil
}

// DeleteLicense exists for API symmetry only. Licenses are never hard
// deleted; the status lifecycle is the deletion mechanism.
func (s *LicenseService) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	s.logger.Warn("DeleteLicense called but hard deletion is not supported", zap.String("id", id.String()))
	return fmt.Errorf("%w: licenses are retired through revocation", ierr.ErrNotImplemented)
}

func (s *LicenseService) ListLicenses(ctx context.Context, req *dto.ListLicensesRequest) ([]*license.License, int64, error) {
	params := license.ListParams{
		Status:     req.Status,
		Model:      req.Model,
		ProductID:  req.ProductID,
		ConsumerID: req.ConsumerID,
		Limit:      req.Limit,
		Offset:     req.Offset,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
	}
	return s.store.Licenses().List(ctx, params)
}

func (s *LicenseService) ListLicensesByProduct(ctx context.Context, productID uuid.UUID) ([]*license.License, int64, error) {
	return s.store.Licenses().List(ctx, license.ListParams{ProductID: &productID, Limit: expiringScanBatch})
}

// ExpiringLicenses returns licenses still in service whose validity ends
// within the given window. Filtering happens in memory after a broad fetch;
// the window maths is the contract, not query pushdown.
func (s *LicenseService) ExpiringLicenses(ctx context.Context, within time.Duration) ([]*license.License, error) {
	now := s.clock.Now()
	deadline := now.Add(within)

	candidates, err := s.fetchByStatuses(ctx, license.StatusActive, license.StatusGracePeriod)
	if err != nil {
		return nil, err
	}

	expiring := make([]*license.License, 0)
	for _, lic := range candidates {
		if lic.ValidTo.After(now) && !lic.ValidTo.After(deadline) {
			expiring = append(expiring, lic)
		}
	}
	sort.Slice(expiring, func(i, j int) bool { return expiring[i].ValidTo.Before(expiring[j].ValidTo) })
	return expiring, nil
}

// ExpiredLicenses returns licenses whose validity window has ended but whose
// status has not caught up yet, plus those already flagged expired.
func (s *LicenseService) ExpiredLicenses(ctx context.Context) ([]*license.License, error) {
	now := s.clock.Now()

	candidates, err := s.fetchByStatuses(ctx,
		license.StatusActive, license.StatusGracePeriod, license.StatusSuspended, license.StatusExpired)
	if err != nil {
		return nil, err
	}

	expired := make([]*license.License, 0)
	for _, lic := range candidates {
		if lic.Status == license.StatusExpired || lic.ValidTo.Before(now) {
			expired = append(expired, lic)
		}
	}
	return expired, nil
}

func (s *LicenseService) fetchByStatuses(ctx context.Context, statuses ...license.Status) ([]*license.License, error) {
	all := make([]*license.License, 0)
	for _, st := range statuses {
		status := st
		offset := 0
		for {
			page, total, err := s.store.Licenses().List(ctx, license.ListParams{
				Status: &status,
				Limit:  expiringScanBatch,
				Offset: offset,
			})
			if err != nil {
				return nil, err
			}
			all = append(all, page...)
			offset += len(page)
			if len(page) == 0 || int64(offset) >= total {
				break
			}
		}
	}
	return all, nil
}

func (s *LicenseService) GetDashboardSummary(ctx context.Context) (*dto.DashboardSummaryResponse, error) {
	summary, err := s.store.Licenses().Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute license summary: %w", err)
	}

	const periodDays = 30
	expiring, err := s.ExpiringLicenses(ctx, periodDays*24*time.Hour)
	if err != nil {
		return nil, err
	}

	resp := &dto.DashboardSummaryResponse{
		TotalLicenses: summary.Total,
		StatusCounts:  summary.StatusCounts,
		ModelCounts:   summary.ModelCounts,
		ProductCounts: summary.ProductCounts,
		ExpiringSoon: dto.ExpiringSoonSummary{
			Count:      int64(len(expiring)),
			PeriodDays: periodDays,
		},
	}
	if len(expiring) > 0 {
		next := expiring[0]
		resp.ExpiringSoon.NextToExpire = &dto.LicenseInfo{
			Code:      next.Code,
			ExpiresAt: next.ValidTo,
			Status:    string(next.Status),
		}
	}
	return resp, nil
}

// ValidateGenerationRequest checks a generation request without touching
// storage. It reports every problem, not just the first.
func (s *LicenseService) ValidateGenerationRequest(req *dto.GenerateLicenseRequest) (bool, []string) {
	msgs := make([]string, 0)
	if req.ProductID == uuid.Nil {
		msgs = append(msgs, "product_id is required")
	}
	if req.ConsumerID == uuid.Nil {
		msgs = append(msgs, "consumer_id is required")
	}
	switch req.Model {
	case license.ModelProductKey, license.ModelLicenseFile, license.ModelVolumetric:
	default:
		msgs = append(msgs, fmt.Sprintf("unknown license model %q", req.Model))
	}
	if !req.ValidFrom.Before(req.ValidTo) {
		msgs = append(msgs, "valid_from must precede valid_to")
	}
	if req.Model == license.ModelVolumetric && req.MaxAllowedUsers <= 0 {
		msgs = append(msgs, "volumetric licenses require a positive max_allowed_users")
	}
	if req.MaxActivations < 0 {
		msgs = append(msgs, "max_activations cannot be negative")
	}
	return len(msgs) == 0, msgs
}

func (s *LicenseService) ValidateUpdateRequest(req *dto.UpdateLicenseRequest) (bool, []string) {
	msgs := make([]string, 0)
	if req == nil {
		return false, []string{"request body is required"}
	}
	if req.ValidTo != nil && req.ValidTo.IsZero() {
		msgs = append(msgs, "valid_to cannot be the zero time")
	}
	if req.MaxAllowedUsers != nil && *req.MaxAllowedUsers <= 0 {
		msgs = append(msgs, "max_allowed_users must be positive")
	}
	return len(msgs) == 0, msgs
}

func (s *LicenseService) invalidate(ctx context.Context, licenseKey string) {
	if s.cache != nil && licenseKey != "" {
		s.cache.InvalidateLicenseKey(ctx, licenseKey)
	}
}

// metaEqual compares metadata values structurally. JSON-decoded values can
// be slices or maps, which == would panic on.
func metaEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// licenseSnapshot is the audit view of a license. Key material is reduced
// to its length so snapshots never leak secrets.
type licenseSnapshot struct {
	Status          license.Status `json:"status"`
	ValidFrom       time.Time      `json:"valid_from"`
	ValidTo         time.Time      `json:"valid_to"`
	KeyLength       int            `json:"key_length"`
	MaxAllowedUsers *int32         `json:"max_allowed_users,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func snapshot(lic *license.License) json.RawMessage {
	snap := licenseSnapshot{
		Status:    lic.Status,
		ValidFrom: lic.ValidFrom,
		ValidTo:   lic.ValidTo,
		KeyLength: len(lic.LicenseKey),
		Metadata:  lic.Metadata,
	}
	if lic.MaxAllowedUsers.Valid {
		snap.MaxAllowedUsers = &lic.MaxAllowedUsers.Int32
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil
	}
	return data
}

func (s *LicenseService) writeAudit(ctx context.Context, tx store.Store, entityID uuid.UUID, action audit.Action, actor, reason string, before, after *license.License) error {
	var beforeJSON, afterJSON json.RawMessage
	if before != nil {
		beforeJSON = snapshot(before)
	}
	if after != nil {
		afterJSON = snapshot(after)
	}
	return s.writeAuditRaw(ctx, tx, entityID, action, actor, reason, beforeJSON, afterJSON)
}

func (s *LicenseService) writeAuditRaw(ctx context.Context, tx store.Store, entityID uuid.UUID, action audit.Action, actor, reason string, before, after json.RawMessage) error {
	entry := &audit.Entry{
		EntityType: "license",
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Before:     before,
		After:      after,
	}
	if reason != "" {
		entry.Reason = sql.NullString{String: reason, Valid: true}
	}
	if _, err := tx.AuditEntries().Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}
