package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/util"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

type RuleSet int

const (
	// RuleSetBasic runs only the checks that need nothing but the license
	// itself: structure, key format, status/time consistency, expiry tiers.
	RuleSetBasic RuleSet = iota
	// RuleSetFull adds the cross-entity checks: referenced product and
	// consumer must exist, duplicate active licenses raise a warning.
	RuleSetFull
)

// RuleEngine evaluates business rules against a license. There is exactly
// one rule implementation; RuleSetBasic is a configuration of it for callers
// without repository access, not a separate code path.
type RuleEngine struct {
	ruleSet RuleSet
	store   store.Store
	clock   clock.Clock
	logger  *zap.Logger
}

func NewRuleEngine(st store.Store, ruleSet RuleSet, clk clock.Clock, logger *zap.Logger) *RuleEngine {
	if ruleSet == RuleSetFull && st == nil {
		ruleSet = RuleSetBasic
	}
	return &RuleEngine{
		ruleSet: ruleSet,
		store:   st,
		clock:   clk,
		logger:  logger.Named("RuleEngine"),
	}
}

// ValidateActiveLicense runs the configured rule set. Violations flip Valid
// to false; warnings are advisory only.
func (e *RuleEngine) ValidateActiveLicense(ctx context.Context, lic *license.License) (*license.EnhancedValidationResult, error) {
	result := &license.EnhancedValidationResult{
		Valid:   true,
		License: lic,
	}

	e.checkStructure(lic, result)
	e.checkKeyFormat(lic, result)

	if e.ruleSet == RuleSetFull {
		if err := e.checkReferences(ctx, lic, result); err != nil {
			return nil, err
		}
		if err := e.checkDuplicateActive(ctx, lic, result); err != nil {
			return nil, err
		}
	}

	e.checkStatusTimeConsistency(lic, result)
	e.checkExpiryTiers(lic, result)

	result.Valid = len(result.Violations) == 0
	return result, nil
}

func (e *RuleEngine) checkStructure(lic *license.License, result *license.EnhancedValidationResult) {
	if lic.ProductID == uuid.Nil {
		result.Violations = append(result.Violations, "license has no product reference")
	}
	if lic.ConsumerID == uuid.Nil {
		result.Violations = append(result.Violations, "license has no consumer reference")
	}
	if lic.LicenseKey == "" {
		result.Violations = append(result.Violations, "license key is empty")
	}
	if !lic.ValidFrom.Before(lic.ValidTo) {
		result.Violations = append(result.Violations, "validity window is empty: valid_from must precede valid_to")
	}
}

func (e *RuleEngine) checkKeyFormat(lic *license.License, result *license.EnhancedValidationResult) {
	switch lic.Model {
	case license.ModelProductKey:
		if !util.IsValidProductKeyFormat(lic.LicenseKey) {
			result.Violations = append(result.Violations,
				"product key must match XXXX-XXXX-XXXX-XXXX (four alphanumeric groups)")
		}
	case license.ModelVolumetric:
		if !util.IsValidVolumetricKeyFormat(lic.LicenseKey) {
			result.Violations = append(result.Violations,
				"volumetric key must match XXXX-XXXX-XXXX-NNNN with a positive numeric last group")
		}
		if !lic.MaxAllowedUsers.Valid || lic.MaxAllowedUsers.Int32 <= 0 {
			result.Violations = append(result.Violations,
				"volumetric license requires a positive max_allowed_users")
		}
	case license.ModelLicenseFile:
		if !lic.Signature.Valid || lic.Signature.String == "" {
			result.Violations = append(result.Violations,
				"license-file license requires a digital signature")
		}
	}
}

func (e *RuleEngine) checkReferences(ctx context.Context, lic *license.License, result *license.EnhancedValidationResult) error {
	if lic.ProductID != uuid.Nil {
		if _, err := e.store.Products().FindByID(ctx, lic.ProductID); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				result.Violations = append(result.Violations, "referenced product does not exist")
			} else {
				return fmt.Errorf("product lookup failed during rule evaluation: %w", err)
			}
		}
	}
	if lic.ConsumerID != uuid.Nil {
		if _, err := e.store.Consumers().FindByID(ctx, lic.ConsumerID); err != nil {
			if errors.Is(err, consumer.ErrNotFound) {
				result.Violations = append(result.Violations, "referenced consumer does not exist")
			} else {
				return fmt.Errorf("consumer lookup failed during rule evaluation: %w", err)
			}
		}
	}
	return nil
}

func (e *RuleEngine) checkDuplicateActive(ctx context.Context, lic *license.License, result *license.EnhancedValidationResult) error {
	if lic.ProductID == uuid.Nil || lic.ConsumerID == uuid.Nil {
		return nil
	}
	count, err := e.store.Licenses().CountActiveForConsumerProduct(ctx, lic.ConsumerID, lic.ProductID, lic.ID)
	if err != nil {
		return fmt.Errorf("duplicate-license check failed: %w", err)
	}
	if count > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("consumer already holds %d other active license(s) for this product", count))
	}
	return nil
}

func (e *RuleEngine) checkStatusTimeConsistency(lic *license.License, result *license.EnhancedValidationResult) {
	now := e.clock.Now()
	if lic.Status == license.StatusActive && lic.ValidTo.Before(now) {
		result.Violations = append(result.Violations,
			"status is active but the validity window has already ended")
	}
	if lic.Status == license.StatusExpired && !lic.ValidTo.Before(now) {
		result.Violations = append(result.Violations,
			"status is expired but the validity window has not ended yet")
	}
}

func (e *RuleEngine) checkExpiryTiers(lic *license.License, result *license.EnhancedValidationResult) {
	now := e.clock.Now()
	days := int(math.Ceil(lic.ValidTo.Sub(now).Hours() / 24))
	result.DaysUntilExpiry = days

	switch {
	case days < -90:
		result.Violations = append(result.Violations,
			fmt.Sprintf("license expired %d days ago; consider revoking it", -days))
		result.RequiresRenewal = true
	case days <= 0:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("license expired %d days ago", -days))
		result.RequiresRenewal = true
	case days <= 7:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("license expires in %d days; renew urgently", days))
	case days <= 30:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("license expires in %d days; renewal recommended", days))
	}
}
