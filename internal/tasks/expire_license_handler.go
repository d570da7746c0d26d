package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/metrics"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

// ValidationInvalidator is the slice of the cache the sweep needs: dropping
// cached verdicts for licenses it just expired.
type ValidationInvalidator interface {
	InvalidateLicenseKey(ctx context.Context, licenseKey string)
}

// LicenseExpireHandler sweeps in-service licenses whose validity window has
// ended and flips them to expired.
type LicenseExpireHandler struct {
	store  store.Store
	cache  ValidationInvalidator
	clock  clock.Clock
	logger *zap.Logger
}

func NewLicenseExpireHandler(st store.Store, cache ValidationInvalidator, clk clock.Clock, logger *zap.Logger) *LicenseExpireHandler {
	return &LicenseExpireHandler{
		store:  st,
		cache:  cache,
		clock:  clk,
		logger: logger.Named("LicenseExpireHandler"),
	}
}

func (h *LicenseExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicenseExpire {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p ExpireLicensePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for license expiration task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing license expiration check task...")

	now := h.clock.Now()
	updatedCount := 0
	processedCount := 0

	// Suspended and grace-period licenses can lapse too, not just active ones.
	for _, status := range []license.Status{license.StatusActive, license.StatusGracePeriod, license.StatusSuspended} {
		params := license.ListParams{
			Status:    ptr(status),
			SortBy:    "valid_to",
			SortOrder: "ASC",
			Limit:     1000,
			Offset:    0,
		}

		for {
			candidates, total, err := h.store.Licenses().List(ctx, params)
			if err != nil {
				h.logger.Error("Failed to list licenses for expiration check", zap.Error(err))
				return fmt.Errorf("repository error listing licenses: %w", err)
			}
			if len(candidates) == 0 {
				break
			}
			processedCount += len(candidates)

			for _, lic := range candidates {
				if !lic.ValidTo.Before(now) {
					continue
				}
				if !license.CanTransition(lic.Status, license.StatusExpired) {
					continue
				}

				h.logger.Info("Found expired license, updating status",
					zap.String("license_id", lic.ID.String()),
					zap.String("code", lic.Code),
					zap.Time("valid_to", lic.ValidTo),
				)

				if errUpdate := h.store.Licenses().UpdateStatus(ctx, lic.ID, license.StatusExpired); errUpdate != nil {
					h.logger.Error("Failed to update status for expired license",
						zap.String("license_id", lic.ID.String()),
						zap.Error(errUpdate),
					)
					continue
				}

				updatedCount++
				metrics.LicensesExpired.Inc()
				if h.cache != nil {
					h.cache.InvalidateLicenseKey(ctx, lic.LicenseKey)
				}
			}

			if int64(len(candidates)) < int64(params.Limit) {
				break
			}
			params.Offset += params.Limit
			if params.Offset > int(total) && total > 0 {
				h.logger.Warn("Offset exceeded total count during expiration check, breaking loop", zap.Int("offset", params.Offset), zap.Int64("total", total))
				break
			}
		}
	}

	h.logger.Info("License expiration check task finished", zap.Int("processed_licenses", processedCount), zap.Int("updated_to_expired", updatedCount))
	return nil
}
