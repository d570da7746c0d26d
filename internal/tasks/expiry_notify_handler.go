package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

const (
	renewalNoticeDays = 30
	urgentNoticeDays  = 7
)

// ExpiryNotifyHandler records expiry-notice audit entries for licenses that
// cross the 30-day and 7-day marks. Downstream tooling reads the audit trail
// to drive customer outreach.
type ExpiryNotifyHandler struct {
	store  store.Store
	clock  clock.Clock
	logger *zap.Logger
}

func NewExpiryNotifyHandler(st store.Store, clk clock.Clock, logger *zap.Logger) *ExpiryNotifyHandler {
	return &ExpiryNotifyHandler{
		store:  st,
		clock:  clk,
		logger: logger.Named("ExpiryNotifyHandler"),
	}
}

func (h *ExpiryNotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeExpiryNotify {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p ExpiryNotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for expiry notify task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing license expiry notification task...")

	now := h.clock.Now()
	noticed := 0

	// Grace-period licenses are still in service and renew like active ones.
	for _, status := range []license.Status{license.StatusActive, license.StatusGracePeriod} {
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
				return fmt.Errorf("repository error listing in-service licenses: %w", err)
			}
			if len(candidates) == 0 {
				break
			}

			for _, lic := range candidates {
				daysLeft := int(lic.ValidTo.Sub(now).Hours() / 24)
				if daysLeft < 0 || daysLeft > renewalNoticeDays {
					continue
				}

				tier := "renewal_recommended"
				if daysLeft <= urgentNoticeDays {
					tier = "renewal_urgent"
				}

				already, err := h.alreadyNoticed(ctx, lic.ID, tier, lic.ValidTo)
				if err != nil {
					h.logger.Error("Failed to check prior expiry notices", zap.String("license_id", lic.ID.String()), zap.Error(err))
					continue
				}
				if already {
					continue
				}

				entry := &audit.Entry{
					EntityType: "license",
					EntityID:   lic.ID,
					Action:     audit.ActionExpiryNotice,
					Actor:      "scheduler",
					Reason:     sql.NullString{String: fmt.Sprintf("%s: expires in %d days", tier, daysLeft), Valid: true},
				}
				if _, err := h.store.AuditEntries().Create(ctx, entry); err != nil {
					h.logger.Error("Failed to write expiry notice", zap.String("license_id", lic.ID.String()), zap.Error(err))
					continue
				}

				noticed++
				h.logger.Info("Recorded expiry notice",
					zap.String("license_id", lic.ID.String()),
					zap.String("tier", tier),
					zap.Int("days_left", daysLeft),
				)
			}

			if int64(len(candidates)) < int64(params.Limit) {
				break
			}
			params.Offset += params.Limit
			if params.Offset > int(total) && total > 0 {
				break
			}
		}
	}

	h.logger.Info("License expiry notification task finished", zap.Int("notices_recorded", noticed))
	return nil
}

// alreadyNoticed reports whether a notice of this tier was already written
// for the current expiry window. A renewal moves ValidTo forward, so notices
// recorded before the window opened do not count.
func (h *ExpiryNotifyHandler) alreadyNoticed(ctx context.Context, licenseID uuid.UUID, tier string, validTo time.Time) (bool, error) {
	entityType := "license"
	action := audit.ActionExpiryNotice
	entries, _, err := h.store.AuditEntries().List(ctx, audit.ListParams{
		EntityType: &entityType,
		EntityID:   &licenseID,
		Action:     &action,
		Limit:      50,
	})
	if err != nil {
		return false, err
	}

	windowStart := validTo.AddDate(0, 0, -renewalNoticeDays)
	for _, e := range entries {
		if e.CreatedAt.Before(windowStart) {
			continue
		}
		if e.Reason.Valid && strings.HasPrefix(e.Reason.String, tier+":") {
			return true, nil
		}
	}
	return false, nil
}
