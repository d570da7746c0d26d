package dto

import (
	"time"

	"github.com/keyline/license-backoffice/internal/domain/license"
)

type DashboardSummaryResponse struct {
	TotalLicenses int64                    `json:"totalLicenses"`
	StatusCounts  map[license.Status]int64 `json:"statusCounts"`
	ModelCounts   map[license.Model]int64  `json:"modelCounts"`
	ProductCounts map[string]int64         `json:"productCounts"`
	ExpiringSoon  ExpiringSoonSummary      `json:"expiringSoon"`
}

type ExpiringSoonSummary struct {
	Count        int64        `json:"count"`
	PeriodDays   int          `json:"periodDays"`
	NextToExpire *LicenseInfo `json:"nextToExpire,omitempty"`
}

type LicenseInfo struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    string    `json:"status"`
}
