package license

import "time"

type ValidationCode string

const (
	ValidationOK              ValidationCode = "valid"
	ValidationNotFound        ValidationCode = "not_found"
	ValidationProductMismatch ValidationCode = "product_mismatch"
	ValidationNotYetValid     ValidationCode = "not_yet_valid"
	ValidationExpired         ValidationCode = "expired"
	ValidationSuspended       ValidationCode = "suspended"
	ValidationRevoked         ValidationCode = "revoked"
	ValidationPending         ValidationCode = "pending"
	ValidationInvalid         ValidationCode = "invalid"
)

// ValidationResult is the tri-state outcome of a plain license check:
// not found, expired/ineligible, or valid with the license payload attached.
type ValidationResult struct {
	Valid     bool           `json:"valid"`
	Code      ValidationCode `json:"code"`
	Message   string         `json:"message,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	License   *License       `json:"license,omitempty"`
}

func ValidationFailure(code ValidationCode, message string) *ValidationResult {
	return &ValidationResult{Valid: false, Code: code, Message: message}
}

// EnhancedValidationResult layers business-rule findings over a license.
// Violations make the license invalid; warnings do not.
type EnhancedValidationResult struct {
	Valid           bool     `json:"valid"`
	Violations      []string `json:"violations,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	DaysUntilExpiry int      `json:"days_until_expiry"`
	RequiresRenewal bool     `json:"requires_renewal"`
	License         *License `json:"license,omitempty"`
}
