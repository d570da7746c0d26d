package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrUpdateFailed   = errors.New("resource update failed")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")
	ErrNotImplemented = errors.New("not implemented")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenNoClaims      = errors.New("token contains no claims")
	ErrTokenInvalidClaims = errors.New("token contains invalid claims type")
	ErrAPIKeyNotFound     = errors.New("api key not found or disabled")

	ErrLicenseRevoked      = errors.New("license is revoked")
	ErrIllegalTransition   = errors.New("license status transition not allowed")
	ErrActivationLimit     = errors.New("activation limit reached")
	ErrNoActiveSigningKey  = errors.New("no active signing key for product")
	ErrBadPassphrase       = errors.New("signing key passphrase is invalid")
	ErrUnsupportedExport   = errors.New("unsupported export format")
	ErrUnsupportedLicModel = errors.New("unsupported license model")
)
