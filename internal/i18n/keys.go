// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	KeySuccess = "success"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"

	// Admin
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminSettingsUpdated = "admin.settings_updated"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyInvalidID         = "validation.invalid_id"

	// Generic
	KeyResourceNotFound = "resource.not_found"
	KeyInternalError    = "error.internal"
	KeyRateLimited      = "error.rate_limited"

	// Ledger errors are looked up as LedgerPrefix + lower-case error code.
	LedgerPrefix = "ledger."
)
