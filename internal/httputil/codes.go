package httputil

// Machine-readable error codes returned alongside error messages.
// Grouped by the failure taxonomy the HTTP layer maps onto status codes.
const (
	// Request / validation
	CodeInvalidRequestBody        = "INVALID_REQUEST_BODY"
	CodeEmailRequired             = "EMAIL_REQUIRED"
	CodePasswordRequired          = "PASSWORD_REQUIRED"
	CodePasswordTooShort          = "PASSWORD_TOO_SHORT"
	CodeInvalidEmailFormat        = "INVALID_EMAIL_FORMAT"
	CodeTitleRequired             = "TITLE_REQUIRED"
	CodeGroupNameRequired         = "GROUP_NAME_REQUIRED"
	CodeVerificationTokenRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeRefreshTokenRequired      = "REFRESH_TOKEN_REQUIRED"

	// Authentication
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidAuthHeader   = "INVALID_AUTH_HEADER"
	CodeMissingAuth         = "MISSING_AUTH"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInvalidTokenUserID  = "INVALID_TOKEN_USER_ID"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeTokenReuseDetected  = "TOKEN_REUSE_DETECTED"

	// Account state
	CodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	CodeAccountNotVerified = "ACCOUNT_NOT_VERIFIED"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"

	// Authorization
	CodeNotAMember = "NOT_A_MEMBER"
	CodeNotAdmin   = "NOT_ADMIN"
	CodeForbidden  = "FORBIDDEN"

	// State conflicts
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidState      = "INVALID_STATE"
	CodeAlreadyMember     = "ALREADY_MEMBER"
	CodeLastAdminRemoval  = "LAST_ADMIN_REMOVAL"

	// Not found
	CodeUserNotFound  = "USER_NOT_FOUND"
	CodeGroupNotFound = "GROUP_NOT_FOUND"
	CodeTaskNotFound  = "TASK_NOT_FOUND"

	// Feature gating / throttling / fallback
	CodeFeatureDisabled = "FEATURE_DISABLED"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeCooldownActive  = "COOLDOWN_ACTIVE"
	CodeInternalError   = "INTERNAL_ERROR"
)
