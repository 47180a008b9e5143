package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Core (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient account balance", http.StatusPaymentRequired)
}

func ErrAccountFrozen() *AppError {
	return New("LED_002", "Account is frozen and cannot originate value", http.StatusForbidden)
}

func ErrAccountBlacklisted() *AppError {
	return New("LED_003", "Account is blacklisted", http.StatusForbidden)
}

func ErrAccountNotFound(id string) *AppError {
	return New("LED_004", fmt.Sprintf("Account %s not found", id), http.StatusNotFound)
}

func ErrLimitExceeded() *AppError {
	return New("LED_005", "Transfer limit exceeded for account tier", http.StatusUnprocessableEntity)
}

func ErrConcurrentConflict() *AppError {
	return New("LED_006", "Operation lost a concurrency race, retry safely", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("LED_007", "Amount must be a positive integer in minor units", http.StatusBadRequest)
}

func ErrAccountExists(id string) *AppError {
	return New("LED_008", fmt.Sprintf("Account %s already exists", id), http.StatusConflict)
}

// ---- Offline Vouchers (OFF) ----

func ErrInvalidVoucherSignature() *AppError {
	return New("OFF_001", "Voucher signature verification failed", http.StatusUnauthorized)
}

func ErrNonceReplay() *AppError {
	return New("OFF_002", "Voucher nonce already redeemed", http.StatusConflict)
}

func ErrVoucherExpired() *AppError {
	return New("OFF_003", "Voucher is outside its validity window", http.StatusUnprocessableEntity)
}

func ErrOfflineCapExceeded() *AppError {
	return New("OFF_004", "Offline allowance cap exceeded for account tier", http.StatusUnprocessableEntity)
}

func ErrTierIneligible() *AppError {
	return New("OFF_005", "Account tier is not eligible for offline spending", http.StatusForbidden)
}

func ErrDeviceNotRegistered() *AppError {
	return New("OFF_006", "No offline device registered for account", http.StatusNotFound)
}

// ---- API Security (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid request signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Request nonce has already been used", http.StatusForbidden)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrIntermediarySuspended() *AppError {
	return New("AUTH_004", "Intermediary is suspended", http.StatusForbidden)
}

func ErrUnauthorizedApprover() *AppError {
	return New("AUTH_005", "Approver lacks the required role", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorageUnavailable reports storage failures without leaking internals.
func ErrStorageUnavailable(err error) *AppError {
	return Wrap("SYS_001", "Storage unavailable", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_007-style validation error.
func Validation(message string) *AppError {
	return New("LED_007", message, http.StatusBadRequest)
}
