package plaid

import (
	"errors"
	"fmt"
)

// Error is the error envelope returned by the Plaid API.
type Error struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
	StatusCode     int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("plaid %s %s: %s", e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// Error codes handled by this service.
const (
	CodeItemLoginRequired = "ITEM_LOGIN_REQUIRED"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// ErrorDetails returns type, code and request id if err is a Plaid error.
func ErrorDetails(err error) (errorType, errorCode, requestID string) {
	var plaidErr *Error
	if errors.As(err, &plaidErr) {
		return plaidErr.ErrorType, plaidErr.ErrorCode, plaidErr.RequestID
	}
	return "", "", ""
}

// IsCode reports if err is a Plaid error with the code.
func IsCode(err error, code string) bool {
	_, errorCode, _ := ErrorDetails(err)
	return errorCode == code
}
