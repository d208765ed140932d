package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidFrequency ErrorCode = "INVALID_FREQUENCY"
	ErrCodeInvalidAnchor    ErrorCode = "INVALID_ANCHOR"
	ErrCodeInvalidCutoff    ErrorCode = "INVALID_CUTOFF_TIME"
	ErrCodeInvalidTimezone  ErrorCode = "INVALID_TIMEZONE"
	ErrCodeInvalidPeriod    ErrorCode = "INVALID_PERIOD_RANGE"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"

	ErrCodePayPlanNotFound    ErrorCode = "PAY_PLAN_NOT_FOUND"
	ErrCodePayeeNotFound      ErrorCode = "PAYEE_NOT_FOUND"
	ErrCodeSettlementNotFound ErrorCode = "SETTLEMENT_NOT_FOUND"
	ErrCodePayableNotFound    ErrorCode = "PAYABLE_NOT_FOUND"

	ErrCodeInvalidTransition      ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeSettlementNotDraft     ErrorCode = "SETTLEMENT_NOT_DRAFT"
	ErrCodeSettlementLocked       ErrorCode = "SETTLEMENT_LOCKED"
	ErrCodeSettlementExists       ErrorCode = "SETTLEMENT_ALREADY_EXISTS"
	ErrCodePayableLocked          ErrorCode = "PAYABLE_LOCKED"
	ErrCodePayableAlreadyAssigned ErrorCode = "PAYABLE_ALREADY_ASSIGNED"
	ErrCodePayableNotManual       ErrorCode = "PAYABLE_NOT_MANUAL"
	ErrCodePayPlanInUse           ErrorCode = "PAY_PLAN_IN_USE"
	ErrCodePayPlanArchived        ErrorCode = "PAY_PLAN_ARCHIVED"
	ErrCodeStatementNumberClash   ErrorCode = "STATEMENT_NUMBER_CONFLICT"

	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrPayPlanNotFound    = NewNotFoundError("Pay plan not found", ErrCodePayPlanNotFound)
	ErrPayeeNotFound      = NewNotFoundError("Payee not found", ErrCodePayeeNotFound)
	ErrSettlementNotFound = NewNotFoundError("Settlement not found", ErrCodeSettlementNotFound)
	ErrPayableNotFound    = NewNotFoundError("Payable not found", ErrCodePayableNotFound)

	ErrPayPlanInUse    = NewConflictError("Pay plan still has payees assigned", ErrCodePayPlanInUse)
	ErrPayPlanArchived = NewConflictError("Pay plan is archived", ErrCodePayPlanArchived)

	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access", ErrCodeUnauthorizedAccess)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
)

// NewStateConflictError reports an illegal operation for the settlement's
// current status, carrying the status so the caller can explain the refusal.
func NewStateConflictError(message, currentStatus string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"current_status": currentStatus},
	}
}

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
