// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"

	// Subscription level errors
	CodeLevelNameEmpty          Code = "LEVEL_NAME_EMPTY"
	CodeLevelInvalidDuration    Code = "LEVEL_INVALID_DURATION"
	CodeLevelInvalidPrice       Code = "LEVEL_INVALID_PRICE"
	CodeLevelInvalidAccessLevel Code = "LEVEL_INVALID_ACCESS_LEVEL"
	CodeLevelInactive           Code = "LEVEL_INACTIVE"

	// Member errors
	CodeMemberUserIDEmpty              Code = "MEMBER_USER_ID_EMPTY"
	CodeMemberNoLevel                  Code = "MEMBER_NO_LEVEL"
	CodeMemberInvalidStatusTransition  Code = "MEMBER_INVALID_STATUS_TRANSITION"
	CodeMemberStatusDisallowsOperation Code = "MEMBER_STATUS_DISALLOWS_OPERATION"

	// Restriction errors
	CodeRestrictionInvalidMode        Code = "RESTRICTION_INVALID_MODE"
	CodeRestrictionInvalidAccessLevel Code = "RESTRICTION_INVALID_ACCESS_LEVEL"
	CodeRestrictionLevelsRequired     Code = "RESTRICTION_LEVELS_REQUIRED"

	// Discount errors
	CodeDiscountInvalidCode   Code = "DISCOUNT_INVALID_CODE"
	CodeDiscountInvalidAmount Code = "DISCOUNT_INVALID_AMOUNT"
	CodeDiscountInvalidUnit   Code = "DISCOUNT_INVALID_UNIT"
	CodeDiscountInactive      Code = "DISCOUNT_INACTIVE"
	CodeDiscountExpired       Code = "DISCOUNT_EXPIRED"
	CodeDiscountMaxedOut      Code = "DISCOUNT_MAXED_OUT"
	CodeDiscountLevelMismatch Code = "DISCOUNT_LEVEL_MISMATCH"
	CodeDiscountAlreadyUsed   Code = "DISCOUNT_ALREADY_USED"

	// Payment errors
	CodePaymentStatusInvalid Code = "PAYMENT_STATUS_INVALID"

	// Access grant errors
	CodeGrantInvalid       Code = "GRANT_INVALID"
	CodeGrantExpired       Code = "GRANT_EXPIRED"
	CodeGrantMismatch      Code = "GRANT_MISMATCH"
	CodeGrantNotConfigured Code = "GRANT_NOT_CONFIGURED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeInvalidArgument,
		CodeLevelNameEmpty,
		CodeLevelInvalidDuration,
		CodeLevelInvalidPrice,
		CodeLevelInvalidAccessLevel,
		CodeMemberUserIDEmpty,
		CodeRestrictionInvalidMode,
		CodeRestrictionInvalidAccessLevel,
		CodeRestrictionLevelsRequired,
		CodeDiscountInvalidCode,
		CodeDiscountInvalidAmount,
		CodeDiscountInvalidUnit:
		return http.StatusBadRequest

	// Conflict - state doesn't allow operation
	case CodeAlreadyExists,
		CodeLevelInactive,
		CodeMemberNoLevel,
		CodeMemberInvalidStatusTransition,
		CodeMemberStatusDisallowsOperation,
		CodePaymentStatusInvalid:
		return http.StatusConflict

	// Unprocessable - a well-formed discount that cannot be redeemed
	case CodeDiscountInactive,
		CodeDiscountExpired,
		CodeDiscountMaxedOut,
		CodeDiscountLevelMismatch,
		CodeDiscountAlreadyUsed:
		return http.StatusUnprocessableEntity

	case CodeGrantInvalid,
		CodeGrantExpired,
		CodeGrantMismatch:
		return http.StatusUnauthorized

	case CodeNotFound:
		return http.StatusNotFound

	case CodeGrantNotConfigured:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
