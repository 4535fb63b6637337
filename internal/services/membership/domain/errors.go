package domain

import apperrors "github.com/louisbranch/paywall/internal/platform/errors"

var (
	// ErrLevelNameEmpty indicates a missing level name.
	ErrLevelNameEmpty = apperrors.New(apperrors.CodeLevelNameEmpty, "level name is required")
	// ErrLevelInvalidDuration indicates a negative count or unknown unit.
	ErrLevelInvalidDuration = apperrors.New(apperrors.CodeLevelInvalidDuration, "level duration is invalid")
	// ErrLevelInvalidPrice indicates a negative price or fee.
	ErrLevelInvalidPrice = apperrors.New(apperrors.CodeLevelInvalidPrice, "level price and fee must not be negative")
	// ErrLevelInvalidAccessLevel indicates an access level outside 0..10.
	ErrLevelInvalidAccessLevel = apperrors.New(apperrors.CodeLevelInvalidAccessLevel, "level access level is out of range")
	// ErrLevelInvalidStatus indicates a status other than active or inactive.
	ErrLevelInvalidStatus = apperrors.WithMetadata(apperrors.CodeInvalidArgument, "level status is invalid", map[string]string{
		"Reason": "level status must be active or inactive",
	})
	// ErrMemberUserIDEmpty indicates a member without a user.
	ErrMemberUserIDEmpty = apperrors.New(apperrors.CodeMemberUserIDEmpty, "member user id is required")
	// ErrMemberNoLevel indicates an operation that needs a level reference.
	ErrMemberNoLevel = apperrors.New(apperrors.CodeMemberNoLevel, "member has no level")
	// ErrRestrictionInvalidMode indicates an unknown level requirement mode.
	ErrRestrictionInvalidMode = apperrors.New(apperrors.CodeRestrictionInvalidMode, "restriction level mode is invalid")
	// ErrRestrictionInvalidAccessLevel indicates an access level outside 0..10.
	ErrRestrictionInvalidAccessLevel = apperrors.New(apperrors.CodeRestrictionInvalidAccessLevel, "restriction access level is out of range")
	// ErrRestrictionLevelsRequired indicates a list requirement with no levels.
	ErrRestrictionLevelsRequired = apperrors.New(apperrors.CodeRestrictionLevelsRequired, "restriction level list is empty")
	// ErrDiscountInvalidCode indicates a code outside [a-z0-9_-]{1,64}.
	ErrDiscountInvalidCode = apperrors.New(apperrors.CodeDiscountInvalidCode, "discount code is invalid")
	// ErrDiscountInvalidAmount indicates a non-positive amount or a percentage over 100.
	ErrDiscountInvalidAmount = apperrors.New(apperrors.CodeDiscountInvalidAmount, "discount amount is invalid")
	// ErrDiscountInvalidUnit indicates an unknown discount unit.
	ErrDiscountInvalidUnit = apperrors.New(apperrors.CodeDiscountInvalidUnit, "discount unit is invalid")
	// ErrDiscountInactive indicates a disabled discount.
	ErrDiscountInactive = apperrors.New(apperrors.CodeDiscountInactive, "discount is not active")
	// ErrDiscountExpired indicates a discount past its expiration.
	ErrDiscountExpired = apperrors.New(apperrors.CodeDiscountExpired, "discount has expired")
	// ErrDiscountMaxedOut indicates a discount that reached its use cap.
	ErrDiscountMaxedOut = apperrors.New(apperrors.CodeDiscountMaxedOut, "discount has reached its maximum uses")
	// ErrDiscountAlreadyUsed indicates the member already redeemed the code.
	ErrDiscountAlreadyUsed = apperrors.New(apperrors.CodeDiscountAlreadyUsed, "discount already used by member")
)

func levelInactiveError(levelID string) error {
	return apperrors.WithMetadata(apperrors.CodeLevelInactive, "level is not available for signup", map[string]string{
		"LevelID": levelID,
	})
}

func invalidTransitionError(from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeMemberInvalidStatusTransition, "member status transition is not allowed", map[string]string{
		"FromStatus": from.Label(),
		"ToStatus":   to.Label(),
	})
}

func statusDisallowsError(status Status, operation string) error {
	return apperrors.WithMetadata(apperrors.CodeMemberStatusDisallowsOperation, "member status does not allow operation", map[string]string{
		"Status":    status.Label(),
		"Operation": operation,
	})
}

func discountLevelMismatchError(code, levelID string) error {
	return apperrors.WithMetadata(apperrors.CodeDiscountLevelMismatch, "discount does not apply to level", map[string]string{
		"Code":    code,
		"LevelID": levelID,
	})
}
