package service

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
)

// storeError translates storage sentinels into coded errors for resource.
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		e := apperrors.WithMetadata(apperrors.CodeNotFound, resource+" not found", map[string]string{
			"Resource": resource,
		})
		e.Cause = err
		return e
	case errors.Is(err, storage.ErrAlreadyExists):
		e := apperrors.WithMetadata(apperrors.CodeAlreadyExists, resource+" already exists", map[string]string{
			"Resource": resource,
		})
		e.Cause = err
		return e
	case errors.Is(err, storage.ErrInvalidQuery):
		e := apperrors.WithMetadata(apperrors.CodeInvalidArgument, err.Error(), map[string]string{
			"Reason": err.Error(),
		})
		e.Cause = err
		return e
	default:
		return fmt.Errorf("%s: %w", resource, err)
	}
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{
		"Reason": reason,
	})
}
