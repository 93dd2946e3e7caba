package errors

import (
	"errors"
	"fmt"
)

// Domain errors for the coupon engine. These are expected, user-facing
// verdicts; handlers return their messages verbatim.
var (
	ErrCouponNotFound      = errors.New("invalid coupon code")
	ErrCouponAlreadyExists = errors.New("coupon code already exists")
	ErrCouponInactive      = errors.New("this coupon is no longer active")
	ErrCouponNotStarted    = errors.New("this coupon is not valid yet")
	ErrCouponExpired       = errors.New("this coupon has expired")
	ErrUsageLimitReached   = errors.New("this coupon has reached its usage limit")
	ErrUserLimitReached    = errors.New("you have reached the usage limit for this coupon")
	ErrBelowMinimum        = errors.New("order amount is below the coupon minimum")
	ErrNotEligible         = errors.New("coupon could not be applied to this order")
)

// BelowMinimumError carries the required minimum for display.
type BelowMinimumError struct {
	Minimum float64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("a minimum order amount of %.2f is required to use this coupon", e.Minimum)
}

func (e *BelowMinimumError) Is(target error) bool { return target == ErrBelowMinimum }

// UserLimitError carries the caller's usage against their allotment.
type UserLimitError struct {
	Used  int
	Limit int
}

func (e *UserLimitError) Error() string {
	return fmt.Sprintf("you have already used this coupon %d of %d times", e.Used, e.Limit)
}

func (e *UserLimitError) Is(target error) bool { return target == ErrUserLimitReached }

// ValidationError reports an invalid coupon definition submitted by an
// administrator.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
