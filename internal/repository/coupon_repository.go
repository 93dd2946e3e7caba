package repository

import (
	"context"

	"storefront-coupons/internal/model"
)

// CouponRepository defines the interface for coupon data operations
type CouponRepository interface {
	// CreateCoupon inserts a new coupon. The code must already be
	// normalized; a duplicate code yields ErrCouponAlreadyExists.
	CreateCoupon(ctx context.Context, coupon *model.Coupon) error

	// FindByCode retrieves a coupon by its code, matched
	// case-insensitively.
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)

	// ApplyCoupon atomically records one redemption for the user:
	// the global usage count and the user's ledger entry move together,
	// and neither moves past its limit. Returns ErrNotEligible when the
	// user has no remaining allotment.
	ApplyCoupon(ctx context.Context, code, userID string) error
}
