package model

import "time"

// CartItem is one order line as supplied by the checkout flow. The
// engine never computes line amounts, it only filters and sums them.
type CartItem struct {
	ProductID  string  `json:"productId"`
	CategoryID string  `json:"categoryId"`
	LineAmount float64 `json:"lineAmount"`
}

// ValidateCouponRequest asks whether a code may be applied to an order.
// UserID is empty for guest checkouts.
type ValidateCouponRequest struct {
	Code        string     `json:"code" binding:"required"`
	OrderAmount float64    `json:"orderAmount" binding:"required,gt=0"`
	CartItems   []CartItem `json:"cartItems"`
	UserID      string     `json:"userId"`
}

// RedeemCouponRequest commits one redemption once the order is placed.
type RedeemCouponRequest struct {
	Code   string `json:"code" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// CouponSummary is the public subset of coupon fields echoed back to
// the checkout UI.
type CouponSummary struct {
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Type                  CouponType `json:"type"`
	Value                 float64    `json:"value"`
	MinimumOrderAmount    float64    `json:"minimumOrderAmount"`
	MaximumDiscountAmount *float64   `json:"maximumDiscountAmount,omitempty"`
}

// DiscountResult is the computed discount for a validated coupon.
type DiscountResult struct {
	Amount       float64 `json:"amount"`
	FreeShipping bool    `json:"freeShipping"`
}

// ValidationResult is the success verdict for a validation request.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Coupon   CouponSummary  `json:"coupon"`
	Discount DiscountResult `json:"discount"`
	Message  string         `json:"message"`
}

// CreateCouponRequest is the admin payload for authoring a coupon.
type CreateCouponRequest struct {
	Code                  string     `json:"code" binding:"required"`
	Name                  string     `json:"name" binding:"required"`
	Description           string     `json:"description"`
	Type                  CouponType `json:"type" binding:"required"`
	Value                 float64    `json:"value"`
	MinimumOrderAmount    float64    `json:"minimumOrderAmount"`
	MaximumDiscountAmount *float64   `json:"maximumDiscountAmount"`
	UsageLimit            *int       `json:"usageLimit"`
	UserUsageLimit        int        `json:"userUsageLimit"`
	ValidFrom             time.Time  `json:"validFrom" binding:"required"`
	ValidUntil            time.Time  `json:"validUntil" binding:"required"`
	ApplicableCategories  []string   `json:"applicableCategories"`
	ApplicableProducts    []string   `json:"applicableProducts"`
	ExcludedCategories    []string   `json:"excludedCategories"`
	ExcludedProducts      []string   `json:"excludedProducts"`
	CreatedBy             string     `json:"createdBy"`
}
