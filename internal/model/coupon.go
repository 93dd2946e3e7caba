package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponType enumerates the supported discount strategies.
type CouponType string

const (
	// TypePercentage discounts a percentage of the discount base.
	TypePercentage CouponType = "percentage"
	// TypeFixed discounts a fixed amount, capped at the discount base.
	TypeFixed CouponType = "fixed"
	// TypeFreeShipping waives shipping; the monetary discount is zero and
	// the effect is signaled through a separate flag.
	TypeFreeShipping CouponType = "free_shipping"
)

// UsageRecord is one ledger entry: how often a single user has redeemed
// the coupon.
type UsageRecord struct {
	UserID    string    `bson:"user_id" json:"userId"`
	UsedCount int       `bson:"used_count" json:"usedCount"`
	LastUsed  time.Time `bson:"last_used" json:"lastUsed"`
}

// Coupon represents a coupon policy record in the system
type Coupon struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Code                  string             `bson:"code" json:"code"` // stored uppercase, unique
	Name                  string             `bson:"name" json:"name"`
	Description           string             `bson:"description" json:"description"`
	Type                  CouponType         `bson:"type" json:"type"`
	Value                 float64            `bson:"value" json:"value"`
	MinimumOrderAmount    float64            `bson:"minimum_order_amount" json:"minimumOrderAmount"`
	MaximumDiscountAmount *float64           `bson:"maximum_discount_amount,omitempty" json:"maximumDiscountAmount,omitempty"`
	UsageLimit            *int               `bson:"usage_limit,omitempty" json:"usageLimit,omitempty"` // nil means unlimited
	UsageCount            int                `bson:"usage_count" json:"usageCount"`
	UserUsageLimit        int                `bson:"user_usage_limit" json:"userUsageLimit"`
	ValidFrom             time.Time          `bson:"valid_from" json:"validFrom"`
	ValidUntil            time.Time          `bson:"valid_until" json:"validUntil"`
	IsActive              bool               `bson:"is_active" json:"isActive"`
	ApplicableCategories  []string           `bson:"applicable_categories,omitempty" json:"applicableCategories,omitempty"`
	ApplicableProducts    []string           `bson:"applicable_products,omitempty" json:"applicableProducts,omitempty"`
	ExcludedCategories    []string           `bson:"excluded_categories,omitempty" json:"excludedCategories,omitempty"`
	ExcludedProducts      []string           `bson:"excluded_products,omitempty" json:"excludedProducts,omitempty"`
	UsedByUsers           []UsageRecord      `bson:"used_by_users" json:"usedByUsers"`
	CreatedBy             string             `bson:"created_by" json:"createdBy"`
	CreatedAt             time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updatedAt"`
}

// NormalizeCode uppercases and trims a coupon code. Codes are matched
// case-insensitively everywhere, so every lookup and every stored code
// goes through this first.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsExpired reports whether the validity window has closed.
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ValidUntil)
}

// HasReachedLimit reports whether the global usage limit is exhausted.
func (c *Coupon) HasReachedLimit() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// IsCurrentlyValid reports whether the coupon can be applied at all:
// active, inside the [ValidFrom, ValidUntil] window, and under the
// global usage limit.
func (c *Coupon) IsCurrentlyValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	return !c.HasReachedLimit()
}

// UserUsage returns the ledger entry for the given user, or nil if the
// user has never redeemed this coupon.
func (c *Coupon) UserUsage(userID string) *UsageRecord {
	for i := range c.UsedByUsers {
		if c.UsedByUsers[i].UserID == userID {
			return &c.UsedByUsers[i]
		}
	}
	return nil
}

// CanUserUse reports whether the given user may redeem the coupon right
// now. A coupon that is not currently valid can be used by nobody.
func (c *Coupon) CanUserUse(userID string, now time.Time) bool {
	if !c.IsCurrentlyValid(now) {
		return false
	}
	rec := c.UserUsage(userID)
	return rec == nil || rec.UsedCount < c.UserUsageLimit
}

// AppliesToItem reports whether a cart line counts toward the discount
// base. Deny-lists always win; when an allow-list is non-empty the line
// must also match it.
func (c *Coupon) AppliesToItem(item CartItem) bool {
	for _, id := range c.ExcludedProducts {
		if id == item.ProductID {
			return false
		}
	}
	for _, id := range c.ExcludedCategories {
		if id == item.CategoryID {
			return false
		}
	}
	if len(c.ApplicableProducts) == 0 && len(c.ApplicableCategories) == 0 {
		return true
	}
	for _, id := range c.ApplicableProducts {
		if id == item.ProductID {
			return true
		}
	}
	for _, id := range c.ApplicableCategories {
		if id == item.CategoryID {
			return true
		}
	}
	return false
}

// ApplicableAmount sums the line amounts that pass the category/product
// scoping filters.
func (c *Coupon) ApplicableAmount(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if c.AppliesToItem(item) {
			total = total.Add(decimal.NewFromFloat(item.LineAmount))
		}
	}
	return total
}

// CalculateDiscount computes the monetary discount for an order.
// applicableAmount is the scoped discount base; pass nil when the cart
// line detail is unavailable and the full order amount is the base.
// The result is rounded half-up to 2 decimal places. Callers are
// expected to have verified validity already, but the function re-checks
// so it is safe to call on its own.
func (c *Coupon) CalculateDiscount(orderAmount decimal.Decimal, applicableAmount *decimal.Decimal, now time.Time) decimal.Decimal {
	if !c.IsCurrentlyValid(now) {
		return decimal.Zero
	}
	if orderAmount.LessThan(decimal.NewFromFloat(c.MinimumOrderAmount)) {
		return decimal.Zero
	}

	base := orderAmount
	if applicableAmount != nil {
		base = *applicableAmount
	}

	var discount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		discount = base.Mul(decimal.NewFromFloat(c.Value)).Div(decimal.NewFromInt(100))
	case TypeFixed:
		discount = decimal.NewFromFloat(c.Value)
		if discount.GreaterThan(base) {
			discount = base
		}
	case TypeFreeShipping:
		// Shipping cost is owned by an external collaborator; the waiver
		// is a flag on the verdict, not a monetary discount.
		return decimal.Zero
	default:
		return decimal.Zero
	}

	if c.MaximumDiscountAmount != nil {
		maxDiscount := decimal.NewFromFloat(*c.MaximumDiscountAmount)
		if discount.GreaterThan(maxDiscount) {
			discount = maxDiscount
		}
	}

	return discount.Round(2)
}
