package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

// percentageCoupon returns a valid 10% coupon with a 50.00 minimum.
func percentageCoupon() *Coupon {
	return &Coupon{
		Code:               "SAVE10",
		Type:               TypePercentage,
		Value:              10,
		MinimumOrderAmount: 50,
		UserUsageLimit:     1,
		ValidFrom:          testNow.Add(-24 * time.Hour),
		ValidUntil:         testNow.Add(24 * time.Hour),
		IsActive:           true,
	}
}

func discountFor(t *testing.T, c *Coupon, orderAmount float64) string {
	t.Helper()
	return c.CalculateDiscount(decimal.NewFromFloat(orderAmount), nil, testNow).StringFixed(2)
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"save10":    "SAVE10",
		"  Save10 ": "SAVE10",
		"SAVE10":    "SAVE10",
	}
	for in, want := range cases {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsCurrentlyValidConjunction(t *testing.T) {
	limit := 5

	tests := []struct {
		name   string
		mutate func(*Coupon)
		want   bool
	}{
		{"all conditions hold", func(c *Coupon) {}, true},
		{"inactive", func(c *Coupon) { c.IsActive = false }, false},
		{"not yet started", func(c *Coupon) { c.ValidFrom = testNow.Add(time.Hour) }, false},
		{"expired", func(c *Coupon) { c.ValidUntil = testNow.Add(-time.Hour) }, false},
		{"limit exhausted", func(c *Coupon) { c.UsageLimit = &limit; c.UsageCount = 5 }, false},
		{"limit with headroom", func(c *Coupon) { c.UsageLimit = &limit; c.UsageCount = 4 }, true},
		{"unlimited with high count", func(c *Coupon) { c.UsageCount = 100000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := percentageCoupon()
			tt.mutate(c)
			if got := c.IsCurrentlyValid(testNow); got != tt.want {
				t.Errorf("IsCurrentlyValid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowBoundsAreInclusive(t *testing.T) {
	c := percentageCoupon()

	if !c.IsCurrentlyValid(c.ValidFrom) {
		t.Error("coupon should be valid at exactly ValidFrom")
	}
	if !c.IsCurrentlyValid(c.ValidUntil) {
		t.Error("coupon should be valid at exactly ValidUntil")
	}
	if c.IsCurrentlyValid(c.ValidUntil.Add(time.Nanosecond)) {
		t.Error("coupon should not be valid after ValidUntil")
	}
}

func TestCanUserUse(t *testing.T) {
	c := percentageCoupon()
	c.UserUsageLimit = 2
	c.UsedByUsers = []UsageRecord{
		{UserID: "alice", UsedCount: 1, LastUsed: testNow},
		{UserID: "bob", UsedCount: 2, LastUsed: testNow},
	}

	if !c.CanUserUse("carol", testNow) {
		t.Error("user without a ledger entry should be allowed")
	}
	if !c.CanUserUse("alice", testNow) {
		t.Error("user under the per-user limit should be allowed")
	}
	if c.CanUserUse("bob", testNow) {
		t.Error("user at the per-user limit should be rejected")
	}

	c.IsActive = false
	if c.CanUserUse("carol", testNow) {
		t.Error("nobody can use a coupon that is not currently valid")
	}
}

func TestAppliesToItem(t *testing.T) {
	c := percentageCoupon()
	c.ApplicableCategories = []string{"books"}
	c.ExcludedProducts = []string{"p-banned"}

	tests := []struct {
		name string
		item CartItem
		want bool
	}{
		{"matches allow-list category", CartItem{ProductID: "p1", CategoryID: "books"}, true},
		{"outside allow-list", CartItem{ProductID: "p2", CategoryID: "toys"}, false},
		{"deny-list wins over allow-list", CartItem{ProductID: "p-banned", CategoryID: "books"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.AppliesToItem(tt.item); got != tt.want {
				t.Errorf("AppliesToItem = %v, want %v", got, tt.want)
			}
		})
	}

	// No lists at all: every line counts.
	open := percentageCoupon()
	if !open.AppliesToItem(CartItem{ProductID: "anything", CategoryID: "whatever"}) {
		t.Error("coupon without scoping lists should apply to every item")
	}
}

func TestApplicableAmount(t *testing.T) {
	c := percentageCoupon()
	c.ApplicableCategories = []string{"books"}

	items := []CartItem{
		{ProductID: "p1", CategoryID: "books", LineAmount: 30},
		{ProductID: "p2", CategoryID: "toys", LineAmount: 50},
		{ProductID: "p3", CategoryID: "books", LineAmount: 20.50},
	}

	if got := c.ApplicableAmount(items).StringFixed(2); got != "50.50" {
		t.Errorf("ApplicableAmount = %s, want 50.50", got)
	}
}

func TestCalculateDiscountPercentage(t *testing.T) {
	c := percentageCoupon()
	if got := discountFor(t, c, 100); got != "10.00" {
		t.Errorf("discount = %s, want 10.00", got)
	}
}

func TestCalculateDiscountBelowMinimumIsZero(t *testing.T) {
	c := percentageCoupon()
	if got := discountFor(t, c, 40); got != "0.00" {
		t.Errorf("discount = %s, want 0.00 below the minimum order amount", got)
	}
}

func TestCalculateDiscountInvalidCouponIsZero(t *testing.T) {
	c := percentageCoupon()
	c.IsActive = false
	if got := discountFor(t, c, 100); got != "0.00" {
		t.Errorf("discount = %s, want 0.00 for an invalid coupon", got)
	}
}

func TestCalculateDiscountFixedClampedToBase(t *testing.T) {
	c := &Coupon{
		Code:           "FLAT20",
		Type:           TypeFixed,
		Value:          20,
		UserUsageLimit: 1,
		ValidFrom:      testNow.Add(-time.Hour),
		ValidUntil:     testNow.Add(time.Hour),
		IsActive:       true,
	}

	if got := discountFor(t, c, 15); got != "15.00" {
		t.Errorf("discount = %s, want 15.00 (fixed clamped to base)", got)
	}
	if got := discountFor(t, c, 100); got != "20.00" {
		t.Errorf("discount = %s, want 20.00", got)
	}
}

func TestCalculateDiscountMaximumCap(t *testing.T) {
	cap := 30.0
	c := percentageCoupon()
	c.Code = "CAPPED"
	c.Value = 50
	c.MaximumDiscountAmount = &cap

	if got := discountFor(t, c, 100); got != "30.00" {
		t.Errorf("discount = %s, want 30.00 (clamped to cap)", got)
	}
}

func TestCalculateDiscountFreeShippingIsZero(t *testing.T) {
	c := percentageCoupon()
	c.Code = "SHIPFREE"
	c.Type = TypeFreeShipping
	c.MinimumOrderAmount = 0

	if got := discountFor(t, c, 100); got != "0.00" {
		t.Errorf("discount = %s, want 0.00 for free_shipping", got)
	}
}

func TestCalculateDiscountRoundsHalfUp(t *testing.T) {
	c := percentageCoupon()
	c.Value = 15
	c.MinimumOrderAmount = 0

	// 15% of 10.99 = 1.6485, rounds to 1.65.
	if got := discountFor(t, c, 10.99); got != "1.65" {
		t.Errorf("discount = %s, want 1.65", got)
	}
}

func TestCalculateDiscountUsesApplicableBase(t *testing.T) {
	c := percentageCoupon()
	c.MinimumOrderAmount = 0

	scoped := decimal.NewFromFloat(40)
	got := c.CalculateDiscount(decimal.NewFromFloat(100), &scoped, testNow).StringFixed(2)
	if got != "4.00" {
		t.Errorf("discount = %s, want 4.00 (10%% of the scoped base)", got)
	}
}

func TestCalculateDiscountMonotonicUpToCap(t *testing.T) {
	cap := 25.0
	c := percentageCoupon()
	c.Value = 50
	c.MinimumOrderAmount = 0
	c.MaximumDiscountAmount = &cap

	previous := decimal.Zero
	for _, base := range []float64{10, 20, 40, 50, 60, 80, 100} {
		d := c.CalculateDiscount(decimal.NewFromFloat(base), nil, testNow)
		if d.LessThan(previous) {
			t.Fatalf("discount decreased from %s to %s as base grew to %v", previous, d, base)
		}
		if d.GreaterThan(decimal.NewFromFloat(cap)) {
			t.Fatalf("discount %s exceeded cap %v at base %v", d, cap, base)
		}
		previous = d
	}
	// Once the cap binds it stays constant.
	if !previous.Equal(decimal.NewFromFloat(cap)) {
		t.Errorf("discount at the largest base = %s, want the cap %v", previous, cap)
	}
}
