package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"storefront-coupons/internal/cache"
	"storefront-coupons/internal/model"
	"storefront-coupons/internal/repository"
	apperrors "storefront-coupons/pkg/errors"
)

// couponCacheTTL bounds how stale a validate-path coupon read may be.
// Redemption never reads through the cache.
const couponCacheTTL = 30 * time.Second

// CouponService handles coupon validation and redemption for the
// checkout flow.
type CouponService struct {
	repo  repository.CouponRepository
	cache cache.Cache
}

// NewCouponService creates a new coupon service
func NewCouponService(repo repository.CouponRepository, c cache.Cache) *CouponService {
	return &CouponService{repo: repo, cache: c}
}

func couponCacheKey(code string) string {
	return "coupon:" + code
}

// CreateCoupon checks the policy field constraints and stores a new
// coupon with an empty usage ledger.
func (s *CouponService) CreateCoupon(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	code := model.NormalizeCode(req.Code)
	if len(code) < 3 || len(code) > 20 {
		return nil, &apperrors.ValidationError{Field: "code", Reason: "must be 3-20 characters"}
	}
	switch req.Type {
	case model.TypePercentage:
		if req.Value < 1 || req.Value > 100 {
			return nil, &apperrors.ValidationError{Field: "value", Reason: "percentage must be between 1 and 100"}
		}
	case model.TypeFixed:
		if req.Value < 0 {
			return nil, &apperrors.ValidationError{Field: "value", Reason: "fixed discount cannot be negative"}
		}
	case model.TypeFreeShipping:
		// Value is stored but not used.
	default:
		return nil, &apperrors.ValidationError{Field: "type", Reason: "must be percentage, fixed or free_shipping"}
	}
	if req.MinimumOrderAmount < 0 {
		return nil, &apperrors.ValidationError{Field: "minimumOrderAmount", Reason: "cannot be negative"}
	}
	if req.MaximumDiscountAmount != nil && *req.MaximumDiscountAmount <= 0 {
		return nil, &apperrors.ValidationError{Field: "maximumDiscountAmount", Reason: "must be positive when set"}
	}
	if req.UsageLimit != nil && *req.UsageLimit <= 0 {
		return nil, &apperrors.ValidationError{Field: "usageLimit", Reason: "must be positive when set"}
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return nil, &apperrors.ValidationError{Field: "validUntil", Reason: "must be after validFrom"}
	}

	userLimit := req.UserUsageLimit
	if userLimit <= 0 {
		userLimit = 1
	}

	now := time.Now()
	coupon := &model.Coupon{
		Code:                  code,
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  req.Type,
		Value:                 req.Value,
		MinimumOrderAmount:    req.MinimumOrderAmount,
		MaximumDiscountAmount: req.MaximumDiscountAmount,
		UsageLimit:            req.UsageLimit,
		UserUsageLimit:        userLimit,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		IsActive:              true,
		ApplicableCategories:  req.ApplicableCategories,
		ApplicableProducts:    req.ApplicableProducts,
		ExcludedCategories:    req.ExcludedCategories,
		ExcludedProducts:      req.ExcludedProducts,
		UsedByUsers:           []model.UsageRecord{},
		CreatedBy:             req.CreatedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.CreateCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, couponCacheKey(code)); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to drop cached coupon")
	}

	log.Info().Str("code", code).Str("created_by", req.CreatedBy).Msg("coupon created")
	return coupon, nil
}

// Validate runs the full "can this code be applied, and for how much"
// pipeline. It performs no writes and may be called on every cart
// recompute. req.UserID is empty for guest checkouts, in which case the
// per-user limit is not checked; it is enforced at redemption time.
func (s *CouponService) Validate(ctx context.Context, req *model.ValidateCouponRequest) (*model.ValidationResult, error) {
	code := model.NormalizeCode(req.Code)
	if code == "" {
		return nil, apperrors.ErrCouponNotFound
	}

	coupon, err := s.loadCoupon(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !coupon.IsCurrentlyValid(now) {
		return nil, invalidityReason(coupon, now)
	}

	orderAmount := decimal.NewFromFloat(req.OrderAmount)
	if orderAmount.LessThan(decimal.NewFromFloat(coupon.MinimumOrderAmount)) {
		return nil, &apperrors.BelowMinimumError{Minimum: coupon.MinimumOrderAmount}
	}

	if req.UserID != "" && !coupon.CanUserUse(req.UserID, now) {
		used := 0
		if rec := coupon.UserUsage(req.UserID); rec != nil {
			used = rec.UsedCount
		}
		return nil, &apperrors.UserLimitError{Used: used, Limit: coupon.UserUsageLimit}
	}

	// The scoped base only exists when the caller supplied line detail;
	// otherwise the whole order amount is the base.
	var applicable *decimal.Decimal
	if len(req.CartItems) > 0 {
		a := coupon.ApplicableAmount(req.CartItems)
		applicable = &a
	}

	discount := coupon.CalculateDiscount(orderAmount, applicable, now)
	freeShipping := coupon.Type == model.TypeFreeShipping

	return &model.ValidationResult{
		Valid: true,
		Coupon: model.CouponSummary{
			Code:                  coupon.Code,
			Name:                  coupon.Name,
			Description:           coupon.Description,
			Type:                  coupon.Type,
			Value:                 coupon.Value,
			MinimumOrderAmount:    coupon.MinimumOrderAmount,
			MaximumDiscountAmount: coupon.MaximumDiscountAmount,
		},
		Discount: model.DiscountResult{
			Amount:       discount.InexactFloat64(),
			FreeShipping: freeShipping,
		},
		Message: confirmationMessage(coupon.Code, discount, freeShipping),
	}, nil
}

// Redeem durably consumes one use of the coupon for the user. It is
// called once per placed order, after a successful Validate; the
// repository re-checks eligibility inside its atomic update, so any
// state change since validation surfaces as ErrNotEligible.
func (s *CouponService) Redeem(ctx context.Context, code, userID string) error {
	if userID == "" {
		return apperrors.ErrNotEligible
	}
	code = model.NormalizeCode(code)

	if err := s.repo.ApplyCoupon(ctx, code, userID); err != nil {
		if errors.Is(err, apperrors.ErrCouponNotFound) || errors.Is(err, apperrors.ErrNotEligible) {
			log.Info().Str("code", code).Str("user_id", userID).Err(err).Msg("redemption rejected")
			return apperrors.ErrNotEligible
		}
		return err
	}

	if err := s.cache.Delete(ctx, couponCacheKey(code)); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to drop cached coupon")
	}

	log.Info().Str("code", code).Str("user_id", userID).Msg("coupon redeemed")
	return nil
}

// loadCoupon reads through the cache. A hit may lag the store by up to
// couponCacheTTL, which is acceptable on the advisory validate path.
func (s *CouponService) loadCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	key := couponCacheKey(code)

	var cached model.Coupon
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, coupon, couponCacheTTL); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to cache coupon")
	}

	return coupon, nil
}

// invalidityReason maps an invalid coupon to the most specific verdict:
// expiry wins over an exhausted limit, which wins over the kill switch.
func invalidityReason(coupon *model.Coupon, now time.Time) error {
	switch {
	case coupon.IsExpired(now):
		return apperrors.ErrCouponExpired
	case coupon.HasReachedLimit():
		return apperrors.ErrUsageLimitReached
	case !coupon.IsActive:
		return apperrors.ErrCouponInactive
	default:
		return apperrors.ErrCouponNotStarted
	}
}

func confirmationMessage(code string, discount decimal.Decimal, freeShipping bool) string {
	if freeShipping {
		return fmt.Sprintf("Coupon %s applied: free shipping on this order", code)
	}
	return fmt.Sprintf("Coupon %s applied: you save %s", code, discount.StringFixed(2))
}
