package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-coupons/internal/model"
	apperrors "storefront-coupons/pkg/errors"
)

// applyAttempts bounds the optimistic retry loop in ApplyCoupon.
const applyAttempts = 3

// mongodbCouponRepository implements CouponRepository using MongoDB
type mongodbCouponRepository struct {
	collection *mongo.Collection
}

// NewCouponRepository creates a new MongoDB-based coupon repository
func NewCouponRepository(db *mongo.Database) CouponRepository {
	return &mongodbCouponRepository{
		collection: db.Collection("coupons"),
	}
}

// CreateCoupon inserts a new coupon document.
func (r *mongodbCouponRepository) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	_, err := r.collection.InsertOne(ctx, coupon)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrCouponAlreadyExists
		}
		return err
	}

	return nil
}

// FindByCode retrieves a coupon by its normalized code.
func (r *mongodbCouponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.collection.FindOne(ctx, bson.M{"code": model.NormalizeCode(code)}).Decode(&coupon)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrCouponNotFound
		}
		return nil, err
	}

	return &coupon, nil
}

// ApplyCoupon records one redemption. Each attempt is a single
// conditional UpdateOne whose filter restates the eligibility limits, so
// the check and the increments land in one atomic document write. The
// preceding read only decides whether the user's ledger entry must be
// incremented or inserted; if the document changes in between, the
// filter misses and the attempt is retried with fresh state.
func (r *mongodbCouponRepository) ApplyCoupon(ctx context.Context, code, userID string) error {
	code = model.NormalizeCode(code)

	for attempt := 0; attempt < applyAttempts; attempt++ {
		coupon, err := r.FindByCode(ctx, code)
		if err != nil {
			return err
		}

		now := time.Now()
		if !coupon.CanUserUse(userID, now) {
			return apperrors.ErrNotEligible
		}

		filter := bson.M{
			"code":      code,
			"is_active": true,
		}
		if coupon.UsageLimit != nil {
			filter["usage_count"] = bson.M{"$lt": *coupon.UsageLimit}
		}

		var update bson.M
		if coupon.UserUsage(userID) != nil {
			// Existing ledger entry: bump it in place via the positional
			// operator, guarded by the per-user limit.
			filter["used_by_users"] = bson.M{"$elemMatch": bson.M{
				"user_id":    userID,
				"used_count": bson.M{"$lt": coupon.UserUsageLimit},
			}}
			update = bson.M{
				"$inc": bson.M{
					"usage_count":                1,
					"used_by_users.$.used_count": 1,
				},
				"$set": bson.M{
					"used_by_users.$.last_used": now,
					"updated_at":                now,
				},
			}
		} else {
			// First redemption by this user: the $ne guard makes the
			// insert race-safe against a concurrent first redemption.
			filter["used_by_users.user_id"] = bson.M{"$ne": userID}
			update = bson.M{
				"$inc": bson.M{"usage_count": 1},
				"$push": bson.M{"used_by_users": model.UsageRecord{
					UserID:    userID,
					UsedCount: 1,
					LastUsed:  now,
				}},
				"$set": bson.M{"updated_at": now},
			}
		}

		result, err := r.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		if result.ModifiedCount == 1 {
			return nil
		}
		// Lost the race against a concurrent redemption or an admin
		// edit; re-read and re-check.
	}

	return fmt.Errorf("apply coupon %s for user %s: still conflicting after %d attempts", code, userID, applyAttempts)
}
