package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storefront-coupons/internal/cache"
	"storefront-coupons/internal/model"
	"storefront-coupons/internal/repository"
	"storefront-coupons/internal/service"
	"storefront-coupons/pkg/config"
	"storefront-coupons/pkg/database"
	apperrors "storefront-coupons/pkg/errors"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.GetEnv("LOG_PRETTY", "") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	mongoURI := config.GetEnv("MONGO_URI", "mongodb://localhost:27017")
	dbName := config.GetEnv("MONGO_DB", "storefront")
	port := config.GetEnv("PORT", "8080")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoDB, err := database.Connect(ctx, mongoURI, dbName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	log.Info().Str("db", dbName).Msg("connected to MongoDB")

	// Redis is optional; without it the validate-path cache is
	// process-local.
	var couponCache cache.Cache
	if redisAddr := config.GetEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisCache, err := cache.NewRedisCache(redisAddr, config.GetEnv("REDIS_PASSWORD", ""), config.GetEnvInt("REDIS_DB", 0))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisCache.Close()
		couponCache = redisCache
		log.Info().Str("addr", redisAddr).Msg("connected to Redis")
	} else {
		couponCache = cache.NewInMemoryCache()
	}

	couponRepo := repository.NewCouponRepository(mongoDB.Database)
	svc := service.NewCouponService(couponRepo, couponCache)

	router := setupRouter(svc)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func setupRouter(svc *service.CouponService) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(requestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/coupons", createCouponHandler(svc))
		api.POST("/coupons/validate", validateCouponHandler(svc))
		api.POST("/coupons/redeem", redeemCouponHandler(svc))
	}

	return router
}

// requestIDMiddleware tags every request so log lines and client
// reports can be correlated.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// createCouponHandler handles POST /api/coupons
func createCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		coupon, err := svc.CreateCoupon(c.Request.Context(), &req)
		if err != nil {
			var verr *apperrors.ValidationError
			switch {
			case errors.As(err, &verr):
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			case errors.Is(err, apperrors.ErrCouponAlreadyExists):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				log.Error().Err(err).Msg("create coupon failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create coupon"})
			}
			return
		}

		c.JSON(http.StatusCreated, coupon)
	}
}

// validateCouponHandler handles POST /api/coupons/validate. Failed
// validations are expected outcomes: the single message is returned
// verbatim for the checkout UI to display.
func validateCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ValidateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result, err := svc.Validate(c.Request.Context(), &req)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCouponNotFound):
				c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": err.Error()})
			case errors.Is(err, apperrors.ErrCouponExpired),
				errors.Is(err, apperrors.ErrCouponInactive),
				errors.Is(err, apperrors.ErrCouponNotStarted),
				errors.Is(err, apperrors.ErrUsageLimitReached),
				errors.Is(err, apperrors.ErrUserLimitReached),
				errors.Is(err, apperrors.ErrBelowMinimum):
				c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
			default:
				log.Error().Err(err).Str("code", req.Code).Msg("validate coupon failed")
				c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "error": "failed to validate coupon"})
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// redeemCouponHandler handles POST /api/coupons/redeem. Redemption
// requires an authenticated caller; guests must sign in before the
// order is placed.
func redeemCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.RedeemCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := svc.Redeem(c.Request.Context(), req.Code, req.UserID); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrNotEligible):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				log.Error().Err(err).Str("code", req.Code).Msg("redeem coupon failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem coupon"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "coupon redeemed successfully"})
	}
}
