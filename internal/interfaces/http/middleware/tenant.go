package middleware

import (
	"net/http"
	"strings"

	"github.com/academy/feebilling/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantHeaderKey is the header every billing request scopes itself with.
const TenantHeaderKey = "X-Tenant-ID"

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// SkipPaths don't require a tenant (health check, swagger UI)
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		SkipPaths: []string{"/health", "/swagger"},
	}
}

// Tenant requires a UUID X-Tenant-ID header and stores it on the gin
// context and on the request logger.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tenantID := c.GetHeader(TenantHeaderKey)
		if tenantID == "" {
			respondUnauthorized(c, "Tenant identification required")
			return
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Debug("Rejected malformed tenant id", zap.String("tenant_id", tenantID))
			}
			respondUnauthorized(c, "Invalid tenant ID format")
			return
		}

		c.Set(logger.GinTenantIDKey, tenantID)
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":       "UNAUTHORIZED",
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}

// GetTenantID retrieves the tenant ID set by Tenant.
func GetTenantID(c *gin.Context) string {
	return c.GetString(logger.GinTenantIDKey)
}

// GetTenantUUID retrieves the tenant ID as a UUID.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(GetTenantID(c))
}
