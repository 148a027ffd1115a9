package middleware

import (
	"context"
	"strings"

	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling tags the handler's CPU samples with route, method, controller
// and tenant so Pyroscope can slice profiles per endpoint. Requests under
// skipPrefixes run unlabelled.
func Profiling(skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		route := c.FullPath()
		labels := telemetry.HTTPLabels(route, c.Request.Method)
		if controller := controllerFromRoute(route); controller != "" {
			labels[telemetry.ProfilingLabelController] = controller
		}
		if tenantID := GetTenantID(c); tenantID != "" {
			labels[telemetry.ProfilingLabelTenantID] = tenantID
		}

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerFromRoute returns the first static segment after the API prefix.
// "/api/v1/billing/students/:student_id" yields "billing".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
