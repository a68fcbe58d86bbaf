package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge               int
	Private              bool
	MustRevalidate       bool
	StaleWhileRevalidate int
	Vary                 []string
}

// PublicListingCache suits the anonymous doctor directory.
func PublicListingCache() CacheConfig {
	return CacheConfig{
		MaxAge:               60,
		StaleWhileRevalidate: 30,
		Vary:                 []string{"Accept"},
	}
}

// NoStore marks responses as uncacheable. Slot grids and appointments change
// with every reservation.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// Cache adds cache control headers to GET responses
func Cache(config CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		directives := make([]string, 0, 4)
		if config.Private {
			directives = append(directives, "private")
		} else {
			directives = append(directives, "public")
		}
		if config.MaxAge > 0 {
			directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
		}
		if config.MustRevalidate {
			directives = append(directives, "must-revalidate")
		}
		if config.StaleWhileRevalidate > 0 {
			directives = append(directives, "stale-while-revalidate="+strconv.Itoa(config.StaleWhileRevalidate))
		}

		c.Header("Cache-Control", strings.Join(directives, ", "))
		if len(config.Vary) > 0 {
			c.Header("Vary", strings.Join(config.Vary, ", "))
		}

		c.Next()
	}
}
