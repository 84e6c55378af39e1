package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/masa162/imgbase/internal/metrics"
)

// Metrics counts every request by its route template rather than the raw
// path so ids do not explode label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
