package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/service"
)

// Metrics records one observation per request, labelled by route template.
// Routes in skip are served without being observed; event streams stay open
// for minutes and would swamp the latency histogram.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.FullPath()]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// unmatched paths would otherwise mint one series per URL
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
