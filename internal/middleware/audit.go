package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SensitiveFields are masked before request metadata is logged
var SensitiveFields = []string{
	"client_secret",
	"access_token",
	"signature",
	"x-verify",
	"authorization",
	"saltKey",
}

// RequestAudit logs one structured line per request with latency and outcome.
// Payment and webhook paths get an action label so log queries can group by
// business operation instead of raw path.
func RequestAudit(logger *logrus.Logger) gin.HandlerFunc {
	log := logger.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"ip":      c.ClientIP(),
			"latency": time.Since(start).String(),
		})
		if action := requestAction(c.Request.Method, path); action != "" {
			entry = entry.WithField("action", action)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request completed")
		case c.Writer.Status() >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

// requestAction maps known routes to action labels
func requestAction(method, path string) string {
	segments := splitPath(path)

	switch {
	case method == "POST" && matchPath(segments, "api", "v1", "payments", "initiate"):
		return "payment.initiate"
	case method == "GET" && matchPath(segments, "api", "v1", "payments", "*", "status"):
		return "payment.status"
	case method == "POST" && matchPath(segments, "api", "v1", "payments", "*", "refund"):
		return "payment.refund"
	case method == "POST" && matchPath(segments, "webhooks", "phonepe"):
		return "webhook.phonepe"
	}
	return ""
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// matchPath compares path segments, "*" matches any single segment
func matchPath(segments []string, pattern ...string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && segments[i] != p {
			return false
		}
	}
	return true
}

// MaskSensitiveData redacts sensitive keys in a shallow map copy
func MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for k, v := range data {
		masked[k] = v
		lower := strings.ToLower(k)
		for _, field := range SensitiveFields {
			if strings.Contains(lower, strings.ToLower(field)) {
				masked[k] = "***REDACTED***"
				break
			}
		}
	}
	return masked
}
