package handlers

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/logger"
)

// RequestLog represents a structured log entry for an HTTP request
type RequestLog struct {
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// shouldSkipLogging determines if request logging should be skipped for a given path
func shouldSkipLogging(path string) bool {
	// Health and scrape endpoints are polled constantly; logging them is noise.
	switch path {
	case "/health", "/metrics":
		return true
	}
	return false
}

// getRequestBody safely reads and returns the request body
func getRequestBody(c *gin.Context) ([]byte, error) {
	var bodyBytes []byte
	if c.Request.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		// Restore the request body for subsequent middleware/handlers
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return bodyBytes, nil
}

// LogRequest logs each request with its body at debug level. Intended for
// non-release stages only: webhook bodies carry customer details.
func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldSkipLogging(c.Request.URL.Path) {
			c.Next()
			return
		}

		bodyBytes, err := getRequestBody(c)
		if err != nil {
			logger.Error("failed to read request body for logging", zap.Error(err))
			c.Next()
			return
		}

		requestLog := RequestLog{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Query:     c.Request.URL.RawQuery,
			UserAgent: c.Request.UserAgent(),
			ClientIP:  c.ClientIP(),
			Body:      string(bodyBytes),
			Timestamp: time.Now().UTC(),
		}

		logger.Debug("request received",
			zap.String("method", requestLog.Method),
			zap.String("path", requestLog.Path),
			zap.String("query", requestLog.Query),
			zap.String("user_agent", requestLog.UserAgent),
			zap.String("client_ip", requestLog.ClientIP),
			zap.String("body", requestLog.Body),
		)

		c.Next()
	}
}
