package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/ksuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RequestIDHeader is the header carrying the per-request ID RequestID
// assigns, echoed back so a caller can correlate logs.
const RequestIDHeader = "X-Request-ID"

// RequestID stamps every request with a ksuid so log lines for a single
// request can be correlated, the same role the teacher's
// SecurityMiddleware.RequestID plays ahead of its auth/rate-limit chain.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// NewRateLimiter builds a gin middleware enforcing requestsPerMinute per
// client IP, in the same shape as the teacher's SecurityMiddleware.RateLimiter.
func NewRateLimiter(requestsPerMinute int, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := limiter.Rate{Period: time.Minute, Limit: int64(requestsPerMinute)}
	rateLimiter := limiter.New(memory.NewStore(), rate)

	return func(c *gin.Context) {
		ctx, err := rateLimiter.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Error("rate limiter failure", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// gzipResponseWriter wraps gin's ResponseWriter so Write calls go through
// a klauspost/compress gzip.Writer instead of straight to the socket.
type gzipResponseWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.writer.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.writer.Write([]byte(s))
}

// Gzip compresses l3 responses for clients that accept it. l3 payloads
// grow with book depth and are the only sizable response this API serves.
func Gzip() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gz, err := gzip.NewWriterLevel(c.Writer, gzip.DefaultCompression)
		if err != nil {
			c.Next()
			return
		}
		defer gz.Close()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipResponseWriter{ResponseWriter: c.Writer, writer: gz}
		c.Next()
	}
}
