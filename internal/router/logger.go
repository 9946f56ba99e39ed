package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookhaven.ca/bookstore/api/internal/logging"
)

const (
	reqBodyLimit  = 8 * 1024
	respBodyLimit = 8 * 1024
	requestIDKey  = "X-Request-Id"
)

var redactedKeys = map[string]bool{
	"password":      true,
	"authorization": true,
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"secret":        true,
}

type bodyLogWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if remain := respBodyLimit - w.buf.Len(); remain > 0 {
		if len(b) > remain {
			w.buf.Write(b[:remain])
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var m any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	var scrub func(any) any
	scrub = func(x any) any {
		switch v := x.(type) {
		case map[string]any:
			for k, val := range v {
				if redactedKeys[strings.ToLower(k)] {
					v[k] = "***redacted***"
					continue
				}
				v[k] = scrub(val)
			}
			return v
		case []any:
			for i := range v {
				v[i] = scrub(v[i])
			}
			return v
		default:
			return v
		}
	}
	b, err := json.Marshal(scrub(m))
	if err != nil {
		return raw
	}
	return b
}

// readBody reads the whole body so handlers still get it intact, and
// returns at most n bytes of it for logging.
func readBody(rc io.ReadCloser, n int) (full, logged []byte, err error) {
	defer rc.Close()
	full, err = io.ReadAll(rc)
	if err != nil {
		return nil, nil, err
	}
	if len(full) > n {
		return full, full[:n], nil
	}
	return full, full, nil
}

// RequestLogger logs one line per request with redacted JSON bodies and
// injects a request-scoped slog.Logger.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDKey)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(requestIDKey, reqID)
		}
		c.Header(requestIDKey, reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBody string
		if strings.Contains(c.GetHeader("Content-Type"), "application/json") && c.Request.Body != nil {
			full, logged, err := readBody(c.Request.Body, reqBodyLimit)
			if err == nil {
				reqBody = string(redactJSON(logged))
				if len(logged) < len(full) {
					reqBody += "...truncated..."
				}
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(full))
		}

		blw := &bodyLogWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") {
			resp := string(redactJSON(blw.buf.Bytes()))
			if blw.buf.Len() >= respBodyLimit {
				resp += "...truncated..."
			}
			attrs = append(attrs, "resp_body", resp)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		// logging.From picks up the user_id added by RequireAuth
		rl := logging.From(c)
		switch {
		case status >= http.StatusInternalServerError:
			rl.Error("http_request", attrs...)
		case status >= http.StatusBadRequest:
			rl.Warn("http_request", attrs...)
		default:
			rl.Info("http_request", attrs...)
		}
	}
}
