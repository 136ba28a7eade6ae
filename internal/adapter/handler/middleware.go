package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/gift-market/internal/logger"
)

type contextKey string

const (
	callerKey contextKey = "caller_id"

	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
)

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(headerRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(headerRequestID, requestID)

			ctx := log.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging writes one line per request.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			ctx := log.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				log.Warn(ctx, "request failed")
				return
			}
			log.Debug(ctx, "request served")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery turns a panic into a 500 response.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "panic recovered", fmt.Errorf("%v", rec))
					writeJSON(w, http.StatusInternalServerError, Response{
						Success: false,
						Error:   newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"),
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody caps request bodies at limit bytes. A non-positive limit
// disables the cap.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly admits callers whose id is one of adminIDs. The id is read from
// X-User-ID, then the user_id query parameter, then the user_id field of a
// multipart form. Identity is trusted as supplied.
func AdminOnly(adminIDs []int64) func(http.Handler) http.Handler {
	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(headerUserID))
			if raw == "" {
				raw = r.URL.Query().Get("user_id")
			}
			if raw == "" && isMultipart(r) {
				if err := r.ParseMultipartForm(multipartMemory); err != nil {
					writeError(w, newAPIError(http.StatusBadRequest, "INVALID_ARGUMENT", "must be a multipart form within the upload limit"))
					return
				}
				raw = strings.TrimSpace(r.PostFormValue("user_id"))
			}
			reject := func(apiErr *APIError) {
				if r.MultipartForm != nil {
					_ = r.MultipartForm.RemoveAll()
				}
				writeError(w, apiErr)
			}
			if raw == "" {
				reject(newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "caller id required"))
				return
			}

			callerID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				reject(newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "caller id must be numeric"))
				return
			}
			if _, ok := allowed[callerID]; !ok {
				reject(newAPIError(http.StatusForbidden, "FORBIDDEN", "access denied"))
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, callerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
