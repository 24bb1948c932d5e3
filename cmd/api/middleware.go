package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendlog/pkg/auth"
	"github.com/mcclellann/lendlog/pkg/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	userID uuid.UUID
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs one line per request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		reqLog := logger.Log.With("request_id", uuid.NewString())

		next.ServeHTTP(rec, r.WithContext(logger.NewContext(r.Context(), reqLog)))

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		}
		if rec.userID != uuid.Nil {
			args = append(args, "user_id", rec.userID)
		}
		if rec.status >= http.StatusInternalServerError {
			reqLog.Error("request", args...)
		} else {
			reqLog.Info("request", args...)
		}
	})
}

// recoverer turns a panicking handler into a 500 and reports it.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				logger.FromContext(r.Context()).Error("panic serving request", "path", r.URL.Path, "panic", fmt.Sprint(rv))
				hubFor(r).RecoverWithContext(r.Context(), rv)
				writeMessage(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate requires a valid bearer token and puts its user on the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeMessage(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if rec, ok := w.(*statusRecorder); ok {
			rec.userID = claims.UserID
		}
		ctx := auth.WithUserID(r.Context(), claims.UserID)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
