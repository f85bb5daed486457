package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

type response struct {
	StatusCode int
	Body       any
}

type requestHandler func(r *http.Request) (*response, error)

type errorRsp struct {
	Reason     string `json:"reason"`
	StatusCode int    `json:"status_code"`
}

// wrap turns a handler result into a JSON response. Directory errors carry
// their own status code.
func wrap(handler requestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			status := apperrors.StatusCode(err)
			reason := err.Error()
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				reason = "internal server error"
			}
			if status >= http.StatusInternalServerError {
				event := log.Ctx(r.Context()).Error().Err(err)
				if appErr != nil {
					event = event.Str("cause", appErr.ErrorAll())
				}
				event.Msg("Request failed")
			}
			sendJSON(w, r, status, errorRsp{Reason: reason, StatusCode: status})
			return
		}
		if rsp.Body == nil {
			w.WriteHeader(rsp.StatusCode)
			return
		}
		sendJSON(w, r, rsp.StatusCode, rsp.Body)
	}
}

func sendJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Unable to write response")
	}
}

// requestLogger attaches a logger carrying a request id to the request
// context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := log.With().Str("request_id", requestID).Logger().WithContext(r.Context())
		w.Header().Set("X-Request-ID", requestID)
		log.Ctx(ctx).Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("Request")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func panicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Ctx(r.Context()).Error().Interface("panic", rec).Msg("Handler panicked")
				sendJSON(w, r, http.StatusInternalServerError,
					errorRsp{Reason: "internal server error", StatusCode: http.StatusInternalServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
