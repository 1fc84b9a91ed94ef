package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pathpal/pathpal"
)

// CSRFHeader carries the anti-forgery token in both directions: clients
// echo back the value they last received.
const CSRFHeader = "X-CSRF-Token"

// IssueCSRF mints a fresh token for logged-in sessions and exposes it on
// the response header, so any authenticated response refreshes the client's
// token.
func IssueCSRF(guard *pathpal.CSRFGuard, metrics *pathpal.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if ok && sess.Principal != nil {
				token, err := guard.Issue(r.Context(), sess.Principal.UserID)
				if err == nil {
					w.Header().Set(CSRFHeader, token)
					metrics.Inc(pathpal.MetricCSRFIssued)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateCSRF enforces the anti-forgery token on mutating routes. Sessions
// without a principal pass through; anonymous flows are protected by their
// rate tiers instead.
func ValidateCSRF(guard *pathpal.CSRFGuard, metrics *pathpal.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := SessionFromContext(r.Context())
			if !ok || sess.Principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			err := guard.Check(r.Context(), sess.Principal.UserID, requestToken(r))
			if err != nil {
				metrics.Inc(pathpal.MetricCSRFRejected)
				switch {
				case errors.Is(err, pathpal.ErrCSRFMissing):
					writeJSONError(w, http.StatusForbidden, "CSRF token missing. Please refresh the page and try again.")
				case errors.Is(err, pathpal.ErrCSRFExpired):
					writeJSONError(w, http.StatusForbidden, "CSRF token expired. Please refresh the page and try again.")
				case errors.Is(err, pathpal.ErrCSRFInvalid):
					writeJSONError(w, http.StatusForbidden, "Invalid CSRF token. Please refresh the page and try again.")
				default:
					writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken reads the anti-forgery token from the header, falling back
// to a _csrf field in a JSON body. The body is restored for the handler.
func requestToken(r *http.Request) string {
	if token := r.Header.Get(CSRFHeader); token != "" {
		return token
	}
	if !hasJSONBody(r) {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var fields struct {
		CSRF string `json:"_csrf"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	return fields.CSRF
}
