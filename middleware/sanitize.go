package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pathpal/pathpal/internal/sanitize"
)

// maxBodyBytes caps JSON request bodies before they are buffered for
// sanitization.
const maxBodyBytes = 1 << 20

// Sanitize rewrites every string in the request's query parameters and
// JSON body through the input sanitizer before the handler sees them.
// Non-JSON bodies pass through untouched.
func Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		changed := false
		for key, values := range query {
			for i, value := range values {
				if clean := sanitize.String(value); clean != value {
					values[i] = clean
					changed = true
				}
			}
			query[key] = values
		}
		if changed {
			r.URL.RawQuery = query.Encode()
		}

		if hasJSONBody(r) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			r.Body.Close()
			if err != nil || len(body) > maxBodyBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			if clean, ok := sanitizeJSON(body); ok {
				body = clean
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set("Content-Length", strconv.Itoa(len(body)))
		}

		next.ServeHTTP(w, r)
	})
}

func hasJSONBody(r *http.Request) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return false
	}
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/json")
}

// sanitizeJSON rewrites string values in any JSON document. Malformed
// documents are reported as not ok and left for the handler's decoder to
// reject.
func sanitizeJSON(body []byte) ([]byte, bool) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}
	clean, err := json.Marshal(sanitizeValue(doc))
	if err != nil {
		return nil, false
	}
	return clean, true
}

func sanitizeValue(v any) any {
	switch value := v.(type) {
	case string:
		return sanitize.String(value)
	case map[string]any:
		for k, elem := range value {
			value[k] = sanitizeValue(elem)
		}
		return value
	case []any:
		for i, elem := range value {
			value[i] = sanitizeValue(elem)
		}
		return value
	default:
		return v
	}
}
