// Package middleware exposes the HTTP request-processing chain: client IP
// resolution, input sanitization, per-IP rate limiting, session loading,
// and CSRF enforcement.
//
// The chain order matters and mirrors the route wiring in the api package:
// sanitize first, then rate limit, then session, then CSRF. Each middleware
// translates HTTP semantics into engine-level calls and never makes policy
// decisions of its own.
package middleware
