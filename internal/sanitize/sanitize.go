// Package sanitize strips dangerous substrings from inbound user input.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	angleBrackets = regexp.MustCompile(`[<>]`)
	jsScheme      = regexp.MustCompile(`(?i)javascript:`)
	eventHandler  = regexp.MustCompile(`(?i)on\w+=`)
	nonUsername   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	nonDigit      = regexp.MustCompile(`[^0-9]`)
)

// String trims whitespace and removes HTML angle brackets, javascript:
// scheme tokens, and inline event-handler patterns.
func String(input string) string {
	out := strings.TrimSpace(input)
	out = angleBrackets.ReplaceAllString(out, "")
	out = jsScheme.ReplaceAllString(out, "")
	out = eventHandler.ReplaceAllString(out, "")
	return out
}

// Email sanitizes and lowercases an email address.
func Email(email string) string {
	return strings.ToLower(String(email))
}

// Username sanitizes and keeps only [A-Za-z0-9_-].
func Username(username string) string {
	return nonUsername.ReplaceAllString(String(username), "")
}

// Phone sanitizes and keeps only digits.
func Phone(phone string) string {
	return nonDigit.ReplaceAllString(String(phone), "")
}
