// Package pathpal is the account, device, and notification engine behind
// the PathPal smart-cane service.
//
// The package is the public surface: [Engine], [Builder], [Config], the
// store interfaces, and the error taxonomy. Supporting concerns live in
// sub-packages (session state, CSRF tokens, password hashing, outbound
// mail, per-IP rate limiting) and the api package maps HTTP onto Engine
// calls.
//
// Engine methods are safe for concurrent use after [Builder.Build]. Every
// security-relevant flow (registration, password reset, device unlink) is
// gated by an emailed one-time passcode whose plaintext never outlives the
// send; only its SHA-256 is retained.
package pathpal
