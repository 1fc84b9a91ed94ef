package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"
)

const csrfTokenBytes = 32

// NewCSRFToken returns a 256-bit random token encoded as lowercase hex.
func NewCSRFToken() (string, error) {
	var raw [csrfTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// NewOTP returns a 4-digit one-time passcode in [1000, 9999] drawn from
// crypto/rand.
func NewOTP() (string, error) {
	// rand.Int is uniform over [0, 9000); shifting by 1000 keeps the
	// leading digit nonzero.
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}

// HashSecret is the one-way hash applied to OTPs before storage.
func HashSecret(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}
