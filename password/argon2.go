// Package password hashes and verifies account passwords with argon2id.
// Hashes are stored in PHC string format, so parameters can be tightened
// later without invalidating existing rows.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config holds argon2id parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig is a sensible interactive-login cost.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 is a configured hasher.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("argon2 memory below minimum")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("argon2 time cost below minimum")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("argon2 parallelism below minimum")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("argon2 salt length below minimum")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("argon2 key length below minimum")
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a PHC-encoded hash from password with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches the PHC-encoded hash, using the
// parameters embedded in the hash itself.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(candidate, parsed.hash) == 1, nil
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid hash format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported hash algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errors.New("invalid hash version field")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return nil, errors.New("invalid hash parameters")
	}
	memory, err := parseParam(params[0], "m")
	if err != nil {
		return nil, err
	}
	timeCost, err := parseParam(params[1], "t")
	if err != nil {
		return nil, err
	}
	parallelism, err := parseParam(params[2], "p")
	if err != nil {
		return nil, err
	}
	if parallelism > 255 {
		return nil, errors.New("invalid hash parallelism")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid hash salt encoding")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash digest encoding")
	}

	return &parsedPHC{
		memory:      uint32(memory),
		time:        uint32(timeCost),
		parallelism: uint8(parallelism),
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

func parseParam(field, name string) (uint64, error) {
	prefix := name + "="
	if !strings.HasPrefix(field, prefix) {
		return 0, fmt.Errorf("invalid hash parameter %q", field)
	}
	value, err := strconv.ParseUint(field[len(prefix):], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hash parameter %q", field)
	}
	return value, nil
}
