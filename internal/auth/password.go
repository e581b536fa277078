package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/contacts-api/internal/config"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
	argon2Prefix  = "$argon2id$"
)

var (
	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned in bcrypt mode for passwords over 72 bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	// Hash returns a self-describing hash with its salt embedded.
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. Malformed hashes never match.
	Verify(password, hash string) bool
	// NeedsUpgrade reports whether hash was produced with other algorithm or parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2Params are the argon2id cost settings.
type Argon2Params struct {
	Memory     uint32
	Iterations uint32
	Threads    uint8
}

// Hasher hashes with the configured algorithm and verifies both argon2id and bcrypt hashes.
type Hasher struct {
	algorithm  string
	argon      Argon2Params
	bcryptCost int
}

// NewPasswordHasher builds a hasher from auth configuration.
func NewPasswordHasher(cfg config.AuthConfig) *Hasher {
	params := Argon2Params{Memory: 64 * 1024, Iterations: 1, Threads: 4}
	if cfg.Argon2MemoryKB > 0 {
		params.Memory = uint32(cfg.Argon2MemoryKB)
	}
	if cfg.Argon2Iterations > 0 {
		params.Iterations = uint32(cfg.Argon2Iterations)
	}
	if cfg.Argon2Threads > 0 && cfg.Argon2Threads <= 255 {
		params.Threads = uint8(cfg.Argon2Threads)
	}

	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	algorithm := cfg.PasswordAlgorithm
	if algorithm != "bcrypt" {
		algorithm = "argon2id"
	}
	return &Hasher{algorithm: algorithm, argon: params, bcryptCost: cost}
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its bcrypt hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// Hash produces a hash of password using the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if h.algorithm == "bcrypt" {
		return HashPassword(password, h.bcryptCost)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.argon.Iterations, h.argon.Memory, h.argon.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		h.argon.Memory,
		h.argon.Iterations,
		h.argon.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an argon2id or bcrypt hash.
func (h *Hasher) Verify(password, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return verifyArgon2id(password, hash)
	case isBcryptHash(hash):
		return ComparePassword(hash, password) == nil
	default:
		return false
	}
}

// NeedsUpgrade returns true when hash should be re-computed with current settings.
func (h *Hasher) NeedsUpgrade(hash string) bool {
	if h.algorithm == "bcrypt" {
		if !isBcryptHash(hash) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(hash))
		return err != nil || cost != h.bcryptCost
	}

	params, _, _, err := decodeArgon2id(hash)
	if err != nil {
		return true
	}
	return params != h.argon
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyArgon2id(password, encoded string) bool {
	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func decodeArgon2id(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, errors.New("invalid argon2id hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, err
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return params, nil, nil, err
	}
	if threads == 0 || threads > 255 || iterations == 0 || iterations > 64 || memory == 0 || memory > 1<<20 {
		return params, nil, nil, errors.New("invalid argon2id parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, err
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, err
	}
	if len(key) == 0 || len(key) > 1024 {
		return params, nil, nil, errors.New("invalid argon2id key length")
	}

	params = Argon2Params{Memory: memory, Iterations: iterations, Threads: uint8(threads)}
	return params, salt, key, nil
}
