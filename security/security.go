// Package security holds the low-level crypto primitives the auth flows
// share: master-key sealing of stored secrets, OTP generation and checking,
// password hashing, and opaque token generation.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/argon2"
)

// Sealer encrypts and decrypts small strings with AES-256-GCM under a fixed
// key. Used for per-account messaging keys stored at rest.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.New("malformed sealed value")
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("malformed sealed value")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("failed to open sealed value")
	}
	return string(plaintext), nil
}

// GenerateOTP returns a 6-digit numeric code and its hash. Only the hash is
// cached; the plain code goes out by mail.
func GenerateOTP() (otp string, hash string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	otp = fmt.Sprintf("%06d", n.Int64())
	return otp, HashOTP(otp), nil
}

func HashOTP(otp string) string {
	sum := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(sum[:])
}

// CheckOTP compares a submitted code against a stored hash in constant time.
func CheckOTP(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashOTP(submitted)), []byte(storedHash)) == 1
}

// Password hashing: argon2id with a per-account random salt, encoded as
// salt$hash hex.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

func CheckPassword(password, encoded string) bool {
	saltHex, keyHex, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// GenerateUid returns a fresh account uid.
func GenerateUid() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// GenerateIdentity returns a staging id for a signup session.
func GenerateIdentity() (string, error) {
	return GenerateUid()
}

// GenerateToken returns an opaque random token (browser session tokens,
// messaging keys).
func GenerateToken(nBytes int) (string, error) {
	raw := make([]byte, nBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateUsername derives a unique-enough handle from the account names,
// suffixed with random digits. Names can arrive from federated providers
// with diacritics, hyphens or apostrophes, so the base is stripped to
// ascii letters and digits to keep the handle inside the username charset.
func GenerateUsername(firstName, lastName string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}

	var base strings.Builder
	for _, r := range strings.ToLower(firstName + lastName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			base.WriteRune(r)
		}
	}

	handle := base.String()
	if handle == "" {
		handle = "user"
	}
	// Usernames cap at 30 runes; leave room for the digit suffix
	if len(handle) > 22 {
		handle = handle[:22]
	}
	return fmt.Sprintf("%s%08d", handle, n.Int64()), nil
}
