// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var errBadPasswordHash = errors.New("malformed password hash")

// argonParams are the argon2id costs recorded in every stored hash.
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

// passwordHash is the decoded form of
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
type passwordHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h passwordHash) encode() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory, h.params.time, h.params.threads,
		b64.EncodeToString(h.salt),
		b64.EncodeToString(h.key),
	)
}

func derive(password string, salt []byte, p argonParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return passwordHash{}, errBadPasswordHash
	}
	if parts[1] != "argon2id" {
		return passwordHash{}, fmt.Errorf("unsupported algorithm %q", parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return passwordHash{}, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	var h passwordHash
	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return passwordHash{}, errBadPasswordHash
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return passwordHash{}, fmt.Errorf("%w: %s: %w", errBadPasswordHash, name, err)
		}
		switch name {
		case "m":
			h.params.memory = uint32(n)
		case "t":
			h.params.time = uint32(n)
		case "p":
			if n > 255 {
				return passwordHash{}, errBadPasswordHash
			}
			h.params.threads = uint8(n)
		default:
			return passwordHash{}, errBadPasswordHash
		}
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return passwordHash{}, fmt.Errorf("decode salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return passwordHash{}, fmt.Errorf("decode key: %w", err)
	}
	//nolint:gosec // argon2 keys are a few dozen bytes
	h.params.keyLen = uint32(len(h.key))

	if h.params.memory == 0 || h.params.time == 0 || h.params.threads == 0 || h.params.keyLen == 0 {
		return passwordHash{}, errBadPasswordHash
	}
	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return passwordHash{
		params: currentParams,
		salt:   salt,
		key:    derive(password, salt, currentParams),
	}.encode(), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := parsePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}

	other := derive(password, h.salt, h.params)
	return subtle.ConstantTimeCompare(h.key, other) == 1, nil
}

// VerifyPasswordWithRehash also returns a fresh hash when the stored one
// was made with older costs. An empty rehash means keep the stored value.
func VerifyPasswordWithRehash(password, encodedHash string) (bool, string, error) {
	valid, err := VerifyPassword(password, encodedHash)
	if err != nil || !valid {
		return false, "", err
	}

	h, err := parsePasswordHash(encodedHash)
	if err != nil || h.params == currentParams {
		return true, "", nil //nolint:nilerr // already verified above
	}

	rehash, err := HashPassword(password)
	if err != nil {
		return true, "", nil //nolint:nilerr // the stored hash still works
	}
	return true, rehash, nil
}

var dummyHash = sync.OnceValue(func() string {
	h, err := HashPassword("nfp-unknown-account")
	if err != nil {
		panic(fmt.Sprintf("security: dummy hash: %v", err))
	}
	return h
})

// VerifyPasswordTimingSafe spends the same argon2 work whether or not the
// account exists. A nil or empty encodedHash always fails.
func VerifyPasswordTimingSafe(password string, encodedHash *string) (bool, string, error) {
	if encodedHash == nil || *encodedHash == "" {
		_, _ = VerifyPassword(password, dummyHash()) //nolint:errcheck // timing only
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encodedHash)
}

// NewOpaqueToken returns a random token for delivery to the user together
// with the hash that should be persisted in its place.
func NewOpaqueToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = base64.URLEncoding.EncodeToString(raw)
	return token, HashToken(token), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
