// AngelaMos | 2026
// jwt.go

package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/middleware"
)

const tokenTypeAccess = "access"

type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	config     config.JWTConfig
	now        func() time.Time
}

// NewJWTManager loads the ES256 signing key from cfg.PrivateKeyPath.
func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return newJWTManager(privateKey, cfg)
}

// NewJWTManagerFromKey builds a manager around an in-memory P-256 key.
func NewJWTManagerFromKey(
	key *ecdsa.PrivateKey,
	cfg config.JWTConfig,
) (*JWTManager, error) {
	privateKey, err := jwk.Import(key)
	if err != nil {
		return nil, fmt.Errorf("import private key: %w", err)
	}
	return newJWTManager(privateKey, cfg)
}

func newJWTManager(privateKey jwk.Key, cfg config.JWTConfig) (*JWTManager, error) {
	if err := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}

	var kid string
	if err := privateKey.Get(jwk.KeyIDKey, &kid); err != nil || kid == "" {
		if err := privateKey.Set(jwk.KeyIDKey, uuid.New().String()[:8]); err != nil {
			return nil, fmt.Errorf("set key id: %w", err)
		}
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	publicJWKS := jwk.NewSet()
	if err := publicJWKS.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		config:     cfg,
		now:        time.Now,
	}, nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if err := os.WriteFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is meant to be readable
	if err := os.WriteFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

// CreateAccessToken signs claims for an account. ID and ExpiresAt are
// assigned here and written back.
func (m *JWTManager) CreateAccessToken(
	claims *middleware.AccessTokenClaims,
) (string, error) {
	now := m.now()
	claims.ID = uuid.New().String()
	claims.ExpiresAt = now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(claims.ID).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(claims.ExpiresAt).
		NotBefore(now).
		Claim("email", claims.Email).
		Claim("role", claims.Role).
		Claim("token_version", claims.TokenVersion).
		Claim("type", tokenTypeAccess).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// ParseAccessToken checks signature, issuer, audience and lifetime. It does
// not consult revocation state; Service.VerifyAccessToken does.
func (m *JWTManager) ParseAccessToken(
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("parse token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("parse token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil || tokenType != tokenTypeAccess {
		return nil, fmt.Errorf("parse token: wrong type: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("parse token: missing subject: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{UserID: subject}

	if jti, ok := token.JwtID(); ok {
		claims.ID = jti
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	if err := token.Get("role", &claims.Role); err != nil {
		return nil, fmt.Errorf("parse token: missing role: %w", core.ErrTokenInvalid)
	}
	// email is informational; older tokens may lack it
	_ = token.Get("email", &claims.Email) //nolint:errcheck

	var version float64
	if err := token.Get("token_version", &version); err != nil {
		return nil, fmt.Errorf("parse token: missing token_version: %w", core.ErrTokenInvalid)
	}
	claims.TokenVersion = int(version)

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (m *JWTManager) KeyID() string {
	var kid string
	_ = m.privateKey.Get(jwk.KeyIDKey, &kid) //nolint:errcheck // set at construction
	return kid
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken issues an opaque refresh token. An empty familyID
// starts a new rotation family.
func (m *JWTManager) CreateRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, hash, err := core.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      hash,
		ExpiresAt: m.now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}

// AccessTTL is the configured access token lifetime.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.config.AccessTokenExpire
}
