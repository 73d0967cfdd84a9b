package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "rosenkoenig"

// RoleService marks tokens minted for server-to-server calls. Guest tokens
// carry no role.
const RoleService = "service"

// serviceTTL bounds a service token; callers mint one per request
const serviceTTL = 5 * time.Minute

// ErrInvalidToken reports a missing, malformed, expired or forged token
var ErrInvalidToken = errors.New("invalid identity token")

// Claims identify a player. The subject is the player id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// IsService reports whether the claims belong to a service credential
func (c *Claims) IsService() bool {
	return c.Role == RoleService
}

// Guest is a freshly issued guest identity
type Guest struct {
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs and verifies HS256 player tokens
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an issuer signing with key; tokens live for ttl
func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now}
}

// IssueGuest creates a new guest player id and a token for it
func (i *TokenIssuer) IssueGuest(name string) (*Guest, error) {
	playerID := "guest-" + uuid.NewString()
	expires := i.now().Add(i.ttl)

	signed, err := i.sign(playerID, name, "", expires)
	if err != nil {
		return nil, err
	}
	return &Guest{PlayerID: playerID, Name: name, Token: signed, ExpiresAt: expires}, nil
}

// IssueService mints a short-lived service token naming the calling
// component. Only service tokens may call internal endpoints.
func (i *TokenIssuer) IssueService(component string) (string, error) {
	if component == "" {
		return "", errors.New("service component is required")
	}
	return i.sign("service:"+component, component, RoleService, i.now().Add(serviceTTL))
}

func (i *TokenIssuer) sign(subject, name, role string, expires time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Name: name,
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns its claims
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}
