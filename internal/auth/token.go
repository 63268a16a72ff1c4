// Package auth verifies and issues the HMAC-signed tokens participants use
// to join a space, following the teacher's middleware/auth.go pattern of a
// single claims struct validated at the connection boundary.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSpaceMismatch is returned when a token's claimed space does not match
// the space the participant is attempting to join.
var ErrSpaceMismatch = errors.New("auth: token space does not match requested space")

// Claims is the JWT claim set issued for a participant.
type Claims struct {
	ParticipantID string   `json:"participant_id"`
	Space         string   `json:"space"`
	Capabilities  []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// Verifier validates inbound tokens, or — in insecure mode — accepts a
// bare participant id as a literal identity for local development, per
// the spec's explicit "insecure mode" allowance.
type Verifier struct {
	secret   []byte
	insecure bool
}

// NewVerifier constructs a Verifier. When insecure is true, secret may be
// empty and tokens are treated as literal participant ids with the
// default capability set.
func NewVerifier(secret string, insecure bool) *Verifier {
	return &Verifier{secret: []byte(secret), insecure: insecure}
}

// Identity is the resolved result of verifying a token.
type Identity struct {
	ParticipantID string
	Capabilities  []string
}

// VerifyToken checks the given bearer token against the requested space.
func (v *Verifier) VerifyToken(token, space string, defaultCapabilities []string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errors.New("auth: empty token")
	}
	if v.insecure {
		return Identity{ParticipantID: token, Capabilities: defaultCapabilities}, nil
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("auth: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("auth: invalid token")
	}
	if claims.ParticipantID == "" {
		return Identity{}, errors.New("auth: token missing participant_id")
	}
	if claims.Space != "" && claims.Space != space {
		return Identity{}, ErrSpaceMismatch
	}
	caps := claims.Capabilities
	if len(caps) == 0 {
		caps = defaultCapabilities
	}
	return Identity{ParticipantID: claims.ParticipantID, Capabilities: caps}, nil
}

// Issuer mints tokens for the dev-mode /auth/token endpoint.
type Issuer struct {
	secret []byte
	expiry time.Duration
}

// NewIssuer constructs an Issuer.
func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiry: expiry}
}

// Issue mints a signed token for participantID in space with capabilities.
func (i *Issuer) Issue(participantID, space string, capabilities []string) (string, error) {
	now := time.Now()
	claims := Claims{
		ParticipantID: participantID,
		Space:         space,
		Capabilities:  capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}
