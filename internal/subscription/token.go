package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for a malformed, unsigned, or
// expired subscription token.
var ErrInvalidToken = errors.New("subscription: invalid token")

// Claims binds a Guardian-issued subscriptionId token to the bubble and
// file it was authorized against, so that Unsubscribe cannot be driven
// with a bare backend id that was guessed (spec §9, leaves
// subscriptionId's wire format unspecified). The claims carry no
// connection identity: a token works from any connection that holds it.
type Claims struct {
	jwt.RegisteredClaims
	Contract     string `json:"contract"`
	FullFilename string `json:"fullFilename"`
}

// TokenIssuer mints and verifies HS256-signed subscription correlation
// tokens, the teacher's batch-token idiom (golang-jwt/jwt/v5,
// RegisteredClaims, opaque server-trust-boundary token) repurposed for
// the Guardian's subscriptionId rather than a payment receipt.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer returns a TokenIssuer signing with secret. A zero ttl
// means tokens never expire on their own (the ACC permission re-check in
// Protect is the actual revocation mechanism; the token's lifetime is a
// correlation concern, not an authorization one).
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue mints a token binding backendID (the DataServer-assigned
// subscription id) to contract/fullFilename.
func (t *TokenIssuer) Issue(backendID, contract, fullFilename string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       backendID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Contract:     contract,
		FullFilename: fullFilename,
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(t.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("subscription: signing token: %w", err)
	}
	return signed, nil
}

// Verify recovers the claims embedded in a token minted by Issue.
func (t *TokenIssuer) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// NewBackendID generates a fresh, random backend-facing subscription id:
// a UUID string, the same form dataserver.Memory assigns in Subscribe.
func NewBackendID() string { return uuid.NewString() }
