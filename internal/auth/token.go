package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Claims is the JWT payload carrying the principal.
type Claims struct {
	UserID       int64  `json:"uid"`
	OrgID        *int64 `json:"oid,omitempty"`
	Role         string `json:"role,omitempty"`
	IsSuperAdmin bool   `json:"sa,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for the principal.
func (i *TokenIssuer) Issue(p shared.Principal) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		UserID:       p.UserID,
		OrgID:        p.OrganizationID,
		Role:         p.DeclaredRole,
		IsSuperAdmin: p.IsSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// TokenVerifier turns bearer credentials into principals.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier constructs a TokenVerifier.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify validates the token and returns the principal it carries. Every
// failure is reported as shared.ErrUnauthenticated.
func (v *TokenVerifier) Verify(token string) (shared.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return shared.Principal{}, shared.Deny(shared.DenialUnauthenticated, errors.New("auth: missing bearer token"))
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return shared.Principal{}, shared.Deny(shared.DenialUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return shared.Principal{}, shared.Deny(shared.DenialUnauthenticated, errors.New("auth: invalid claims"))
	}
	return shared.Principal{
		UserID:         claims.UserID,
		OrganizationID: claims.OrgID,
		DeclaredRole:   shared.Fold(claims.Role),
		IsSuperAdmin:   claims.IsSuperAdmin,
	}, nil
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
