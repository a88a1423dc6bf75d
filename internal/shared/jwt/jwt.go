package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taxi-realtime/internal/shared/models"
	"taxi-realtime/internal/trip/domain"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "taxi-realtime"

var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier is the identity collaborator: it turns a bearer token into the
// user it was issued for.
type Verifier struct {
	key []byte
	ttl time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{key: []byte(secret), ttl: ttl}
}

func (v *Verifier) GenerateToken(user domain.User) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

// Authenticate accepts either a raw token or a "Bearer <token>" value.
func (v *Verifier) Authenticate(headerToken string) (domain.User, error) {
	tokenStr := strings.TrimSpace(headerToken)
	if parts := strings.Fields(tokenStr); len(parts) == 2 && parts[0] == "Bearer" {
		tokenStr = parts[1]
	}
	if tokenStr == "" {
		return domain.User{}, fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, ErrInvalidToken)
	}

	role := domain.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: token is missing subject or role", domain.ErrUnauthenticated)
	}

	return domain.User{ID: claims.Subject, Username: claims.Username, Role: role}, nil
}
