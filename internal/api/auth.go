package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// Claims carries the principal. The user id travels in the standard "sub" claim.
type Claims struct {
	Role     models.Role `json:"role"`
	SchoolID *int64      `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() (scope.Principal, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return scope.Principal{}, fmt.Errorf("bad subject %q", c.Subject)
	}
	if !c.Role.Valid() {
		return scope.Principal{}, fmt.Errorf("unknown role %q", c.Role)
	}
	return scope.Principal{UserID: id, Role: c.Role, SchoolID: c.SchoolID}, nil
}

// IssueToken signs an HS256 token for p.
func IssueToken(secret []byte, p scope.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     p.Role,
		SchoolID: p.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

var errUnauthorized = errors.New("unauthorized")

type scopeKey struct{}

func withScope(ctx context.Context, sc scope.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ScopeFrom returns the empty scope when the request was not authenticated.
func ScopeFrom(ctx context.Context) scope.Scope {
	sc, _ := ctx.Value(scopeKey{}).(scope.Scope)
	return sc
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.fail(w, r, fmt.Errorf("missing token: %w", errUnauthorized))
			return
		}
		claims, err := ParseToken(s.secret, token)
		if err != nil {
			s.fail(w, r, fmt.Errorf("invalid token: %w", errUnauthorized))
			return
		}
		p, err := claims.Principal()
		if err != nil {
			s.fail(w, r, fmt.Errorf("%v: %w", err, errUnauthorized))
			return
		}
		ctx := ctxutil.WithUserID(r.Context(), p.UserID)
		ctx = withScope(ctx, scope.Resolve(p))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
