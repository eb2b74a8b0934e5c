package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/receiving/internal/platform/httpx"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// ActorHeader carries the acting user id set by the upstream gateway.
const ActorHeader = "X-Actor-ID"

// ErrInvalidActor is returned when a token does not identify an actor.
var ErrInvalidActor = errors.New("app: token does not identify an actor")

// ActorAuth resolves the acting user of receiving requests. Without a signing secret the
// gateway header is trusted; with one, an HS256 bearer token whose subject is the actor id
// is required.
type ActorAuth struct {
	secret []byte
	issuer string
}

// NewActorAuth builds the resolver from the configured secret and issuer.
func NewActorAuth(secret, issuer string) *ActorAuth {
	return &ActorAuth{secret: []byte(secret), issuer: issuer}
}

// Enforced reports whether bearer tokens are required.
func (a *ActorAuth) Enforced() bool {
	return a != nil && len(a.secret) > 0
}

// Middleware stores the resolved actor in the request context.
func (a *ActorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enforced() {
			if id, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64); err == nil && id > 0 {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		id, err := a.Parse(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), id)))
	})
}

// Parse validates a signed token and returns the actor id carried in its subject.
func (a *ActorAuth) Parse(raw string) (int64, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return 0, fmt.Errorf("app: parse token: %w", err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidActor
	}
	return id, nil
}

// IssueToken signs a token for actorID valid for ttl from now.
func (a *ActorAuth) IssueToken(actorID int64, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   strconv.FormatInt(actorID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
