package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/sources/psql/models"
	httputils "nebula/nebula/utils/http"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownUser       = errors.New("unknown user")
)

// Identity is the authenticated caller attached to a request or connection.
type Identity struct {
	UserID   int
	Username string
}

type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// Authenticator resolves handshake metadata to an Identity. It does not care
// whether the headers came from a plain request or a websocket upgrade.
type Authenticator struct {
	secret     []byte
	cookieName string
	users      UserLookup
}

func NewAuthenticator(cfg config.Config, users UserLookup) *Authenticator {
	name := cfg.TokenCookie
	if name == "" {
		name = "token"
	}
	return &Authenticator{secret: []byte(cfg.JWTSecret), cookieName: name, users: users}
}

func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// credential reads the cookie first, then a bearer Authorization header.
func (a *Authenticator) credential(h http.Header) string {
	req := http.Request{Header: h}
	if c, err := req.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(h.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) (Identity, error) {
	tokenStr := a.credential(h)
	if tokenStr == "" {
		return Identity{}, ErrMissingCredential
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return Identity{}, ErrInvalidCredential
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return Identity{}, ErrUnknownUser
	}
	return Identity{UserID: user.ID, Username: user.Username}, nil
}

// GenerateToken signs an HS256 credential for userID.
func GenerateToken(secret string, userID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// AuthMiddleware rejects the request with 401 unless it carries a valid credential.
func AuthMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r.Context(), r.Header)
			if err != nil {
				httputils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
