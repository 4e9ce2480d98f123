package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/users"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseKeysURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// Context keys set by AuthMiddleware.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyName   = "name"
	KeyPhone  = "phone"
	KeyRole   = "role"
)

// UserDirectory resolves the stored role of an authenticated user.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*users.User, error)
}

// Identity is the caller as established from a verified token.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Phone  string
	Role   string
}

type Authenticator struct {
	idTokens *oidc.IDTokenVerifier
	jwtKey   []byte
	users    UserDirectory
}

type AuthOption func(*Authenticator)

// WithFirebase verifies identity-provider ID tokens for projectID.
func WithFirebase(ctx context.Context, projectID string) AuthOption {
	return func(a *Authenticator) {
		keys := oidc.NewRemoteKeySet(ctx, firebaseKeysURL)
		a.idTokens = oidc.NewVerifier(firebaseIssuerPrefix+projectID, keys, &oidc.Config{ClientID: projectID})
	}
}

// WithIDTokenVerifier installs a prepared verifier.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) AuthOption {
	return func(a *Authenticator) { a.idTokens = v }
}

// WithJWTSecret accepts HS256 tokens signed with secret.
func WithJWTSecret(secret string) AuthOption {
	return func(a *Authenticator) { a.jwtKey = []byte(secret) }
}

func NewAuthenticator(dir UserDirectory, opts ...AuthOption) *Authenticator {
	a := &Authenticator{users: dir}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type idClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone_number"`
	Role  string `json:"role"`
}

// Verify checks an ID token first, then an HS256 token.
func (a *Authenticator) Verify(ctx context.Context, raw string) (Identity, error) {
	var verr error
	if a.idTokens != nil {
		tok, err := a.idTokens.Verify(ctx, raw)
		if err == nil {
			var cl idClaims
			if err := tok.Claims(&cl); err != nil {
				return Identity{}, fmt.Errorf("decode id token claims: %w", err)
			}
			return Identity{UserID: tok.Subject, Email: cl.Email, Name: cl.Name, Phone: cl.Phone}, nil
		}
		verr = err
	}
	if len(a.jwtKey) > 0 {
		return a.verifyHS256(raw)
	}
	if verr == nil {
		verr = errors.New("no token verifier configured")
	}
	return Identity{}, verr
}

func (a *Authenticator) verifyHS256(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}

	id := Identity{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.UserID = sub
	} else if uid, ok := claims["user_id"].(string); ok {
		id.UserID = uid
	}
	if id.UserID == "" {
		return Identity{}, errors.New("token has no subject")
	}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.Role, _ = claims["role"].(string)
	return id, nil
}

// AuthMiddleware requires a bearer token and stores the caller's identity
// on the context. The stored user role wins over any token claim.
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header missing"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Bearer token malformed"})
			return
		}

		id, err := a.Verify(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}

		if a.users != nil {
			u, err := a.users.GetUser(c.Request.Context(), id.UserID)
			switch {
			case err == nil:
				id.Role = u.Role
			case apperr.Is(err, apperr.KindNotFound):
			default:
				c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{"success": false, "error": apperr.Message(err)})
				return
			}
		}
		if id.Role == "" {
			id.Role = users.RoleUser
		}

		c.Set(KeyUserID, id.UserID)
		c.Set(KeyEmail, id.Email)
		c.Set(KeyName, id.Name)
		c.Set(KeyPhone, id.Phone)
		c.Set(KeyRole, id.Role)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(KeyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Role not found in token"})
			return
		}
		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Access denied"})
			return
		}
		c.Next()
	}
}
