package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"care-planner/internal/model"
	"care-planner/internal/repository"
)

const userKey = "user"

var errInvalidToken = errors.New("invalid or expired token")

// IdentityClaims are the claims the identity provider puts in its access
// tokens.
type IdentityClaims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata carries the profile fields set at sign-up.
type UserMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenVerifier checks HS256 bearer tokens signed with the identity
// provider's secret.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses token and returns its claims when the signature, expiry and
// subject are valid.
func (v *TokenVerifier) Verify(token string) (*IdentityClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &IdentityClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, errInvalidToken
	}
	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Sign issues a token for subject. Used by tests and local tooling; production
// tokens come from the identity provider.
func (v *TokenVerifier) Sign(subject, email string, meta UserMetadata, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Email:        email,
		UserMetadata: meta,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// authMiddleware verifies the bearer token and stores the matching local user
// in the context.
func authMiddleware(verifier *TokenVerifier, users *repository.UserRepository, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be: Bearer <token>"})
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		user, err := users.UpsertFromIdentity(c.Request.Context(), claims.Subject, claims.Email,
			claims.UserMetadata.FirstName, claims.UserMetadata.LastName)
		if err != nil {
			log.Errorw("upsert identity user", "subject", claims.Subject, "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable", "retryable": true})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.User {
	return c.MustGet(userKey).(*model.User)
}
