package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const principalKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GetPrincipal extracts the caller set by Auth.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// ProfileLoader records first sightings of a user.
type ProfileLoader interface {
	Ensure(ctx context.Context, userID uuid.UUID, email string) (bool, error)
}

// RegistrationNotifier is told about users seen for the first time.
type RegistrationNotifier interface {
	LogRegistration(userID uuid.UUID, email string)
}

// Auth validates the HS256 bearer token and loads the caller's profile.
func Auth(secret string, profiles ProfileLoader, notifier RegistrationNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed Authorization header"})
			return
		}

		p, err := ParseToken(raw, secret)
		if err != nil {
			slog.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if profiles != nil {
			created, err := profiles.Ensure(c.Request.Context(), p.UserID, p.Email)
			if err != nil {
				slog.Error("failed to load profile", "user_id", p.UserID, "error", err)
			} else if created && notifier != nil {
				notifier.LogRegistration(p.UserID, p.Email)
			}
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// ParseToken verifies a token and returns its subject as the caller.
func ParseToken(raw, secret string) (Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("parse subject: %w", err)
	}
	return Principal{UserID: userID, Email: claims.Email}, nil
}
