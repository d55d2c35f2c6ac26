package clmiddleware

import (
	"clubpulse/internal/models/clconfig"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Actor utilisateur authentifié de la requête
type Actor struct {
	UserID uint
	Role   string
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken jeton HS256, l'émission réelle appartient au service d'authentification
func GenerateToken(secret string, userID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// OptionalActor attache l'acteur si le jeton est valide, l'ignore sinon
func OptionalActor(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			claims, err := ValidateToken(secret, token)
			if err != nil {
				log.Debug().Err(err).Str("request_id", c.GetString(KeyRequestID)).Msg("ignoring invalid token")
			} else {
				c.Set(KeyActor, &Actor{UserID: claims.UserID, Role: claims.Role})
			}
		}
		c.Next()
	}
}

// RequireActor 401 sans jeton valide
func RequireActor(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}

		claims, err := ValidateToken(secret, token)
		if err != nil {
			log.Warn().Err(err).Str("request_id", c.GetString(KeyRequestID)).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		c.Set(KeyActor, &Actor{UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequireAdmin à placer après RequireActor
func RequireAdmin(auth clconfig.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}
		if !auth.IsAdminRole(actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
			return
		}
		c.Next()
	}
}

func GetActor(c *gin.Context) *Actor {
	v, ok := c.Get(KeyActor)
	if !ok {
		return nil
	}
	actor, _ := v.(*Actor)
	return actor
}

// ActorID nil pour un visiteur anonyme
func ActorID(c *gin.Context) *uint {
	actor := GetActor(c)
	if actor == nil {
		return nil
	}
	id := actor.UserID
	return &id
}
