package utils

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	FlashCookieName = "movieweb_flash"
	flashLifetime   = 5 * time.Minute
	flashContextKey = "flashStore"
	flashIssuer     = "movieweb"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"` // "success", "danger", ...
	Message  string `json:"message"`
}

// flashClaims is the signed payload of the flash cookie.
type flashClaims struct {
	Flashes []Flash `json:"flashes"`
	jwt.RegisteredClaims
}

// FlashStore keeps pending flash messages in an HS256-signed cookie.
type FlashStore struct {
	key []byte
}

// NewFlashStore derives the cookie signing key from the application secret.
func NewFlashStore(secret string) (*FlashStore, error) {
	if secret == "" {
		return nil, errors.New("session secret is not configured")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), []byte("movieweb-flash"), []byte("cookie-signing"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive flash signing key: %w", err)
	}
	return &FlashStore{key: key}, nil
}

// Middleware exposes the store to handlers through the gin context.
func (s *FlashStore) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(flashContextKey, s)
		c.Next()
	}
}

// Encode signs the flashes into a cookie value.
func (s *FlashStore) Encode(flashes []Flash) (string, error) {
	now := time.Now()
	claims := &flashClaims{
		Flashes: flashes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(flashLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    flashIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign flash cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies a cookie value and returns its flashes.
func (s *FlashStore) Decode(value string) ([]Flash, error) {
	claims := &flashClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithIssuer(flashIssuer))
	if err != nil {
		return nil, fmt.Errorf("invalid flash cookie: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid flash cookie")
	}
	return claims.Flashes, nil
}

func (s *FlashStore) read(c *gin.Context) []Flash {
	value, err := c.Cookie(FlashCookieName)
	if err != nil || value == "" {
		return nil
	}
	flashes, err := s.Decode(value)
	if err != nil {
		zap.L().Debug("Ignoring flash cookie", zap.Error(err))
		return nil
	}
	return flashes
}

// Add queues a flash for the next page the client renders.
func (s *FlashStore) Add(c *gin.Context, category, message string) {
	flashes := append(s.read(c), Flash{Category: category, Message: message})
	value, err := s.Encode(flashes)
	if err != nil {
		zap.L().Error("Failed to store flash message", zap.Error(err))
		return
	}
	c.SetCookie(FlashCookieName, value, int(flashLifetime.Seconds()), "/", "", false, true)
}

// Pop returns the pending flashes and clears the cookie.
func (s *FlashStore) Pop(c *gin.Context) []Flash {
	if _, err := c.Cookie(FlashCookieName); err != nil {
		return nil
	}
	flashes := s.read(c)
	c.SetCookie(FlashCookieName, "", -1, "/", "", false, true)
	return flashes
}

// AddFlash queues a flash using the store installed by Middleware.
// It is a no-op when no store is installed.
func AddFlash(c *gin.Context, category, message string) {
	if s, ok := c.Get(flashContextKey); ok {
		s.(*FlashStore).Add(c, category, message)
	}
}

// PopFlashes returns and clears pending flashes using the store installed by Middleware.
func PopFlashes(c *gin.Context) []Flash {
	if s, ok := c.Get(flashContextKey); ok {
		return s.(*FlashStore).Pop(c)
	}
	return nil
}
