package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jghoshh/taskvibe/backend/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// OfflineUserID is the single account used by offline login.
	OfflineUserID = "offline-user"

	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
)

// OfflineUser is the profile offline login creates on first use.
func OfflineUser() models.User {
	return models.User{
		ID:        OfflineUserID,
		Email:     "offline@taskvibe.local",
		FirstName: "TaskVibe",
		LastName:  "User",
		Theme:     models.ThemeSystem,
	}
}

// Authenticator issues and verifies the JWTs the API is called with.
type Authenticator struct {
	signingKey     []byte
	passphraseHash []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
}

// Option tweaks an Authenticator.
type Option func(*Authenticator)

// WithTTLs overrides the access and refresh token lifetimes.
func WithTTLs(access, refresh time.Duration) Option {
	return func(a *Authenticator) {
		a.accessTTL = access
		a.refreshTTL = refresh
	}
}

// NewAuthenticator creates an Authenticator signing with signingKey. When passphrase
// is non-empty only its bcrypt hash is kept and Login requires it.
func NewAuthenticator(signingKey, passphrase string, opts ...Option) (*Authenticator, error) {
	if signingKey == "" {
		return nil, errors.New("JWT signing key is required")
	}
	a := &Authenticator{
		signingKey: []byte(signingKey),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
	if passphrase != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash passphrase: %w", err)
		}
		a.passphraseHash = hash
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CheckPassphrase accepts anything when no passphrase is configured.
func (a *Authenticator) CheckPassphrase(passphrase string) error {
	if a.passphraseHash == nil {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(a.passphraseHash, []byte(passphrase)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (a *Authenticator) createToken(userID, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"typ": typ,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to create %s token: %w", typ, err)
	}
	return signedToken, nil
}

// CreateTokens issues an access and a refresh token for userID.
func (a *Authenticator) CreateTokens(userID string) (string, string, error) {
	authToken, err := a.createToken(userID, tokenTypeAccess, a.accessTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := a.createToken(userID, tokenTypeRefresh, a.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return authToken, refreshToken, nil
}

func (a *Authenticator) parse(tokenString, typ string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims["typ"] != typ {
		return "", ErrInvalidToken
	}
	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// ParseAccessToken returns the user id an access token was issued for.
func (a *Authenticator) ParseAccessToken(token string) (string, error) {
	return a.parse(token, tokenTypeAccess)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (a *Authenticator) Refresh(refreshToken string) (string, string, error) {
	userID, err := a.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", "", err
	}
	return a.CreateTokens(userID)
}
