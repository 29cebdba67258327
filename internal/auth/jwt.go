// Package auth validates the bearer tokens that identify the viewer of a
// feed or search request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type accepted for API requests.
const TokenTypeAccess = "access"

// Token lifetimes and validation leeway.
const (
	AccessTokenExpiry = 15 * time.Minute
	DefaultLeeway     = 30 * time.Second
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with,
	// signed with an unknown key or of the wrong type.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrRegistrationIncomplete is returned for a valid token whose user
	// has not finished registration.
	ErrRegistrationIncomplete = errors.New("registration incomplete")

	// ErrEmptyUserID is returned when issuing a token without a subject.
	ErrEmptyUserID = errors.New("userID cannot be empty")
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type       string `json:"typ"`
	Registered bool   `json:"reg"`
}

// Viewer is the identity extracted from a verified token.
type Viewer struct {
	UserID     string
	Registered bool
}

// Options configures a JWTService.
type Options struct {
	Secret string

	// PreviousSecret is still accepted for validation during key rotation.
	PreviousSecret string

	Leeway time.Duration
}

// JWTService issues and validates HS256 access tokens.
// Tokens are always signed with the current secret; validation falls back
// to the previous secret if one is configured.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService.
func NewJWTService(opts Options) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(opts.Secret),
		leeway:        opts.Leeway,
		now:           time.Now,
	}
	if svc.leeway == 0 {
		svc.leeway = DefaultLeeway
	}
	if opts.PreviousSecret != "" {
		svc.previousSecret = []byte(opts.PreviousSecret)
	}
	return svc
}

// GenerateAccessToken creates an access token for userID.
func (s *JWTService) GenerateAccessToken(userID string, registered bool) (string, error) {
	return s.generate(userID, registered, AccessTokenExpiry)
}

func (s *JWTService) generate(userID string, registered bool, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:       TokenTypeAccess,
		Registered: registered,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate validates a token and returns the viewer it identifies.
// A valid token for an unregistered user yields the viewer together with
// ErrRegistrationIncomplete.
func (s *JWTService) Authenticate(tokenString string) (Viewer, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Viewer{}, err
	}
	v := Viewer{UserID: claims.Subject, Registered: claims.Registered}
	if !v.Registered {
		return v, ErrRegistrationIncomplete
	}
	return v, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
