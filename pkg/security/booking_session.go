package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bookingIssuer = "installation-booking"

var ErrInvalidSession = errors.New("invalid booking session")

type BookingClaims struct {
	BookingID string `json:"booking_id"`
	jwt.RegisteredClaims
}

// BookingSigner signs and verifies the short lived session tokens that tie a
// browser to its booking draft between the flow steps
type BookingSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewBookingSigner(secret string, ttl time.Duration) *BookingSigner {
	return &BookingSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is how long a signed session stays valid
func (s *BookingSigner) TTL() time.Duration {
	return s.ttl
}

func (s *BookingSigner) Sign(bookingID string) (string, error) {
	if bookingID == "" {
		return "", errors.New("no booking ID provided")
	}

	now := s.now()
	claims := BookingClaims{
		BookingID: bookingID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    bookingIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign booking session, %w", err)
	}

	return signed, nil
}

// Parse validates a session token and returns the booking ID it carries
func (s *BookingSigner) Parse(tokenStr string) (string, error) {
	var claims BookingClaims

	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(bookingIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w, %w", ErrInvalidSession, err)
	}

	if claims.BookingID == "" {
		return "", ErrInvalidSession
	}

	return claims.BookingID, nil
}
