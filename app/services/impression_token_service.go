package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lightningnetwork/lnd/clock"
)

const impressionTokenType = "impression"

// ImpressionTokenService signs and verifies the short-lived tokens that
// bind an impression reservation to its later confirmation. Tokens are
// opaque to clients; the server re-looks-up the canonical impression row
// by token string.
type ImpressionTokenService interface {
	Encode(impressionID uint, expiresAt time.Time) (string, error)
	Decode(token string) (*ImpressionTokenClaims, error)
}

// ImpressionTokenClaims is the decoded payload of an impression token
type ImpressionTokenClaims struct {
	ImpressionID uint      `json:"impression_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenID      string    `json:"jti"`
}

// ImpressionTokenServiceImpl implements ImpressionTokenService
type ImpressionTokenServiceImpl struct {
	secretKey []byte
	clk       clock.Clock
}

// NewImpressionTokenService creates a new impression token service
func NewImpressionTokenService(secretKey string, clk clock.Clock) (ImpressionTokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	return &ImpressionTokenServiceImpl{
		secretKey: []byte(secretKey),
		clk:       clk,
	}, nil
}

// Encode signs a token for the impression, valid until expiresAt
func (s *ImpressionTokenServiceImpl) Encode(impressionID uint, expiresAt time.Time) (string, error) {
	tokenID, err := generateTokenID()
	if err != nil {
		return "", err
	}

	now := s.clk.Now().UTC()
	claims := jwt.MapClaims{
		"impression_id": impressionID,
		"typ":           impressionTokenType,
		"jti":           tokenID,
		"iat":           now.Unix(),
		"exp":           expiresAt.UTC().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Decode verifies a token, rejecting bad signatures, wrong type, and
// tokens at or past their expiry.
func (s *ImpressionTokenServiceImpl) Decode(token string) (*ImpressionTokenClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		// Claims validation is disabled, so parse failures are never
		// expiry; the clock check below owns that.
		return nil, ErrTokenInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	tokenType, ok := claims["typ"].(string)
	if !ok || tokenType != impressionTokenType {
		return nil, ErrTokenInvalid
	}
	impressionID, ok := claims["impression_id"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	// Exactly-now counts as expired; the expiry check uses the injected
	// clock so tests can advance time.
	if !time.Unix(int64(expiresAt), 0).After(s.clk.Now()) {
		return nil, ErrTokenExpired
	}

	return &ImpressionTokenClaims{
		ImpressionID: uint(impressionID),
		TokenID:      tokenID,
		IssuedAt:     time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt:    time.Unix(int64(expiresAt), 0).UTC(),
	}, nil
}
