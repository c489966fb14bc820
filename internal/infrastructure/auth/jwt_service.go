package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/you/bookauth/domain"
)

// jwtClaims is the wire shape of domain.TokenClaims
type jwtClaims struct {
	UserID     uint                   `json:"user_id"`
	Role       domain.Role            `json:"role,omitempty"`
	Category   domain.AccountCategory `json:"category,omitempty"`
	Kind       domain.TokenKind       `json:"kind"`
	SessionID  string                 `json:"session_id,omitempty"`
	Department string                 `json:"department,omitempty"`
	EmployeeID string                 `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTServiceImpl implements domain.TokenService
type JWTServiceImpl struct {
	secretKey       []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, issuer string, accessTTL, refreshTTL time.Duration) domain.TokenService {
	return &JWTServiceImpl{
		secretKey:       []byte(secretKey),
		issuer:          issuer,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}
}

// AccessTTL implements domain.TokenService
func (j *JWTServiceImpl) AccessTTL() time.Duration { return j.accessTokenTTL }

// RefreshTTL implements domain.TokenService
func (j *JWTServiceImpl) RefreshTTL() time.Duration { return j.refreshTokenTTL }

// Issue signs claims with HS256. iat, exp, jti and iss are always set by the service.
func (j *JWTServiceImpl) Issue(claims domain.TokenClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if claims.UserID == 0 {
		return "", fmt.Errorf("token subject is required")
	}
	now := j.now()
	wire := jwtClaims{
		UserID:     claims.UserID,
		Role:       claims.Role,
		Category:   claims.Category,
		Kind:       claims.Kind,
		SessionID:  claims.SessionID,
		Department: claims.Department,
		EmployeeID: claims.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	return token.SignedString(j.secretKey)
}

// Parse verifies the signature and expiry of tokenString and returns its claims
func (j *JWTServiceImpl) Parse(tokenString string) (*domain.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(j.issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(j.now),
	)

	wire := &jwtClaims{}
	token, err := parser.ParseWithClaims(tokenString, wire, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenSignatureInvalid
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, classifyParseError(tokenString, err)
	}
	if !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if wire.UserID == 0 || wire.IssuedAt == nil {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.TokenClaims{
		ID:         wire.ID,
		UserID:     wire.UserID,
		Role:       wire.Role,
		Category:   wire.Category,
		Kind:       wire.Kind,
		SessionID:  wire.SessionID,
		Department: wire.Department,
		EmployeeID: wire.EmployeeID,
		IssuedAt:   wire.IssuedAt.Unix(),
		ExpiresAt:  wire.ExpiresAt.Unix(),
	}, nil
}

// classifyParseError maps jwt library failures onto the domain token errors.
// The signature segment is decoded strictly, so an edited signature can surface as
// a malformed token; it is reported as a signature failure when the header and
// payload still decode.
func classifyParseError(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		if _, _, uerr := jwt.NewParser().ParseUnverified(tokenString, &jwtClaims{}); uerr == nil {
			return domain.ErrTokenSignatureInvalid
		}
		return domain.ErrTokenMalformed
	}
	return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
}

// GenerateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateAccessToken(user *domain.User, sessionID string) (string, error) {
	claims := domain.TokenClaims{
		UserID:    user.ID,
		Role:      user.Role,
		Category:  user.Role.Category(),
		Kind:      domain.TokenKindAccess,
		SessionID: sessionID,
	}
	if user.Role.IsStaff() {
		claims.Department = user.Department
		if user.EmployeeID != nil {
			claims.EmployeeID = *user.EmployeeID
		}
	}
	return j.Issue(claims, j.accessTokenTTL)
}

// GenerateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) GenerateRefreshToken(user *domain.User, sessionID string) (string, error) {
	return j.Issue(domain.TokenClaims{
		UserID:    user.ID,
		Kind:      domain.TokenKindRefresh,
		SessionID: sessionID,
	}, j.refreshTokenTTL)
}

// ValidateAccessToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateKind(tokenString, domain.TokenKindAccess)
}

// ValidateRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) ValidateRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validateKind(tokenString, domain.TokenKindRefresh)
}

func (j *JWTServiceImpl) validateKind(tokenString string, kind domain.TokenKind) (*domain.TokenClaims, error) {
	claims, err := j.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, domain.ErrTokenKindMismatch
	}
	return claims, nil
}
