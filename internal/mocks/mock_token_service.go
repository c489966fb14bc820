package mocks

import (
	"fmt"
	"strings"
	"time"

	"github.com/you/bookauth/domain"
)

// MockTokenService implements domain.TokenService interface for testing.
// Default tokens are readable strings of the form "<kind>:<user id>:<role>:<session id>"
// and the default validators parse them back.
type MockTokenService struct {
	IssueFunc                func(claims domain.TokenClaims, ttl time.Duration) (string, error)
	ParseFunc                func(token string) (*domain.TokenClaims, error)
	GenerateAccessTokenFunc  func(user *domain.User, sessionID string) (string, error)
	GenerateRefreshTokenFunc func(user *domain.User, sessionID string) (string, error)
	ValidateAccessTokenFunc  func(token string) (*domain.TokenClaims, error)
	ValidateRefreshTokenFunc func(token string) (*domain.TokenClaims, error)

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

// Issue encodes claims without signing them
func (m *MockTokenService) Issue(claims domain.TokenClaims, ttl time.Duration) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(claims, ttl)
	}
	return fmt.Sprintf("%s:%d:%s:%s", claims.Kind, claims.UserID, claims.Role, claims.SessionID), nil
}

// Parse decodes a default-format token
func (m *MockTokenService) Parse(token string) (*domain.TokenClaims, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(token)
	}
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return nil, domain.ErrTokenMalformed
	}
	var userID uint
	if _, err := fmt.Sscanf(parts[1], "%d", &userID); err != nil || userID == 0 {
		return nil, domain.ErrTokenMalformed
	}
	now := time.Now()
	return &domain.TokenClaims{
		UserID:    userID,
		Kind:      domain.TokenKind(parts[0]),
		Role:      domain.Role(parts[2]),
		Category:  domain.Role(parts[2]).Category(),
		SessionID: parts[3],
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.AccessTokenTTL).Unix(),
	}, nil
}

// GenerateAccessToken generates an access token for the user
func (m *MockTokenService) GenerateAccessToken(user *domain.User, sessionID string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(user, sessionID)
	}
	return m.Issue(domain.TokenClaims{UserID: user.ID, Role: user.Role, Kind: domain.TokenKindAccess, SessionID: sessionID}, m.AccessTokenTTL)
}

// GenerateRefreshToken generates a refresh token for the user
func (m *MockTokenService) GenerateRefreshToken(user *domain.User, sessionID string) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(user, sessionID)
	}
	return m.Issue(domain.TokenClaims{UserID: user.ID, Kind: domain.TokenKindRefresh, SessionID: sessionID}, m.RefreshTokenTTL)
}

// ValidateAccessToken parses token and requires the access kind
func (m *MockTokenService) ValidateAccessToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateAccessTokenFunc != nil {
		return m.ValidateAccessTokenFunc(token)
	}
	return m.parseKind(token, domain.TokenKindAccess)
}

// ValidateRefreshToken parses token and requires the refresh kind
func (m *MockTokenService) ValidateRefreshToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(token)
	}
	return m.parseKind(token, domain.TokenKindRefresh)
}

func (m *MockTokenService) AccessTTL() time.Duration { return m.AccessTokenTTL }

func (m *MockTokenService) RefreshTTL() time.Duration { return m.RefreshTokenTTL }

func (m *MockTokenService) parseKind(token string, kind domain.TokenKind) (*domain.TokenClaims, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, domain.ErrTokenKindMismatch
	}
	return claims, nil
}
