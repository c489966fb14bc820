package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/you/bookauth/domain"
	"gorm.io/gorm"
)

// SessionRepositoryImpl implements domain.SessionRepository using GORM.
// Rows are never deleted; logout and expiry only switch them off.
type SessionRepositoryImpl struct {
	db *gorm.DB
}

// DBSession represents the database model for Session
type DBSession struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         uint   `gorm:"index;not null"`
	DeviceID       string `gorm:"size:128"`
	IPAddress      string `gorm:"size:64"`
	UserAgent      string `gorm:"size:512"`
	IsActive       bool   `gorm:"index;not null"`
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time `gorm:"index"`
	LoggedOutAt    *time.Time
}

// TableName returns the table name for GORM
func (DBSession) TableName() string {
	return "sessions"
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) domain.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

// Create implements domain.SessionRepository
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Create(sessionToDB(session)).Error
}

// FindByID implements domain.SessionRepository
func (r *SessionRepositoryImpl) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	var row DBSession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return sessionToDomain(&row), nil
}

// FindByUser implements domain.SessionRepository
func (r *SessionRepositoryImpl) FindByUser(ctx context.Context, userID uint, activeOnly bool) ([]*domain.Session, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []DBSession
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]*domain.Session, 0, len(rows))
	for i := range rows {
		sessions = append(sessions, sessionToDomain(&rows[i]))
	}
	return sessions, nil
}

// Touch implements domain.SessionRepository
func (r *SessionRepositoryImpl) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&DBSession{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Update("last_accessed_at", at).Error
}

// Deactivate implements domain.SessionRepository
func (r *SessionRepositoryImpl) Deactivate(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&DBSession{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]interface{}{"is_active": false, "logged_out_at": at})
	return res.RowsAffected > 0, res.Error
}

// DeactivateAllByUser implements domain.SessionRepository
func (r *SessionRepositoryImpl) DeactivateAllByUser(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&DBSession{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{"is_active": false, "logged_out_at": at})
	return res.RowsAffected, res.Error
}

// DeactivateExpired implements domain.SessionRepository. Expired sessions keep a nil
// logged-out time.
func (r *SessionRepositoryImpl) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&DBSession{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func sessionToDB(s *domain.Session) *DBSession {
	return &DBSession{
		ID:             s.ID,
		UserID:         s.UserID,
		DeviceID:       s.DeviceID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		IsActive:       s.IsActive,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		ExpiresAt:      s.ExpiresAt,
		LoggedOutAt:    s.LoggedOutAt,
	}
}

func sessionToDomain(row *DBSession) *domain.Session {
	return &domain.Session{
		ID:             row.ID,
		UserID:         row.UserID,
		DeviceID:       row.DeviceID,
		IPAddress:      row.IPAddress,
		UserAgent:      row.UserAgent,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
		LastAccessedAt: row.LastAccessedAt,
		ExpiresAt:      row.ExpiresAt,
		LoggedOutAt:    row.LoggedOutAt,
	}
}
