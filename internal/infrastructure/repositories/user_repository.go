package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/you/bookauth/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepositoryImpl implements domain.UserRepository using GORM
type UserRepositoryImpl struct {
	db *gorm.DB
}

// DBUser represents the database model for User (with GORM tags).
// Uniqueness only binds live rows so a soft-deleted account frees its username and email.
type DBUser struct {
	ID                  uint       `gorm:"primaryKey"`
	Username            string     `gorm:"size:50;not null;uniqueIndex:idx_users_username_live,where:deleted_at IS NULL"`
	Email               string     `gorm:"size:255;not null;uniqueIndex:idx_users_email_live,where:deleted_at IS NULL"`
	PasswordHash        string     `gorm:"column:password;not null"`
	DisplayName         string     `gorm:"size:100"`
	Role                string     `gorm:"index;size:32;not null"`
	Status              string     `gorm:"index;size:16;not null"`
	FailedLoginAttempts int        `gorm:"not null;default:0"`
	LockoutUntil        *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastLoginIP         string `gorm:"size:64"`
	PasswordChangedAt   time.Time
	Department          string   `gorm:"size:100"`
	EmployeeID          *string  `gorm:"size:50;uniqueIndex:idx_users_employee_id_live,where:deleted_at IS NULL"`
	ManagerID           *uint    `gorm:"index"`
	Permissions         []string `gorm:"serializer:json"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (DBUser) TableName() string {
	return "users"
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

// Create implements domain.UserRepository
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	dbUser := r.domainToDB(user)
	if err := r.db.WithContext(ctx).Create(dbUser).Error; err != nil {
		return translateUniqueViolation(err)
	}
	user.ID = dbUser.ID
	user.CreatedAt = dbUser.CreatedAt
	user.UpdatedAt = dbUser.UpdatedAt
	return nil
}

// FindByID implements domain.UserRepository
func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate implements domain.UserRepository
func (r *UserRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uint) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// FindByIdentifier implements domain.UserRepository
func (r *UserRepositoryImpl) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	q := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		Order("deleted_at IS NOT NULL").
		Order("id")
	return r.first(q)
}

// ExistsByUsername implements domain.UserRepository
func (r *UserRepositoryImpl) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

// ExistsByEmail implements domain.UserRepository
func (r *UserRepositoryImpl) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", strings.ToLower(email))
}

// ExistsByEmployeeID implements domain.UserRepository
func (r *UserRepositoryImpl) ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error) {
	return r.exists(ctx, "employee_id = ?", employeeID)
}

// Update implements domain.UserRepository
func (r *UserRepositoryImpl) Update(ctx context.Context, user *domain.User) error {
	dbUser := r.domainToDB(user)
	if err := r.db.WithContext(ctx).Save(dbUser).Error; err != nil {
		return translateUniqueViolation(err)
	}
	user.UpdatedAt = dbUser.UpdatedAt
	return nil
}

// Delete implements domain.UserRepository. The row is removed physically.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&DBUser{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// FindElapsedLockouts implements domain.UserRepository
func (r *UserRepositoryImpl) FindElapsedLockouts(ctx context.Context, now time.Time) ([]*domain.User, error) {
	var rows []DBUser
	err := r.db.WithContext(ctx).
		Where("status = ? AND lockout_until IS NOT NULL AND lockout_until <= ?", string(domain.StatusLocked), now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, r.dbToDomain(&rows[i]))
	}
	return users, nil
}

func (r *UserRepositoryImpl) first(q *gorm.DB) (*domain.User, error) {
	var dbUser DBUser
	if err := q.Take(&dbUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbUser), nil
}

func (r *UserRepositoryImpl) exists(ctx context.Context, cond string, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DBUser{}).
		Where(cond, value).
		Where("deleted_at IS NULL").
		Count(&count).Error
	return count > 0, err
}

// translateUniqueViolation maps a unique index failure onto the duplicate sentinel
// for the offending column. Drivers only expose the column in the message text.
func translateUniqueViolation(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") && !strings.Contains(msg, "duplicate") {
		return err
	}
	switch {
	case strings.Contains(msg, "employee_id"):
		return domain.ErrDuplicateEmployeeID
	case strings.Contains(msg, "email"):
		return domain.ErrDuplicateEmail
	case strings.Contains(msg, "username"):
		return domain.ErrDuplicateUsername
	}
	return err
}

// domainToDB converts domain user to database user
func (r *UserRepositoryImpl) domainToDB(user *domain.User) *DBUser {
	return &DBUser{
		ID:                  user.ID,
		Username:            user.Username,
		Email:               strings.ToLower(user.Email),
		PasswordHash:        user.PasswordHash,
		DisplayName:         user.DisplayName,
		Role:                string(user.Role),
		Status:              string(user.Status),
		FailedLoginAttempts: user.FailedLoginAttempts,
		LockoutUntil:        user.LockoutUntil,
		LastLoginAt:         user.LastLoginAt,
		LastLoginIP:         user.LastLoginIP,
		PasswordChangedAt:   user.PasswordChangedAt,
		Department:          user.Department,
		EmployeeID:          user.EmployeeID,
		ManagerID:           user.ManagerID,
		Permissions:         user.Permissions,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
		DeletedAt:           user.DeletedAt,
	}
}

// dbToDomain converts database user to domain user
func (r *UserRepositoryImpl) dbToDomain(dbUser *DBUser) *domain.User {
	return &domain.User{
		ID:                  dbUser.ID,
		Username:            dbUser.Username,
		Email:               dbUser.Email,
		PasswordHash:        dbUser.PasswordHash,
		DisplayName:         dbUser.DisplayName,
		Role:                domain.Role(dbUser.Role),
		Status:              domain.AccountStatus(dbUser.Status),
		FailedLoginAttempts: dbUser.FailedLoginAttempts,
		LockoutUntil:        dbUser.LockoutUntil,
		LastLoginAt:         dbUser.LastLoginAt,
		LastLoginIP:         dbUser.LastLoginIP,
		PasswordChangedAt:   dbUser.PasswordChangedAt,
		Department:          dbUser.Department,
		EmployeeID:          dbUser.EmployeeID,
		ManagerID:           dbUser.ManagerID,
		Permissions:         dbUser.Permissions,
		CreatedAt:           dbUser.CreatedAt,
		UpdatedAt:           dbUser.UpdatedAt,
		DeletedAt:           dbUser.DeletedAt,
	}
}
