package database

import (
	"context"

	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/infrastructure/repositories"
	"gorm.io/gorm"
)

// unitOfWork binds both stores to one *gorm.DB handle
type unitOfWork struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
}

func newUnitOfWork(db *gorm.DB) *unitOfWork {
	return &unitOfWork{
		users:    repositories.NewUserRepository(db),
		sessions: repositories.NewSessionRepository(db),
	}
}

func (u *unitOfWork) Users() domain.UserRepository       { return u.users }
func (u *unitOfWork) Sessions() domain.SessionRepository { return u.sessions }

// Transactor implements domain.Transactor on top of gorm transactions
type Transactor struct {
	*unitOfWork
	db *gorm.DB
}

// NewTransactor creates a transactor. Its Users and Sessions run without a transaction.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{unitOfWork: newUnitOfWork(db), db: db}
}

// WithinTx runs fn in a transaction. The transaction is rolled back when fn returns
// an error or panics, and committed otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newUnitOfWork(tx))
	})
}

var _ domain.Transactor = (*Transactor)(nil)
