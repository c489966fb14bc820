package domain

import "time"

// LockoutPolicy configures how failed logins lock an account
type LockoutPolicy struct {
	Threshold  int
	Duration   time.Duration
	AutoUnlock bool
}

// DefaultLockoutPolicy locks after five consecutive failures for thirty minutes
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute, AutoUnlock: true}
}

// RecordFailure counts a wrong password against u. It returns true when this
// failure reached the threshold and moved the account to LOCKED.
func (p LockoutPolicy) RecordFailure(u *User, now time.Time) bool {
	u.FailedLoginAttempts++
	u.UpdatedAt = now
	if p.Threshold <= 0 || u.FailedLoginAttempts < p.Threshold {
		return false
	}
	until := now.Add(p.Duration)
	u.Status = StatusLocked
	u.LockoutUntil = &until
	return true
}

// RecordSuccess resets the counter and stamps the login
func (p LockoutPolicy) RecordSuccess(u *User, now time.Time, ip string) {
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	u.UpdatedAt = now
}

// LockoutElapsed reports whether u is LOCKED by policy and the lockout window is over.
// Accounts locked by an administrator carry no LockoutUntil and never elapse.
func (p LockoutPolicy) LockoutElapsed(u *User, now time.Time) bool {
	return u.Status == StatusLocked && u.LockoutUntil != nil && !now.Before(*u.LockoutUntil)
}

// Unlock returns a LOCKED account to ACTIVE with a clean counter
func Unlock(u *User, now time.Time) {
	u.Status = StatusActive
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	u.UpdatedAt = now
}

var allowedTransitions = map[AccountStatus][]AccountStatus{
	StatusActive:    {StatusInactive, StatusSuspended, StatusLocked, StatusDeleted},
	StatusInactive:  {StatusActive, StatusSuspended, StatusDeleted},
	StatusSuspended: {StatusActive, StatusInactive, StatusDeleted},
	StatusLocked:    {StatusActive, StatusInactive, StatusSuspended, StatusDeleted},
	StatusDeleted:   {},
}

// CanTransition reports whether an administrator may move an account from one status to another
func CanTransition(from, to AccountStatus) bool {
	if from == to {
		return from != StatusDeleted
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo applies an administrative status change to u
func (u *User) TransitionTo(to AccountStatus, now time.Time) error {
	if !to.IsValid() || !CanTransition(u.Status, to) {
		return ErrInvalidTransition
	}
	switch to {
	case StatusActive:
		Unlock(u, now)
		return nil
	case StatusLocked:
		// administrative lock has no expiry
		u.LockoutUntil = nil
	case StatusDeleted:
		u.DeletedAt = &now
	}
	u.Status = to
	u.UpdatedAt = now
	return nil
}
