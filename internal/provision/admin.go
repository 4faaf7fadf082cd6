// Package provision creates the administrator account. It runs from the
// provisioning command only, never during server start.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/musichub/server/internal/storage"
)

// RoleAdmin is the role stored on administrator user records.
const RoleAdmin = "admin"

const minPasswordLength = 8

var (
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("admin email and password are required")
	// ErrWeakPassword is returned for passwords shorter than eight characters.
	ErrWeakPassword = errors.New("admin password must be at least 8 characters")
)

// AdminAccount holds the credentials to provision.
type AdminAccount struct {
	Email    string
	Name     string
	Password string
}

// Outcome describes what EnsureAdmin did.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomePromoted Outcome = "promoted"
	OutcomeExisted  Outcome = "existed"
)

// Result identifies the admin user record.
type Result struct {
	UserID  string
	Outcome Outcome
}

type options struct {
	users string
	now   func() time.Time
	cost  int
}

// Option customises EnsureAdmin.
type Option func(*options)

// WithUsersCollection overrides the users collection name.
func WithUsersCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.users = name
		}
	}
}

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.cost = cost }
}

// EnsureAdmin makes sure a user with acct.Email exists with the admin role.
// An existing admin is left untouched and an existing non-admin is
// promoted; the stored password is only set when the record is created.
func EnsureAdmin(ctx context.Context, store storage.RecordStore, acct AdminAccount, opts ...Option) (Result, error) {
	o := options{users: "users", now: time.Now, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	email := strings.ToLower(strings.TrimSpace(acct.Email))
	if email == "" || acct.Password == "" {
		return Result{}, ErrMissingCredentials
	}
	if len(acct.Password) < minPasswordLength {
		return Result{}, ErrWeakPassword
	}

	existing, err := store.Query(ctx, o.users, storage.Query{
		Filters: []storage.Filter{storage.Where("email", storage.OpEq, email)},
		Limit:   1,
	})
	if err != nil {
		return Result{}, fmt.Errorf("lookup admin user: %w", err)
	}
	if len(existing) > 0 {
		rec := existing[0]
		if role, _ := rec.Data["role"].(string); role == RoleAdmin {
			return Result{UserID: rec.ID, Outcome: OutcomeExisted}, nil
		}
		if err := store.Update(ctx, o.users, rec.ID, storage.Document{"role": RoleAdmin}); err != nil {
			return Result{}, fmt.Errorf("promote user %s: %w", rec.ID, err)
		}
		return Result{UserID: rec.ID, Outcome: OutcomePromoted}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), o.cost)
	if err != nil {
		return Result{}, fmt.Errorf("hash admin password: %w", err)
	}
	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = "Administrator"
	}

	id, err := store.Insert(ctx, o.users, storage.Document{
		"email":        email,
		"name":         name,
		"role":         RoleAdmin,
		"passwordHash": string(hash),
		"createdAt":    storage.NewTimestamp(o.now()).String(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert admin user: %w", err)
	}
	return Result{UserID: id, Outcome: OutcomeCreated}, nil
}
