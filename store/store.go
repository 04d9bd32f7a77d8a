// Package store provides the user records served by the fetch_from_db tool.
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge", "store")

// ErrNotFound is returned when the user does not exist
var ErrNotFound = errors.New("not found")

// User is a user record
type User struct {
	ID   int64  `json:"user_id" yaml:"user_id"`
	Name string `json:"name" yaml:"name"`
}

// Users is a store of users
type Users interface {
	// Get returns the user by ID, or ErrNotFound
	Get(ctx context.Context, id int64) (*User, error)
	// Put creates or replaces the user
	Put(ctx context.Context, user *User) error
	// Delete removes the user, deleting a missing user is not an error
	Delete(ctx context.Context, id int64) error
	// List returns all users ordered by ID
	List(ctx context.Context) ([]*User, error)
}

// Load copies the users into the store
func Load(ctx context.Context, st Users, users []*User) error {
	for _, u := range users {
		if err := st.Put(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func validate(user *User) error {
	if user == nil {
		return errors.New("user is required")
	}
	if strings.TrimSpace(user.Name) == "" {
		return errors.Errorf("user %d: name is required", user.ID)
	}
	return nil
}

func sortUsers(list []*User) {
	slices.SortFunc(list, func(a, b *User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
