package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// jsonFile keeps the users in a JSON array file:
// [{"user_id": 1, "name": "Alice"}].
// The file is read on every call, so external edits are picked up.
type jsonFile struct {
	mu   sync.Mutex
	path string
}

// NewJSONUsers returns a store backed by the JSON file.
// The file is created on the first Put if it does not exist.
func NewJSONUsers(path string) Users {
	return &jsonFile{path: path}
}

func (s *jsonFile) Get(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *jsonFile) Put(_ context.Context, user *User) error {
	if err := validate(user); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, u := range users {
		if u.ID == user.ID {
			users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, user)
	}
	return s.write(users)
}

func (s *jsonFile) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return err
	}
	for i, u := range users {
		if u.ID == id {
			return s.write(append(users[:i], users[i+1:]...))
		}
	}
	return nil
}

func (s *jsonFile) List(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	users, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

func (s *jsonFile) read() ([]*User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to load %s", s.path)
	}
	var users []*User
	if err = json.Unmarshal(data, &users); err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", s.path)
	}
	return users, nil
}

// write replaces the file atomically
func (s *jsonFile) write(users []*User) error {
	if users == nil {
		users = []*User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to save users")
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to save users")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to save users")
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed to save users")
	}
	logger.KV(xlog.DEBUG, "file", s.path, "users", len(users))
	return nil
}
