// Package users provides the fetch_from_db tool.
package users

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/store"
)

// ToolName is the name of the tool
const ToolName = "fetch_from_db"

// FetchRequest is the input of fetch_from_db
type FetchRequest struct {
	UserID int64 `json:"user_id" jsonschema:"description=The ID of the user to fetch."`
}

// New returns the fetch_from_db tool backed by the store
func New(st store.Users) registry.ITool {
	return registry.MustTyped[FetchRequest, string](ToolName,
		"Fetches user data from the users database.",
		func(ctx context.Context, req *FetchRequest) (string, error) {
			u, err := st.Get(ctx, req.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return "", errors.Errorf("User with ID %d not found", req.UserID)
				}
				return "", err
			}
			return fmt.Sprintf("User ID: %d, Name: %s", u.ID, u.Name), nil
		})
}
