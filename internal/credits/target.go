package credits

import (
	"context"
	"errors"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/domain"
)

// MsgUserNotFound is the field message for an id the directory does not know.
const MsgUserNotFound = "User not found"

// UserReader reads one user by id.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// ResolveTarget turns a bare user id into a grant target read from the
// directory, so a grant only ever goes to a user that exists. An unknown id
// is a ValidationError on user_id; other failures are returned as is.
func ResolveTarget(ctx context.Context, api UserReader, id int64) (domain.Candidate, error) {
	if id <= 0 {
		return domain.Candidate{}, &ValidationError{Fields: map[string]string{"user_id": MsgSelectUser}}
	}
	u, err := api.GetUser(ctx, id)
	if err != nil {
		var appErr *adminapi.ApplicationError
		if errors.As(err, &appErr) && (appErr.Status == 404 || appErr.Code == "HTTP_404") {
			return domain.Candidate{}, &ValidationError{Fields: map[string]string{"user_id": MsgUserNotFound}}
		}
		return domain.Candidate{}, err
	}
	return u.AsCandidate(), nil
}
