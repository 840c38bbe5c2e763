package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// SarthiRepository is the record store for users, preferences, feedback
// and chat messages. Every call honours the deadline carried by ctx.
type SarthiRepository interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, userId int) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error)
	UpdateTraits(ctx context.Context, params UpdateTraitsParams) (User, error)
	ListUsersExcept(ctx context.Context, userId int) ([]User, error)
	UpsertPreference(ctx context.Context, params UpsertPreferenceParams) (Preference, error)
	GetPreference(ctx context.Context, userId int) (Preference, error)
	CreateFeedback(ctx context.Context, userId int, message string) (Feedback, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessagesBetween(ctx context.Context, userA, userB int) ([]Message, error)
	GetLastMessageTime(ctx context.Context, userA, userB int) (time.Time, error)
}
